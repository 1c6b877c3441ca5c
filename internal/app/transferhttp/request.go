package transferhttp

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sir_venger/chunkline/internal/models"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

// parseUploadRequest читает имя, индекс и контрольную сумму из заголовков и query.
// Тело части берётся либо целиком из body, либо из поля "file" multipart-формы; во втором
// случае имя файла по умолчанию берётся из формы.
func parseUploadRequest(r *http.Request) (models.AcceptRequest, error) {
	idxStr := strings.TrimSpace(r.Header.Get(transferproto.HeaderChunkNumber))
	if idxStr == "" {
		return models.AcceptRequest{}, fmt.Errorf("%w: %s header is required", models.ErrMissingChunkIndex, transferproto.HeaderChunkNumber)
	}
	idx, err := parseIndex(idxStr)
	if err != nil {
		return models.AcceptRequest{}, err
	}

	q := r.URL.Query()
	sum := firstNonEmpty(q.Get(transferproto.ParamChecksum), q.Get(transferproto.ParamMD5), r.Header.Get(transferproto.HeaderChecksum))
	name := firstNonEmpty(q.Get(transferproto.ParamFileName), r.Header.Get(transferproto.HeaderFileName))

	var body io.Reader = r.Body
	if isMultipart(r) {
		part, err := formFilePart(r)
		if err != nil {
			return models.AcceptRequest{}, err
		}
		body = part
		if name == "" {
			name = strings.TrimSpace(part.FileName())
		}
	}

	req := models.AcceptRequest{
		Session:  name,
		Index:    idx,
		Payload:  body,
		Checksum: sum,
	}
	if err := req.Validate(); err != nil {
		return models.AcceptRequest{}, err
	}

	return req, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// formFilePart ищет поле с телом части, не буферизуя форму целиком.
func formFilePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, models.InvalidRequest("read multipart form: %v", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, models.InvalidRequest("multipart form has no %q field", transferproto.FormFileField)
		}
		if err != nil {
			return nil, models.InvalidRequest("read multipart form: %v", err)
		}
		if part.FormName() == transferproto.FormFileField {
			return part, nil
		}
		_ = part.Close()
	}
}

// parseRangeRequest разбирает query GET /download.
func parseRangeRequest(r *http.Request) (models.RangeRequest, error) {
	q := r.URL.Query()

	idxStr := strings.TrimSpace(q.Get(transferproto.ParamChunkNumber))
	if idxStr == "" {
		return models.RangeRequest{}, fmt.Errorf("%w: %s query parameter is required", models.ErrMissingChunkIndex, transferproto.ParamChunkNumber)
	}
	idx, err := parseIndex(idxStr)
	if err != nil {
		return models.RangeRequest{}, err
	}

	var size int64
	if v := strings.TrimSpace(q.Get(transferproto.ParamChunkSize)); v != "" {
		size, err = strconv.ParseInt(v, 10, 64)
		if err != nil || size <= 0 {
			return models.RangeRequest{}, models.InvalidRequest("invalid %s %q", transferproto.ParamChunkSize, v)
		}
	}

	req := models.RangeRequest{
		Name:      strings.TrimSpace(q.Get(transferproto.ParamFileName)),
		Index:     idx,
		ChunkSize: size,
	}
	if err := req.Validate(); err != nil {
		return models.RangeRequest{}, err
	}
	return req, nil
}

// parseCompleteRequest читает параметры финализации из query или urlencoded-формы.
func parseCompleteRequest(r *http.Request) (models.CompleteRequest, error) {
	req := models.CompleteRequest{
		Session:  strings.TrimSpace(r.FormValue(transferproto.ParamFileName)),
		Checksum: firstNonEmpty(r.FormValue(transferproto.ParamChecksum), r.FormValue(transferproto.ParamMD5)),
		Suffix:   strings.TrimSpace(r.FormValue(transferproto.ParamSuffix)),
	}
	if err := req.Validate(); err != nil {
		return models.CompleteRequest{}, err
	}
	return req, nil
}

// sessionName берёт имя сессии из path-параметра Chi. Chi матчит по RawPath, если он
// задан, и тогда параметр приходит в экранированном виде; иначе он уже декодирован.
func sessionName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			return "", models.InvalidRequest("invalid filename: %v", err)
		}
	}
	if err := models.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// parseIndex разбирает неотрицательный десятичный индекс части.
func parseIndex(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, models.InvalidRequest("invalid chunk index %q", s)
	}
	if idx < 0 {
		return 0, models.InvalidRequest("chunk index must be non-negative, got %d", idx)
	}
	return idx, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
