package transferhttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sir_venger/chunkline/pkg/httperrors"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

// headDownload отвечает размером файла в Content-Length.
func (a *Server) headDownload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get(transferproto.ParamFileName))
	info, err := a.Transfers.HeadInfo(r.Context(), name)
	if err != nil {
		w.WriteHeader(httperrors.Status(err))
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set(transferproto.HeaderChecksumAlgorithm, a.Transfers.Checksum.String())
	w.WriteHeader(http.StatusOK)
}

// getDownload отдаёт один диапазон файла с кодом 206.
func (a *Server) getDownload(w http.ResponseWriter, r *http.Request) {
	req, err := parseRangeRequest(r)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	rng, err := a.Transfers.ReadChunk(r.Context(), req)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Name))
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End(), rng.Total))
	h.Set("Content-Length", strconv.FormatInt(rng.Length, 10))
	h.Set(transferproto.HeaderChecksum, rng.Checksum)
	h.Set(transferproto.HeaderChecksumAlgorithm, a.Transfers.Checksum.String())
	w.WriteHeader(http.StatusPartialContent)

	if _, err = w.Write(rng.Data); err != nil {
		a.log.Debug().Err(err).Str("file", req.Name).Int("chunk", req.Index).Msg("client went away")
	}
}
