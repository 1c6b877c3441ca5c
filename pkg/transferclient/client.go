// Package transferclient реализует HTTP-клиент сервиса передачи файлов по частям.
package transferclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

const (
	defaultConcurrency = 4
	errorBodyLimit     = 4 << 10
)

// StatusError — ответ сервера с кодом не из 2xx.
type StatusError struct {
	Op     string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed: %s: %s", e.Op, e.Status, e.Body)
}

// Client работает с одним сервером. Методы безопасны для параллельного вызова.
type Client struct {
	base        string
	c           *http.Client
	alg         checksum.Algorithm
	concurrency int
	progress    io.Writer
}

type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.c = hc }
}

// WithChecksum задаёт алгоритм, которым клиент считает суммы частей и файла.
// Он должен совпадать с алгоритмом сервера.
func WithChecksum(alg checksum.Algorithm) Option {
	return func(c *Client) { c.alg = alg }
}

// WithConcurrency ограничивает число одновременных запросов UploadFile/DownloadFile.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithProgress включает индикатор выполнения в w.
func WithProgress(w io.Writer) Option {
	return func(c *Client) { c.progress = w }
}

// New создаёт клиент для baseURL вида http://host:port.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:        strings.TrimRight(baseURL, "/"),
		c:           &http.Client{},
		alg:         checksum.Default,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Algorithm возвращает алгоритм контрольных сумм клиента.
func (c *Client) Algorithm() checksum.Algorithm { return c.alg }

// UploadChunk отправляет одну часть вместе с её контрольной суммой.
func (c *Client) UploadChunk(ctx context.Context, name string, index int, data []byte) (transferproto.UploadResponse, error) {
	q := url.Values{}
	q.Set(transferproto.ParamFileName, name)
	q.Set(transferproto.ParamChecksum, c.alg.Sum(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+transferproto.PathUpload+"?"+q.Encode(), bytes.NewReader(data))
	if err != nil {
		return transferproto.UploadResponse{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(transferproto.HeaderChunkNumber, strconv.Itoa(index))
	req.Header.Set(transferproto.HeaderChecksumAlgorithm, c.alg.String())

	var out transferproto.UploadResponse
	if err = c.doJSON(req, "upload chunk", &out); err != nil {
		return transferproto.UploadResponse{}, err
	}
	return out, nil
}

// ListChunks возвращает индексы частей, которые сервер уже принял.
func (c *Client) ListChunks(ctx context.Context, name string) ([]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(transferproto.SessionPathFormat, c.base, url.PathEscape(name)), nil)
	if err != nil {
		return nil, err
	}

	var out transferproto.ListResponse
	if err = c.doJSON(req, "list chunks", &out); err != nil {
		return nil, err
	}
	return out.ChunkNumbers, nil
}

// Complete просит сервер собрать сессию и сверить итоговую сумму.
func (c *Client) Complete(ctx context.Context, name, sum, suffix string) (transferproto.CompleteResponse, error) {
	form := url.Values{}
	form.Set(transferproto.ParamFileName, name)
	form.Set(transferproto.ParamChecksum, sum)
	if suffix != "" {
		form.Set(transferproto.ParamSuffix, suffix)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+transferproto.PathComplete, strings.NewReader(form.Encode()))
	if err != nil {
		return transferproto.CompleteResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out transferproto.CompleteResponse
	if err = c.doJSON(req, "complete", &out); err != nil {
		return transferproto.CompleteResponse{}, err
	}
	return out, nil
}

// Abort удаляет сессию на сервере.
func (c *Client) Abort(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf(transferproto.SessionPathFormat, c.base, url.PathEscape(name)), nil)
	if err != nil {
		return err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "abort")
}

// Head возвращает размер файла, доступного для скачивания.
func (c *Client) Head(ctx context.Context, name string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base+transferproto.PathDownload+"?"+url.Values{transferproto.ParamFileName: {name}}.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err = checkStatus(resp, "head"); err != nil {
		return 0, err
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("head %q: server did not report size", name)
	}
	return resp.ContentLength, nil
}

// GetChunk скачивает диапазон index и сверяет его с X-Checksum, если сервер его прислал.
func (c *Client) GetChunk(ctx context.Context, name string, index int, chunkSize int64) ([]byte, error) {
	q := url.Values{}
	q.Set(transferproto.ParamFileName, name)
	q.Set(transferproto.ParamChunkNumber, strconv.Itoa(index))
	if chunkSize > 0 {
		q.Set(transferproto.ParamChunkSize, strconv.FormatInt(chunkSize, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+transferproto.PathDownload+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err = checkStatus(resp, "get chunk"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength >= 0 && int64(len(data)) != resp.ContentLength {
		return nil, fmt.Errorf("chunk %d of %q: got %d bytes, want %d", index, name, len(data), resp.ContentLength)
	}

	if want := resp.Header.Get(transferproto.HeaderChecksum); want != "" {
		alg := c.alg
		if hdr := resp.Header.Get(transferproto.HeaderChecksumAlgorithm); hdr != "" {
			if alg, err = checksum.Parse(hdr); err != nil {
				return nil, err
			}
		}
		if got := alg.Sum(data); !checksum.Equal(want, got) {
			return nil, fmt.Errorf("chunk %d of %q: checksum mismatch: server %s, computed %s", index, name, want, got)
		}
	}
	return data, nil
}

// Health читает состояние сервера.
func (c *Client) Health(ctx context.Context) (transferproto.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+transferproto.PathHealth, nil)
	if err != nil {
		return transferproto.HealthResponse{}, err
	}
	var out transferproto.HealthResponse
	if err = c.doJSON(req, "health", &out); err != nil {
		return transferproto.HealthResponse{}, err
	}
	return out, nil
}

// Sweep запускает очистку брошенных сессий на сервере.
func (c *Client) Sweep(ctx context.Context) (transferproto.SweepResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+transferproto.PathGC, nil)
	if err != nil {
		return transferproto.SweepResponse{}, err
	}
	var out transferproto.SweepResponse
	if err = c.doJSON(req, "gc", &out); err != nil {
		return transferproto.SweepResponse{}, err
	}
	return out, nil
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err = checkStatus(resp, op); err != nil {
		return err
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &StatusError{
		Op:     op,
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(b)),
	}
}
