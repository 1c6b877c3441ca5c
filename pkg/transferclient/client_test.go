package transferclient

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sir_venger/chunkline/internal/app/transferhttp"
	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

const testChunk = 64 << 10

func newServer(t *testing.T, wrap func(http.Handler) http.Handler) (*httptest.Server, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.UploadRoot = filepath.Join(t.TempDir(), "uploads")
	cfg.DownloadRoot = filepath.Join(t.TempDir(), "library")
	cfg.DefaultChunkSize = testChunk
	cfg.MaxChunkSize = 1 << 20

	h, _, err := transferhttp.NewServer(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if wrap != nil {
		h = wrap(h)
	}
	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return s, &cfg
}

func writeTemp(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	path := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	s, cfg := newServer(t, nil)
	src, data := writeTemp(t, 5*testChunk+123)

	var progress bytes.Buffer
	c := New(s.URL, WithConcurrency(3), WithProgress(&progress))
	ctx := context.Background()

	res, err := c.UploadFile(ctx, src, "movie", testChunk, ".bin")
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != int64(len(data)) || res.Chunks != 6 {
		t.Fatalf("unexpected complete response %+v", res)
	}
	if res.Checksum != checksum.MD5.Sum(data) {
		t.Fatalf("checksum = %s", res.Checksum)
	}
	if _, err = os.Stat(filepath.Join(cfg.UploadRoot, "movie")); !os.IsNotExist(err) {
		t.Fatalf("session dir left after merge: %v", err)
	}
	if !strings.Contains(progress.String(), "parts 6/6") || !strings.Contains(progress.String(), "✓") {
		t.Fatalf("progress output = %q", progress.String())
	}

	dest := filepath.Join(t.TempDir(), "movie.bin")
	n, err := c.DownloadFile(ctx, "movie.bin", dest, 50_000)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(data)) || !bytes.Equal(got, data) {
		t.Fatalf("downloaded %d bytes, equal=%v", n, bytes.Equal(got, data))
	}
}

func TestUploadResumesSkippingAcceptedChunks(t *testing.T) {
	var posts atomic.Int32
	count := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && r.URL.Path == transferproto.PathUpload {
				posts.Add(1)
			}
			next.ServeHTTP(w, r)
		})
	}
	s, _ := newServer(t, count)
	src, data := writeTemp(t, 4*testChunk)
	c := New(s.URL, WithChecksum(checksum.SHA256))
	ctx := context.Background()

	// сервер настроен на md5, поэтому часть с sha256 должна быть отклонена
	if _, err := c.UploadChunk(ctx, "resume", 0, data[:testChunk]); err == nil {
		t.Fatalf("expected checksum rejection for foreign algorithm")
	}

	c = New(s.URL)
	for _, idx := range []int{0, 2} {
		if _, err := c.UploadChunk(ctx, "resume", idx, data[idx*testChunk:(idx+1)*testChunk]); err != nil {
			t.Fatal(err)
		}
	}
	posts.Store(0)

	if _, err := c.UploadFile(ctx, src, "resume", testChunk, ".dat"); err != nil {
		t.Fatal(err)
	}
	if got := posts.Load(); got != 2 {
		t.Fatalf("uploaded %d chunks, want 2", got)
	}
}

func TestDownloadRejectsCorruptChunk(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "8")
		if r.Method == http.MethodHead {
			return
		}
		w.Header().Set(transferproto.HeaderChecksum, checksum.MD5.Sum([]byte("other")))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("payload!"))
	}))
	t.Cleanup(s.Close)

	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	_, err := New(s.URL).DownloadFile(context.Background(), "x", dest, 8)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("leftovers after failed download: %v", entries)
	}
}

func TestStatusError(t *testing.T) {
	s, _ := newServer(t, nil)
	err := New(s.URL).Abort(context.Background(), "unknown")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v", err)
	}
	if se.Code != http.StatusNotFound || se.Op != "abort" {
		t.Fatalf("status error = %+v", se)
	}
}

func TestHealthAndSweep(t *testing.T) {
	s, _ := newServer(t, nil)
	c := New(s.URL)
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !h.OK || h.Checksum != checksum.MD5.String() {
		t.Fatalf("health = %+v", h)
	}
	if _, err = c.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestUploadRestartsSessionLeftByOtherChunkSize(t *testing.T) {
	var posts, deletes atomic.Int32
	count := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost && r.URL.Path == transferproto.PathUpload:
				posts.Add(1)
			case r.Method == http.MethodDelete:
				deletes.Add(1)
			}
			next.ServeHTTP(w, r)
		})
	}
	s, cfg := newServer(t, count)
	src, data := writeTemp(t, 4*testChunk)
	c := New(s.URL)
	ctx := context.Background()

	// прошлая попытка резала тот же файл по 1000 байт
	for idx := 0; idx < 2; idx++ {
		if _, err := c.UploadChunk(ctx, "restart", idx, data[idx*1000:(idx+1)*1000]); err != nil {
			t.Fatal(err)
		}
	}
	posts.Store(0)

	res, err := c.UploadFile(ctx, src, "restart", testChunk, ".bin")
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != int64(len(data)) {
		t.Fatalf("size = %d", res.Size)
	}
	if got := deletes.Load(); got != 1 {
		t.Fatalf("aborts = %d, want 1", got)
	}
	// две части пропущены в первой попытке, затем все четыре заново
	if got := posts.Load(); got != 2+4 {
		t.Fatalf("uploaded %d chunks, want 6", got)
	}
	merged, err := os.ReadFile(filepath.Join(cfg.DownloadRoot, "restart.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(merged, data) {
		t.Fatalf("merged artifact differs")
	}
}
