package integration

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sir_venger/chunkline/internal/app/transferhttp"
	"github.com/sir_venger/chunkline/internal/config"
)

// startServer поднимает сервер поверх временных каталогов.
func startServer(t *testing.T, mutate func(c *config.Config)) (*httptest.Server, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.UploadRoot = filepath.Join(t.TempDir(), "uploads")
	cfg.DownloadRoot = filepath.Join(t.TempDir(), "library")
	if mutate != nil {
		mutate(&cfg)
	}

	h, _, err := transferhttp.NewServer(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return s, &cfg
}
