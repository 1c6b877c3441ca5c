package integration

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/pkg/transferclient"
)

// Файл 12 MiB, части по 5 MiB: 5 + 5 + 2, отправка в порядке 2, 0, 1.
func Test_TwelveMiB_OutOfOrder_ThenRangedDownload(t *testing.T) {
	for _, codec := range []string{"none", "zstd", "lz4"} {
		t.Run(codec, func(t *testing.T) {
			s, cfg := startServer(t, func(c *config.Config) { c.ChunkCompression = codec })

			data := make([]byte, 12*config.MiB)
			rand.New(rand.NewSource(12)).Read(data)
			chunk := int(5 * config.MiB)
			parts := [][]byte{data[:chunk], data[chunk : 2*chunk], data[2*chunk:]}

			c := transferclient.New(s.URL)
			ctx := context.Background()
			for _, idx := range []int{2, 0, 1} {
				if _, err := c.UploadChunk(ctx, "big", idx, parts[idx]); err != nil {
					t.Fatal(err)
				}
			}
			got, err := c.ListChunks(ctx, "big")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 3 || got[0] != 0 || got[2] != 2 {
				t.Fatalf("chunks = %v", got)
			}

			res, err := c.Complete(ctx, "big", checksum.MD5.Sum(data), ".bin")
			if err != nil {
				t.Fatal(err)
			}
			if res.Size != int64(len(data)) {
				t.Fatalf("size = %d", res.Size)
			}
			merged, err := os.ReadFile(filepath.Join(cfg.DownloadRoot, "big.bin"))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(merged, data) {
				t.Fatalf("merged artifact differs")
			}

			size, err := c.Head(ctx, "big.bin")
			if err != nil || size != int64(len(data)) {
				t.Fatalf("head = %d, %v", size, err)
			}
			last, err := c.GetChunk(ctx, "big.bin", 2, int64(chunk))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(last, parts[2]) {
				t.Fatalf("last range differs: %d bytes", len(last))
			}

			_, err = c.GetChunk(ctx, "big.bin", 3, int64(chunk))
			var se *transferclient.StatusError
			if !errors.As(err, &se) || se.Code != http.StatusRequestedRangeNotSatisfiable {
				t.Fatalf("range past end: %v", err)
			}
		})
	}
}

func Test_FinalMismatch_KeepsChunksForRetry(t *testing.T) {
	s, cfg := startServer(t, func(c *config.Config) { c.ChecksumAlgorithm = "sha256" })
	c := transferclient.New(s.URL, transferclient.WithChecksum(checksum.SHA256))
	ctx := context.Background()

	data := []byte("retry me, please")
	for idx, part := range [][]byte{data[:8], data[8:]} {
		if _, err := c.UploadChunk(ctx, "retry", idx, part); err != nil {
			t.Fatal(err)
		}
	}

	_, err := c.Complete(ctx, "retry", checksum.SHA256.Sum([]byte("something else")), ".txt")
	var se *transferclient.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("complete with wrong checksum: %v", err)
	}
	if _, err = os.Stat(filepath.Join(cfg.DownloadRoot, "retry.txt")); !os.IsNotExist(err) {
		t.Fatalf("artifact visible after mismatch: %v", err)
	}
	entries, _ := os.ReadDir(cfg.DownloadRoot)
	if len(entries) != 0 {
		t.Fatalf("temp files left in download root: %v", entries)
	}

	if _, err = c.Complete(ctx, "retry", checksum.SHA256.Sum(data), ".txt"); err != nil {
		t.Fatal(err)
	}
}
