package transferclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/ctxio"
	"github.com/sir_venger/chunkline/internal/models"
	"github.com/sir_venger/chunkline/pkg/transferproto"
	"golang.org/x/sync/errgroup"
)

// UploadFile загружает локальный файл под именем name частями по chunkSize и
// финализирует сессию. Части, которые сервер уже принял, повторно не отправляются.
// Если сборка докачанной сессии отклонена (части остались от попытки с другим
// файлом или размером части), сессия отменяется и файл загружается заново один раз.
func (c *Client) UploadFile(ctx context.Context, path, name string, chunkSize int64, suffix string) (transferproto.CompleteResponse, error) {
	if chunkSize <= 0 {
		return transferproto.CompleteResponse{}, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return transferproto.CompleteResponse{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return transferproto.CompleteResponse{}, err
	}
	size := fi.Size()
	if size == 0 {
		return transferproto.CompleteResponse{}, fmt.Errorf("%s: empty file cannot be uploaded", path)
	}

	total, err := fileSum(ctx, c.alg, f, size)
	if err != nil {
		return transferproto.CompleteResponse{}, err
	}

	have, err := c.ListChunks(ctx, name)
	if err != nil {
		return transferproto.CompleteResponse{}, err
	}

	plan := models.Plan(size, chunkSize)
	res, err := c.uploadPlan(ctx, f, name, plan, have, total, suffix)
	if err == nil || len(have) == 0 || !isRejected(err) {
		return res, err
	}

	if err = c.Abort(ctx, name); err != nil && !isNotFound(err) {
		return transferproto.CompleteResponse{}, fmt.Errorf("reset stale session %q: %w", name, err)
	}
	return c.uploadPlan(ctx, f, name, plan, nil, total, suffix)
}

// uploadPlan отправляет части плана, которых нет в have, и собирает сессию.
func (c *Client) uploadPlan(ctx context.Context, f io.ReaderAt, name string, plan []models.DownloadPlan, have []int, total, suffix string) (transferproto.CompleteResponse, error) {
	done := make(map[int]bool, len(have))
	for _, idx := range have {
		done[idx] = true
	}

	var size int64
	for _, p := range plan {
		size += p.Length
	}
	bar := newProgressBar(c.progress, fmt.Sprintf("Uploading %s", name), size, len(plan))
	for _, p := range plan {
		if done[p.Index] {
			bar.Skip(p.Length)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, p := range plan {
		p := p // per-iteration copy for goroutine capture (go 1.21 loop semantics)
		if done[p.Index] {
			continue
		}
		g.Go(func() error {
			buf := make([]byte, p.Length)
			if _, err := f.ReadAt(buf, p.Start); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if _, err := c.UploadChunk(gctx, name, p.Index, buf); err != nil {
				return fmt.Errorf("chunk %d: %w", p.Index, err)
			}
			bar.Part(p.Length)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		bar.Fail(err)
		return transferproto.CompleteResponse{}, err
	}

	res, err := c.Complete(ctx, name, total, suffix)
	if err != nil {
		bar.Fail(err)
		return transferproto.CompleteResponse{}, err
	}
	bar.Finish()
	return res, nil
}

func isRejected(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusBadRequest
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// DownloadFile скачивает файл name в dest параллельными диапазонами. Данные
// пишутся во временный файл рядом с dest, который переименовывается только
// после того, как все диапазоны получены и сверены.
func (c *Client) DownloadFile(ctx context.Context, name, dest string, chunkSize int64) (int64, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	size, err := c.Head(ctx, name)
	if err != nil {
		return 0, err
	}

	tmpPath := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+"."+uuid.NewString()+".part")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	if err = tmp.Truncate(size); err != nil {
		return 0, err
	}

	plan := models.Plan(size, chunkSize)
	bar := newProgressBar(c.progress, fmt.Sprintf("Downloading %s", name), size, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, p := range plan {
		p := p // per-iteration copy for goroutine capture (go 1.21 loop semantics)
		g.Go(func() error {
			data, err := c.GetChunk(gctx, name, p.Index, chunkSize)
			if err != nil {
				return err
			}
			if int64(len(data)) != p.Length {
				return fmt.Errorf("chunk %d of %q: got %d bytes, want %d", p.Index, name, len(data), p.Length)
			}
			if _, err = tmp.WriteAt(data, p.Start); err != nil {
				return err
			}
			bar.Part(p.Length)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		bar.Fail(err)
		return 0, err
	}

	if err = tmp.Sync(); err != nil {
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	if err = os.Rename(tmpPath, dest); err != nil {
		return 0, err
	}
	committed = true
	bar.Finish()
	return size, nil
}

func fileSum(ctx context.Context, alg checksum.Algorithm, r io.ReaderAt, size int64) (string, error) {
	h := alg.New()
	if _, err := ctxio.Copy(ctx, h, io.NewSectionReader(r, 0, size)); err != nil {
		return "", err
	}
	return checksum.Hex(h), nil
}
