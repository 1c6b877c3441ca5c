package transfersvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sir_venger/chunkline/internal/models"
)

// resolve переводит имя файла в путь внутри download root. Имена с точкой в начале
// (временные файлы слияния) не отдаются никогда.
func (s *Transfers) resolve(name string) (string, error) {
	if err := models.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.DownloadRoot, name), nil
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", models.ErrNotFound, name)
}

// HeadInfo возвращает размер файла для планирования диапазонов.
func (s *Transfers) HeadInfo(_ context.Context, name string) (models.FileInfo, error) {
	path, err := s.resolve(name)
	if err != nil {
		return models.FileInfo{}, err
	}

	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.FileInfo{}, notFound(name)
	}
	if err != nil {
		return models.FileInfo{}, models.StorageFault("stat file", err)
	}
	if !fi.Mode().IsRegular() {
		return models.FileInfo{}, notFound(name)
	}

	return models.FileInfo{Name: name, Size: fi.Size()}, nil
}

// ReadChunk отдаёт ровно диапазон [index*chunkSize, index*chunkSize+len) вместе с его
// контрольной суммой. Последний диапазон может быть короче chunkSize.
func (s *Transfers) ReadChunk(ctx context.Context, req models.RangeRequest) (models.ChunkRange, error) {
	if err := req.Validate(); err != nil {
		return models.ChunkRange{}, err
	}
	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = s.DefaultChunkSize
	}
	if s.MaxChunkSize > 0 && chunkSize > s.MaxChunkSize {
		return models.ChunkRange{}, models.InvalidRequest("chunk size %d exceeds max chunk size %d", chunkSize, s.MaxChunkSize)
	}

	path, err := s.resolve(req.Name)
	if err != nil {
		return models.ChunkRange{}, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.ChunkRange{}, notFound(req.Name)
	}
	if err != nil {
		return models.ChunkRange{}, models.StorageFault("open file", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return models.ChunkRange{}, models.StorageFault("stat file", err)
	}
	if !fi.Mode().IsRegular() {
		return models.ChunkRange{}, notFound(req.Name)
	}

	plan, err := models.PlanRange(req.Name, fi.Size(), req.Index, chunkSize)
	if err != nil {
		return models.ChunkRange{}, err
	}

	if err = ctx.Err(); err != nil {
		return models.ChunkRange{}, err
	}
	buf := make([]byte, plan.Length)
	if _, err = io.ReadFull(io.NewSectionReader(f, plan.Start, plan.Length), buf); err != nil {
		return models.ChunkRange{}, models.StorageFault("read range", err)
	}

	return models.ChunkRange{
		Start:    plan.Start,
		Length:   plan.Length,
		Total:    fi.Size(),
		Data:     buf,
		Checksum: s.Checksum.Sum(buf),
	}, nil
}
