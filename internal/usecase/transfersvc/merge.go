package transfersvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/ctxio"
	"github.com/sir_venger/chunkline/internal/models"
	"github.com/sir_venger/chunkline/internal/session"
)

// maxReportedGaps ограничивает список пропущенных индексов в ContiguityError.
const maxReportedGaps = 32

// Complete собирает части сессии в итоговый файл <artifactRoot>/<session><suffix>.
//
// Части читаются по порядку во временный файл рядом с итоговым, хеш считается на лету.
// Только после совпадения контрольной суммы файл переименовывается в итоговый путь и
// сессия удаляется. При расхождении временный файл удаляется, а части остаются для повтора.
func (s *Transfers) Complete(ctx context.Context, req models.CompleteRequest) (models.Artifact, error) {
	if err := req.Validate(); err != nil {
		return models.Artifact{}, err
	}

	finalName := req.Session + req.Suffix
	finalPath := filepath.Join(s.ArtifactRoot, finalName)
	if err := s.checkArtifactPath(req.Session, finalPath); err != nil {
		return models.Artifact{}, err
	}

	sess := s.Sessions.Exclusive(req.Session)
	defer sess.Release()

	indices, err := sess.Chunks()
	if err != nil {
		return models.Artifact{}, err
	}
	if len(indices) == 0 {
		return models.Artifact{}, fmt.Errorf("%w: session %q", models.ErrNoChunksFound, req.Session)
	}
	if missing := missingIndices(indices, maxReportedGaps); len(missing) > 0 {
		return models.Artifact{}, &models.ContiguityError{Session: req.Session, Missing: missing}
	}

	log := s.log.With().Str("session", req.Session).Int("chunks", len(indices)).Logger()

	tmp, err := os.CreateTemp(s.ArtifactRoot, "."+finalName+".*.tmp")
	if err != nil {
		return models.Artifact{}, models.StorageFault("create artifact temp file", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := s.Checksum.New()
	w := io.MultiWriter(tmp, h)

	var size int64
	for _, idx := range indices {
		n, err := appendChunk(ctx, sess, idx, w)
		if err != nil {
			log.Error().Err(err).Int("chunk", idx).Msg("merge aborted")
			return models.Artifact{}, err
		}
		size += n
	}

	if err = tmp.Sync(); err != nil {
		return models.Artifact{}, models.StorageFault("sync artifact", err)
	}
	if err = tmp.Close(); err != nil {
		return models.Artifact{}, models.StorageFault("close artifact", err)
	}

	computed := checksum.Hex(h)
	if !checksum.Equal(req.Checksum, computed) {
		log.Warn().Str("expected", req.Checksum).Str("computed", computed).Msg("final checksum mismatch, chunks kept for retry")
		return models.Artifact{}, &models.ChecksumError{
			Kind:     models.ErrFinalChecksumMismatch,
			Session:  req.Session,
			Index:    -1,
			Expected: req.Checksum,
			Computed: computed,
		}
	}

	unlock := s.Sessions.Artifact(finalPath)
	_, statErr := os.Lstat(finalPath)
	replaced := statErr == nil
	err = os.Rename(tmp.Name(), finalPath)
	unlock()
	if err != nil {
		return models.Artifact{}, models.StorageFault("commit artifact", err)
	}
	committed = true
	if replaced {
		log.Warn().Str("path", finalPath).Msg("existing artifact replaced")
	}

	// Файл уже виден по итоговому пути; оставшийся каталог уберёт housekeeping.
	if err = sess.Destroy(); err != nil {
		log.Error().Err(err).Msg("artifact committed but session cleanup failed")
	}

	log.Info().Str("path", finalPath).Int64("size", size).Msg("session merged")
	return models.Artifact{
		Session:  req.Session,
		Path:     finalPath,
		Size:     size,
		Checksum: computed,
		Chunks:   len(indices),
		Replaced: replaced,
	}, nil
}

func appendChunk(ctx context.Context, sess *session.Session, idx int, w io.Writer) (int64, error) {
	rc, err := sess.Open(idx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := ctxio.Copy(ctx, w, rc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
		return n, models.StorageFault(fmt.Sprintf("copy chunk %d", idx), err)
	}
	return n, nil
}

// checkArtifactPath не даёт итоговому файлу занять место каталога сессии.
func (s *Transfers) checkArtifactPath(name, finalPath string) error {
	if filepath.Clean(finalPath) == filepath.Clean(s.Store.SessionDir(name)) {
		return models.InvalidRequest("artifact %q would replace its own session directory, pass a suffix", filepath.Base(finalPath))
	}

	fi, err := os.Stat(finalPath)
	if err == nil && fi.IsDir() {
		return models.InvalidRequest("artifact path %q is a directory", filepath.Base(finalPath))
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return models.StorageFault("stat artifact path", err)
	}
	return nil
}

// missingIndices возвращает до limit индексов, которых не хватает в отсортированном
// наборе до ряда 0..max.
func missingIndices(sorted []int, limit int) []int {
	var missing []int
	expect := 0
	for _, idx := range sorted {
		for ; expect < idx && len(missing) < limit; expect++ {
			missing = append(missing, expect)
		}
		if len(missing) >= limit {
			break
		}
		expect = idx + 1
	}
	return missing
}

// Abort отменяет сессию и удаляет все её части.
func (s *Transfers) Abort(_ context.Context, name string) error {
	if err := models.ValidateName(name); err != nil {
		return err
	}

	sess := s.Sessions.Exclusive(name)
	defer sess.Release()

	ok, err := sess.Exists()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: session %q", models.ErrNotFound, name)
	}

	if err = sess.Destroy(); err != nil {
		return err
	}
	s.log.Info().Str("session", name).Msg("session aborted")
	return nil
}
