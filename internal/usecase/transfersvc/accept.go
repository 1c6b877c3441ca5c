package transfersvc

import (
	"context"
	"io"

	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/ctxio"
	"github.com/sir_venger/chunkline/internal/models"
)

// Accept проверяет контрольную сумму части и атомарно кладёт её в сессию.
//
// Тело сначала пишется в служебный каталог хранилища, параллельно считается хеш. При
// расхождении файл удаляется, а каталог сессии не трогается. Повторная запись того же
// индекса перезаписывает часть: при гонке двух записей побеждает последний rename.
func (s *Transfers) Accept(ctx context.Context, req models.AcceptRequest) (models.AcceptResult, error) {
	if err := req.Validate(); err != nil {
		return models.AcceptResult{}, err
	}

	payload := req.Payload
	if s.MaxChunkSize > 0 {
		payload = io.LimitReader(payload, s.MaxChunkSize+1)
	}
	h := s.Checksum.New()
	staged, err := s.Store.Stage(io.TeeReader(ctxio.NewReader(ctx, payload), h))
	if err != nil {
		return models.AcceptResult{}, err
	}

	if staged.Size == 0 {
		staged.Discard()
		return models.AcceptResult{}, models.InvalidRequest("chunk %d payload is empty", req.Index)
	}
	if s.MaxChunkSize > 0 && staged.Size > s.MaxChunkSize {
		staged.Discard()
		return models.AcceptResult{}, models.InvalidRequest("chunk %d exceeds max chunk size %d", req.Index, s.MaxChunkSize)
	}

	got := checksum.Hex(h)
	if !checksum.Equal(req.Checksum, got) {
		staged.Discard()
		s.log.Warn().Str("session", req.Session).Int("chunk", req.Index).
			Str("expected", req.Checksum).Str("computed", got).Msg("chunk rejected")
		return models.AcceptResult{}, &models.ChecksumError{
			Kind:     models.ErrChecksumMismatch,
			Session:  req.Session,
			Index:    req.Index,
			Expected: req.Checksum,
			Computed: got,
		}
	}

	sess := s.Sessions.Shared(req.Session)
	defer sess.Release()

	if err = sess.Commit(staged, req.Index); err != nil {
		return models.AcceptResult{}, err
	}

	s.log.Debug().Str("session", req.Session).Int("chunk", req.Index).Int64("size", staged.Size).Msg("chunk accepted")
	return models.AcceptResult{
		Session:  req.Session,
		Index:    req.Index,
		Size:     staged.Size,
		Checksum: got,
	}, nil
}
