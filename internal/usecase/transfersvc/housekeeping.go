package transfersvc

import (
	"context"
	"time"

	"github.com/sir_venger/chunkline/internal/models"
)

// SweepResult — итог одного прохода очистки.
type SweepResult struct {
	RemovedSessions int
	RemovedStaging  int
}

// Sweep удаляет сессии, в которые ничего не писали дольше ttl, и брошенные
// временные файлы. Ядро на эту очистку не полагается.
func (s *Transfers) Sweep(ctx context.Context, ttl time.Duration) (SweepResult, error) {
	var res SweepResult
	if ttl <= 0 {
		return res, models.InvalidRequest("sweep ttl must be positive")
	}

	sessions, err := s.Store.Sessions()
	if err != nil {
		return res, err
	}

	now := time.Now()
	for _, info := range sessions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if now.Sub(info.Modified) < ttl {
			continue
		}

		if s.beforeSweepLock != nil {
			s.beforeSweepLock(info.Name)
		}
		removed, err := s.sweepSession(info.Name, ttl)
		if err != nil {
			s.log.Warn().Err(err).Str("session", info.Name).Msg("stale session not removed")
			continue
		}
		if !removed {
			s.log.Debug().Str("session", info.Name).Msg("session written during sweep, kept")
			continue
		}
		res.RemovedSessions++
		s.log.Info().Str("session", info.Name).Int("chunks", info.Chunks).
			Time("modified", info.Modified).Msg("stale session removed")
	}

	removed, err := s.Store.SweepStaging(ttl)
	res.RemovedStaging = removed
	if err != nil {
		return res, err
	}

	return res, nil
}

// sweepSession удаляет сессию, только если она всё ещё старше ttl. Листинг в Sweep
// сделан без блокировки, поэтому возраст перечитывается под эксклюзивной.
func (s *Transfers) sweepSession(name string, ttl time.Duration) (bool, error) {
	sess := s.Sessions.Exclusive(name)
	defer sess.Release()

	info, ok, err := s.Store.Stat(name)
	if err != nil {
		return false, err
	}
	if !ok || time.Since(info.Modified) < ttl {
		return false, nil
	}
	if err = sess.Destroy(); err != nil {
		return false, err
	}
	return true, nil
}

// Stats агрегирует сведения для health-check'а.
type Stats struct {
	TotalBytes     int64
	Sessions       int
	LockedSessions int
}

// Stats считает занятое место и число сессий.
func (s *Transfers) Stats() (Stats, error) {
	total, err := s.Store.TotalBytes()
	if err != nil {
		return Stats{}, err
	}
	sessions, err := s.Store.Sessions()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalBytes:     total,
		Sessions:       len(sessions),
		LockedSessions: s.Sessions.Held(),
	}, nil
}
