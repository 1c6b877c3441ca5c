package transferhttp

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sir_venger/chunkline/internal/logger"
	"github.com/sir_venger/chunkline/internal/usecase/transfersvc"
	"github.com/sir_venger/chunkline/pkg/httperrors"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

const manualGCTTL = 24 * time.Hour

// gcOnce вручную запускает удаление брошенных сессий.
func (a *Server) gcOnce(w http.ResponseWriter, r *http.Request) {
	ttl := a.Cfg.GC.TTL
	if ttl <= 0 {
		ttl = manualGCTTL
	}

	res, err := a.Transfers.Sweep(r.Context(), ttl)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferproto.SweepResponse{
		RemovedSessions: res.RemovedSessions,
		RemovedStaging:  res.RemovedStaging,
	})
}

// StartGC стартует периодическую очистку и возвращает функцию остановки.
func StartGC(svc *transfersvc.Transfers, ttl time.Duration, every time.Duration) func() {
	if every <= 0 || ttl <= 0 {
		return func() {}
	}

	log := logger.Get("gc")
	ticker := time.NewTicker(every)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				res, err := svc.Sweep(ctx, ttl)
				if err != nil {
					log.Warn().Err(err).Msg("sweep failed")
					continue
				}
				if res.RemovedSessions > 0 || res.RemovedStaging > 0 {
					log.Info().Int("sessions", res.RemovedSessions).Int("staging", res.RemovedStaging).Msg("sweep done")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}
