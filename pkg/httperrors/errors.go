package httperrors

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sir_venger/chunkline/internal/models"
)

// Status возвращает HTTP-код для ошибки ядра.
func Status(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRangeOutOfBounds):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, models.ErrChecksumMismatch),
		errors.Is(err, models.ErrFinalChecksumMismatch),
		errors.Is(err, models.ErrMissingChunkIndex),
		errors.Is(err, models.ErrNoChunksFound),
		errors.Is(err, models.ErrContiguity),
		errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write отдаёт ошибку текстом с подходящим кодом. Серверные ошибки логируются.
func Write(w http.ResponseWriter, err error) {
	code := Status(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("request failed")
	}
	http.Error(w, err.Error(), code)
}
