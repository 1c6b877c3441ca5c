package transfersvc

import (
	"context"

	"github.com/sir_venger/chunkline/internal/models"
)

// ListChunks возвращает индексы частей по возрастанию, для неизвестной сессии пустой.
func (s *Transfers) ListChunks(_ context.Context, name string) ([]int, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}

	sess := s.Sessions.Shared(name)
	defer sess.Release()

	return sess.Chunks()
}
