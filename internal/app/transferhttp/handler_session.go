package transferhttp

import (
	"net/http"

	"github.com/sir_venger/chunkline/pkg/httperrors"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

// listChunks отдаёт индексы принятых частей, для неизвестной сессии пустой список.
func (a *Server) listChunks(w http.ResponseWriter, r *http.Request) {
	name, err := sessionName(r)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	indices, err := a.Transfers.ListChunks(r.Context(), name)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferproto.ListResponse{
		FileName:     name,
		ChunkNumbers: indices,
	})
}

// abortSession удаляет сессию вместе с частями.
func (a *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	name, err := sessionName(r)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	if err = a.Transfers.Abort(r.Context(), name); err != nil {
		httperrors.Write(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
