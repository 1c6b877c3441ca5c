package transferhttp

import (
	"net/http"

	"github.com/sir_venger/chunkline/pkg/httperrors"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

// complete собирает сессию в итоговый файл.
func (a *Server) complete(w http.ResponseWriter, r *http.Request) {
	req, err := parseCompleteRequest(r)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	art, err := a.Transfers.Complete(r.Context(), req)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferproto.CompleteResponse{
		Message:  "File uploaded and merged successfully",
		FileName: art.Session,
		Path:     art.Path,
		Size:     art.Size,
		Checksum: art.Checksum,
		Chunks:   art.Chunks,
		Replaced: art.Replaced,
	})
}
