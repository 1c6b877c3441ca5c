package transferhttp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sir_venger/chunkline/pkg/httperrors"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

// uploadChunk принимает одну часть и отдаёт её итоговый размер и контрольную сумму.
func (a *Server) uploadChunk(w http.ResponseWriter, r *http.Request) {
	req, err := parseUploadRequest(r)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	res, err := a.Transfers.Accept(r.Context(), req)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferproto.UploadResponse{
		Message:     fmt.Sprintf("Chunk %d received successfully", res.Index),
		FileName:    res.Session,
		ChunkNumber: res.Index,
		Size:        res.Size,
		Checksum:    res.Checksum,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
