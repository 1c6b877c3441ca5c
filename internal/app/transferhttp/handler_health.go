package transferhttp

import (
	"net/http"

	"github.com/sir_venger/chunkline/pkg/httperrors"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

// health возвращает агрегированную статистику по каталогу загрузок.
func (a *Server) health(w http.ResponseWriter, _ *http.Request) {
	st, err := a.Transfers.Stats()
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferproto.HealthResponse{
		OK:             true,
		TotalBytes:     st.TotalBytes,
		Sessions:       st.Sessions,
		LockedSessions: st.LockedSessions,
		Checksum:       a.Transfers.Checksum.String(),
	})
}
