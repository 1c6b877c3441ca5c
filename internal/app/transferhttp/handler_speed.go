package transferhttp

import (
	"crypto/rand"
	"io"
	"net/http"
	"strconv"
)

const speedProbeSize = 1 << 20

// downloadSpeed отдаёт мегабайт случайных байт для замера скорости скачивания.
func (a *Server) downloadSpeed(w http.ResponseWriter, _ *http.Request) {
	buf := make([]byte, speedProbeSize)
	if _, err := rand.Read(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	_, _ = w.Write(buf)
}

// uploadSpeed вычитывает тело и ничего не сохраняет.
func (a *Server) uploadSpeed(w http.ResponseWriter, r *http.Request) {
	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = io.WriteString(w, "upload success")
}
