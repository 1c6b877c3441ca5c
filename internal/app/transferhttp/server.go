package transferhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/internal/logger"
	"github.com/sir_venger/chunkline/internal/usecase/transfersvc"
	"github.com/sir_venger/chunkline/pkg/transferproto"
)

// Server обслуживает HTTP API передачи файлов.
type Server struct {
	Transfers *transfersvc.Transfers
	Cfg       *config.Config
	log       zerolog.Logger
}

// NewServer собирает сервис из конфигурации и возвращает готовый обработчик.
func NewServer(cfg *config.Config) (http.Handler, *Server, error) {
	svc, err := transfersvc.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	srv := New(svc, cfg)
	return srv.routes(), srv, nil
}

// New создаёт сервер поверх уже собранного сервиса.
func New(svc *transfersvc.Transfers, cfg *config.Config) *Server {
	return &Server{
		Transfers: svc,
		Cfg:       cfg,
		log:       logger.Get("transferhttp"),
	}
}

// Handler возвращает маршрутизатор сервера.
func (a *Server) Handler() http.Handler {
	return a.routes()
}

// routes регистрирует обработчики загрузки, скачивания и служебные эндпоинты.
func (a *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Route(transferproto.PathUpload, func(ur chi.Router) {
		ur.Post("/", a.uploadChunk)
		ur.Get("/{filename}", a.listChunks)
		ur.Delete("/{filename}", a.abortSession)
	})
	r.Post(transferproto.PathComplete, a.complete)

	r.Head(transferproto.PathDownload, a.headDownload)
	r.Get(transferproto.PathDownload, a.getDownload)

	r.Get(transferproto.PathHealth, a.health)
	r.Post(transferproto.PathGC, a.gcOnce)

	r.Get(transferproto.PathDownloadSpeed, a.downloadSpeed)
	r.Post(transferproto.PathUploadSpeed, a.uploadSpeed)

	return r
}
