package transfersvc

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/chunkstore"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/internal/logger"
	"github.com/sir_venger/chunkline/internal/models"
	"github.com/sir_venger/chunkline/internal/session"
)

type (
	// ChunkWriter принимает и проверяет отдельные части.
	ChunkWriter interface {
		Accept(ctx context.Context, req models.AcceptRequest) (models.AcceptResult, error)
	}

	// SessionInventory отвечает, какие части сессии уже есть.
	SessionInventory interface {
		ListChunks(ctx context.Context, session string) ([]int, error)
	}

	// Merger собирает сессию в итоговый файл.
	Merger interface {
		Complete(ctx context.Context, req models.CompleteRequest) (models.Artifact, error)
		Abort(ctx context.Context, session string) error
	}

	// RangeReader отдаёт файлы по диапазонам.
	RangeReader interface {
		HeadInfo(ctx context.Context, name string) (models.FileInfo, error)
		ReadChunk(ctx context.Context, req models.RangeRequest) (models.ChunkRange, error)
	}

	// Service объединяет операции загрузки и выдачи файлов.
	Service interface {
		ChunkWriter
		SessionInventory
		Merger
		RangeReader
	}
)

type Deps struct {
	Store            *chunkstore.Store
	Sessions         *session.Registry
	Checksum         checksum.Algorithm
	DownloadRoot     string
	ArtifactRoot     string
	DefaultChunkSize int64
	MaxChunkSize     int64
}

type Transfers struct {
	Deps
	log zerolog.Logger

	// beforeSweepLock вызывается между листингом и блокировкой сессии в Sweep.
	beforeSweepLock func(session string)
}

var _ Service = (*Transfers)(nil)

// New конструирует сервис с заданными зависимостями.
func New(deps Deps) *Transfers {
	if deps.Checksum == "" {
		deps.Checksum = checksum.Default
	}
	if deps.ArtifactRoot == "" {
		deps.ArtifactRoot = deps.DownloadRoot
	}
	return &Transfers{
		Deps: deps,
		log:  logger.Get("transfersvc"),
	}
}

// NewFromConfig создаёт хранилище, реестр сессий и каталоги из конфигурации.
func NewFromConfig(cfg *config.Config) (*Transfers, error) {
	alg, err := checksum.Parse(cfg.ChecksumAlgorithm)
	if err != nil {
		return nil, err
	}
	codec, err := chunkstore.ParseCodec(cfg.ChunkCompression)
	if err != nil {
		return nil, err
	}

	store, err := chunkstore.New(cfg.UploadRoot, codec)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.DownloadRoot, cfg.Artifacts()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, models.StorageFault("create dir", err)
		}
	}

	return New(Deps{
		Store:            store,
		Sessions:         session.NewRegistry(store),
		Checksum:         alg,
		DownloadRoot:     cfg.DownloadRoot,
		ArtifactRoot:     cfg.Artifacts(),
		DefaultChunkSize: int64(cfg.DefaultChunkSize),
		MaxChunkSize:     int64(cfg.MaxChunkSize),
	}), nil
}
