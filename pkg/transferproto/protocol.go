// Package transferproto описывает HTTP-протокол сервиса передачи файлов по частям.
package transferproto

// Пути эндпоинтов.
const (
	PathDownload      = "/download"
	PathUpload        = "/upload"
	PathComplete      = "/complete"
	PathHealth        = "/health"
	PathGC            = "/admin/gc"
	PathDownloadSpeed = "/download_speed"
	PathUploadSpeed   = "/upload_speed"

	// SessionPathFormat: путь листинга и отмены сессии, аргументы base и filename.
	SessionPathFormat = "%s" + PathUpload + "/%s"
)

// Заголовки.
const (
	HeaderChunkNumber       = "X-Chunk-Number"
	HeaderFileName          = "X-File-Name"
	HeaderChecksum          = "X-Checksum"
	HeaderChecksumAlgorithm = "X-Checksum-Algorithm"
)

// Query- и form-параметры.
const (
	ParamFileName    = "filename"
	ParamChunkNumber = "chunk_number"
	ParamChunkSize   = "chunk_size"
	ParamChecksum    = "checksum"
	ParamMD5         = "md5"
	ParamSuffix      = "suffix"

	// FormFileField: имя поля multipart-формы с телом части.
	FormFileField = "file"
)

// UploadResponse — ответ на принятую часть.
type UploadResponse struct {
	Message     string `json:"message"`
	FileName    string `json:"filename"`
	ChunkNumber int    `json:"chunk_number"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
}

// ListResponse — индексы принятых частей по возрастанию.
type ListResponse struct {
	FileName     string `json:"filename"`
	ChunkNumbers []int  `json:"chunk_number"`
}

// CompleteResponse — сведения о собранном файле.
type CompleteResponse struct {
	Message  string `json:"message"`
	FileName string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Chunks   int    `json:"chunks"`
	Replaced bool   `json:"replaced"`
}

// HealthResponse отдаётся на /health.
type HealthResponse struct {
	OK             bool   `json:"ok"`
	TotalBytes     int64  `json:"total_bytes"`
	Sessions       int    `json:"sessions"`
	LockedSessions int    `json:"locked_sessions"`
	Checksum       string `json:"checksum_algorithm"`
}

// SweepResponse описывает итог ручного запуска GC.
type SweepResponse struct {
	RemovedSessions int `json:"removed_sessions"`
	RemovedStaging  int `json:"removed_staging"`
}
