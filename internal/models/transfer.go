package models

import (
	"io"
	"strings"
)

// AcceptRequest — одна часть загрузки: сессия, индекс, тело и заявленная контрольная сумма.
type AcceptRequest struct {
	Session  string
	Index    int
	Payload  io.Reader
	Checksum string
}

// Validate проверяет запрос до того, как он попадёт в ядро.
func (r AcceptRequest) Validate() error {
	if err := ValidateName(r.Session); err != nil {
		return err
	}
	if r.Index < 0 {
		return InvalidRequest("chunk index must be non-negative, got %d", r.Index)
	}
	if r.Payload == nil {
		return InvalidRequest("chunk payload is empty")
	}
	if strings.TrimSpace(r.Checksum) == "" {
		return InvalidRequest("declared checksum is empty")
	}
	return nil
}

// AcceptResult возвращается после того, как часть записана на диск.
type AcceptResult struct {
	Session  string `json:"filename"`
	Index    int    `json:"chunk_number"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// CompleteRequest описывает финализацию сессии.
type CompleteRequest struct {
	Session  string
	Checksum string
	Suffix   string
}

// Validate проверяет имя сессии, контрольную сумму и суффикс.
func (r CompleteRequest) Validate() error {
	if err := ValidateName(r.Session); err != nil {
		return err
	}
	if strings.TrimSpace(r.Checksum) == "" {
		return InvalidRequest("expected checksum is empty")
	}
	if r.Suffix != "" {
		if !strings.HasPrefix(r.Suffix, ".") || strings.ContainsAny(r.Suffix, `/\`) || r.Suffix == "." || r.Suffix == ".." {
			return InvalidRequest("suffix %q must start with a dot and contain no separators", r.Suffix)
		}
	}
	return nil
}

// Artifact — итоговый собранный файл. Replaced выставляется, если по этому пути уже
// лежал файл и он заменён.
type Artifact struct {
	Session  string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Chunks   int    `json:"chunks"`
	Replaced bool   `json:"replaced"`
}

// FileInfo нужен клиенту для планирования диапазонов.
type FileInfo struct {
	Name string `json:"filename"`
	Size int64  `json:"size"`
}

// RangeRequest запрашивает один диапазон на скачивание.
type RangeRequest struct {
	Name      string
	Index     int
	ChunkSize int64
}

// Validate проверяет имя и индекс; нулевой размер части заменяется дефолтом в сервисе.
func (r RangeRequest) Validate() error {
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if r.Index < 0 {
		return InvalidRequest("chunk index must be non-negative, got %d", r.Index)
	}
	if r.ChunkSize < 0 {
		return InvalidRequest("chunk size must be positive, got %d", r.ChunkSize)
	}
	return nil
}

// ChunkRange — отданный диапазон байт [Start, Start+Length) из файла размером Total.
type ChunkRange struct {
	Start    int64
	Length   int64
	Total    int64
	Data     []byte
	Checksum string
}

// End возвращает включительную границу диапазона для заголовка Content-Range.
func (r ChunkRange) End() int64 {
	return r.Start + r.Length - 1
}

// DownloadPlan хранит вычисленное смещение и длину части. На диске его нет.
type DownloadPlan struct {
	Index  int
	Start  int64
	Length int64
}

// ValidateName проверяет имя сессии или файла: одно имя без разделителей и без ведущей точки.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return InvalidRequest("filename is empty")
	case name == "." || name == "..":
		return InvalidRequest("filename %q is reserved", name)
	case strings.HasPrefix(name, "."):
		return InvalidRequest("filename %q must not start with a dot", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return InvalidRequest("filename %q must not contain path separators", name)
	}
	return nil
}
