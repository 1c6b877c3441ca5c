package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Виды ошибок ядра передачи. Детальные ошибки ниже разворачиваются в них через errors.Is.
var (
	ErrChecksumMismatch      = errors.New("chunk checksum mismatch")
	ErrMissingChunkIndex     = errors.New("missing chunk index")
	ErrNoChunksFound         = errors.New("no chunks found")
	ErrContiguity            = errors.New("chunk indices are not contiguous")
	ErrFinalChecksumMismatch = errors.New("final checksum mismatch")
	ErrRangeOutOfBounds      = errors.New("range out of bounds")
	ErrNotFound              = errors.New("file not found")
	ErrStorageFault          = errors.New("storage fault")
	ErrInvalidRequest        = errors.New("invalid request")
)

// ChecksumError описывает расхождение контрольной суммы части или всего файла.
type ChecksumError struct {
	Kind     error
	Session  string
	Index    int
	Expected string
	Computed string
}

func (e *ChecksumError) Error() string {
	if errors.Is(e.Kind, ErrFinalChecksumMismatch) {
		return fmt.Sprintf("%v: session %q: expected %s, computed %s", e.Kind, e.Session, e.Expected, e.Computed)
	}
	return fmt.Sprintf("%v: session %q chunk %d: expected %s, computed %s", e.Kind, e.Session, e.Index, e.Expected, e.Computed)
}

func (e *ChecksumError) Unwrap() error { return e.Kind }

// ContiguityError перечисляет индексы, которых не хватает до непрерывного ряда 0..k.
type ContiguityError struct {
	Session string
	Missing []int
}

func (e *ContiguityError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, idx := range e.Missing {
		parts[i] = strconv.Itoa(idx)
	}
	return fmt.Sprintf("%v: session %q is missing chunks [%s]", ErrContiguity, e.Session, strings.Join(parts, ","))
}

func (e *ContiguityError) Unwrap() error { return ErrContiguity }

// RangeError возвращается, когда запрошенный диапазон начинается за концом файла.
type RangeError struct {
	Name      string
	Index     int
	ChunkSize int64
	Size      int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: %q chunk %d of size %d, file size %d", ErrRangeOutOfBounds, e.Name, e.Index, e.ChunkSize, e.Size)
}

func (e *RangeError) Unwrap() error { return ErrRangeOutOfBounds }

// StorageFault оборачивает ошибку файловой системы.
func StorageFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFault, op, err)
}

// InvalidRequest формирует ошибку валидации входных параметров.
func InvalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
