package models

import "math"

// PlanRange вычисляет смещение и длину части index для файла размером size.
// Последняя часть может быть короче chunkSize. Если начало за концом файла, возвращается *RangeError.
func PlanRange(name string, size int64, index int, chunkSize int64) (DownloadPlan, error) {
	if chunkSize <= 0 {
		return DownloadPlan{}, InvalidRequest("chunk size must be positive, got %d", chunkSize)
	}
	if index < 0 {
		return DownloadPlan{}, InvalidRequest("chunk index must be non-negative, got %d", index)
	}

	outOfBounds := &RangeError{Name: name, Index: index, ChunkSize: chunkSize, Size: size}
	// index*chunkSize не должен переполнить int64
	if int64(index) > math.MaxInt64/chunkSize {
		return DownloadPlan{}, outOfBounds
	}

	start := int64(index) * chunkSize
	if start >= size {
		return DownloadPlan{}, outOfBounds
	}

	return DownloadPlan{
		Index:  index,
		Start:  start,
		Length: min(chunkSize, size-start),
	}, nil
}

// ChunkCount считает число частей размера chunkSize, покрывающих size байт.
func ChunkCount(size, chunkSize int64) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// Plan разбивает файл на последовательные диапазоны, которые без пропусков и наложений
// покрывают [0, size).
func Plan(size, chunkSize int64) []DownloadPlan {
	n := ChunkCount(size, chunkSize)
	out := make([]DownloadPlan, 0, n)
	for i := 0; i < n; i++ {
		start := int64(i) * chunkSize
		out = append(out, DownloadPlan{
			Index:  i,
			Start:  start,
			Length: min(chunkSize, size-start),
		})
	}
	return out
}
