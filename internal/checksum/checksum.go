// Package checksum выбирает алгоритм контрольной суммы для частей и итоговых файлов.
package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm задаёт алгоритм контрольной суммы по имени.
type Algorithm string

const (
	// MD5 совместим с существующими клиентами, которые присылают md5 в query.
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Default используется, если алгоритм не задан в конфиге.
const Default = MD5

// Parse разбирает имя алгоритма без учёта регистра.
func Parse(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return Default, nil
	case MD5:
		return MD5, nil
	case SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unknown checksum algorithm: %q", name)
	}
}

func (a Algorithm) String() string { return string(a) }

// New возвращает свежий hash.Hash для алгоритма.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return md5.New()
	}
}

// Sum считает hex-дайджест буфера целиком.
func (a Algorithm) Sum(data []byte) string {
	h := a.New()
	_, _ = h.Write(data)
	return Hex(h)
}

// Hex кодирует текущее состояние хеша в нижнем регистре.
func Hex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Equal сравнивает два hex-дайджеста, игнорируя регистр и пробелы по краям.
func Equal(expected, computed string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(computed))
}
