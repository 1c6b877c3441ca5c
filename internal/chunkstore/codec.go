package chunkstore

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec — способ хранения части на диске. Тег пишется первым байтом файла части,
// поэтому смена кодека в конфиге не ломает уже принятые части.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecZstd Codec = 1
	CodecLZ4  Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec разбирает имя кодека из конфигурации.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("unknown chunk compression: %q", name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// encoder пишет тег и оборачивает w в компрессор. Close сбрасывает буферы компрессора,
// но не закрывает сам w.
func (c Codec) encoder(w io.Writer) (io.WriteCloser, error) {
	if _, err := w.Write([]byte{byte(c)}); err != nil {
		return nil, err
	}

	switch c {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported chunk codec %s", c)
	}
}

// decoder читает тег и возвращает распаковывающий поток.
func decoder(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	tag, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read codec tag: %w", err)
	}

	switch Codec(tag) {
	case CodecNone:
		return io.NopCloser(br), nil
	case CodecZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(br)), nil
	default:
		return nil, fmt.Errorf("unsupported chunk codec %s", Codec(tag))
	}
}
