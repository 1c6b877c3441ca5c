// Package ctxio позволяет прерывать длинные копирования по контексту.
package ctxio

import (
	"context"
	"io"
)

type reader struct {
	ctx context.Context
	r   io.Reader
}

// NewReader возвращает io.Reader, который перестаёт читать после отмены ctx.
func NewReader(ctx context.Context, r io.Reader) io.Reader {
	if ctx == nil || ctx.Done() == nil {
		return r
	}
	return &reader{ctx: ctx, r: r}
}

func (c *reader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Copy работает как io.Copy, но с проверкой контекста перед каждым чтением.
func Copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, NewReader(ctx, src))
}
