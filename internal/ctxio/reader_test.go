package ctxio

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestCopyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	n, err := Copy(ctx, &dst, bytes.NewReader(make([]byte, 1024)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n != 0 {
		t.Fatalf("copied %d bytes after cancel", n)
	}
}

func TestCopyWithBackgroundContext(t *testing.T) {
	src := bytes.Repeat([]byte{7}, 4096)
	var dst bytes.Buffer
	n, err := Copy(context.Background(), &dst, bytes.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(src)) || !bytes.Equal(dst.Bytes(), src) {
		t.Fatalf("copy mismatch: %d bytes", n)
	}
}
