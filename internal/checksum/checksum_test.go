package checksum

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]Algorithm{
		"":        MD5,
		"md5":     MD5,
		"SHA256":  SHA256,
		" blake3": BLAKE3,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %s want %s", in, got, want)
		}
	}

	if _, err := Parse("crc32"); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
}

func TestSumKnownVectors(t *testing.T) {
	if got := MD5.Sum([]byte("abc")); got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Fatalf("md5: %s", got)
	}
	if got := SHA256.Sum([]byte("abc")); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("sha256: %s", got)
	}
	if got := BLAKE3.Sum(nil); got != "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262" {
		t.Fatalf("blake3: %s", got)
	}
}

func TestStreamingMatchesSum(t *testing.T) {
	data := []byte(strings.Repeat("chunk", 1000))
	for _, alg := range []Algorithm{MD5, SHA256, BLAKE3} {
		h := alg.New()
		_, _ = h.Write(data[:1234])
		_, _ = h.Write(data[1234:])
		if Hex(h) != alg.Sum(data) {
			t.Fatalf("%s: streaming digest differs", alg)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal(" ABCDEF ", "abcdef") {
		t.Fatalf("expected case-insensitive match")
	}
	if Equal("abc", "abd") {
		t.Fatalf("expected mismatch")
	}
}
