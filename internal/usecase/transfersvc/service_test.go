package transfersvc

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/internal/models"
)

func newTestService(t *testing.T, mutate ...func(c *config.Config)) (*Transfers, *config.Config) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.UploadRoot = filepath.Join(base, "data")
	cfg.DownloadRoot = filepath.Join(base, "library")
	cfg.MaxChunkSize = 16 * config.MiB
	for _, m := range mutate {
		m(&cfg)
	}

	svc, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, &cfg
}

func testData(size int, seed int64) []byte {
	b := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func split(data []byte, chunk int) [][]byte {
	var out [][]byte
	for off := 0; off < len(data); off += chunk {
		out = append(out, data[off:min(off+chunk, len(data))])
	}
	return out
}

func accept(t *testing.T, svc *Transfers, session string, idx int, payload []byte) models.AcceptResult {
	t.Helper()
	res, err := svc.Accept(context.Background(), models.AcceptRequest{
		Session:  session,
		Index:    idx,
		Payload:  bytes.NewReader(payload),
		Checksum: svc.Checksum.Sum(payload),
	})
	if err != nil {
		t.Fatalf("accept chunk %d: %v", idx, err)
	}
	return res
}

func listChunks(t *testing.T, svc *Transfers, session string) []int {
	t.Helper()
	got, err := svc.ListChunks(context.Background(), session)
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	return got
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRoundTripInArbitraryOrder(t *testing.T) {
	for _, codec := range []string{"none", "zstd", "lz4"} {
		for _, alg := range []checksum.Algorithm{checksum.MD5, checksum.SHA256, checksum.BLAKE3} {
			t.Run(codec+"/"+alg.String(), func(t *testing.T) {
				svc, _ := newTestService(t, func(c *config.Config) {
					c.ChunkCompression = codec
					c.ChecksumAlgorithm = alg.String()
				})

				data := testData(100_003, 42)
				chunks := split(data, 7_000)
				order := rand.New(rand.NewSource(7)).Perm(len(chunks))
				for _, idx := range order {
					accept(t, svc, "sample.raw", idx, chunks[idx])
				}

				art, err := svc.Complete(context.Background(), models.CompleteRequest{
					Session:  "sample.raw",
					Checksum: alg.Sum(data),
					Suffix:   ".bin",
				})
				if err != nil {
					t.Fatalf("complete: %v", err)
				}
				if art.Size != int64(len(data)) || art.Chunks != len(chunks) {
					t.Fatalf("artifact %+v", art)
				}

				got, err := os.ReadFile(art.Path)
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(got, data) {
					t.Fatalf("artifact differs from original")
				}
				if ok, _ := svc.Store.Exists("sample.raw"); ok {
					t.Fatalf("session directory still exists")
				}
			})
		}
	}
}

func TestChecksumMismatchLeavesSessionUnchanged(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Accept(context.Background(), models.AcceptRequest{
		Session:  "f.dat",
		Index:    0,
		Payload:  strings.NewReader("payload"),
		Checksum: svc.Checksum.Sum([]byte("other")),
	})
	var ce *models.ChecksumError
	if !errors.As(err, &ce) || !errors.Is(err, models.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if ce.Index != 0 || ce.Computed != svc.Checksum.Sum([]byte("payload")) {
		t.Fatalf("error lacks details: %+v", ce)
	}
	if ok, _ := svc.Store.Exists("f.dat"); ok {
		t.Fatalf("session directory created for a rejected chunk")
	}

	accept(t, svc, "f.dat", 0, []byte("good"))
	before := dirNames(t, svc.Store.SessionDir("f.dat"))

	_, err = svc.Accept(context.Background(), models.AcceptRequest{
		Session:  "f.dat",
		Index:    1,
		Payload:  strings.NewReader("bad"),
		Checksum: "00000000000000000000000000000000",
	})
	if !errors.Is(err, models.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if after := dirNames(t, svc.Store.SessionDir("f.dat")); !reflect.DeepEqual(before, after) {
		t.Fatalf("session dir changed: %v -> %v", before, after)
	}
}

func TestChecksumComparisonIgnoresCase(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Accept(context.Background(), models.AcceptRequest{
		Session:  "f",
		Index:    0,
		Payload:  strings.NewReader("abc"),
		Checksum: strings.ToUpper(svc.Checksum.Sum([]byte("abc"))),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAcceptRejectsEmptyAndOversizedPayload(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.Config) {
		c.DefaultChunkSize = 8
		c.MaxChunkSize = 16
	})

	_, err := svc.Accept(context.Background(), models.AcceptRequest{
		Session: "f", Index: 0, Payload: strings.NewReader(""), Checksum: svc.Checksum.Sum(nil),
	})
	if !errors.Is(err, models.ErrInvalidRequest) {
		t.Fatalf("empty payload: %v", err)
	}

	big := bytes.Repeat([]byte("x"), 17)
	_, err = svc.Accept(context.Background(), models.AcceptRequest{
		Session: "f", Index: 0, Payload: bytes.NewReader(big), Checksum: svc.Checksum.Sum(big),
	})
	if !errors.Is(err, models.ErrInvalidRequest) {
		t.Fatalf("oversized payload: %v", err)
	}
	if got := listChunks(t, svc, "f"); len(got) != 0 {
		t.Fatalf("chunks stored: %v", got)
	}
}

func TestListChunksOfUnknownSession(t *testing.T) {
	svc, _ := newTestService(t)
	if got := listChunks(t, svc, "nothing"); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
	if ok, _ := svc.Store.Exists("nothing"); ok {
		t.Fatalf("listing created the session")
	}
}

func TestCompleteRejectsGap(t *testing.T) {
	svc, cfg := newTestService(t)
	data := testData(4_000, 1)
	chunks := split(data, 1_000)
	for _, idx := range []int{0, 1, 3} {
		accept(t, svc, "gap", idx, chunks[idx])
	}

	_, err := svc.Complete(context.Background(), models.CompleteRequest{
		Session: "gap", Checksum: svc.Checksum.Sum(data), Suffix: ".bin",
	})
	var ce *models.ContiguityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected contiguity error, got %v", err)
	}
	if !reflect.DeepEqual(ce.Missing, []int{2}) {
		t.Fatalf("missing = %v", ce.Missing)
	}
	if _, err := os.Stat(filepath.Join(cfg.Artifacts(), "gap.bin")); !os.IsNotExist(err) {
		t.Fatalf("artifact produced despite gap")
	}
	if got := listChunks(t, svc, "gap"); !reflect.DeepEqual(got, []int{0, 1, 3}) {
		t.Fatalf("chunks after failed merge: %v", got)
	}
}

func TestCompleteRejectsSessionNotStartingAtZero(t *testing.T) {
	svc, _ := newTestService(t)
	accept(t, svc, "late", 1, []byte("x"))

	_, err := svc.Complete(context.Background(), models.CompleteRequest{Session: "late", Checksum: "x", Suffix: ".bin"})
	if !errors.Is(err, models.ErrContiguity) {
		t.Fatalf("expected ErrContiguity, got %v", err)
	}
}

func TestCompleteWithoutChunks(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Complete(context.Background(), models.CompleteRequest{Session: "empty", Checksum: "x", Suffix: ".bin"})
	if !errors.Is(err, models.ErrNoChunksFound) {
		t.Fatalf("expected ErrNoChunksFound, got %v", err)
	}
}

func TestFinalMismatchRollsBackAndAllowsRetry(t *testing.T) {
	svc, cfg := newTestService(t)
	data := testData(10_000, 3)
	chunks := split(data, 3_000)
	for idx, c := range chunks {
		accept(t, svc, "retry", idx, c)
	}

	_, err := svc.Complete(context.Background(), models.CompleteRequest{
		Session: "retry", Checksum: svc.Checksum.Sum([]byte("wrong")), Suffix: ".bin",
	})
	var ce *models.ChecksumError
	if !errors.As(err, &ce) || !errors.Is(err, models.ErrFinalChecksumMismatch) {
		t.Fatalf("expected final checksum mismatch, got %v", err)
	}
	if ce.Computed != svc.Checksum.Sum(data) {
		t.Fatalf("computed checksum %s does not describe the merged bytes", ce.Computed)
	}
	if names := dirNames(t, cfg.Artifacts()); len(names) != 0 {
		t.Fatalf("artifact root not clean after rollback: %v", names)
	}
	if got := listChunks(t, svc, "retry"); len(got) != len(chunks) {
		t.Fatalf("chunks lost after rollback: %v", got)
	}

	art, err := svc.Complete(context.Background(), models.CompleteRequest{
		Session: "retry", Checksum: svc.Checksum.Sum(data), Suffix: ".bin",
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := os.ReadFile(art.Path)
	if !bytes.Equal(got, data) {
		t.Fatalf("retry artifact differs")
	}
}

func TestOverwriteUsesLatestBytes(t *testing.T) {
	svc, _ := newTestService(t)
	accept(t, svc, "ow", 0, []byte("hello "))
	accept(t, svc, "ow", 1, []byte("wrold"))
	accept(t, svc, "ow", 1, []byte("world"))

	want := []byte("hello world")
	art, err := svc.Complete(context.Background(), models.CompleteRequest{
		Session: "ow", Checksum: svc.Checksum.Sum(want), Suffix: ".txt",
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(art.Path)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q", got)
	}
}

func TestCompleteCancelledKeepsChunks(t *testing.T) {
	svc, cfg := newTestService(t)
	data := testData(5_000, 9)
	for idx, c := range split(data, 1_000) {
		accept(t, svc, "cancel", idx, c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Complete(ctx, models.CompleteRequest{Session: "cancel", Checksum: svc.Checksum.Sum(data), Suffix: ".bin"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if names := dirNames(t, cfg.Artifacts()); len(names) != 0 {
		t.Fatalf("temp artifact left behind: %v", names)
	}
	if got := listChunks(t, svc, "cancel"); len(got) != 5 {
		t.Fatalf("chunks lost: %v", got)
	}
}

func TestCompleteRefusesToReplaceSessionDir(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.Config) { c.ArtifactRoot = c.UploadRoot })
	accept(t, svc, "same", 0, []byte("x"))

	_, err := svc.Complete(context.Background(), models.CompleteRequest{Session: "same", Checksum: svc.Checksum.Sum([]byte("x"))})
	if !errors.Is(err, models.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAbort(t *testing.T) {
	svc, _ := newTestService(t)
	accept(t, svc, "gone", 0, []byte("x"))

	if err := svc.Abort(context.Background(), "gone"); err != nil {
		t.Fatal(err)
	}
	if got := listChunks(t, svc, "gone"); len(got) != 0 {
		t.Fatalf("chunks after abort: %v", got)
	}
	if err := svc.Abort(context.Background(), "gone"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTwelveMiBScenario(t *testing.T) {
	svc, _ := newTestService(t)
	const mib = 1 << 20
	data := testData(12*mib, 12)
	chunks := [][]byte{data[:5*mib], data[5*mib : 10*mib], data[10*mib:]}

	for _, idx := range []int{2, 0, 1} {
		accept(t, svc, "big.npy", idx, chunks[idx])
	}

	want := svc.Checksum.Sum(data)
	art, err := svc.Complete(context.Background(), models.CompleteRequest{Session: "big.npy", Checksum: want, Suffix: ".bin"})
	if err != nil {
		t.Fatal(err)
	}
	if art.Size != 12*mib {
		t.Fatalf("size = %d", art.Size)
	}
	if art.Checksum != want {
		t.Fatalf("checksum = %s, want %s", art.Checksum, want)
	}
	if filepath.Base(art.Path) != "big.npy.bin" {
		t.Fatalf("path = %s", art.Path)
	}
	if _, err := os.Stat(svc.Store.SessionDir("big.npy")); !os.IsNotExist(err) {
		t.Fatalf("session directory still exists")
	}

	// собранный файл сразу доступен для скачивания по диапазонам
	info, err := svc.HeadInfo(context.Background(), "big.npy.bin")
	if err != nil || info.Size != 12*mib {
		t.Fatalf("head: %+v %v", info, err)
	}
}

func TestReadChunkPartitionsFile(t *testing.T) {
	svc, cfg := newTestService(t)
	data := testData(10_007, 5)
	if err := os.WriteFile(filepath.Join(cfg.DownloadRoot, "lib.npy"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	const chunkSize = 1_000
	var assembled []byte
	for idx := 0; idx < models.ChunkCount(int64(len(data)), chunkSize); idx++ {
		r, err := svc.ReadChunk(context.Background(), models.RangeRequest{Name: "lib.npy", Index: idx, ChunkSize: chunkSize})
		if err != nil {
			t.Fatalf("read chunk %d: %v", idx, err)
		}
		if r.Start != int64(len(assembled)) || r.Total != int64(len(data)) {
			t.Fatalf("chunk %d: start %d total %d", idx, r.Start, r.Total)
		}
		if r.Checksum != svc.Checksum.Sum(r.Data) {
			t.Fatalf("chunk %d: checksum does not match data", idx)
		}
		assembled = append(assembled, r.Data...)
	}
	if !bytes.Equal(assembled, data) {
		t.Fatalf("assembled ranges differ from file")
	}

	last, _ := svc.ReadChunk(context.Background(), models.RangeRequest{Name: "lib.npy", Index: 10, ChunkSize: chunkSize})
	if last.Length != 7 || last.End() != int64(len(data))-1 {
		t.Fatalf("last range: %+v", last)
	}

	_, err := svc.ReadChunk(context.Background(), models.RangeRequest{Name: "lib.npy", Index: 11, ChunkSize: chunkSize})
	if !errors.Is(err, models.ErrRangeOutOfBounds) {
		t.Fatalf("expected ErrRangeOutOfBounds, got %v", err)
	}
}

func TestReadChunkDefaultsAndErrors(t *testing.T) {
	svc, cfg := newTestService(t, func(c *config.Config) {
		c.DefaultChunkSize = 4
		c.MaxChunkSize = 8
	})
	_ = os.WriteFile(filepath.Join(cfg.DownloadRoot, "small"), []byte("0123456789"), 0o644)

	r, err := svc.ReadChunk(context.Background(), models.RangeRequest{Name: "small", Index: 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(r.Data) != "4567" {
		t.Fatalf("default chunk size not applied: %q", r.Data)
	}

	if _, err := svc.ReadChunk(context.Background(), models.RangeRequest{Name: "small", ChunkSize: 9}); !errors.Is(err, models.ErrInvalidRequest) {
		t.Fatalf("oversized chunk: %v", err)
	}
	if _, err := svc.ReadChunk(context.Background(), models.RangeRequest{Name: "missing", ChunkSize: 4}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing file: %v", err)
	}
	if _, err := svc.HeadInfo(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("head missing: %v", err)
	}
	if _, err := svc.HeadInfo(context.Background(), "../etc"); !errors.Is(err, models.ErrInvalidRequest) {
		t.Fatalf("traversal: %v", err)
	}
}

func TestMissingIndices(t *testing.T) {
	cases := []struct {
		in   []int
		want []int
	}{
		{[]int{0, 1, 2}, nil},
		{[]int{0, 1, 3}, []int{2}},
		{[]int{2}, []int{0, 1}},
		{[]int{0, 4, 6}, []int{1, 2, 3, 5}},
	}
	for _, tc := range cases {
		if got := missingIndices(tc.in, 32); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%v: got %v want %v", tc.in, got, tc.want)
		}
	}
	if got := missingIndices([]int{1000}, 3); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("limit ignored: %v", got)
	}
}

func TestCompleteIntoSharedArtifactPathReportsReplacement(t *testing.T) {
	svc, cfg := newTestService(t)
	ctx := context.Background()

	first := []byte("from session a")
	second := []byte("from session a.b")
	accept(t, svc, "a", 0, first)
	accept(t, svc, "a.b", 0, second)

	art, err := svc.Complete(ctx, models.CompleteRequest{Session: "a", Checksum: svc.Checksum.Sum(first), Suffix: ".b.c"})
	if err != nil {
		t.Fatal(err)
	}
	if art.Replaced {
		t.Fatalf("first artifact marked as replacement")
	}

	// пока путь заблокирован, вторая сборка не может его занять
	unlock := svc.Sessions.Artifact(art.Path)
	done := make(chan models.Artifact, 1)
	go func() {
		res, err := svc.Complete(ctx, models.CompleteRequest{Session: "a.b", Checksum: svc.Checksum.Sum(second), Suffix: ".c"})
		if err != nil {
			t.Error(err)
		}
		done <- res
	}()
	select {
	case <-done:
		t.Fatalf("complete committed while artifact path was locked")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()

	var res models.Artifact
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("complete did not finish after unlock")
	}
	if res.Path != art.Path || !res.Replaced {
		t.Fatalf("second artifact = %+v", res)
	}

	got, err := os.ReadFile(filepath.Join(cfg.DownloadRoot, "a.b.c"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, second) {
		t.Fatalf("artifact = %q", got)
	}
	if names := dirNames(t, cfg.DownloadRoot); len(names) != 1 {
		t.Fatalf("download root = %v", names)
	}
}
