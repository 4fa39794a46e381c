package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"igx_tracker/internal/store"
)

func TestIngestBatch_MixedLines(t *testing.T) {
	p, ms := newPipeline(t)
	ctx := context.Background()

	bad1 := strings.Replace(validFrame("4"), "$IGX", "$IGY", 1)
	bad2 := "garbage"
	blob := strings.Join([]string{
		validFrame("1"),
		"",
		bad1,
		"   " + validFrame("2") + "  ",
		bad2,
		"\t",
		validFrame("3"),
		"",
	}, "\n")

	sum, err := p.IngestBatch(ctx, blob)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if sum.Total != 5 || sum.Accepted != 3 || sum.Rejected != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if _, err := uuid.Parse(sum.BatchID); err != nil {
		t.Errorf("batch id %q: %v", sum.BatchID, err)
	}
	if got := sum.Message(); got != "Processed 5 frames: 3 OK, 2 errors" {
		t.Errorf("message = %q", got)
	}

	frames, _ := ms.ListFrames(ctx, store.FrameFilter{})
	if len(frames) != 5 {
		t.Errorf("frames = %d, want 5", len(frames))
	}
	unprocessed := false
	rejected, _ := ms.ListFrames(ctx, store.FrameFilter{Processed: &unprocessed})
	if len(rejected) != 2 {
		t.Errorf("unprocessed frames = %d, want 2", len(rejected))
	}
}

func TestIngestBatch_Empty(t *testing.T) {
	p, _ := newPipeline(t)
	sum, err := p.IngestBatch(context.Background(), "\n \n\t\n")
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if sum.Total != 0 || sum.Message() != "Processed 0 frames: 0 OK, 0 errors" {
		t.Errorf("summary = %+v", sum)
	}
}

func TestIngestBatch_FatalStopsWithPartialSummary(t *testing.T) {
	ms := store.NewMemStore()
	boom := errors.New("connection reset")
	p := New(ms, failingStore{MemStore: ms, err: boom})

	sum, err := p.IngestBatch(context.Background(), validFrame("1")+"\n"+validFrame("2"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if sum.Total != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestIngestReader(t *testing.T) {
	p, _ := newPipeline(t)
	r := strings.NewReader(validFrame("1") + "\r\n" + validFrame("1") + "\r\n\r\n" + validFrame("2") + "\n")

	sum, err := p.IngestReader(context.Background(), r)
	if err != nil {
		t.Fatalf("IngestReader: %v", err)
	}
	if sum.Total != 3 || sum.Accepted != 2 || sum.Rejected != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestIngestReader_LongLine(t *testing.T) {
	p, ms := newPipeline(t)
	junk := strings.Repeat("x", 70*1024)
	r := strings.NewReader(validFrame("1") + "\n" + junk + "\n" + validFrame("2"))

	sum, err := p.IngestReader(context.Background(), r)
	if err != nil {
		t.Fatalf("IngestReader: %v", err)
	}
	if sum.Total != 3 || sum.Accepted != 2 || sum.Rejected != 1 {
		t.Errorf("summary = %+v", sum)
	}
	frames, _ := ms.ListFrames(context.Background(), store.FrameFilter{})
	if len(frames) != 3 {
		t.Errorf("frames = %d, want 3", len(frames))
	}
}

func TestIngestReader_BareCR(t *testing.T) {
	p, _ := newPipeline(t)
	r := strings.NewReader(validFrame("1") + "\r" + validFrame("2") + "\r")

	sum, err := p.IngestReader(context.Background(), r)
	if err != nil {
		t.Fatalf("IngestReader: %v", err)
	}
	if sum.Total != 2 || sum.Accepted != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestIngestReader_Cancelled(t *testing.T) {
	p, _ := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.IngestReader(ctx, strings.NewReader(validFrame("1")))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSplitFrames(t *testing.T) {
	cases := []struct {
		blob string
		want []string
	}{
		{" a \r\n\n b\n\t\n", []string{"a", "b"}},
		{"a\rb", []string{"a", "b"}},
		{"a\r\rb\r\nc", []string{"a", "b", "c"}},
		{"\r\n\r", nil},
	}
	for _, tc := range cases {
		got := SplitFrames(tc.blob)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
			t.Errorf("SplitFrames(%q) = %q, want %q", tc.blob, got, tc.want)
		}
	}
}
