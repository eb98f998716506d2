package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

func testRecord(id string) core.VideoRecord {
	return core.VideoRecord{
		VideoID:   id,
		VideoName: "demo.mp4",
		VideoPath: "/tmp/demo.mp4",
		Duration:  120,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
}

func testResults(n int) []core.FrameAnalysisResult {
	out := make([]core.FrameAnalysisResult, n)
	for i := range out {
		out[i] = core.FrameAnalysisResult{
			TimestampSec: float64(i * 5),
			FrameNumber:  i + 1,
			Description:  "frame",
			MetaTags:     []string{"a", "b", "c"},
		}
	}
	return out
}

func TestMemoryStoreVideoLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryResultStore()

	if err := s.SaveVideo(ctx, testRecord("v1")); err != nil {
		t.Fatal(err)
	}
	rec, err := s.GetVideo(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "pending" {
		t.Errorf("status = %q", rec.Status)
	}

	if err := s.UpdateVideoStatus(ctx, "v1", "failed", "no frames"); err != nil {
		t.Fatal(err)
	}
	rec, _ = s.GetVideo(ctx, "v1")
	if rec.Status != "failed" || rec.Error != "no frames" {
		t.Errorf("record after update = %+v", rec)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryResultStore()

	if _, err := s.GetVideo(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVideo err = %v", err)
	}
	if err := s.UpdateVideoStatus(ctx, "missing", "processing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateVideoStatus err = %v", err)
	}
	if _, _, err := s.ListResults(ctx, "missing", 1, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListResults err = %v", err)
	}
	if _, err := s.GetSegments(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSegments err = %v", err)
	}
	if _, err := s.GetSummary(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSummary err = %v", err)
	}
}

func TestMemoryStoreResultsPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryResultStore()
	if err := s.SaveVideo(ctx, testRecord("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveResults(ctx, "v1", testResults(25)); err != nil {
		t.Fatal(err)
	}

	page, total, err := s.ListResults(ctx, "v1", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 25 || len(page) != 10 {
		t.Errorf("page 1: total=%d len=%d", total, len(page))
	}
	if page[0].FrameNumber != 1 {
		t.Errorf("page 1 starts at frame %d", page[0].FrameNumber)
	}

	page, _, err = s.ListResults(ctx, "v1", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 5 || page[0].FrameNumber != 21 {
		t.Errorf("page 3: len=%d first=%d", len(page), page[0].FrameNumber)
	}

	page, _, err = s.ListResults(ctx, "v1", 9, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 0 {
		t.Errorf("out-of-range page returned %d results", len(page))
	}

	// Saving results refreshes the record's frame count.
	rec, _ := s.GetVideo(ctx, "v1")
	if rec.FrameCount != 25 {
		t.Errorf("frame count = %d", rec.FrameCount)
	}
}

func TestMemoryStoreSegmentsAndSummary(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryResultStore()
	if err := s.SaveVideo(ctx, testRecord("v1")); err != nil {
		t.Fatal(err)
	}

	// Registered video with no artifacts yet: empty, not ErrNotFound.
	segs, err := s.GetSegments(ctx, "v1")
	if err != nil || len(segs) != 0 {
		t.Errorf("segments before save: %v, %v", segs, err)
	}
	summary, err := s.GetSummary(ctx, "v1")
	if err != nil || summary != "" {
		t.Errorf("summary before save: %q, %v", summary, err)
	}

	if err := s.SaveSegments(ctx, "v1", []core.Segment{{Start: 0, End: 4, Text: "hello"}}); err != nil {
		t.Fatal(err)
	}
	segs, err = s.GetSegments(ctx, "v1")
	if err != nil || len(segs) != 1 || segs[0].Text != "hello" {
		t.Errorf("segments = %v, %v", segs, err)
	}

	if err := s.SaveSummary(ctx, "v1", "a short demo"); err != nil {
		t.Fatal(err)
	}
	summary, err = s.GetSummary(ctx, "v1")
	if err != nil || summary != "a short demo" {
		t.Errorf("summary = %q, %v", summary, err)
	}
}

func TestPaginateBounds(t *testing.T) {
	cases := []struct {
		n, page, perPage   int
		wantStart, wantEnd int
	}{
		{25, 1, 10, 0, 10},
		{25, 3, 10, 20, 25},
		{25, 4, 10, 25, 25},
		{25, 0, 0, 0, 10},
		{0, 1, 10, 0, 0},
	}
	for _, c := range cases {
		start, end := paginate(c.n, c.page, c.perPage)
		if start != c.wantStart || end != c.wantEnd {
			t.Errorf("paginate(%d, %d, %d) = %d, %d; want %d, %d",
				c.n, c.page, c.perPage, start, end, c.wantStart, c.wantEnd)
		}
	}
}
