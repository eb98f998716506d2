package core

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Frame is one sampled instant of a video. ImagePath is the only persisted
// artifact; the encoded bytes are read back from disk right before transport
// so extraction never has to hold a whole video's frames in memory.
type Frame struct {
	TimestampSec float64 `json:"timestamp_sec"`
	FrameNumber  int     `json:"frame_number"`
	ImagePath    string  `json:"image_path"`
}

// FrameAnalysisResult is the outcome of analyzing one Frame. Error is set when
// analysis failed for this frame specifically; the surrounding job still
// produces one result per input frame.
type FrameAnalysisResult struct {
	TimestampSec     float64  `json:"timestamp_sec"`
	FrameNumber      int      `json:"frame_number"`
	ImagePath        string   `json:"image_path"`
	Description      string   `json:"description"`
	OCRText          string   `json:"ocr_text,omitempty"`
	MetaTags         []string `json:"meta_tags"`
	ProcessingTimeMs int      `json:"processing_time_ms"`
	Model            string   `json:"model"`
	Error            string   `json:"error,omitempty"`
}

// Failed reports whether this frame's analysis failed.
func (r FrameAnalysisResult) Failed() bool { return r.Error != "" }

// Segment is one span of the extracted transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// VideoRecord is the persisted metadata for one processed video.
type VideoRecord struct {
	VideoID    string    `json:"video_id"`
	VideoName  string    `json:"video_name"`
	VideoPath  string    `json:"video_path"`
	Duration   float64   `json:"duration"`
	Status     string    `json:"status"` // pending, processing, completed, failed
	Error      string    `json:"error,omitempty"`
	FrameCount int       `json:"frame_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentStep is one step of the generated documentation: a frame's
// description anchored to its place in the video.
type DocumentStep struct {
	StepNumber   int      `json:"step_number"`
	TimestampSec float64  `json:"timestamp_sec"`
	Timestamp    string   `json:"timestamp"`
	Description  string   `json:"description"`
	OCRText      string   `json:"ocr_text,omitempty"`
	MetaTags     []string `json:"meta_tags,omitempty"`
	ImagePath    string   `json:"image_path,omitempty"`
}

// DocumentPage is one page of the paginated documentation record.
type DocumentPage struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	TotalSteps int            `json:"total_steps"`
	Steps      []DocumentStep `json:"steps"`
}

// VideoDocument aggregates a video's analysis into a documentation record.
type VideoDocument struct {
	VideoID    string       `json:"video_id"`
	Title      string       `json:"title"`
	Summary    string       `json:"summary,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Page       DocumentPage `json:"page"`
}

// SearchHit is one semantic-search match over stored frame descriptions.
type SearchHit struct {
	Score        float64 `json:"score"`
	TimestampSec float64 `json:"timestamp_sec"`
	Description  string  `json:"description"`
	OCRText      string  `json:"ocr_text,omitempty"`
	ImagePath    string  `json:"image_path,omitempty"`
}

// NewID returns a random 32-char hex identifier.
func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// FormatTime renders seconds as mm:ss for document steps.
func FormatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	m := int(sec) / 60
	s := int(sec) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
