package processors

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

// Transcriber turns an extracted audio track into timed transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]core.Segment, error)
}

// WhisperTranscriber transcribes through the audio transcription API,
// requesting the verbose response so segment timings come back.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(apiKey, baseURL, model string) *WhisperTranscriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &WhisperTranscriber{client: openai.NewClientWithConfig(cfg), model: model}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]core.Segment, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}

	segments := make([]core.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, core.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	if len(segments) == 0 && resp.Text != "" {
		segments = append(segments, core.Segment{Start: 0, End: resp.Duration, Text: resp.Text})
	}
	return segments, nil
}

// MockTranscriber returns placeholder segments so the rest of the pipeline
// can run without an audio backend.
type MockTranscriber struct {
	log *slog.Logger
}

func NewMockTranscriber(log *slog.Logger) *MockTranscriber {
	return &MockTranscriber{log: log}
}

func (m *MockTranscriber) Transcribe(_ context.Context, audioPath string) ([]core.Segment, error) {
	m.log.Warn("no transcription backend configured, returning placeholder transcript", "audio", audioPath)
	return []core.Segment{
		{Start: 0, End: 5, Text: "[transcription unavailable]"},
	}, nil
}
