package processors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

// DefaultStepsPerPage bounds a documentation page.
const DefaultStepsPerPage = 10

// DocumentBuilder turns frame analysis output into a paginated step-by-step
// record, and optionally asks the chat model for a prose summary.
type DocumentBuilder struct {
	chat  *openai.Client
	model string
	log   *slog.Logger
}

// NewDocumentBuilder builds the document layer. chat may be nil; summaries
// then use the deterministic fallback.
func NewDocumentBuilder(chat *openai.Client, model string, log *slog.Logger) *DocumentBuilder {
	return &DocumentBuilder{chat: chat, model: model, log: log}
}

// BuildSteps converts successful frame results into numbered documentation
// steps. Failed frames are skipped; their timestamps would carry no content.
func (d *DocumentBuilder) BuildSteps(results []core.FrameAnalysisResult) []core.DocumentStep {
	steps := make([]core.DocumentStep, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			continue
		}
		steps = append(steps, core.DocumentStep{
			StepNumber:   len(steps) + 1,
			TimestampSec: r.TimestampSec,
			Timestamp:    core.FormatTime(r.TimestampSec),
			Description:  r.Description,
			OCRText:      r.OCRText,
			MetaTags:     r.MetaTags,
			ImagePath:    r.ImagePath,
		})
	}
	return steps
}

// Paginate slices steps into the requested page. Pages are 1-based; an
// out-of-range page returns an empty step list with correct totals.
func Paginate(steps []core.DocumentStep, page, perPage int) core.DocumentPage {
	if perPage <= 0 {
		perPage = DefaultStepsPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (len(steps) + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * perPage
	var slice []core.DocumentStep
	if start < len(steps) {
		slice = steps[start:min(start+perPage, len(steps))]
	} else {
		slice = []core.DocumentStep{}
	}
	return core.DocumentPage{
		Page:       page,
		TotalPages: totalPages,
		TotalSteps: len(steps),
		Steps:      slice,
	}
}

// Summarize produces a prose summary of the analyzed video. Without a chat
// client, or when the call fails, it falls back to stitching the step
// descriptions so a summary is always returned.
func (d *DocumentBuilder) Summarize(ctx context.Context, steps []core.DocumentStep, transcript string) string {
	if d.chat == nil {
		return fallbackSummary(steps)
	}

	var b strings.Builder
	b.WriteString("Summarize this screen recording as a short how-to overview. Timeline of observed steps:\n\n")
	for _, s := range steps {
		fmt.Fprintf(&b, "[%s] %s\n", s.Timestamp, s.Description)
	}
	if strings.TrimSpace(transcript) != "" {
		b.WriteString("\nSpoken narration:\n")
		b.WriteString(transcript)
	}

	resp, err := d.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
		MaxTokens: 500,
	})
	if err != nil || len(resp.Choices) == 0 {
		d.log.Warn("summary generation failed, using fallback", "err", err)
		return fallbackSummary(steps)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// fallbackSummary stitches the first few step descriptions into a plain
// summary when no model is available.
func fallbackSummary(steps []core.DocumentStep) string {
	if len(steps) == 0 {
		return "No analyzable content was found in this video."
	}
	const maxSteps = 5
	parts := make([]string, 0, maxSteps)
	for _, s := range steps[:min(len(steps), maxSteps)] {
		parts = append(parts, fmt.Sprintf("%s: %s", s.Timestamp, s.Description))
	}
	return fmt.Sprintf("Recording with %d captured steps. %s", len(steps), strings.Join(parts, " "))
}
