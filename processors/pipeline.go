package processors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Abhijeetkumar8582/NewCode/core"
	"github.com/Abhijeetkumar8582/NewCode/storage"
)

// FrameSource produces the per-job media artifacts. Satisfied by
// FrameExtractor.
type FrameSource interface {
	ExtractFrames(ctx context.Context, videoPath, jobID string) ([]core.Frame, error)
	ExtractAudio(ctx context.Context, videoPath, jobID string) (string, error)
}

// CredentialResolver resolves the vision backend for one job. The snapshot is
// taken once at job start; nothing re-reads ambient configuration mid-call.
type CredentialResolver interface {
	Resolve(ctx context.Context) (core.VisionBackendConfig, error)
}

// StaticCredentials resolves from loaded configuration.
type StaticCredentials struct {
	cfg *core.Config
}

func NewStaticCredentials(cfg *core.Config) *StaticCredentials {
	return &StaticCredentials{cfg: cfg}
}

func (s *StaticCredentials) Resolve(context.Context) (core.VisionBackendConfig, error) {
	backend := s.cfg.VisionBackend()
	if !backend.Configured() {
		return core.VisionBackendConfig{}, core.ErrNoVisionBackend
	}
	return backend, nil
}

// RuleStore supplies per-video custom analysis rules.
type RuleStore interface {
	RulesFor(ctx context.Context, videoID string) (string, error)
}

// NoRules always uses the template's own rules.
type NoRules struct{}

func (NoRules) RulesFor(context.Context, string) (string, error) { return "", nil }

// Pipeline runs the full processing job for one uploaded video: frame
// extraction, batched analysis, transcription, documentation, and indexing.
type Pipeline struct {
	extractor   FrameSource
	creds       CredentialResolver
	newClient   func(core.VisionBackendConfig) (VisionClient, error)
	rules       RuleStore
	prompts     *PromptResolver
	interp      *Interpreter
	images      ImageLoader
	transcriber Transcriber
	docs        *DocumentBuilder
	results     storage.ResultStore
	vectors     storage.VectorStore
	batchSize   int
	maxWorkers  int
	log         *slog.Logger
}

type PipelineDeps struct {
	Extractor   FrameSource
	Credentials CredentialResolver
	// NewClient overrides vision client construction; nil means the
	// backend-appropriate default.
	NewClient   func(core.VisionBackendConfig) (VisionClient, error)
	Rules       RuleStore
	Prompts     *PromptResolver
	Interpreter *Interpreter
	Images      ImageLoader
	Transcriber Transcriber
	Documents   *DocumentBuilder
	Results     storage.ResultStore
	Vectors     storage.VectorStore
	BatchSize   int
	MaxWorkers  int
	Log         *slog.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	rules := deps.Rules
	if rules == nil {
		rules = NoRules{}
	}
	newClient := deps.NewClient
	if newClient == nil {
		newClient = NewVisionClient
	}
	return &Pipeline{
		extractor:   deps.Extractor,
		creds:       deps.Credentials,
		newClient:   newClient,
		rules:       rules,
		prompts:     deps.Prompts,
		interp:      deps.Interpreter,
		images:      deps.Images,
		transcriber: deps.Transcriber,
		docs:        deps.Documents,
		results:     deps.Results,
		vectors:     deps.Vectors,
		batchSize:   deps.BatchSize,
		maxWorkers:  deps.MaxWorkers,
		log:         deps.Log,
	}
}

// ProcessVideo runs the job end to end and records progress on the video
// record. It returns an error only for job-fatal conditions; per-frame
// analysis failures are recorded on the results and do not fail the job.
func (p *Pipeline) ProcessVideo(ctx context.Context, videoID string) error {
	rec, err := p.results.GetVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("load video record: %w", err)
	}

	if err := p.results.UpdateVideoStatus(ctx, videoID, "processing", ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := p.process(ctx, rec); err != nil {
		p.log.Error("video processing failed", "video_id", videoID, "err", err)
		if uerr := p.results.UpdateVideoStatus(ctx, videoID, "failed", err.Error()); uerr != nil {
			p.log.Error("status update failed", "video_id", videoID, "err", uerr)
		}
		return err
	}

	if err := p.results.UpdateVideoStatus(ctx, videoID, "completed", ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	p.log.Info("video processing completed", "video_id", videoID)
	return nil
}

func (p *Pipeline) process(ctx context.Context, rec core.VideoRecord) error {
	backend, err := p.creds.Resolve(ctx)
	if err != nil {
		return err
	}
	client, err := p.newClient(backend)
	if err != nil {
		return err
	}

	frames, err := p.extractor.ExtractFrames(ctx, rec.VideoPath, rec.VideoID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames extracted from %s", rec.VideoPath)
	}

	customRules, err := p.rules.RulesFor(ctx, rec.VideoID)
	if err != nil {
		p.log.Warn("custom rules lookup failed, using defaults", "video_id", rec.VideoID, "err", err)
		customRules = ""
	}

	analyzer := NewBatchAnalyzer(client, p.prompts, p.interp, p.images,
		p.batchSize, p.maxWorkers, p.log)
	results, err := analyzer.AnalyzeFrames(ctx, frames, customRules)
	if err != nil {
		return err
	}
	if err := p.results.SaveResults(ctx, rec.VideoID, results); err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	// Transcript and summary are best-effort; the analysis results are the
	// primary artifact and already saved.
	segments := p.transcribe(ctx, rec)
	p.document(ctx, rec.VideoID, results, segments)
	p.index(ctx, rec.VideoID, results)
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, rec core.VideoRecord) []core.Segment {
	if p.transcriber == nil {
		return nil
	}
	audioPath, err := p.extractor.ExtractAudio(ctx, rec.VideoPath, rec.VideoID)
	if err != nil {
		p.log.Warn("audio extraction failed, skipping transcript", "video_id", rec.VideoID, "err", err)
		return nil
	}
	segments, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		p.log.Warn("transcription failed, skipping transcript", "video_id", rec.VideoID, "err", err)
		return nil
	}
	if err := p.results.SaveSegments(ctx, rec.VideoID, segments); err != nil {
		p.log.Warn("transcript save failed", "video_id", rec.VideoID, "err", err)
	}
	return segments
}

func (p *Pipeline) document(ctx context.Context, videoID string, results []core.FrameAnalysisResult, segments []core.Segment) {
	steps := p.docs.BuildSteps(results)
	transcript := joinSegments(segments)
	summary := p.docs.Summarize(ctx, steps, transcript)
	if err := p.results.SaveSummary(ctx, videoID, summary); err != nil {
		p.log.Warn("summary save failed", "video_id", videoID, "err", err)
	}
}

func (p *Pipeline) index(ctx context.Context, videoID string, results []core.FrameAnalysisResult) {
	if p.vectors == nil {
		return
	}
	items := make([]storage.FrameItem, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			continue
		}
		items = append(items, storage.FrameItem{
			TimestampSec: r.TimestampSec,
			Description:  r.Description,
			OCRText:      r.OCRText,
			ImagePath:    r.ImagePath,
		})
	}
	if len(items) == 0 {
		return
	}
	indexed := p.vectors.Upsert(ctx, videoID, items)
	p.log.Info("frames indexed for search", "video_id", videoID, "indexed", indexed)
}

func joinSegments(segments []core.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}
