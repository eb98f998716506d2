package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

// customBackendBatchCap bounds batch size on custom HTTP endpoints, which
// reject large multi-image payloads far earlier than the standard API.
const customBackendBatchCap = 2

// ImageLoader reads a frame's encoded bytes back from storage right before
// transport.
type ImageLoader interface {
	Load(path string) ([]byte, error)
}

// BatchAnalyzer runs frame analysis: it partitions frames into contiguous
// batches, dispatches them under bounded concurrency, and degrades a batch to
// per-frame calls when the transport rejects the payload size. Failures stay
// per-frame; the analyzer always returns one result per input frame, sorted
// by timestamp.
type BatchAnalyzer struct {
	client     VisionClient
	prompts    *PromptResolver
	interp     *Interpreter
	images     ImageLoader
	batchSize  int
	maxWorkers int
	log        *slog.Logger
}

func NewBatchAnalyzer(client VisionClient, prompts *PromptResolver, interp *Interpreter,
	images ImageLoader, batchSize, maxWorkers int, log *slog.Logger) *BatchAnalyzer {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	return &BatchAnalyzer{
		client:     client,
		prompts:    prompts,
		interp:     interp,
		images:     images,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
		log:        log,
	}
}

// EffectiveBatchSize is the configured size clamped for the active backend.
func (a *BatchAnalyzer) EffectiveBatchSize() int {
	if a.client.Kind() == core.BackendCustomHTTP {
		return min(a.batchSize, customBackendBatchCap)
	}
	return a.batchSize
}

// PlanBatches partitions frames into contiguous chunks of at most size,
// preserving order. The last chunk may be short.
func PlanBatches(frames []core.Frame, size int) [][]core.Frame {
	if size <= 0 {
		size = 1
	}
	batches := make([][]core.Frame, 0, (len(frames)+size-1)/size)
	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		batches = append(batches, frames[start:end])
	}
	return batches
}

// AnalyzeFrames analyzes every frame and returns exactly one result per input
// frame, ordered by timestamp ascending. Per-frame and per-batch failures are
// recorded on the affected results; the only fatal errors are a corrupted
// prompt template and an unusable backend, both detected before any call is
// dispatched.
func (a *BatchAnalyzer) AnalyzeFrames(ctx context.Context, frames []core.Frame, customRules string) ([]core.FrameAnalysisResult, error) {
	if len(frames) == 0 {
		return []core.FrameAnalysisResult{}, nil
	}

	// A malformed placeholder fails every frame identically; surface it
	// once, up front.
	if _, err := FormatTimestamp(a.prompts.Resolve(customRules), 0); err != nil {
		return nil, err
	}

	size := a.EffectiveBatchSize()
	batches := PlanBatches(frames, size)
	a.log.Info("frame analysis starting",
		"frames", len(frames), "batches", len(batches),
		"batch_size", size, "workers", a.maxWorkers, "backend", a.client.Kind().String())

	sem := make(chan struct{}, a.maxWorkers)
	perBatch := make([][]core.FrameAnalysisResult, len(batches))
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []core.Frame) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					a.log.Error("batch worker panicked", "batch", i, "panic", r)
					perBatch[i] = failBatch(batch, fmt.Sprintf("internal error: %v", r), a.client.Model())
				}
			}()
			sem <- struct{}{}
			defer func() { <-sem }()
			perBatch[i] = a.processBatch(ctx, batch, customRules)
		}(i, batch)
	}
	wg.Wait()

	results := make([]core.FrameAnalysisResult, 0, len(frames))
	for _, rs := range perBatch {
		results = append(results, rs...)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].TimestampSec < results[j].TimestampSec })

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	a.log.Info("frame analysis finished", "frames", len(results), "failed", failed)
	return results, nil
}

// processBatch analyzes one batch with a single model call. A payload-size
// rejection degrades to sequential per-frame calls; any other call failure
// marks every frame in the batch.
func (a *BatchAnalyzer) processBatch(ctx context.Context, batch []core.Frame, customRules string) []core.FrameAnalysisResult {
	if len(batch) == 1 {
		return []core.FrameAnalysisResult{a.analyzeOne(ctx, batch[0], customRules)}
	}

	start := time.Now()
	results := make([]core.FrameAnalysisResult, len(batch))

	// Frames whose bytes cannot be read fail individually; the call
	// proceeds with the rest so one bad file does not sink the batch.
	sendIdx := make([]int, 0, len(batch))
	images := make([][]byte, 0, len(batch))
	timestamps := make([]float64, 0, len(batch))
	for i, f := range batch {
		data, err := a.images.Load(f.ImagePath)
		if err != nil {
			results[i] = failedResult(f, fmt.Sprintf("read frame image: %v", err), a.client.Model())
			continue
		}
		sendIdx = append(sendIdx, i)
		images = append(images, data)
		timestamps = append(timestamps, f.TimestampSec)
	}
	if len(sendIdx) == 0 {
		return results
	}

	prompt := a.prompts.BatchPrompt(customRules, timestamps)
	raw, err := a.client.Send(ctx, prompt, images)
	if err != nil {
		if errors.Is(err, core.ErrPayloadTooLarge) {
			a.log.Warn("batch payload rejected, degrading to per-frame calls",
				"batch_frames", len(sendIdx))
			for _, i := range sendIdx {
				results[i] = a.analyzeOne(ctx, batch[i], customRules)
			}
			return results
		}
		a.log.Error("batch vision call failed", "batch_frames", len(sendIdx), "err", err)
		for _, i := range sendIdx {
			results[i] = failedResult(batch[i], err.Error(), a.client.Model())
		}
		return results
	}

	elapsed := int(time.Since(start).Milliseconds())
	perFrameMs := elapsed / len(sendIdx)

	fields, err := a.interp.InterpretBatch(raw, len(sendIdx))
	if err != nil {
		a.log.Error("batch response unparseable", "batch_frames", len(sendIdx), "err", err)
		for _, i := range sendIdx {
			results[i] = failedResult(batch[i], err.Error(), a.client.Model())
		}
		return results
	}

	for pos, i := range sendIdx {
		f := batch[i]
		ff := fields[pos]
		if ff.Err != "" {
			results[i] = failedResult(f, ff.Err, a.client.Model())
			continue
		}
		results[i] = core.FrameAnalysisResult{
			TimestampSec:     f.TimestampSec,
			FrameNumber:      f.FrameNumber,
			ImagePath:        f.ImagePath,
			Description:      ff.Description,
			OCRText:          ff.OCRText,
			MetaTags:         ff.MetaTags,
			ProcessingTimeMs: perFrameMs,
			Model:            a.client.Model(),
		}
	}
	return results
}

// analyzeOne analyzes a single frame with its own model call. Every failure
// mode lands in the result's Error field; single-frame analysis never takes
// the whole job down.
func (a *BatchAnalyzer) analyzeOne(ctx context.Context, f core.Frame, customRules string) core.FrameAnalysisResult {
	start := time.Now()

	data, err := a.images.Load(f.ImagePath)
	if err != nil {
		return failedResult(f, fmt.Sprintf("read frame image: %v", err), a.client.Model())
	}

	prompt, err := FormatTimestamp(a.prompts.Resolve(customRules), f.TimestampSec)
	if err != nil {
		return failedResult(f, err.Error(), a.client.Model())
	}

	raw, err := a.client.Send(ctx, prompt, [][]byte{data})
	if err != nil {
		return failedResult(f, err.Error(), a.client.Model())
	}

	fields, err := a.interp.InterpretSingle(raw)
	if err != nil {
		return failedResult(f, err.Error(), a.client.Model())
	}

	return core.FrameAnalysisResult{
		TimestampSec:     f.TimestampSec,
		FrameNumber:      f.FrameNumber,
		ImagePath:        f.ImagePath,
		Description:      fields.Description,
		OCRText:          fields.OCRText,
		MetaTags:         fields.MetaTags,
		ProcessingTimeMs: int(time.Since(start).Milliseconds()),
		Model:            a.client.Model(),
	}
}

func failedResult(f core.Frame, msg, model string) core.FrameAnalysisResult {
	return core.FrameAnalysisResult{
		TimestampSec: f.TimestampSec,
		FrameNumber:  f.FrameNumber,
		ImagePath:    f.ImagePath,
		Model:        model,
		Error:        msg,
	}
}

func failBatch(batch []core.Frame, msg, model string) []core.FrameAnalysisResult {
	out := make([]core.FrameAnalysisResult, len(batch))
	for i, f := range batch {
		out[i] = failedResult(f, msg, model)
	}
	return out
}
