package processors

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

// FrameExtractor samples still frames from a video at a fixed interval and
// writes them to a per-job scratch directory. The written files are the only
// persisted artifact; callers read bytes back by path when they need them.
type FrameExtractor struct {
	dataDir  string
	interval int
	log      *slog.Logger
}

func NewFrameExtractor(dataDir string, intervalSec int, log *slog.Logger) *FrameExtractor {
	if intervalSec <= 0 {
		intervalSec = 5
	}
	return &FrameExtractor{dataDir: dataDir, interval: intervalSec, log: log}
}

// Interval returns the sampling interval in seconds.
func (e *FrameExtractor) Interval() int { return e.interval }

// ExtractFrames samples one frame every interval seconds into
// <dataDir>/<jobID>/frames and returns the ordered frame records. A container
// that cannot be opened surfaces as *core.VideoUnreadableError.
func (e *FrameExtractor) ExtractFrames(ctx context.Context, videoPath, jobID string) ([]core.Frame, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &core.VideoUnreadableError{Path: videoPath, Err: err}
	}
	if _, err := ProbeDuration(videoPath); err != nil {
		return nil, &core.VideoUnreadableError{Path: videoPath, Err: err}
	}

	framesDir := filepath.Join(e.dataDir, jobID, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	pattern := filepath.Join(framesDir, "%05d.jpg")
	args := []string{"-y", "-i", videoPath, "-vf", fmt.Sprintf("fps=1/%d", e.interval), pattern}
	if err := runFFmpeg(ctx, args); err != nil {
		return nil, &core.VideoUnreadableError{Path: videoPath, Err: err}
	}

	frames, err := enumerateFrames(framesDir, e.interval)
	if err != nil {
		return nil, err
	}
	e.log.Info("frames extracted", "video", videoPath, "frames", len(frames), "interval_sec", e.interval)
	return frames, nil
}

// ExtractAudio pulls a mono 16kHz wav track for transcription.
func (e *FrameExtractor) ExtractAudio(ctx context.Context, videoPath, jobID string) (string, error) {
	jobDir := filepath.Join(e.dataDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	audioPath := filepath.Join(jobDir, "audio.wav")
	args := []string{"-y", "-i", videoPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", audioPath}
	if err := runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	return audioPath, nil
}

// enumerateFrames maps the ffmpeg output files back to timestamps. ffmpeg
// numbers output frames from 1, so file N samples second (N-1)*interval.
func enumerateFrames(framesDir string, intervalSec int) ([]core.Frame, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, err
	}
	frames := make([]core.Frame, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		i, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		frames = append(frames, core.Frame{
			TimestampSec: float64((i - 1) * intervalSec),
			FrameNumber:  i,
			ImagePath:    filepath.Join(framesDir, name),
		})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].TimestampSec < frames[j].TimestampSec })
	return frames, nil
}

// ProbeDuration returns the container duration in seconds via ffprobe.
func ProbeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 400 {
			msg = msg[len(msg)-400:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}
