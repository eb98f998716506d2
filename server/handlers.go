package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Abhijeetkumar8582/NewCode/core"
	"github.com/Abhijeetkumar8582/NewCode/processors"
	"github.com/Abhijeetkumar8582/NewCode/storage"
)

const (
	maxUploadBytes = 2 << 30 // 2 GiB
	// Upper bound when a handler needs the full result set.
	allResults = 1 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"vision_backend": s.cfg.VisionBackend().Kind.String(),
	})
}

type uploadRequest struct {
	VideoPath string `json:"video_path"`
	VideoName string `json:"video_name"`
}

type uploadResponse struct {
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
}

// handleUpload accepts a video as a multipart file or as a JSON path
// reference, registers the record, and kicks off processing in the
// background. The response is 202; progress is polled via the status route.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	videoID := core.NewID()

	var videoPath, videoName string
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		path, name, err := s.saveUpload(r, videoID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		videoPath, videoName = path, name
	} else {
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.VideoPath == "" {
			writeError(w, http.StatusBadRequest, "video_path required")
			return
		}
		if _, err := os.Stat(req.VideoPath); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("video not readable: %v", err))
			return
		}
		videoPath = req.VideoPath
		videoName = req.VideoName
		if videoName == "" {
			videoName = filepath.Base(req.VideoPath)
		}
	}

	duration, err := processors.ProbeDuration(videoPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("video not readable: %v", err))
		return
	}

	rec := core.VideoRecord{
		VideoID:   videoID,
		VideoName: videoName,
		VideoPath: videoPath,
		Duration:  duration,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.results.SaveVideo(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register video")
		return
	}

	go func() {
		// Detached from the request; uploads outlive their HTTP call.
		if err := s.pipeline.ProcessVideo(context.Background(), videoID); err != nil {
			s.log.Error("background processing failed", "video_id", videoID, "err", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, uploadResponse{VideoID: videoID, Status: "pending"})
}

func (s *Server) saveUpload(r *http.Request, videoID string) (path, name string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("video")
	if err != nil {
		return "", "", fmt.Errorf("video file required: %w", err)
	}
	defer file.Close()

	uploadsDir := filepath.Join(s.cfg.DataDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0755); err != nil {
		return "", "", fmt.Errorf("create uploads dir: %w", err)
	}

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	dst := filepath.Join(uploadsDir, videoID+ext)
	out, err := os.Create(dst)
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dst)
		return "", "", fmt.Errorf("store upload: %w", err)
	}
	return dst, header.Filename, nil
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.results.ListVideos(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.results.GetVideo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleFrames returns a page of per-frame analysis results, ordered by
// timestamp ascending.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")
	page, perPage := pageParams(r, 10)

	results, total, err := s.results.ListResults(r.Context(), videoID, page, perPage)
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"video_id":    videoID,
		"page":        page,
		"per_page":    perPage,
		"total":       total,
		"total_pages": totalPages,
		"frames":      results,
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")
	segments, err := s.results.GetSegments(r.Context(), videoID)
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"video_id": videoID,
		"segments": segments,
	})
}

// handleDocument returns one page of the generated step-by-step record.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")
	rec, err := s.results.GetVideo(r.Context(), videoID)
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}

	results, _, err := s.results.ListResults(r.Context(), videoID, 1, allResults)
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}
	summary, err := s.results.GetSummary(r.Context(), videoID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}

	page, perPage := pageParams(r, processors.DefaultStepsPerPage)
	steps := s.docs.BuildSteps(results)
	doc := core.VideoDocument{
		VideoID: videoID,
		Title:   rec.VideoName,
		Summary: summary,
		Page:    processors.Paginate(steps, page, perPage),
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")
	summary, err := s.results.GetSummary(r.Context(), videoID)
	if err != nil {
		s.notFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"video_id": videoID,
		"summary":  summary,
	})
}

type searchRequest struct {
	VideoID string `json:"video_id"`
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VideoID == "" || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "video_id and query required")
		return
	}
	hits := s.vectors.Search(r.Context(), req.VideoID, req.Query, req.TopK)
	if hits == nil {
		hits = []core.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"video_id": req.VideoID,
		"query":    req.Query,
		"hits":     hits,
	})
}

func (s *Server) notFoundOr500(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	s.log.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pageParams(r *http.Request, defaultPerPage int) (page, perPage int) {
	page, perPage = 1, defaultPerPage
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			perPage = n
		}
	}
	return page, perPage
}
