package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/metrics"
	"github.com/trainguard/img-sentinel/internal/pipeline"
	"github.com/trainguard/img-sentinel/internal/websocket"
)

// handleAnalyze runs the full three-layer analysis for one uploaded
// image.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	if err := r.ParseMultipartForm(s.config.Server.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// Content type gate runs before any processing.
	if !isImageUpload(header) {
		writeError(w, http.StatusBadRequest, "Only image files are allowed.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	result, err := s.orchestrator.Analyze(r.Context(), data, header.Filename)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			metrics.RecordFailure(stageErr.Stage)
		}
		log.Error("Analysis failed", zap.String("filename", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordAnalysis(result, requestID)
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeBatch analyzes up to the configured number of uploads in
// one request. Non-image parts are silently skipped; over-limit batches
// are rejected before any processing.
func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	maxFiles := s.config.Server.MaxBatchFiles
	if maxFiles <= 0 || maxFiles > pipeline.MaxBatchSize {
		maxFiles = pipeline.MaxBatchSize
	}

	if err := r.ParseMultipartForm(s.config.Server.MaxUploadSize * int64(maxFiles)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "missing files field")
		return
	}
	if len(uploads) > maxFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Up to %d files allowed.", maxFiles))
		return
	}

	items := make([]pipeline.BatchItem, 0, len(uploads))
	for _, header := range uploads {
		data, err := readUpload(header)
		if err != nil {
			log.Warn("Failed to read batch upload", zap.String("filename", header.Filename), zap.Error(err))
			continue
		}
		items = append(items, pipeline.BatchItem{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	batch, err := s.orchestrator.AnalyzeBatch(r.Context(), items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.BatchSize.Observe(float64(batch.TotalProcessed))
	for _, entry := range batch.Results {
		if result, ok := entry.(*pipeline.AnalysisResult); ok {
			s.recordAnalysis(result, requestID)
		}
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeBatchCompleted,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.BatchCompletedEvent{
			TotalProcessed:   batch.TotalProcessed,
			AIGeneratedCount: batch.AIGeneratedCount,
			LikelyRealCount:  batch.LikelyRealCount,
			UncertainCount:   batch.UncertainCount,
			DurationSeconds:  batch.ProcessingTimeSeconds,
		},
	})

	writeJSON(w, http.StatusOK, batch)
}

// recordAnalysis updates metrics and pushes the dashboard event for one
// completed analysis.
func (s *Server) recordAnalysis(result *pipeline.AnalysisResult, requestID string) {
	s.totalAnalyses.Add(1)
	metrics.RecordAnalysis(string(result.FinalVerdict))
	for stage, ms := range result.PerLayerTimings {
		metrics.RecordStage(stage, ms)
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeAnalysisResult,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.AnalysisResultEvent{
			AnalysisID:  result.ID,
			Filename:    result.Filename,
			Verdict:     string(result.FinalVerdict),
			Confidence:  result.ConfidenceScore,
			Similarity:  result.HashResult.Similarity,
			Reasoning:   result.Reasoning,
			DurationMS:  result.TotalExecutionTimeMs,
			LayersCount: len(result.LayersExecuted),
		},
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo reports service configuration and corpus stats.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	stats := s.index.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":               "img-sentinel",
		"version":            "0.1.0",
		"uptime":             time.Since(s.startTime).Round(time.Second).String(),
		"total_analyses":     s.totalAnalyses.Load(),
		"corpus_entries":     stats.Entries,
		"corpus_dimensions":  stats.Dimensions,
		"corpus_threshold":   stats.Threshold,
		"detection_enabled":  s.config.Classifier.Enabled,
		"extractor_type":     s.config.Extractor.Type,
		"max_batch_files":    s.config.Server.MaxBatchFiles,
		"max_upload_size":    s.config.Server.MaxUploadSize,
		"websocket_enabled":  s.config.WebSocket.Enabled,
		"connected_clients":  s.wsHub.GetStats().ActiveConnections,
	})
}

// isImageUpload checks the declared content type of an upload part.
func isImageUpload(header *multipart.FileHeader) bool {
	return strings.HasPrefix(header.Header.Get("Content-Type"), "image/")
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
