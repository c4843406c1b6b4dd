package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/andi-frame/TeamName-KulkasKu/internal/extraction"
	"github.com/andi-frame/TeamName-KulkasKu/internal/provider"
	"github.com/andi-frame/TeamName-KulkasKu/internal/scanning"
)

const healthStatus = "AI Service is running healthy"

var (
	imageTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/webp": true,
		"image/heic": true,
		"image/heif": true,
	}
	imageTypesDesc = "JPEG, PNG, WebP or HEIC"

	receiptTypes = map[string]bool{
		"image/jpeg":      true,
		"image/jpg":       true,
		"image/png":       true,
		"image/webp":      true,
		"image/heic":      true,
		"image/heif":      true,
		"image/tiff":      true,
		"image/bmp":       true,
		"application/pdf": true,
	}
	receiptTypesDesc = "JPEG, PNG, WebP, HEIC, TIFF, BMP or PDF"
)

type errorResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

type healthResponse struct {
	Status   string         `json:"status"`
	Services healthServices `json:"services"`
}

type healthServices struct {
	VisionAPI       bool `json:"vision_api"`
	GeminiAPI       bool `json:"gemini_api"`
	ReceiptAnalysis bool `json:"receipt_analysis"`
}

type receiptResponse struct {
	Success bool         `json:"success"`
	Data    *receiptData `json:"data"`
	Error   *string      `json:"error"`
}

type receiptData struct {
	Items          []extraction.Item `json:"items"`
	Confidence     float64           `json:"confidence"`
	ProcessingTime string            `json:"processing_time"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	label := "HTTP Error"
	if status == http.StatusInternalServerError {
		label = "Internal Server Error"
	}
	writeJSON(w, status, errorResponse{Error: label, Detail: detail, StatusCode: status})
}

// handleHealth reports which backends are configured
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	availability := s.analyzer.Availability()
	writeJSON(w, http.StatusOK, healthResponse{
		Status: healthStatus,
		Services: healthServices{
			VisionAPI:       availability.Primary,
			GeminiAPI:       availability.Secondary,
			ReceiptAnalysis: availability.Any(),
		},
	})
}

// handleIdentifyItem names the main object in an uploaded photo
func (s *Server) handleIdentifyItem(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.readUpload(w, r, imageTypes, imageTypesDesc)
	if !ok {
		return
	}

	ctx, cancel := s.backendContext(r)
	defer cancel()

	result, err := s.analyzer.IdentifyItem(ctx, data, contentType)
	if err != nil {
		s.writeFlowError(w, r, "identify", err)
		return
	}

	slog.Info("Identification complete",
		"request_id", requestIDFrom(r.Context()),
		"name", result.Name,
		"confidence", result.Confidence,
	)
	writeJSON(w, http.StatusOK, result)
}

// handlePredictItem estimates the condition and shelf life of a food photo
func (s *Server) handlePredictItem(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.readUpload(w, r, imageTypes, imageTypesDesc)
	if !ok {
		return
	}

	ctx, cancel := s.backendContext(r)
	defer cancel()

	result, err := s.analyzer.PredictItem(ctx, data, contentType)
	if err != nil {
		s.writeFlowError(w, r, "predict", err)
		return
	}

	slog.Info("Prediction complete",
		"request_id", requestIDFrom(r.Context()),
		"name", result.ItemName,
		"remaining_days", result.PredictedRemainingDays,
	)
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeReceipt extracts purchased items from a receipt. Analysis
// failures are reported in the body with a 200.
func (s *Server) handleAnalyzeReceipt(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.readUpload(w, r, receiptTypes, receiptTypesDesc)
	if !ok {
		return
	}

	ctx, cancel := s.backendContext(r)
	defer cancel()

	result := s.analyzer.AnalyzeReceipt(ctx, data, contentType)

	if !result.Success {
		slog.Warn("Receipt analysis failed", "request_id", requestIDFrom(r.Context()), "error", result.Error)
		writeJSON(w, http.StatusOK, receiptResponse{Success: false, Error: &result.Error})
		return
	}

	items := result.Items
	if items == nil {
		items = []extraction.Item{}
	}
	slog.Info("Receipt analysis complete",
		"request_id", requestIDFrom(r.Context()),
		"items", len(items),
		"processing_time", result.FormatProcessingTime(),
	)
	writeJSON(w, http.StatusOK, receiptResponse{
		Success: true,
		Data: &receiptData{
			Items:          items,
			Confidence:     result.OverallConfidence,
			ProcessingTime: result.FormatProcessingTime(),
		},
	})
}

// writeFlowError maps an orchestrator error to an HTTP status
func (s *Server) writeFlowError(w http.ResponseWriter, r *http.Request, flow string, err error) {
	status := http.StatusInternalServerError
	detail := err.Error()

	switch {
	case errors.Is(err, scanning.ErrNoLabels):
		status = http.StatusNotFound
		detail = "No object could be identified in the image"
	default:
		switch provider.KindOf(err) {
		case provider.KindInputRejected:
			status = http.StatusBadRequest
			detail = "The uploaded file could not be read as an image"
		case provider.KindUnavailable:
			status = http.StatusServiceUnavailable
			detail = "No AI service is available for this request"
		}
	}

	slog.Error("Request failed",
		"request_id", requestIDFrom(r.Context()),
		"flow", flow,
		"status", status,
		"error", err,
	)
	writeError(w, status, detail)
}

// readUpload reads the multipart "file" field and checks its content type
// against allowed. On failure it writes the error response and returns false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, allowed map[string]bool, allowedDesc string) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Please compress or resize your image.")
			return nil, "", false
		}
		slog.Error("Error parsing multipart form", "request_id", requestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return nil, "", false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return nil, "", false
	}
	defer f.Close()

	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)
	if !allowed[contentType] {
		writeError(w, http.StatusBadRequest, "File must be an image ("+allowedDesc+")")
		return nil, "", false
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "request_id", requestIDFrom(r.Context()), "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return nil, "", false
	}

	slog.Info("Received upload",
		"request_id", requestIDFrom(r.Context()),
		"path", r.URL.Path,
		"filename", header.Filename,
		"content_type", contentType,
		"size", len(data),
	)
	return data, contentType, true
}

// uploadContentType normalises a part's declared media type, falling back to
// the file extension when the client sent none or a generic one.
func uploadContentType(declared, filename string) string {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err == nil && mediaType != "" && mediaType != "application/octet-stream" {
		return strings.ToLower(mediaType)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
