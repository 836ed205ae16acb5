package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/veripay/internal/receipt"
	"github.com/zombor/veripay/internal/reconcile"
)

// maxUploadSize bounds receipt photos and statement uploads.
const maxUploadSize = int64(50 << 20)

// Capture outcomes reported to callers.
const (
	OutcomeRecorded          = "Recorded"
	OutcomePartialExtraction = "PartialExtraction"
	OutcomeNoAmountFound     = "NoAmountFound"
	OutcomeIDExhausted       = "IdGenerationExhausted"
)

// captureResponse is the body of every capture reply.
type captureResponse struct {
	Outcome string          `json:"outcome"`
	Message string          `json:"message"`
	Record  *receipt.Record `json:"record,omitempty"`
}

// reconcileResponse summarizes the outcome of a single period.
type reconcileResponse struct {
	reconcile.Result
	NeedsReview bool `json:"needs_review"`
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeCapture turns a capture result into the reply the operator sees.
func writeCapture(w http.ResponseWriter, record *receipt.Record, err error) {
	switch {
	case errors.Is(err, receipt.ErrNoAmountFound):
		writeJSON(w, http.StatusUnprocessableEntity, captureResponse{
			Outcome: OutcomeNoAmountFound,
			Message: "No amount could be read. Please retake the photo.",
		})
	case errors.Is(err, receipt.ErrIDGenerationExhausted):
		writeJSON(w, http.StatusServiceUnavailable, captureResponse{
			Outcome: OutcomeIDExhausted,
			Message: "Could not allocate a record id. Please try again.",
		})
	case errors.Is(err, receipt.ErrNoScanner):
		jsonError(w, "Image capture is not configured", http.StatusNotImplemented)
	case err != nil:
		jsonError(w, "Error capturing receipt", http.StatusInternalServerError)
	case record.Partial():
		writeJSON(w, http.StatusCreated, captureResponse{
			Outcome: OutcomePartialExtraction,
			Message: "Recorded, but some details are unknown: " + strings.Join(record.Missing, ", "),
			Record:  record,
		})
	default:
		writeJSON(w, http.StatusCreated, captureResponse{
			Outcome: OutcomeRecorded,
			Message: "Recorded",
			Record:  record,
		})
	}
}

// handleCaptureImage handles a receipt photo upload
func (s *Server) handleCaptureImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was selected. Please choose a receipt photo.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	record, err := s.receipts.CaptureImage(
		header.Filename,
		data,
		contentTypeOf(header.Filename, header.Header.Get("Content-Type")),
		r.FormValue("bank"),
		s.operator(r, r.FormValue("captured_by")),
	)
	if err != nil && !errors.Is(err, receipt.ErrNoAmountFound) {
		slog.Error("Error capturing receipt", "filename", header.Filename, "error", err)
	}
	writeCapture(w, record, err)
}

// contentTypeOf falls back to the file extension for phone uploads that
// omit a content type.
func contentTypeOf(filename, given string) string {
	if given = strings.ToLower(strings.TrimSpace(given)); given != "" && given != "application/octet-stream" {
		return given
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return ""
}

// handleCaptureText captures a receipt from recognized text
func (s *Server) handleCaptureText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string `json:"text"`
		Bank       string `json:"bank"`
		CapturedBy string `json:"captured_by"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.receipts.CaptureText(req.Text, req.Bank, s.operator(r, req.CapturedBy))
	writeCapture(w, record, err)
}

// handleListRecords returns all captured records
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.receipts.ListRecords()
	if err != nil {
		slog.Error("Error listing records", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*receipt.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetRecord returns a single record
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.receipts.GetRecord(r.PathValue("id"))
	if errors.Is(err, receipt.ErrNotFound) {
		corsError(w, "Record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting record", "id", r.PathValue("id"), "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleGetEvidence returns the archived photo of a record
func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	data, err := s.receipts.GetEvidence(r.PathValue("id"))
	if errors.Is(err, receipt.ErrNotFound) || errors.Is(err, receipt.ErrNoEvidence) {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting evidence", "id", r.PathValue("id"), "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

// handleUploadStatement stores statement text. The text comes either as a
// JSON body or as a multipart "file" field.
func (s *Server) handleUploadStatement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string `json:"text"`
		Bank       string `json:"bank"`
		UploadedBy string `json:"uploaded_by"`
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		f, _, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "No statement file provided", http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}
		req.Text = string(data)
		req.Bank = r.FormValue("bank")
		req.UploadedBy = r.FormValue("uploaded_by")
	} else if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := s.reconciler.IngestStatement(req.Text, req.Bank, s.operator(r, req.UploadedBy))
	if errors.Is(err, reconcile.ErrEmptyStatement) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("Error ingesting statement", "error", err)
		jsonError(w, "Error storing statement", http.StatusInternalServerError)
		return
	}

	code := http.StatusOK
	if summary.Created {
		code = http.StatusCreated
	}
	writeJSON(w, code, summary)
}

// handleListStatements returns all stored statements
func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	statements, err := s.reconciler.ListStatements()
	if err != nil {
		slog.Error("Error listing statements", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if statements == nil {
		statements = []*reconcile.Statement{}
	}
	writeJSON(w, http.StatusOK, statements)
}

// handleReconcile reconciles either one period or every period of a
// stored statement.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PeriodStart string `json:"period_start"`
		StatementID string `json:"statement_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.StatementID != "" {
		report, err := s.reconciler.ReconcileStatement(r.Context(), req.StatementID)
		if errors.Is(err, reconcile.ErrStatementNotFound) {
			jsonError(w, "Statement not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("Error reconciling statement", "statement_id", req.StatementID, "error", err)
			jsonError(w, "Error reconciling statement", http.StatusInternalServerError)
			return
		}
		results := make([]reconcileResponse, len(report.Results))
		for i, res := range report.Results {
			results[i] = review(res)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"statement_id": report.StatementID,
			"results":      results,
			"undated":      report.Undated,
		})
		return
	}

	start, err := time.Parse(receipt.DateLayout, req.PeriodStart)
	if err != nil {
		jsonError(w, "period_start must be a date like 2025-09-01, or give statement_id", http.StatusBadRequest)
		return
	}
	res, err := s.reconciler.ReconcilePeriod(r.Context(), start)
	if err != nil {
		slog.Error("Error reconciling period", "period_start", req.PeriodStart, "error", err)
		jsonError(w, "Error reconciling period", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, review(res))
}

// review flags results a person has to look at.
func review(res reconcile.Result) reconcileResponse {
	return reconcileResponse{
		Result:      res,
		NeedsReview: len(res.Ambiguous) > 0 || len(res.Unmatched) > 0,
	}
}
