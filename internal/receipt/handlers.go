package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/receipt-clerk/internal/expense"
)

// maxUploadSize fits high-resolution phone photos
const maxUploadSize = int64(50 << 20)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError maps service errors to status codes
func writeServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSyncDisabled):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("Error "+action, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// contentTypeFor picks the upload content type, falling back to the extension
func contentTypeFor(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
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
	default:
		return "application/octet-stream"
	}
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)

	receipt, issues, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if issues == nil {
		issues = []string{}
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"receipt": receipt,
		"issues":  issues,
	})
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		writeServiceError(w, "listing receipts", err)
		return
	}
	if receipts == nil {
		receipts = []*expense.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "getting receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the original image for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "getting receipt file", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) handleReceiptIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.service.ValidateReceipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "validating receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"issues": issues})
}

func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.VerifyReceipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "verifying receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleConfirmItem sets the confirmed name of one item
func (s *Server) handleConfirmItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, "Item index must be a number", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	receipt, err := s.service.ConfirmItemName(r.PathValue("id"), index, req.Name)
	if err != nil {
		writeServiceError(w, "confirming item name", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		writeServiceError(w, "deleting receipt", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	corrections, err := s.service.ListCorrections()
	if err != nil {
		writeServiceError(w, "listing corrections", err)
		return
	}
	if corrections == nil {
		corrections = []*expense.Correction{}
	}
	writeJSON(w, http.StatusOK, corrections)
}

func (s *Server) handleAddCorrection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawName     string `json:"raw_name"`
		Store       string `json:"store"`
		ProductName string `json:"product_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	correction, err := s.service.AddCorrection(req.RawName, req.Store, req.ProductName)
	if err != nil {
		writeServiceError(w, "adding correction", err)
		return
	}
	writeJSON(w, http.StatusCreated, correction)
}

func (s *Server) handleDeleteCorrection(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if err := s.service.DeleteCorrection(query.Get("raw_name"), query.Get("store")); err != nil {
		writeServiceError(w, "deleting correction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.MonthlySummary(r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, "building monthly report", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSpentReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	spending, err := s.service.SpentOn(query.Get("product"), query.Get("month"))
	if err != nil {
		writeServiceError(w, "building spending report", err)
		return
	}
	writeJSON(w, http.StatusOK, spending)
}

func (s *Server) handleRangeReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := s.service.RangeReport(query.Get("start"), query.Get("end"))
	if err != nil {
		writeServiceError(w, "building range report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSync pushes verified receipts to the spreadsheet
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.SyncVerified(r.Context())
	if err != nil {
		writeServiceError(w, "syncing receipts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": count})
}
