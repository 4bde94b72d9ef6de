package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ledgerock/drawmatch/internal/common"
	"github.com/ledgerock/drawmatch/internal/engine"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMatchInvoice runs the matching pipeline for one extracted invoice.
func (s *Server) handleMatchInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := mux.Vars(r)["id"]

	outcome, err := s.engine.MatchInvoice(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		slog.Error("Invoice matching failed", "invoice_id", invoiceID, "error", err)
		writeError(w, http.StatusInternalServerError, "matching failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"classification": outcome.Classification,
		"applied":        outcome.Applied,
		"flagged":        outcome.Flagged,
		"drawLineId":     outcome.DrawLineID,
		"category":       outcome.Category,
		"method":         outcome.Method,
		"confidence":     outcome.Confidence,
		"reason":         outcome.Reason,
	})
}

// correctionRequest is the body for a manual match override.
type correctionRequest struct {
	NewLineID string `json:"newLineId"`
	Reason    string `json:"reason"`
	UserID    string `json:"userId"`
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	invoiceID := mux.Vars(r)["id"]

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewLineID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "newLineId and userId are required")
		return
	}

	decision, err := s.engine.RecordCorrection(r.Context(), engine.CorrectionParams{
		InvoiceID: invoiceID,
		NewLineID: req.NewLineID,
		Reason:    req.Reason,
		UserID:    req.UserID,
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "invoice or draw line not found")
			return
		}
		slog.Error("Correction failed", "invoice_id", invoiceID, "error", err)
		writeError(w, http.StatusInternalServerError, "correction failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decisionId":     decision.ID,
		"previousLineId": decision.PreviousLineID,
		"newLineId":      decision.NewLineID,
		"newCategory":    decision.NewCategory,
	})
}

// handleFundDraw marks a draw funded and captures training data as a
// best-effort side effect. A capture failure never fails the funding call.
func (s *Server) handleFundDraw(w http.ResponseWriter, r *http.Request) {
	drawID := mux.Vars(r)["id"]

	if err := s.storage.MarkDrawFunded(r.Context(), drawID, time.Now()); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "draw not found")
			return
		}
		slog.Error("Funding update failed", "draw_id", drawID, "error", err)
		writeError(w, http.StatusInternalServerError, "funding failed")
		return
	}

	response := map[string]any{"funded": true}

	capture, err := s.capturer.CaptureForDraw(r.Context(), drawID)
	if err != nil {
		slog.Error("Training capture failed after funding",
			"draw_id", drawID, "error", err)
	} else {
		response["capture"] = map[string]any{
			"invoicesProcessed":         capture.InvoicesProcessed,
			"trainingRecordsCreated":    capture.TrainingRecordsCreated,
			"vendorAssociationsUpdated": capture.VendorAssociationsUpdated,
			"errors":                    capture.Errors,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleVendorHistory(w http.ResponseWriter, r *http.Request) {
	vendorName := mux.Vars(r)["name"]

	associations, err := s.storage.GetVendorAssociations(r.Context(), vendorName)
	if err != nil {
		slog.Error("Vendor history lookup failed", "vendor", vendorName, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	items := make([]map[string]any, 0, len(associations))
	for _, assoc := range associations {
		items = append(items, map[string]any{
			"vendorName":     assoc.VendorName,
			"budgetCategory": assoc.BudgetCategory,
			"matchCount":     assoc.MatchCount,
			"totalAmount":    assoc.TotalAmount,
			"lastMatchedAt":  assoc.LastMatchedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"associations": items})
}
