package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/embedfixer/embedfixer/internal/embed"
	apperrors "github.com/embedfixer/embedfixer/internal/errors"
	"github.com/embedfixer/embedfixer/internal/fixer"
)

// maxBodyBytes bounds request bodies; a pasted link or token is far smaller
const maxBodyBytes = 16 * 1024

// Handlers provides the HTTP handlers for link recognition
type Handlers struct {
	fixer *fixer.Fixer
}

// NewHandlers creates a new Handlers instance
func NewHandlers(f *fixer.Fixer) *Handlers {
	return &Handlers{fixer: f}
}

// RecognizeRequest is the request body for POST /api/v1/recognize
type RecognizeRequest struct {
	URL string `json:"url"`
}

// PlatformsResponse lists the supported platforms in matching order
type PlatformsResponse struct {
	Platforms []embed.Platform `json:"platforms"`
}

// ReportRequest is the request body for POST /api/v1/report
type ReportRequest struct {
	ReportToken string `json:"report_token"`
}

// ReportResponse carries the rendered report and its full text
type ReportResponse struct {
	embed.Report
	Text string `json:"text"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.BadRequest("request body too large")
		}
		return apperrors.BadRequest("invalid JSON body")
	}
	return nil
}

// Recognize handles POST /api/v1/recognize
func (h *Handlers) Recognize(w http.ResponseWriter, r *http.Request) error {
	var req RecognizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	return h.recognize(w, r, req.URL)
}

// RecognizeQuery handles GET /api/v1/recognize?url=...
func (h *Handlers) RecognizeQuery(w http.ResponseWriter, r *http.Request) error {
	return h.recognize(w, r, r.URL.Query().Get("url"))
}

func (h *Handlers) recognize(w http.ResponseWriter, r *http.Request, rawURL string) error {
	fixed, err := h.fixer.Fix(rawURL)
	if err != nil {
		return err
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, fixed)
	return nil
}

// Platforms handles GET /api/v1/platforms
func (h *Handlers) Platforms(w http.ResponseWriter, r *http.Request) error {
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, PlatformsResponse{
		Platforms: h.fixer.Platforms(),
	})
	return nil
}

// Report handles POST /api/v1/report
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) error {
	var req ReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	rep, err := h.fixer.Report(req.ReportToken)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, ReportResponse{
		Report: rep,
		Text:   rep.String(),
	})
	return nil
}
