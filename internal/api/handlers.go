package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/validate"
)

// Public error messages. Internal details are logged, never returned.
const (
	msgSaveFailed    = "Failed to save spec"
	msgHistoryFailed = "Failed to fetch history"
	msgUpdateFailed  = "Failed to update spec"
	msgFetchFailed   = "Failed to fetch spec"
	msgExportFailed  = "Failed to export spec"
	msgNotFound      = "Spec not found"
	msgHealthFailed  = "Failed to check health"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error  string           `json:"error"`
	Issues []validate.Issue `json:"issues,omitempty"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	in, err := h.validator.Generate(body)
	if err != nil {
		h.writeValidation(w, r, err)
		return
	}

	spec, err := h.svc.Generate(r.Context(), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.History(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "history failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgHistoryFailed)
		return
	}
	if list == nil {
		list = []specs.Specification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getSpec(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.loadSpec(w, r, msgFetchFailed)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (h *Handler) markdown(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.loadSpec(w, r, msgFetchFailed)
	if !ok {
		return
	}
	doc, err := h.renderer.Markdown(*spec)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "markdown export failed", "id", spec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgExportFailed)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

func (h *Handler) updateSpec(w http.ResponseWriter, r *http.Request) {
	id, err := h.validator.SpecID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeValidation(w, r, err)
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	payload, err := h.validator.Update(body)
	if err != nil {
		h.writeValidation(w, r, err)
		return
	}

	spec, err := h.svc.Update(r.Context(), id, payload)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, spec)
	case errors.Is(err, specs.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		if _, isValidation := validate.AsError(err); isValidation {
			h.writeValidation(w, r, err)
			return
		}
		h.logger.ErrorContext(r.Context(), "update failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgUpdateFailed)
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(r.Context(), "health check panicked", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "degraded",
				"error":  msgHealthFailed,
			})
		}
	}()

	report := h.svc.Health(r.Context())
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (h *Handler) loadSpec(w http.ResponseWriter, r *http.Request, failMsg string) (*specs.Specification, bool) {
	id, err := h.validator.SpecID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeValidation(w, r, err)
		return nil, false
	}
	spec, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, specs.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get spec failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, failMsg)
		return nil, false
	}
	return spec, true
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  validate.MsgInvalidBody,
			Issues: []validate.Issue{{Message: err.Error()}},
		})
		return nil, false
	}
	return body, true
}

func (h *Handler) writeValidation(w http.ResponseWriter, r *http.Request, err error) {
	ve, ok := validate.AsError(err)
	if !ok {
		h.logger.ErrorContext(r.Context(), "validation internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Issues: ve.Issues})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
