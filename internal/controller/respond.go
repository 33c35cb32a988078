package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Detail any    `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

// WriteError maps err to a status code and error body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("path", r.URL.Path).Str("code", body.Code).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, ErrorResponse) {
	var (
		validationErr  *appErrors.ValidationError
		persistenceErr *appErrors.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "VALIDATION_ERROR", Detail: validationErr.Fields}
	case errors.Is(err, appErrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"}
	case errors.Is(err, appErrors.ErrNoRecipients):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NO_RECIPIENTS"}
	case errors.Is(err, appErrors.ErrAlreadySent):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "ALREADY_SENT"}
	case errors.Is(err, appErrors.ErrDispatchInProgress):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "DISPATCH_IN_PROGRESS"}
	case errors.Is(err, appErrors.ErrConflict):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "CONFLICT"}
	case errors.Is(err, appErrors.ErrDispatchAborted):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "DISPATCH_ABORTED"}
	case errors.As(err, &persistenceErr):
		resp := ErrorResponse{Error: "deliveries were attempted but the campaign status could not be saved", Code: "DISPATCH_NOT_RECORDED"}
		if report, ok := persistenceErr.Report.(*model.DispatchReport); ok {
			resp.Detail = map[string]any{
				"run_id":    report.RunID,
				"delivered": report.Delivered,
				"failed":    report.Failed,
			}
		}
		return http.StatusInternalServerError, resp
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
	}
}

// parseID reads a positive integer path parameter.
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.NewValidationError(name, name+" must be a positive integer")
	}
	return id, nil
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.NewValidationError("body", "invalid JSON body: "+err.Error())
	}
	return nil
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
