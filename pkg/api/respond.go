package api

import (
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/odvcencio/flux/pkg/errors"
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error       string         `json:"error"`
	Status      int            `json:"status"`
	Code        string         `json:"code,omitempty"`
	Message     string         `json:"message"`
	Details     string         `json:"details,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Remediation []string       `json:"remediation,omitempty"`
	Retryable   bool           `json:"retryable,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// respondError sends a structured JSON error response. A zero status is
// derived from the error code.
func respondError(w http.ResponseWriter, status int, err error) {
	if status == 0 {
		status = statusFor(err)
	}

	response := errorResponse{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var fluxErr *apperrors.Error
	if stdliberrors.As(err, &fluxErr) {
		response.Code = string(fluxErr.Code)
		if fluxErr.UserMessage != "" {
			response.Message = fluxErr.UserMessage
		} else if fluxErr.Message != "" {
			response.Message = fluxErr.Message
		}
		if len(fluxErr.Context) > 0 {
			response.Context = fluxErr.Context
		}
		if len(fluxErr.Remediation) > 0 {
			response.Remediation = append([]string{}, fluxErr.Remediation...)
		}
		response.Retryable = fluxErr.Retryable
		response.Details = fluxErr.Error()
	} else if err != nil {
		response.Message = err.Error()
		response.Details = fmt.Sprintf("%v", err)
	}
	response.Error = response.Message

	respondJSON(w, status, response)
}

func statusFor(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodePermissionUnknown:
		return http.StatusBadRequest
	case apperrors.ErrCodeSkillNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeOnboardingIncomplete:
		return http.StatusConflict
	case apperrors.ErrCodeTranscriberUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
