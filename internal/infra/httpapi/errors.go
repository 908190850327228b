package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"omnisearch/internal/domain"
)

// statusClientClosedRequest is the de facto status for a request the client abandoned.
const statusClientClosedRequest = 499

// APIError is the JSON body of every non-2xx response.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	HTTPCode  int               `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) WriteJSON(w http.ResponseWriter) {
	writeJSON(w, e.HTTPCode, e)
}

func badRequest(msg string) *APIError {
	return &APIError{Code: string(domain.CodeInvalidArgument), Message: msg, HTTPCode: http.StatusBadRequest}
}

// apiErrorFrom maps an engine error onto an APIError.
func apiErrorFrom(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	code, ok := domain.CodeFrom(err)
	if !ok {
		code = domain.CodeInternal
	}
	out := &APIError{
		Code:      string(code),
		Message:   err.Error(),
		Retryable: domain.IsRetryable(err),
		HTTPCode:  statusForCode(code),
	}
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && len(domainErr.Meta) > 0 {
		out.Details = domainErr.Meta
	}
	return out
}

func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeFailedPrecond:
		return http.StatusConflict
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case domain.CodeCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	apiErrorFrom(err).WriteJSON(w)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
