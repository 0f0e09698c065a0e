package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"plant-market/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// StatusForError maps a domain error to its HTTP status
func StatusForError(err error) int {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		stock      *domain.InsufficientStockError
		authz      *domain.AuthorizationError
		transition *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &stock), errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &authz):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// RespondWithDomainError answers with the status and message for err.
// Storage failures are reported generically; their cause is only included
// when exposeDetail is set.
func RespondWithDomainError(w http.ResponseWriter, err error, exposeDetail bool) {
	status := StatusForError(err)
	details := map[string]interface{}{}

	var (
		validation *domain.ValidationError
		stock      *domain.InsufficientStockError
		transition *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validation):
		details["field"] = validation.Field
	case errors.As(err, &stock):
		details["product_id"] = stock.ProductID
		details["available"] = stock.Available
		details["requested"] = stock.Requested
	case errors.As(err, &transition):
		details["from"] = transition.From
		details["to"] = transition.To
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
		if exposeDetail {
			details["error"] = err.Error()
		}
	}

	if len(details) == 0 {
		details = nil
	}
	RespondWithErrorDetails(w, status, message, details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
