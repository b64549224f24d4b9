package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the body written for every failed local API call
type ErrorResponse struct {
	Error        bool                   `json:"error"`
	Type         string                 `json:"type"`
	Message      string                 `json:"message"`
	Code         string                 `json:"code,omitempty"`
	RemoteStatus int                    `json:"remoteStatus,omitempty"`
	Retryable    bool                   `json:"retryable"`
	Details      map[string]interface{} `json:"details,omitempty"`
	RequestID    string                 `json:"requestId,omitempty"`
}

// ErrorHandler renders errors coming out of the session as HTTP responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes err to w. Errors that are not AppErrors become INTERNAL
// and only reveal their text in debug mode.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetReqID(r.Context())

	appErr := GetAppError(err)
	if appErr == nil {
		h.logger.Error("Unhandled error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
		)
		resp := ErrorResponse{
			Error:     true,
			Type:      string(ErrorTypeInternal),
			Message:   "An internal error occurred",
			RequestID: requestID,
		}
		if h.debug {
			resp.Message = err.Error()
		}
		h.sendJSON(w, http.StatusInternalServerError, resp)
		return
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	resp := ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		Code:      appErr.Code,
		Retryable: retryable(appErr.Type),
		RequestID: requestID,
	}
	if rs, ok := appErr.Details["remote_status"].(int); ok {
		resp.RemoteStatus = rs
	}
	if h.debug {
		resp.Details = make(map[string]interface{}, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			resp.Details[k] = v
		}
		if appErr.StackTrace != "" {
			resp.Details["stack_trace"] = appErr.StackTrace
		}
	}

	h.logError(r, appErr, status)
	h.sendJSON(w, status, resp)
}

// retryable reports whether repeating the same request may succeed
// without the caller changing anything
func retryable(t ErrorType) bool {
	switch t {
	case ErrorTypeTransport, ErrorTypeTimeout, ErrorTypeUnavailable:
		return true
	}
	return false
}

func (h *ErrorHandler) logError(r *http.Request, err *AppError, status int) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	}
	if err.Code != "" {
		fields = append(fields, zap.String("error_code", err.Code))
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}

	switch {
	case status >= 500:
		h.logger.Error(err.Message, fields...)
	case err.Type == ErrorTypeConflict:
		// Conflicts are an expected collaboration state.
		h.logger.Info(err.Message, fields...)
	default:
		h.logger.Warn(err.Message, fields...)
	}
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
