package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the body written for failed requests
type ErrorResponse struct {
	Error     bool              `json:"error"`
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
}

// ErrorHandler turns errors into JSON responses and logs them
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates an error handler. In debug mode responses carry
// the cause and the stack trace.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes err as an ErrorResponse. Errors that are not AppErrors are
// reported as internal without exposing their text outside debug mode.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	appErr := GetAppError(err)
	if appErr == nil {
		appErr = &AppError{
			Type:       ErrorTypeInternal,
			Message:    "An internal error occurred",
			Cause:      err,
			HTTPStatus: http.StatusInternalServerError,
		}
	}
	status := StatusOf(appErr)

	response := h.newResponse(r, appErr.Type, appErr.Message)
	if h.debug {
		response.Details = map[string]string{}
		if appErr.Cause != nil {
			response.Details["cause"] = appErr.Cause.Error()
		}
		if appErr.StackTrace != "" {
			response.Details["stack_trace"] = appErr.StackTrace
		}
	}

	fields := []zap.Field{
		zap.String("error_type", string(appErr.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", response.RequestID),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(appErr.Message, fields...)
	} else {
		h.logger.Warn(appErr.Message, fields...)
	}

	h.sendJSON(w, status, response)
}

// HandleStatus writes an error response for a bare status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)

	h.sendJSON(w, status, h.newResponse(r, typeOf(status), message))
}

func (h *ErrorHandler) newResponse(r *http.Request, errType ErrorType, message string) ErrorResponse {
	return ErrorResponse{
		Error:     true,
		Type:      string(errType),
		Message:   message,
		RequestID: requestIDFrom(r),
		TraceID:   r.Header.Get("X-Amzn-Trace-Id"),
	}
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// requestIDFrom prefers the ID assigned by the RequestID middleware
func requestIDFrom(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
