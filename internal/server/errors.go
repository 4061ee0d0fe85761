package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// errorBody is the JSON error envelope:
// {"detail":{"error":{"code":"...","message":"..."}}}.
type errorBody struct {
	Detail struct {
		Error struct {
			Code    schema.ErrorCode `json:"code"`
			Message string           `json:"message"`
		} `json:"error"`
	} `json:"detail"`
}

// statusFor maps an error code onto an HTTP status.
func statusFor(code schema.ErrorCode) int {
	switch code {
	case schema.CodeModelTimeout:
		return http.StatusGatewayTimeout
	case schema.CodeModelOutputInvalid, schema.CodeEnsembleFailed, schema.CodeEnsembleRunFailed,
		schema.CodeInsufficientResults, schema.CodeEmptyReasoningCards:
		return http.StatusBadGateway
	case schema.CodeInvalidRequest:
		return http.StatusUnprocessableEntity
	case schema.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the caller-facing message for err.
func publicMessage(code schema.ErrorCode, err error) string {
	switch code {
	case schema.CodeModelTimeout:
		return "Model request timed out. Try again."
	case schema.CodeModelOutputInvalid:
		return "Model output did not match required JSON schema."
	case schema.CodeAPIKeyMissing:
		return schema.ErrAPIKeyMissing.Message
	}
	var e *schema.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Unexpected error during analysis: " + err.Error()
}

// fail writes the error envelope and records the failed request.
func (s *Server) fail(c *gin.Context, endpoint string, err error) {
	code := schema.CodeOf(err)
	if code == "" {
		code = schema.CodeInternal
	}
	status := statusFor(code)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request.Context(), level, "request failed",
		slog.String("endpoint", endpoint),
		slog.String("code", string(code)),
		slog.Int("status", status),
		slog.String("error", err.Error()))
	s.record(endpoint, code)

	var body errorBody
	body.Detail.Error.Code = code
	body.Detail.Error.Message = publicMessage(code, err)
	c.AbortWithStatusJSON(status, body)
}
