package llm

import (
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go"
	"google.golang.org/api/googleapi"
)

// isModelNotFound reports whether err means the requested model does not
// exist for this key. Typed SDK errors are checked first; the message check
// covers transports that only surface text.
func isModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound {
		return true
	}
	var oe *openai.Error
	if errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound {
		return true
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "404") &&
		(strings.Contains(strings.ToLower(msg), "not found") || strings.Contains(msg, "NOT_FOUND"))
}
