package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeAnalyzeRequest accepts either a request object ({"signals": [...],
// "settings": {...}, "feedback": [...]}) or a bare signal array. The result is
// not validated.
func DecodeAnalyzeRequest(data []byte) (AnalyzeRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return AnalyzeRequest{}, fmt.Errorf("schema: empty signals document")
	}
	var req AnalyzeRequest
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Signals); err != nil {
			return AnalyzeRequest{}, fmt.Errorf("schema: decode signals: %w", err)
		}
		return req, nil
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return AnalyzeRequest{}, fmt.Errorf("schema: decode request: %w", err)
	}
	return req, nil
}
