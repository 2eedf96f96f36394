package providers

import (
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"
)

// extractErrorMetadata pulls the HTTP status and Retry-After value out of a
// provider SDK error. Structured SDK error types are preferred; when the SDK
// only surfaces a string we fall back to sniffing the message.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	var anthropicReqErr *anthropic.RequestError
	if errors.As(err, &anthropicReqErr) {
		return anthropicReqErr.StatusCode, ""
	}

	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return openaiErr.HTTPStatusCode, ""
	}

	errStr := err.Error()
	var httpStatus int
	var retryAfter string

	// Common patterns: "429", "status code 429", "HTTP 429", etc.
	switch {
	case strings.Contains(errStr, "429"):
		httpStatus = http.StatusTooManyRequests
	case strings.Contains(errStr, "500"):
		httpStatus = http.StatusInternalServerError
	case strings.Contains(errStr, "502"):
		httpStatus = http.StatusBadGateway
	case strings.Contains(errStr, "503"):
		httpStatus = http.StatusServiceUnavailable
	case strings.Contains(errStr, "504"):
		httpStatus = http.StatusGatewayTimeout
	case strings.Contains(errStr, "413"):
		httpStatus = http.StatusRequestEntityTooLarge
	case strings.Contains(errStr, "408"):
		httpStatus = http.StatusRequestTimeout
	case strings.Contains(errStr, "401"):
		httpStatus = http.StatusUnauthorized
	case strings.Contains(errStr, "403"):
		httpStatus = http.StatusForbidden
	case strings.Contains(errStr, "400"):
		httpStatus = http.StatusBadRequest
	}

	// Common patterns: "Retry-After: 60", "retry after 60", etc.
	lower := strings.ToLower(errStr)
	if idx := strings.Index(lower, "retry-after"); idx != -1 {
		remaining := errStr[idx+len("retry-after"):]
		parts := strings.Fields(strings.TrimLeft(remaining, ": "))
		if len(parts) > 0 {
			retryAfter = parts[0]
		}
	} else if idx := strings.Index(lower, "retry after"); idx != -1 {
		remaining := errStr[idx+len("retry after"):]
		parts := strings.Fields(remaining)
		if len(parts) > 0 {
			retryAfter = parts[0]
		}
	}

	return httpStatus, retryAfter
}
