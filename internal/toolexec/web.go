package toolexec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxFetchBytes = 256 * 1024

func (e *Executor) fetchURLTool() Tool {
	return Tool{
		Name:        "fetch_url",
		Description: "Fetch a documentation page or API reference over HTTP(S). Returns the body as text, capped in size.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "http:// or https:// URL"}
			},
			"required": ["url"],
			"additionalProperties": false
		}`,
		Fn: func(ctx context.Context, args map[string]any, _ string) string {
			url := stringArg(args, "url")
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				return failure("", "url must start with http:// or https://")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return failure("", fmt.Sprintf("invalid url: %v", err))
			}
			req.Header.Set("Accept", "text/html, text/plain, application/json")

			resp, err := e.http.Do(req)
			if err != nil {
				return failure("", fmt.Sprintf("request failed: %v", err))
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
			if err != nil {
				return failure("", fmt.Sprintf("cannot read response body: %v", err))
			}
			truncated := len(body) > maxFetchBytes
			if truncated {
				body = body[:maxFetchBytes]
			}

			result := map[string]any{
				"status":      "success",
				"url":         url,
				"http_status": resp.StatusCode,
				"body":        string(body),
			}
			if resp.StatusCode >= 400 {
				result["status"] = "failed"
				result["error"] = fmt.Sprintf("server returned %s", resp.Status)
			}
			if truncated {
				result["warning"] = fmt.Sprintf("body truncated to %d bytes", maxFetchBytes)
			}
			return jsonResult(result)
		},
	}
}
