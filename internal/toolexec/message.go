package toolexec

import (
	"context"
	"fmt"
	"strings"
)

func (e *Executor) postMessageTool() Tool {
	return Tool{
		Name: "post_message",
		Description: "Post a note to the shared project log for the other agents and the operator. " +
			"Use for decisions, blockers and anything a later phase needs to know.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "The note to post"}
			},
			"required": ["text"],
			"additionalProperties": false
		}`,
		Fn: func(_ context.Context, args map[string]any, callerRole string) string {
			text := strings.TrimSpace(stringArg(args, "text"))
			if text == "" {
				return failure("", "text must not be empty")
			}
			if e.store == nil {
				return failure("", "project state is not available")
			}
			if callerRole == "" {
				callerRole = "unknown"
			}
			if err := e.store.PostMessage(callerRole, text); err != nil {
				return failure("", fmt.Sprintf("cannot post message: %v", err))
			}
			return jsonResult(map[string]any{
				"status": "success",
				"from":   callerRole,
			})
		},
	}
}
