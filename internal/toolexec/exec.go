package toolexec

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	maxCommandTimeout = 5 * time.Minute
	maxOutputChars    = 20_000
)

// blockedCommands are never run regardless of sandboxing. Agents have the
// file tools for everything these would be abused for.
var blockedCommands = []string{
	"rm -rf /",
	"sudo ",
	"shutdown",
	"reboot",
	"mkfs",
	"dd if=",
	":(){",
}

func (e *Executor) runCommandTool() Tool {
	return Tool{
		Name: "run_command",
		Description: "Run a shell command inside the project directory (sandboxed when Docker is available). " +
			"Use for builds, tests and linters. Output is truncated when very long.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Shell command line, e.g. 'go test ./...'"},
				"timeout_seconds": {"type": "number", "minimum": 1, "maximum": 300}
			},
			"required": ["command"],
			"additionalProperties": false
		}`,
		Fn: func(ctx context.Context, args map[string]any, _ string) string {
			command := strings.TrimSpace(stringArg(args, "command"))
			if command == "" {
				return failure("", "command must not be empty")
			}
			lower := strings.ToLower(command)
			for _, bad := range blockedCommands {
				if strings.Contains(lower, bad) {
					return failure("", fmt.Sprintf("command rejected: contains %q", strings.TrimSpace(bad)))
				}
			}

			timeout := time.Duration(numArg(args, "timeout_seconds")) * time.Second
			if timeout > maxCommandTimeout {
				timeout = maxCommandTimeout
			}

			res, err := e.runner.RunCmd(ctx, e.root, "sh", []string{"-c", command}, timeout)
			if err != nil {
				return failure("", fmt.Sprintf("cannot run command: %v", err))
			}

			result := map[string]any{
				"status":    "success",
				"exit_code": res.Code,
				"stdout":    clip(res.Stdout),
				"stderr":    clip(res.Stderr),
			}
			if res.Code != 0 {
				result["status"] = "failed"
			}
			if res.TimedOut {
				result["status"] = "failed"
				result["error"] = "command timed out"
			}
			return jsonResult(result)
		},
	}
}

func clip(s string) string {
	if len(s) <= maxOutputChars {
		return s
	}
	return s[:maxOutputChars] + fmt.Sprintf("\n... (%d more characters truncated)", len(s)-maxOutputChars)
}
