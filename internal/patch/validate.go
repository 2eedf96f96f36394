package patch

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ForbiddenPaths are locations inside the generated project that editing
// tools must never touch.
var ForbiddenPaths = []string{
	".env",
	".env.*",
	".git",
	".foreman",
	"node_modules",
	"dist",
	"venv",
	".venv",
	"__pycache__",
	".DS_Store",
}

// CheckPath validates a project-relative path for an editing tool. It
// rejects absolute paths, traversal outside the project root, and paths
// under the forbidden list.
func CheckPath(path string) error {
	if path == "" {
		return fmt.Errorf("path must not be empty")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("path %s is absolute, must be relative to the project root", path)
	}

	normalized := filepath.ToSlash(filepath.Clean(path))
	if normalized == ".." || strings.HasPrefix(normalized, "../") {
		return fmt.Errorf("path %s escapes the project root", path)
	}

	lower := strings.ToLower(normalized)
	for _, forbidden := range ForbiddenPaths {
		fl := strings.ToLower(forbidden)
		if strings.HasSuffix(fl, "*") {
			prefix := strings.TrimSuffix(fl, "*")
			for _, part := range strings.Split(lower, "/") {
				if strings.HasPrefix(part, prefix) {
					return fmt.Errorf("path %s matches forbidden pattern %s", path, forbidden)
				}
			}
			continue
		}
		for _, part := range strings.Split(lower, "/") {
			if part == fl {
				return fmt.Errorf("path %s touches forbidden location %s", path, forbidden)
			}
		}
	}
	return nil
}
