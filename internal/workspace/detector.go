// Package workspace inspects a generated project directory to figure out
// what kind of project it is and which commands build and test it.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// ProjectType classifies a project by its dominant toolchain.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeRust    ProjectType = "rust"
	ProjectTypeUnknown ProjectType = "unknown"
)

// manifests maps marker files to project types, checked in order.
var manifests = []struct {
	file string
	typ  ProjectType
}{
	{"go.mod", ProjectTypeGo},
	{"package.json", ProjectTypeNode},
	{"pyproject.toml", ProjectTypePython},
	{"requirements.txt", ProjectTypePython},
	{"Cargo.toml", ProjectTypeRust},
}

// extensions maps source file extensions to project types for the fallback
// scan when no manifest is present.
var extensions = map[string]ProjectType{
	".go":  ProjectTypeGo,
	".ts":  ProjectTypeNode,
	".tsx": ProjectTypeNode,
	".js":  ProjectTypeNode,
	".jsx": ProjectTypeNode,
	".py":  ProjectTypePython,
	".rs":  ProjectTypeRust,
}

// minFallbackFiles is the threshold below which the extension scan is
// considered inconclusive.
const minFallbackFiles = 3

// DetectProjectType detects the project type, preferring manifest files
// over a source-extension scan of the root directory.
func DetectProjectType(root string) ProjectType {
	for _, m := range manifests {
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil {
			return m.typ
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return ProjectTypeUnknown
	}

	counts := make(map[ProjectType]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if typ, ok := extensions[ext]; ok {
			counts[typ]++
		}
	}

	best := ProjectTypeUnknown
	bestCount := 0
	for _, typ := range []ProjectType{ProjectTypeGo, ProjectTypeNode, ProjectTypePython, ProjectTypeRust} {
		if counts[typ] > bestCount {
			best, bestCount = typ, counts[typ]
		}
	}
	if bestCount < minFallbackFiles {
		return ProjectTypeUnknown
	}
	return best
}

// BuildCommand returns the build command for a project type, or an empty
// name when the toolchain has no build step.
func BuildCommand(projectType ProjectType) (string, []string) {
	switch projectType {
	case ProjectTypeGo:
		return "go", []string{"build", "./..."}
	case ProjectTypeNode:
		return "npm", []string{"run", "build"}
	case ProjectTypeRust:
		return "cargo", []string{"build"}
	default:
		return "", nil
	}
}

// TestCommand returns the test command for a project type.
func TestCommand(projectType ProjectType) (string, []string) {
	switch projectType {
	case ProjectTypeGo:
		return "go", []string{"test", "./..."}
	case ProjectTypeNode:
		return "npm", []string{"test"}
	case ProjectTypePython:
		return "pytest", nil
	case ProjectTypeRust:
		return "cargo", []string{"test"}
	default:
		return "", nil
	}
}

// LintCommand returns the lint command for a project type.
func LintCommand(projectType ProjectType) (string, []string) {
	switch projectType {
	case ProjectTypeGo:
		return "gofmt", []string{"-l", "."}
	case ProjectTypeNode:
		return "npm", []string{"run", "lint"}
	case ProjectTypePython:
		return "ruff", []string{"check", "."}
	case ProjectTypeRust:
		return "cargo", []string{"clippy", "--", "-D", "warnings"}
	default:
		return "", nil
	}
}
