package symbols

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnorePatterns are skipped regardless of .gitignore contents.
var defaultIgnorePatterns = []string{
	".git",
	".foreman",
	"node_modules",
	"dist",
	"build",
	"vendor",
	"__pycache__",
	"coverage",
	"target",
	".idea",
	".vscode",
	".DS_Store",
}

const maxIndexableSize = 1 << 20 // 1 MiB; bigger files are generated assets

// Walk returns all indexable source file paths under root, relative to
// root, honoring the project's .gitignore plus the built-in skip list.
func Walk(root string) ([]string, error) {
	matcher := loadIgnoreMatcher(root)

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if isDefaultIgnored(info.Name()) || (matcher != nil && matcher.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if isDefaultIgnored(info.Name()) || (matcher != nil && matcher.MatchesPath(rel)) {
			return nil
		}
		if info.Size() > maxIndexableSize {
			return nil
		}
		if DetectLanguage(rel) == LangUnknown {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	return files, err
}

func loadIgnoreMatcher(root string) *gitignore.GitIgnore {
	matcher, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return matcher
}

func isDefaultIgnored(name string) bool {
	for _, pattern := range defaultIgnorePatterns {
		if name == pattern {
			return true
		}
	}
	return false
}

// Indexable reports whether a path would be picked up by Walk, used to
// filter watcher events.
func Indexable(rel string) bool {
	if DetectLanguage(rel) == LangUnknown {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if isDefaultIgnored(part) {
			return false
		}
	}
	return true
}
