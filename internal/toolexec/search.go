package toolexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ChamsBouzaiene/foreman/internal/patch"
	"github.com/ChamsBouzaiene/foreman/internal/symbols"
)

const (
	maxSearchMatches  = 50
	maxMatchLineChars = 200
	maxRelatedFiles   = 10
)

func (e *Executor) searchFilesTool() Tool {
	return Tool{
		Name: "search_files",
		Description: "Search project file contents. The query is treated as a regular expression " +
			"when it compiles, otherwise as a literal substring. Returns matching lines with file and line number. " +
			"When no line matches, returns relevance-ranked related files instead.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"path": {"type": "string", "description": "Restrict the search to this subtree"}
			},
			"required": ["query"],
			"additionalProperties": false
		}`,
		Fn: func(_ context.Context, args map[string]any, _ string) string {
			query := stringArg(args, "query")
			if strings.TrimSpace(query) == "" {
				return failure("", "query must not be empty")
			}
			scope := stringArg(args, "path")

			matchLine := literalMatcher(query)
			if re, err := regexp.Compile(query); err == nil {
				matchLine = re.MatchString
			}

			files, err := symbols.Walk(e.root)
			if err != nil {
				return failure("", fmt.Sprintf("cannot walk project: %v", err))
			}

			type match struct {
				Path string `json:"path"`
				Line int    `json:"line"`
				Text string `json:"text"`
			}
			var matches []match
			truncated := false
		scan:
			for _, rel := range files {
				if scope != "" && rel != scope && !strings.HasPrefix(rel, strings.TrimSuffix(scope, "/")+"/") {
					continue
				}
				raw, err := os.ReadFile(filepath.Join(e.root, rel))
				if err != nil {
					continue
				}
				for i, line := range strings.Split(string(raw), "\n") {
					if !matchLine(line) {
						continue
					}
					text := strings.TrimSpace(line)
					if len(text) > maxMatchLineChars {
						text = text[:maxMatchLineChars] + "..."
					}
					matches = append(matches, match{Path: rel, Line: i + 1, Text: text})
					if len(matches) >= maxSearchMatches {
						truncated = true
						break scan
					}
				}
			}

			result := map[string]any{
				"status":  "success",
				"query":   query,
				"matches": matches,
			}
			if truncated {
				result["warning"] = fmt.Sprintf("more than %d matches; narrow the query or scope it with path", maxSearchMatches)
			}
			// Natural-language queries rarely hit a single line verbatim.
			// When the line scan comes up empty, fall back to full-text
			// relevance so the agent still learns where to look.
			if len(matches) == 0 && e.index != nil {
				if ranked, err := e.index.RelevantFiles(query, maxRelatedFiles); err == nil && len(ranked) > 0 {
					related := make([]map[string]any, 0, len(ranked))
					for _, r := range ranked {
						related = append(related, map[string]any{"path": r.Path, "score": r.Score})
					}
					result["related_files"] = related
				}
			}
			return jsonResult(result)
		},
	}
}

func literalMatcher(query string) func(string) bool {
	lower := strings.ToLower(query)
	return func(line string) bool {
		return strings.Contains(strings.ToLower(line), lower)
	}
}

func (e *Executor) searchSymbolsTool() Tool {
	return Tool{
		Name:        "search_symbols",
		Description: "Look up function, type and class definitions by name across the project. Exact matches rank first, prefix matches follow.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Symbol name or prefix"}
			},
			"required": ["name"],
			"additionalProperties": false
		}`,
		Fn: func(ctx context.Context, args map[string]any, _ string) string {
			if e.index == nil {
				return failure("", "symbol index is not available")
			}
			name := stringArg(args, "name")
			syms, err := e.index.Lookup(ctx, name, 0)
			if err != nil {
				return failure("", fmt.Sprintf("symbol lookup failed: %v", err))
			}
			out := make([]map[string]any, 0, len(syms))
			for _, s := range syms {
				entry := map[string]any{
					"name": s.Name,
					"kind": s.Kind,
					"path": s.FilePath,
					"line": s.Line,
				}
				if s.Signature != "" {
					entry["signature"] = s.Signature
				}
				out = append(out, entry)
			}
			return jsonResult(map[string]any{"status": "success", "name": name, "symbols": out})
		},
	}
}

func (e *Executor) getFileContextTool() Tool {
	return Tool{
		Name: "get_file_context",
		Description: "Summarize one file's place in the project: its symbols, the files it imports, " +
			"and the files that import it. Use before editing to see what an edit can break.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Project-relative file path"}
			},
			"required": ["path"],
			"additionalProperties": false
		}`,
		Fn: func(ctx context.Context, args map[string]any, _ string) string {
			rel := stringArg(args, "path")
			if err := patch.CheckPath(rel); err != nil {
				return failure(rel, err.Error())
			}
			if _, err := os.Stat(filepath.Join(e.root, rel)); err != nil {
				return failure(rel, "file does not exist")
			}
			if e.index == nil {
				return failure(rel, "symbol index is not available")
			}

			rel = filepath.ToSlash(rel)
			syms, err := e.index.FileSymbols(ctx, rel)
			if err != nil {
				return failure(rel, fmt.Sprintf("cannot read file symbols: %v", err))
			}
			deps, err := e.index.Dependencies(ctx, rel)
			if err != nil {
				return failure(rel, fmt.Sprintf("cannot read dependencies: %v", err))
			}
			dependents, err := e.index.Dependents(ctx, rel)
			if err != nil {
				return failure(rel, fmt.Sprintf("cannot read dependents: %v", err))
			}

			names := make([]map[string]any, 0, len(syms))
			for _, s := range syms {
				names = append(names, map[string]any{"name": s.Name, "kind": s.Kind, "line": s.Line})
			}
			return jsonResult(map[string]any{
				"status":     "success",
				"path":       rel,
				"symbols":    names,
				"imports":    deps,
				"importedBy": dependents,
			})
		},
	}
}
