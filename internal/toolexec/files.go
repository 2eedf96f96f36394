package toolexec

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/foreman/internal/patch"
	"github.com/ChamsBouzaiene/foreman/internal/symbols"
)

const (
	// Files up to this many lines come back whole.
	fullReadLines = 200
	// Between fullReadLines and this, the content still comes back but
	// with a nudge to prefer targeted edits.
	warnReadLines = 400

	maxWriteBytes = 512 * 1024
)

func (e *Executor) readFileTool() Tool {
	return Tool{
		Name: "read_file",
		Description: "Read a file from the project. Small files return full content. " +
			"Large files return a symbol outline instead; read them in pieces via search or context tools.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Project-relative file path"}
			},
			"required": ["path"],
			"additionalProperties": false
		}`,
		Fn: func(_ context.Context, args map[string]any, _ string) string {
			rel := stringArg(args, "path")
			if err := patch.CheckPath(rel); err != nil {
				return failure(rel, err.Error())
			}
			raw, err := os.ReadFile(filepath.Join(e.root, rel))
			if err != nil {
				if os.IsNotExist(err) {
					return failure(rel, "file does not exist")
				}
				return failure(rel, fmt.Sprintf("cannot read file: %v", err))
			}
			content := string(raw)
			lines := strings.Count(content, "\n") + 1

			switch {
			case lines <= fullReadLines:
				return jsonResult(map[string]any{
					"status":  "success",
					"path":    rel,
					"lines":   lines,
					"content": content,
				})
			case lines <= warnReadLines:
				return jsonResult(map[string]any{
					"status":  "success",
					"path":    rel,
					"lines":   lines,
					"content": content,
					"warning": fmt.Sprintf("large file (%d lines); prefer replace_in_file with small blocks over rewriting it", lines),
				})
			default:
				return jsonResult(map[string]any{
					"status":  "success",
					"path":    rel,
					"lines":   lines,
					"mode":    "outline",
					"outline": outlineFor(rel, content),
					"warning": fmt.Sprintf("file too large to return whole (%d lines); outline shown, use search_files or get_file_context for details", lines),
				})
			}
		},
	}
}

// outlineFor renders a compact symbol outline for files too large to inline.
func outlineFor(rel, content string) []map[string]any {
	syms := symbols.ExtractSymbols(rel, content)
	out := make([]map[string]any, 0, len(syms))
	for _, s := range syms {
		entry := map[string]any{"name": s.Name, "kind": s.Kind, "line": s.Line}
		if s.Signature != "" {
			entry["signature"] = s.Signature
		}
		out = append(out, entry)
	}
	return out
}

func (e *Executor) listFilesTool() Tool {
	return Tool{
		Name:        "list_files",
		Description: "List files in a project directory. Defaults to the project root; set recursive to walk the whole subtree (ignored and generated directories are skipped).",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Project-relative directory, defaults to the root"},
				"recursive": {"type": "boolean"}
			},
			"additionalProperties": false
		}`,
		Fn: func(_ context.Context, args map[string]any, _ string) string {
			rel := stringArg(args, "path")
			if rel != "" && rel != "." {
				if err := patch.CheckPath(rel); err != nil {
					return failure(rel, err.Error())
				}
			}
			dir := filepath.Join(e.root, rel)

			if boolArg(args, "recursive") {
				all, err := symbols.Walk(e.root)
				if err != nil {
					return failure(rel, fmt.Sprintf("cannot walk project: %v", err))
				}
				prefix := filepath.ToSlash(filepath.Clean(rel))
				var files []string
				for _, p := range all {
					if prefix == "." || prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/") {
						files = append(files, p)
					}
				}
				sort.Strings(files)
				return jsonResult(map[string]any{"status": "success", "path": rel, "files": files})
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				if os.IsNotExist(err) {
					return failure(rel, "directory does not exist")
				}
				return failure(rel, fmt.Sprintf("cannot list directory: %v", err))
			}
			var files, dirs []string
			for _, ent := range entries {
				if strings.HasPrefix(ent.Name(), ".") {
					continue
				}
				if ent.IsDir() {
					dirs = append(dirs, ent.Name()+"/")
				} else {
					files = append(files, ent.Name())
				}
			}
			sort.Strings(dirs)
			sort.Strings(files)
			return jsonResult(map[string]any{"status": "success", "path": rel, "dirs": dirs, "files": files})
		},
	}
}

func (e *Executor) writeFileTool() Tool {
	return Tool{
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content. Parent directories are created as needed. The file is re-indexed after writing.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Project-relative file path"},
				"content": {"type": "string"}
			},
			"required": ["path", "content"],
			"additionalProperties": false
		}`,
		Fn: func(ctx context.Context, args map[string]any, _ string) string {
			rel := stringArg(args, "path")
			content := stringArg(args, "content")
			if err := patch.CheckPath(rel); err != nil {
				return failure(rel, err.Error())
			}
			if len(content) > maxWriteBytes {
				return failure(rel, fmt.Sprintf("content too large (%d bytes, limit %d); split the file or write it incrementally", len(content), maxWriteBytes))
			}

			abs := filepath.Join(e.root, rel)
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return failure(rel, fmt.Sprintf("cannot create parent directory: %v", err))
			}
			if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
				return failure(rel, fmt.Sprintf("cannot write file: %v", err))
			}

			result := map[string]any{
				"status": "success",
				"path":   rel,
				"bytes":  len(content),
			}
			if warn := syntaxWarning(rel, content); warn != "" {
				result["warning"] = warn
			}
			e.reindex(ctx, rel)
			return jsonResult(result)
		},
	}
}

func (e *Executor) replaceInFileTool() Tool {
	return Tool{
		Name: "replace_in_file",
		Description: "Replace an exact block of text in a file. The old block must match exactly once " +
			"unless replace_all is set; whitespace-tolerant matching is applied when the exact text is not found.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Project-relative file path"},
				"old": {"type": "string", "description": "Block to find, copied verbatim from the file"},
				"new": {"type": "string", "description": "Replacement block"},
				"replace_all": {"type": "boolean"}
			},
			"required": ["path", "old", "new"],
			"additionalProperties": false
		}`,
		Fn: func(ctx context.Context, args map[string]any, _ string) string {
			rel := stringArg(args, "path")
			if err := patch.CheckPath(rel); err != nil {
				return failure(rel, err.Error())
			}
			abs := filepath.Join(e.root, rel)
			raw, err := os.ReadFile(abs)
			if err != nil {
				if os.IsNotExist(err) {
					return failure(rel, "file does not exist; use write_file to create it")
				}
				return failure(rel, fmt.Sprintf("cannot read file: %v", err))
			}

			rep, err := patch.Replace(string(raw), stringArg(args, "old"), stringArg(args, "new"), boolArg(args, "replace_all"))
			if err != nil {
				return failure(rel, err.Error())
			}
			if err := os.WriteFile(abs, []byte(rep.Content), 0o644); err != nil {
				return failure(rel, fmt.Sprintf("cannot write file: %v", err))
			}

			result := map[string]any{
				"status":       "success",
				"path":         rel,
				"replacements": rep.Count,
			}
			if rep.Fuzzy {
				result["note"] = "matched with whitespace-tolerant search; verify indentation with read_file"
			}
			if warn := syntaxWarning(rel, rep.Content); warn != "" {
				result["warning"] = warn
			}
			e.reindex(ctx, rel)
			return jsonResult(result)
		},
	}
}

// reindex refreshes the symbol index after an edit. Indexing problems never
// fail the edit itself.
func (e *Executor) reindex(ctx context.Context, rel string) {
	if e.index == nil {
		return
	}
	if !symbols.Indexable(rel) {
		return
	}
	if err := e.index.IndexFile(ctx, filepath.ToSlash(rel)); err != nil {
		log.Printf("⚠️ reindex of %s failed: %v", rel, err)
	}
}
