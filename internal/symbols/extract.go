package symbols

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Language identifies the toolchain of an indexed file.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "ts"
	LangJavaScript Language = "js"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangUnknown    Language = "unknown"
)

// DetectLanguage maps a file extension to a language.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LangGo
	case ".ts", ".tsx":
		return LangTypeScript
	case ".js", ".jsx", ".mjs":
		return LangJavaScript
	case ".py":
		return LangPython
	case ".rs":
		return LangRust
	default:
		return LangUnknown
	}
}

// symbolPattern pairs a declaration regex with the symbol kind it captures.
// The first capture group is the symbol name.
type symbolPattern struct {
	re   *regexp.Regexp
	kind string
}

var symbolPatterns = map[Language][]symbolPattern{
	LangGo: {
		{regexp.MustCompile(`^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`), "func"},
		{regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)\b`), "type"},
		{regexp.MustCompile(`^type\s+(\w+)\s+`), "type"},
	},
	LangPython: {
		{regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`), "func"},
		{regexp.MustCompile(`^\s*class\s+(\w+)\s*[(:]`), "class"},
	},
	LangTypeScript: {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`), "func"},
		{regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)\b`), "class"},
		{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)\b`), "interface"},
		{regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(`), "func"},
	},
	LangRust: {
		{regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+(\w+)\s*[(<]`), "func"},
		{regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+(\w+)\b`), "struct"},
		{regexp.MustCompile(`^\s*(?:pub\s+)?enum\s+(\w+)\b`), "enum"},
		{regexp.MustCompile(`^\s*(?:pub\s+)?trait\s+(\w+)\b`), "trait"},
	},
}

func init() {
	// JavaScript shares the TypeScript patterns minus the interface form,
	// which never matches JS anyway.
	symbolPatterns[LangJavaScript] = symbolPatterns[LangTypeScript]
}

// ExtractSymbols scans source text line by line for declarations.
// This is a heuristic pass, not a parser: good enough to answer "where is X
// defined" across the languages generated projects use.
func ExtractSymbols(path string, content string) []Symbol {
	lang := DetectLanguage(path)
	patterns, ok := symbolPatterns[lang]
	if !ok {
		return nil
	}

	var out []Symbol
	for i, line := range strings.Split(content, "\n") {
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			out = append(out, Symbol{
				Name:      m[1],
				Kind:      p.kind,
				FilePath:  path,
				Line:      i + 1,
				Signature: strings.TrimSpace(line),
			})
			break
		}
	}
	return out
}

var importPatterns = map[Language][]*regexp.Regexp{
	LangGo: {
		regexp.MustCompile(`^\s*(?:\w+\s+)?"([^"]+)"`),
	},
	LangPython: {
		regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`),
		regexp.MustCompile(`^\s*import\s+([\w.]+)`),
	},
	LangTypeScript: {
		regexp.MustCompile(`^\s*import\s+.*?from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
	},
	LangRust: {
		regexp.MustCompile(`^\s*(?:pub\s+)?use\s+crate::([\w:]+)`),
		regexp.MustCompile(`^\s*mod\s+(\w+)\s*;`),
	},
}

// ExtractImports returns the raw import specifiers found in source text.
// Go imports are only collected inside import blocks or single-line import
// statements.
func ExtractImports(path string, content string) []string {
	lang := DetectLanguage(path)
	patterns, ok := importPatterns[lang]
	if lang == LangJavaScript {
		patterns, ok = importPatterns[LangTypeScript], true
	}
	if !ok {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	inGoImportBlock := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if lang == LangGo {
			switch {
			case strings.HasPrefix(trimmed, "import ("):
				inGoImportBlock = true
				continue
			case inGoImportBlock && trimmed == ")":
				inGoImportBlock = false
				continue
			case strings.HasPrefix(trimmed, "import "):
				// single-line form: import "x" or import alias "x"
				rest := strings.TrimPrefix(trimmed, "import ")
				if m := importPatterns[LangGo][0].FindStringSubmatch(rest); m != nil && !seen[m[1]] {
					seen[m[1]] = true
					out = append(out, m[1])
				}
				continue
			case !inGoImportBlock:
				continue
			}
		}

		for _, re := range patterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
			break
		}
	}
	return out
}

// ResolveImports maps raw import specifiers to project-relative file paths.
// Matching is heuristic: a specifier resolves to indexed files of the same
// language family whose path (minus extension) or directory matches the
// specifier's path form. Specifiers that match nothing (stdlib, external
// packages) are dropped.
func ResolveImports(importer string, specifiers []string, indexed []string) []string {
	var out []string
	seen := make(map[string]bool)
	family := langFamily(DetectLanguage(importer))

	for _, spec := range specifiers {
		candidate := specifierToPath(importer, spec)
		if candidate == "" {
			continue
		}
		for _, path := range indexed {
			if path == importer || langFamily(DetectLanguage(path)) != family {
				continue
			}
			stripped := strings.TrimSuffix(path, filepath.Ext(path))
			dir := filepath.ToSlash(filepath.Dir(path))
			if stripped == candidate ||
				strings.HasSuffix(stripped, "/"+candidate) ||
				dir == candidate ||
				strings.HasSuffix(dir, "/"+candidate) ||
				strings.HasSuffix(stripped, "/"+candidate+"/index") ||
				strings.HasSuffix(stripped, "/"+candidate+"/__init__") {
				if !seen[path] {
					seen[path] = true
					out = append(out, path)
				}
			}
		}
	}
	return out
}

// langFamily groups languages whose imports can reference each other.
func langFamily(lang Language) Language {
	if lang == LangJavaScript {
		return LangTypeScript
	}
	return lang
}

// specifierToPath normalizes an import specifier into a slash path fragment
// usable for suffix matching, or "" when the specifier is clearly external.
func specifierToPath(importer, spec string) string {
	switch {
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		// relative JS/TS import: resolve against the importer's directory
		dir := filepath.Dir(importer)
		return filepath.ToSlash(filepath.Clean(filepath.Join(dir, spec)))
	case strings.Contains(spec, "."):
		if strings.Contains(spec, "/") {
			return "" // dotted path with slashes: external URL-style import
		}
		// python dotted module path
		return strings.ReplaceAll(spec, ".", "/")
	case strings.Contains(spec, "::"):
		// rust crate path
		return strings.ReplaceAll(spec, "::", "/")
	case strings.Contains(spec, "/"):
		// go package path: the matchable part is everything after the
		// module prefix, which we approximate with the last two segments
		parts := strings.Split(spec, "/")
		if len(parts) >= 2 {
			return strings.Join(parts[len(parts)-2:], "/")
		}
		return spec
	default:
		return spec
	}
}
