package toolexec

import (
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/foreman/internal/symbols"
)

// syntaxWarning runs a cheap bracket-balance scan over freshly written
// source. It catches the usual truncation accidents (a file cut off mid
// function) without needing a real parser. Findings are warnings only:
// the write itself already succeeded.
func syntaxWarning(rel, content string) string {
	lang := symbols.DetectLanguage(rel)
	if lang == symbols.LangUnknown {
		return ""
	}

	var counts [3]int // (), [], {}
	line := 1
	var inString rune
	var escaped, lineComment, blockComment bool

	hash := lang == symbols.LangPython
	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\n' {
			line++
			lineComment = false
			if inString != 0 && inString != '`' && !hash {
				// single-line string ran off the line, reset and move on
				inString = 0
			}
			escaped = false
			continue
		}
		switch {
		case lineComment:
		case blockComment:
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				blockComment = false
				i++
			}
		case inString != 0:
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == inString {
				inString = 0
			}
		case hash && c == '#':
			lineComment = true
		case !hash && c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			lineComment = true
			i++
		case !hash && c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			blockComment = true
			i++
		case c == '"' || c == '\'' || c == '`':
			inString = c
		case c == '(':
			counts[0]++
		case c == ')':
			counts[0]--
		case c == '[':
			counts[1]++
		case c == ']':
			counts[1]--
		case c == '{':
			counts[2]++
		case c == '}':
			counts[2]--
		}
		if counts[0] < 0 || counts[1] < 0 || counts[2] < 0 {
			return fmt.Sprintf("possible syntax problem: unmatched closing bracket near line %d", line)
		}
	}

	var open []string
	if counts[0] > 0 {
		open = append(open, "(")
	}
	if counts[1] > 0 {
		open = append(open, "[")
	}
	if counts[2] > 0 {
		open = append(open, "{")
	}
	if len(open) > 0 {
		return fmt.Sprintf("possible syntax problem: unclosed %s; the file may be truncated", strings.Join(open, " and "))
	}
	return ""
}
