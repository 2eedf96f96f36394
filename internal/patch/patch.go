// Package patch implements the block replacement used by the
// replace_in_file tool: exact string matching with a whitespace-tolerant
// fallback, plus path guards shared by the editing tools.
package patch

import (
	"fmt"
	"strings"
)

// Replacement is the outcome of a successful Replace.
type Replacement struct {
	Content string // full new file content
	Count   int    // occurrences replaced
	Fuzzy   bool   // true when the whitespace-tolerant fallback matched
}

// NotFoundError means the old block does not occur in the content, even
// with whitespace-tolerant matching.
type NotFoundError struct {
	Indentation string // detected file indentation, for the hint
	NearMatch   bool   // true if the text exists with different whitespace
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("old block not found in file (file uses %s indentation)", e.Indentation)
	if e.NearMatch {
		msg += "; the text exists with different whitespace"
	}
	return msg
}

// AmbiguousError means the old block occurs more than once and replaceAll
// was not requested.
type AmbiguousError struct {
	Count int
	Lines []int // first lines of up to five occurrences
}

func (e *AmbiguousError) Error() string {
	if len(e.Lines) > 0 {
		return fmt.Sprintf("old block occurs %d times (near lines %v); add surrounding context or set replace_all", e.Count, e.Lines)
	}
	return fmt.Sprintf("old block occurs %d times; add surrounding context or set replace_all", e.Count)
}

// Replace substitutes oldBlock with newBlock in content. Exact matching is
// tried first; when the block is not found verbatim, a line-based match
// that ignores leading and trailing whitespace per line is attempted, and
// the replacement is re-indented to the matched text.
func Replace(content, oldBlock, newBlock string, replaceAll bool) (Replacement, error) {
	if oldBlock == "" {
		return Replacement{}, fmt.Errorf("old block must not be empty")
	}
	if oldBlock == newBlock {
		return Replacement{}, fmt.Errorf("old and new blocks are identical")
	}

	count := strings.Count(content, oldBlock)
	switch {
	case count == 1, count > 1 && replaceAll:
		var out string
		if replaceAll {
			out = strings.ReplaceAll(content, oldBlock, newBlock)
		} else {
			out = strings.Replace(content, oldBlock, newBlock, 1)
		}
		return Replacement{Content: out, Count: count}, nil

	case count > 1:
		return Replacement{}, &AmbiguousError{
			Count: count,
			Lines: occurrenceLines(content, oldBlock, 5),
		}
	}

	return fuzzyReplace(content, oldBlock, newBlock, replaceAll)
}

// fuzzyReplace matches oldBlock line-wise, comparing trimmed lines, and
// splices newBlock in with the indentation of the matched region.
func fuzzyReplace(content, oldBlock, newBlock string, replaceAll bool) (Replacement, error) {
	lines := strings.Split(content, "\n")
	oldLines := trimmedLines(oldBlock)
	if len(oldLines) == 0 {
		return Replacement{}, &NotFoundError{Indentation: detectIndentation(content)}
	}

	var starts []int
	for i := 0; i+len(oldLines) <= len(lines); i++ {
		if matchesAt(lines, i, oldLines) {
			starts = append(starts, i)
		}
	}

	if len(starts) == 0 {
		return Replacement{}, &NotFoundError{
			Indentation: detectIndentation(content),
			NearMatch:   hasCollapsedMatch(content, oldBlock),
		}
	}
	if len(starts) > 1 && !replaceAll {
		oneBased := make([]int, 0, 5)
		for _, s := range starts {
			if len(oneBased) == 5 {
				break
			}
			oneBased = append(oneBased, s+1)
		}
		return Replacement{}, &AmbiguousError{Count: len(starts), Lines: oneBased}
	}
	if !replaceAll {
		starts = starts[:1]
	}

	// Replace back to front so earlier offsets stay valid.
	for i := len(starts) - 1; i >= 0; i-- {
		start := starts[i]
		indent := leadingWhitespace(lines[start])
		replacement := indentBlock(newBlock, indent)
		lines = append(lines[:start], append(replacement, lines[start+len(oldLines):]...)...)
	}

	return Replacement{
		Content: strings.Join(lines, "\n"),
		Count:   len(starts),
		Fuzzy:   true,
	}, nil
}

// trimmedLines splits a block into per-line trimmed form, dropping leading
// and trailing blank lines.
func trimmedLines(block string) []string {
	raw := strings.Split(block, "\n")
	start, end := 0, len(raw)
	for start < end && strings.TrimSpace(raw[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(raw[end-1]) == "" {
		end--
	}
	out := make([]string, 0, end-start)
	for _, l := range raw[start:end] {
		out = append(out, strings.TrimSpace(l))
	}
	return out
}

func matchesAt(lines []string, start int, trimmed []string) bool {
	for j, want := range trimmed {
		if strings.TrimSpace(lines[start+j]) != want {
			return false
		}
	}
	return true
}

// indentBlock prefixes every non-empty line of block with indent, after
// stripping the block's own common leading whitespace.
func indentBlock(block, indent string) []string {
	lines := strings.Split(block, "\n")
	common := commonIndent(lines)

	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		out[i] = indent + strings.TrimPrefix(l, common)
	}
	return out
}

func commonIndent(lines []string) string {
	common := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ws := leadingWhitespace(l)
		if first {
			common = ws
			first = false
			continue
		}
		for !strings.HasPrefix(ws, common) {
			common = common[:len(common)-1]
		}
	}
	return common
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// hasCollapsedMatch reports whether the block exists in the content once
// all whitespace runs are collapsed, which signals a whitespace mismatch.
func hasCollapsedMatch(content, block string) bool {
	collapse := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	return strings.Contains(collapse(content), collapse(block))
}

// occurrenceLines finds the 1-based line numbers where the first line of
// block occurs, capped at max.
func occurrenceLines(content, block string, max int) []int {
	firstLine := strings.TrimSpace(strings.Split(block, "\n")[0])
	if firstLine == "" {
		return nil
	}
	var out []int
	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(line, firstLine) {
			out = append(out, i+1)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

func detectIndentation(content string) string {
	switch {
	case strings.Contains(content, "\t"):
		return "tab"
	case strings.Contains(content, "    "):
		return "4-space"
	case strings.Contains(content, "  "):
		return "2-space"
	default:
		return "unknown"
	}
}
