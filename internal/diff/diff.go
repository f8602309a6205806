package diff

import (
	"bytes"
	"fmt"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// DiffResult contains the complete diff information
type DiffResult struct {
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Hunk represents a continuous section of changes. Starts are 1-based.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) (*DiffResult, error) {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	script := e.editScript(oldLines, newLines)

	result := &DiffResult{Hunks: e.group(script)}
	for _, l := range script {
		switch l.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions

	return result, nil
}

// Empty reports whether the two inputs were identical.
func (r *DiffResult) Empty() bool {
	return len(r.Hunks) == 0
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

// computeLCS creates a matrix for longest common subsequence over suffixes,
// so the script can be read forwards.
func (e *Engine) computeLCS(oldLines, newLines [][]byte) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if bytes.Equal(oldLines[i], newLines[j]) {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

// editScript returns every line of both inputs tagged as context, addition
// or deletion, in output order. Deletions come before additions.
func (e *Engine) editScript(oldLines, newLines [][]byte) []Line {
	lcs := e.computeLCS(oldLines, newLines)

	var out []Line
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && bytes.Equal(oldLines[i], newLines[j]):
			out = append(out, Line{Type: Context, Content: string(oldLines[i]), OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		case i < len(oldLines) && (j == len(newLines) || lcs[i+1][j] >= lcs[i][j+1]):
			out = append(out, Line{Type: Deletion, Content: string(oldLines[i]), OldNum: i + 1})
			i++
		default:
			out = append(out, Line{Type: Addition, Content: string(newLines[j]), NewNum: j + 1})
			j++
		}
	}
	return out
}

// group cuts the script into hunks, keeping contextLines of unchanged lines
// around each change and merging changes whose context would overlap.
func (e *Engine) group(script []Line) []Hunk {
	var hunks []Hunk

	for i := 0; i < len(script); {
		if script[i].Type == Context {
			i++
			continue
		}

		start := max(0, i-e.contextLines)
		end := i
		for end < len(script) {
			if script[end].Type != Context {
				end++
				continue
			}
			// Find the next change and see if it is close enough to join.
			next := end
			for next < len(script) && script[next].Type == Context {
				next++
			}
			if next < len(script) && next-end <= 2*e.contextLines {
				end = next
				continue
			}
			end = min(len(script), end+e.contextLines)
			break
		}

		hunks = append(hunks, newHunk(script, start, end))
		i = end
	}
	return hunks
}

func newHunk(script []Line, start, end int) Hunk {
	h := Hunk{Lines: append([]Line(nil), script[start:end]...)}
	oldNext, newNext := 1, 1
	for _, l := range script[:start] {
		if l.Type != Addition {
			oldNext++
		}
		if l.Type != Deletion {
			newNext++
		}
	}
	for _, l := range h.Lines {
		if l.Type != Addition {
			h.OldLines++
		}
		if l.Type != Deletion {
			h.NewLines++
		}
	}
	h.OldStart, h.NewStart = oldNext, newNext
	if h.OldLines == 0 {
		h.OldStart--
	}
	if h.NewLines == 0 {
		h.NewStart--
	}
	return h
}

// Format returns a string representation of the diff
func (r *DiffResult) Format() string {
	var buf bytes.Buffer

	for _, hunk := range r.Hunks {
		buf.WriteString(hunk.Header())
		buf.WriteByte('\n')

		for _, line := range hunk.Lines {
			buf.WriteString(line.Prefix())
			buf.WriteString(line.Content)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

func (l Line) Prefix() string {
	switch l.Type {
	case Addition:
		return "+"
	case Deletion:
		return "-"
	}
	return " "
}
