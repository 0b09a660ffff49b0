package schematika

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

const eof = -1

// Location is a source position: which file, and where within it. Both
// Line and Column are 1-based; Cursor is the 0-based byte offset the
// Line/Column were computed from.
type Location struct {
	File   string
	Line   int32
	Column int32
	Cursor int
}

func (l Location) String() string {
	if l.File != "" {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Span is a pair of cursor positions delimiting a lexeme or an
// expression in the source buffer. Span never copies the underlying
// bytes.
type Span struct {
	Start Location
	End   Location
}

func NewSpan(start, end Location) Span {
	return Span{Start: start, End: end}
}

func (s Span) String() string {
	startLine, startCol := int(s.Start.Line), int(s.Start.Column)
	endLine, endCol := int(s.End.Line), int(s.End.Column)
	if startLine == endLine && startCol == endCol {
		return fmt.Sprintf("%d:%d", startLine, startCol)
	}
	if startLine == endLine {
		return fmt.Sprintf("%d:%d..%d", startLine, startCol, endCol)
	}
	return fmt.Sprintf("%d:%d..%d:%d", startLine, startCol, endLine, endCol)
}

// Range is a pair of byte offsets into an external buffer. It is the
// cheapest possible representation of "a piece of the input" — the
// tokenizer and parser pass Ranges around instead of copying bytes.
type Range struct{ Start, End int }

func NewRange(start, end int) Range {
	return Range{Start: start, End: end}
}

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// Str slices v, the original input buffer, down to the bytes this
// Range covers.
func (r Range) Str(v []byte) string { return string(v[r.Start:r.End]) }

// Empty reports whether the range covers zero bytes.
func (r Range) Empty() bool { return r.Start == r.End }

func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Prefix returns the first n bytes of the range (clamped to the
// range's length).
func (r Range) Prefix(n int) Range {
	if r.Start+n > r.End {
		n = r.End - r.Start
	}
	return Range{Start: r.Start, End: r.Start + n}
}

// SuffixAfterPrefix returns the remainder of the range after its
// first n bytes (clamped).
func (r Range) SuffixAfterPrefix(n int) Range {
	if r.Start+n > r.End {
		n = r.End - r.Start
	}
	return Range{Start: r.Start + n, End: r.End}
}

// LineIndex allows fast conversion from byte cursor offsets to
// line/column pairs.
//
// It stores the start byte offset of each line (0-based). Given a
// cursor, it finds the line by binary searching line starts (O(log
// lines)) and computes the column as (runes since lineStart + 1).
//
// Construction is O(n) over the input and is intended to be cached
// per input.
type LineIndex struct {
	input     []byte
	lineStart []int
}

func NewLineIndex(input []byte) *LineIndex {
	// Always include line 1 starting at offset 0.
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

func (li *LineIndex) Span(r Range) Span {
	return Span{
		Start: li.LocationAt(r.Start),
		End:   li.LocationAt(r.End),
	}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}

	// Find first lineStart > cursor, then step back one.
	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	col := int32(utf8.RuneCount(li.input[lineStart:cursor])) + 1

	return Location{
		Line:   int32(lineIdx + 1),
		Column: col,
		Cursor: cursor,
	}
}

// LineText returns the full text of the line containing cursor,
// without its trailing newline. Error.Report uses it to print the
// offending source line with a caret underneath.
func (li *LineIndex) LineText(cursor int) string {
	loc := li.LocationAt(cursor)
	lineIdx := int(loc.Line) - 1
	start := li.lineStart[lineIdx]
	end := len(li.input)
	if lineIdx+1 < len(li.lineStart) {
		end = li.lineStart[lineIdx+1] - 1
	}
	for end > start && (li.input[end-1] == '\n' || li.input[end-1] == '\r') {
		end--
	}
	return string(li.input[start:end])
}
