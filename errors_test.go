package schematika

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_ReportIncludesCaretLine(t *testing.T) {
	src := []byte("1 + ;")
	li := NewLineIndex(src)
	err := SyntaxError{Pos: li.LocationAt(4), Message: "unexpected token", SSM: "expr", Expect: "an expression"}
	out := err.Report(li)
	lines := strings.Split(stripANSI(out), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.Contains(lines[1], "1 + ;"))
	assert.True(t, strings.HasSuffix(lines[2], "^"))
}

func TestErrors_ReportWithoutLineIndexStillRenders(t *testing.T) {
	err := NameError{Name: "foo"}
	out := stripANSI(err.Report(nil))
	assert.Contains(t, out, `unbound symbol "foo"`)
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
