package schematika

import (
	"fmt"

	"github.com/schematika-lang/schematika/ascii"
)

// LexError is raised by the tokenizer: unterminated strings, malformed
// numeric literals, unknown escapes, stray bytes. Source names the
// scanner state that detected the problem (e.g. "scan_string").
type LexError struct {
	Pos     Location
	Message string
	Source  string
}

func (e LexError) Error() string {
	return fmt.Sprintf("lexical error (detected in %s): %s @ %s", e.Source, e.Message, e.Pos)
}

// Report renders the offending source line with a caret under the bad
// column, the way the teacher's BaseParser surfaces parse failures to
// a terminal.
func (e LexError) Report(li *LineIndex) string {
	return reportAt(li, e.Pos, e.Error())
}

// SyntaxError is raised by the parser: a token the active syntax-state
// machine does not admit, an unexpected EOF, or an unresolvable type
// name. SSM names the offending syntax-state machine; Expect is its
// `get_expect_str()`-style description of what it wanted instead.
type SyntaxError struct {
	Pos     Location
	Message string
	Expect  string
	SSM     string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("syntax error (detected in %s): %s @ %s", e.SSM, e.Message, e.Pos)
}

func (e SyntaxError) Report(li *LineIndex) string {
	return reportAt(li, e.Pos, e.Error())
}

// NameError is raised when the parser cannot resolve a symbol in
// expression position against the local-symtab chain or the global
// symtab.
type NameError struct {
	Pos  Location
	Name string
}

func (e NameError) Error() string {
	return fmt.Sprintf("name error (detected in resolve): unbound symbol %q @ %s", e.Name, e.Pos)
}

func (e NameError) Report(li *LineIndex) string {
	return reportAt(li, e.Pos, e.Error())
}

// EvalError is raised by the VSM: non-procedure callee, non-boolean
// if-test, integer division by zero, a global referenced but never
// defined, or allocator exhaustion. Pos is the zero Location when the
// offending AST node carries none (e.g. a primitive arity mismatch).
type EvalError struct {
	Message string
	Pos     Location
}

func (e EvalError) Error() string {
	return fmt.Sprintf("evaluation error (detected in eval): %s @ %s", e.Message, e.Pos)
}

func (e EvalError) Report(li *LineIndex) string {
	return reportAt(li, e.Pos, e.Error())
}

// ResourceError reports allocator/collector exhaustion: the stable
// string arena or the GC heap could not satisfy a request. It is fatal for the current top-level form only.
type ResourceError struct {
	Message  string
	Resource string // "arena" | "gc"
}

func (e ResourceError) Error() string {
	return fmt.Sprintf("resource error (%s): %s", e.Resource, e.Message)
}

func reportAt(li *LineIndex, pos Location, message string) string {
	if li == nil {
		return ascii.Color(ascii.DefaultTheme.Error, "%s", message)
	}
	line := li.LineText(pos.Cursor)
	col := int(pos.Column)
	if col < 1 {
		col = 1
	}
	caret := ""
	if col-1 <= len(line) {
		for i := 0; i < col-1; i++ {
			caret += " "
		}
	}
	caret = ascii.Color(ascii.DefaultTheme.Hint, "%s^", caret)
	return fmt.Sprintf("%s\n%s\n%s", ascii.Color(ascii.DefaultTheme.Error, "%s", message), line, caret)
}
