package schematika

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter_DumpTreeConstant(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "1 + 2;")
	out := DumpTree(root, gc, nil, false)
	assert.True(t, strings.Contains(out, "Apply"))
	assert.True(t, strings.Contains(out, "Constant 1"))
	assert.True(t, strings.Contains(out, "Constant 2"))
}

func TestPrinter_DumpTreeLambdaIndentsBody(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "lambda (x: i64) -> i64 { x };")
	out := DumpTree(root, gc, nil, false)
	require.Contains(t, out, "Lambda (x:i64)")
	require.Contains(t, out, "body:")
	lines := strings.Split(out, "\n")
	bodyIdx := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == "body:" {
			bodyIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, bodyIdx, 0)
	require.Greater(t, len(lines), bodyIdx+1)
	assert.True(t, strings.HasPrefix(lines[bodyIdx+1], "  "))
}

func TestPrinter_DumpTreeColorsWhenRequested(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "1;")
	plain := DumpTree(root, gc, nil, false)
	colored := DumpTree(root, gc, nil, true)
	assert.NotEqual(t, plain, colored)
	assert.Contains(t, colored, "\033[")
}

func TestPrinter_FormatMatchesPrintValue(t *testing.T) {
	in := NewInterpreter()
	v, err := in.Run([]byte("21 * 2;"))
	require.NoError(t, err)
	assert.Equal(t, "42", in.Format(v))
}
