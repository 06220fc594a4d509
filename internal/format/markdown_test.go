package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMarkdown(t *testing.T) {
	res, _ := FormatMarkdown("**hello**")
	assert.Contains(t, res, "hello")
}

func TestFormatMarkdownWidth(t *testing.T) {
	text := strings.Repeat("word ", 40)

	narrow, err := FormatMarkdownWidth(text, 30)
	require.NoError(t, err)
	wide, err := FormatMarkdownWidth(text, 120)
	require.NoError(t, err)
	assert.Greater(t, strings.Count(narrow, "\n"), strings.Count(wide, "\n"))

	res, err := FormatMarkdownWidth("**hello**", 0)
	require.NoError(t, err)
	assert.Contains(t, res, "hello")
}
