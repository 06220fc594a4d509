package format

import (
	"github.com/charmbracelet/glamour"
	"github.com/cockroachdb/errors"
)

const style = "dark"

func FormatMarkdown(text string) (string, error) {
	return glamour.Render(text, style)
}

// FormatMarkdownWidth renders text wrapped at width columns. A width of zero
// or less keeps the glamour default.
func FormatMarkdownWidth(text string, width int) (string, error) {
	if width <= 0 {
		return FormatMarkdown(text)
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to create markdown renderer")
	}
	return r.Render(text)
}
