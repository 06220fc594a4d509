package prompt

import (
	"strings"

	"github.com/klemjul/promptforge/internal/errs"
)

const Slot = "{user_prompt}"

// Template is an instructional text with exactly one Slot.
type Template struct {
	name string
	text string
}

func NewTemplate(name string, text string) (*Template, error) {
	switch n := strings.Count(text, Slot); n {
	case 1:
		return &Template{name: name, text: text}, nil
	case 0:
		return nil, errs.Configurationf("template %q has no %s slot", name, Slot)
	default:
		return nil, errs.Configurationf("template %q has %d %s slots, expected exactly one", name, n, Slot)
	}
}

func (t *Template) Name() string { return t.name }
func (t *Template) Text() string { return t.text }

func (t *Template) Bind(userPrompt string) (string, error) {
	return Bind(t.text, userPrompt)
}

// Bind replaces the slot of template with the trimmed userPrompt. The
// replacement is literal: braces inside userPrompt are left as they are.
func Bind(template string, userPrompt string) (string, error) {
	trimmed := strings.TrimSpace(userPrompt)
	if trimmed == "" {
		return "", errs.Validation("prompt is empty")
	}
	return strings.Replace(template, Slot, trimmed, 1), nil
}
