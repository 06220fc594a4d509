package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/klemjul/promptforge/internal/format"
	"github.com/klemjul/promptforge/internal/llm"
	"github.com/klemjul/promptforge/internal/repl"
	"github.com/klemjul/promptforge/internal/ui"
)

type TUIService interface {
	InitialModel(opts ui.InitialModelOptions) ui.ChatTUIModel
	Run(model ui.ChatTUIModel) (returnModel tea.Model, returnErr error)
}

type LLMService interface {
	NewClient(ctx context.Context, provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error)
}

type TextFormatService interface {
	FormatMarkdown(text string) (string, error)
}

type ConsoleService interface {
	NewLineReader(prompt string, historyFile string) (repl.LineReader, error)
}

type App interface {
	TUI() TUIService
	LLM() LLMService
	Format() TextFormatService
	Console() ConsoleService
}

type DefaultTUIService struct{}

type DefaultLLMService struct{}

type DefaultTextFormatService struct{}

type DefaultConsoleService struct{}

type DefaultApp struct {
	tui     TUIService
	llm     LLMService
	format  TextFormatService
	console ConsoleService
}

func (a *DefaultApp) TUI() TUIService           { return a.tui }
func (a *DefaultApp) LLM() LLMService           { return a.llm }
func (a *DefaultApp) Format() TextFormatService { return a.format }
func (a *DefaultApp) Console() ConsoleService   { return a.console }

func (c *DefaultTUIService) InitialModel(opts ui.InitialModelOptions) ui.ChatTUIModel {
	return ui.InitialModel(opts)
}
func (c *DefaultTUIService) Run(model ui.ChatTUIModel) (returnModel tea.Model, returnErr error) {
	return tea.NewProgram(model, tea.WithAltScreen()).Run()
}

func (l *DefaultLLMService) NewClient(ctx context.Context, provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error) {
	return llm.NewClient(ctx, provider, opts)
}

func (l *DefaultTextFormatService) FormatMarkdown(text string) (string, error) {
	return format.FormatMarkdown(text)
}

func (c *DefaultConsoleService) NewLineReader(prompt string, historyFile string) (repl.LineReader, error) {
	return repl.NewReadlineReader(prompt, historyFile)
}

func NewDefaultApp() App {
	return &DefaultApp{
		tui:     &DefaultTUIService{},
		llm:     &DefaultLLMService{},
		format:  &DefaultTextFormatService{},
		console: &DefaultConsoleService{},
	}
}
