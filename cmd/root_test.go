package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/app"
	"github.com/klemjul/promptforge/internal/config"
	"github.com/klemjul/promptforge/internal/errs"
	"github.com/klemjul/promptforge/internal/llm"
	"github.com/klemjul/promptforge/internal/repl"
	"github.com/klemjul/promptforge/internal/ui"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTUIService struct {
	mock.Mock
}

func (m *MockTUIService) InitialModel(opts ui.InitialModelOptions) ui.ChatTUIModel {
	args := m.Called(opts)
	return args.Get(0).(ui.ChatTUIModel)
}

func (m *MockTUIService) Run(model ui.ChatTUIModel) (returnModel tea.Model, returnErr error) {
	args := m.Called(model)
	return args.Get(0).(tea.Model), args.Error(1)
}

type MockLLMService struct {
	mock.Mock
}

func (m *MockLLMService) NewClient(ctx context.Context, provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error) {
	args := m.Called(ctx, provider, opts)
	return args.Get(0).(llm.LLMClient), args.Error(1)
}

type MockLLMClient struct {
	mock.Mock
}

func (c *MockLLMClient) Send(ctx context.Context, messages []llm.Message) (*llm.LLMSendResponse, error) {
	args := c.Called(ctx, messages)
	return args.Get(0).(*llm.LLMSendResponse), args.Error(1)
}

func (c *MockLLMClient) Stream(ctx context.Context, messages []llm.Message) <-chan llm.LLMStreamEvent {
	args := c.Called(ctx, messages)
	return args.Get(0).(<-chan llm.LLMStreamEvent)
}

type MockFormatClient struct {
	mock.Mock
}

func (l *MockFormatClient) FormatMarkdown(text string) (string, error) {
	args := l.Called(text)
	return args.Get(0).(string), args.Error(1)
}

type MockConsoleService struct {
	mock.Mock
}

func (m *MockConsoleService) NewLineReader(prompt string, historyFile string) (repl.LineReader, error) {
	args := m.Called(prompt, historyFile)
	return args.Get(0).(repl.LineReader), args.Error(1)
}

type MockApp struct {
	tui     *MockTUIService
	llm     *MockLLMService
	format  *MockFormatClient
	console *MockConsoleService
}

func (a *MockApp) TUI() app.TUIService           { return a.tui }
func (a *MockApp) LLM() app.LLMService           { return a.llm }
func (a *MockApp) Format() app.TextFormatService { return a.format }
func (a *MockApp) Console() app.ConsoleService   { return a.console }

func NewMockApp() app.App {
	return &MockApp{tui: &MockTUIService{}, llm: &MockLLMService{}, format: &MockFormatClient{}, console: &MockConsoleService{}}
}

type linesReader struct {
	lines  []string
	closed bool
}

func (r *linesReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *linesReader) Close() error {
	r.closed = true
	return nil
}

func streamOf(fragments ...string) <-chan llm.LLMStreamEvent {
	out := make(chan llm.LLMStreamEvent, len(fragments)+1)
	for _, f := range fragments {
		out <- llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeMessage, Content: f}
	}
	out <- llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeComplete}
	close(out)
	return out
}

func TestMain(m *testing.M) {
	clearEnvWithPrefix(config.ENV_PREFIX)
	m.Run()
}

func clearEnvWithPrefix(prefix string) {
	for _, env := range os.Environ() {
		kv := strings.SplitN(env, "=", 2)
		key := kv[0]
		if strings.HasPrefix(key, prefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func executeRootCommand(app app.App, args ...string) (string, error) {
	viper.Reset()
	cmd := RootCommand(app)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
	})

	_, err := cmd.ExecuteC()
	return buf.String(), err
}

func TestRun_WithPromptArgs_ShouldStream(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, llm.LLMClientOptions{}).
		Return(&mockLLMClient, nil)
	mockLLMClient.
		On("Stream", mock.Anything, []llm.Message{{Role: llm.User, Content: "Echo: greet me"}}).
		Return(streamOf("Hel", "lo, ", "world"))

	output, err := executeRootCommand(app, "-t", "Echo: {user_prompt}", "greet", "me")

	require.NoError(t, err)
	assert.Equal(t, "Hello, world\n", output)
	app.LLM().(*MockLLMService).AssertExpectations(t)
	mockLLMClient.AssertExpectations(t)
}

func TestRun_WithNoStream_ShouldFormatAnswer(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProvider("ollama"), llm.LLMClientOptions{
			Model:    "model",
			Endpoint: "http://localhost:11434",
		}).
		Return(&mockLLMClient, nil)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "Echo: test").Return("formated res", nil)
	mockLLMClient.
		On("Send", mock.Anything, []llm.Message{{Role: llm.User, Content: "Echo: test"}}).
		Return(&llm.LLMSendResponse{Content: "Echo: test"}, nil)

	output, err := executeRootCommand(app, "--provider", "ollama", "--model=model", "--endpoint", "http://localhost:11434",
		"--no-stream", "-t=Echo: {user_prompt}", "test")

	require.NoError(t, err)
	assert.Equal(t, "formated res", output)
	app.LLM().(*MockLLMService).AssertExpectations(t)
	app.Format().(*MockFormatClient).AssertExpectations(t)
}

func TestRun_WithDefaultTemplate_ShouldUseRefine(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProvider("openai"), llm.LLMClientOptions{Model: "gpt", APIKey: "key"}).
		Return(&mockLLMClient, nil)
	expected := strings.Replace(config.Templates[config.TemplateRefine], "{user_prompt}", "a poem", 1)
	mockLLMClient.
		On("Stream", mock.Anything, []llm.Message{{Role: llm.User, Content: expected}}).
		Return(streamOf("feedback"))

	output, err := executeRootCommand(app, "--provider", "openai", "--model", "gpt", "--api-key", "key", "a poem")

	require.NoError(t, err)
	assert.Equal(t, "feedback\n", output)
	mockLLMClient.AssertExpectations(t)
}

func TestRun_WithDynamicTemplate_ShouldUseFromEnv(t *testing.T) {
	app := NewMockApp()
	t.Setenv("PROMPTFORGE_TEMPLATE_5", "dynamic {user_prompt} 5")
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	mockLLMClient.
		On("Stream", mock.Anything, []llm.Message{{Role: llm.User, Content: "dynamic prompt 5"}}).
		Return(streamOf("ok"))

	_, err := executeRootCommand(app, "--template", "5", "prompt")

	require.NoError(t, err)
	mockLLMClient.AssertExpectations(t)
}

func TestRun_WithTemplateFromEnv(t *testing.T) {
	app := NewMockApp()
	t.Setenv("PROMPTFORGE_TEMPLATE", "lab")
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	expected := strings.Replace(config.Templates[config.TemplateLab], "{user_prompt}", "titration", 1)
	mockLLMClient.
		On("Stream", mock.Anything, []llm.Message{{Role: llm.User, Content: expected}}).
		Return(streamOf("ok"))

	_, err := executeRootCommand(app, "titration")

	require.NoError(t, err)
	mockLLMClient.AssertExpectations(t)
}

func TestRun_WithEnvFile_ShouldLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROMPTFORGE_MODEL=from-env-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PROMPTFORGE_MODEL") })

	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, llm.LLMClientOptions{Model: "from-env-file"}).
		Return(&mockLLMClient, nil)
	mockLLMClient.On("Stream", mock.Anything, mock.Anything).Return(streamOf("ok"))

	_, err := executeRootCommand(app, "--env-file", path, "hello")

	require.NoError(t, err)
	app.LLM().(*MockLLMService).AssertExpectations(t)
}

func TestRun_WithConfigFile_ShouldUseNamedTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: ollama\ntemplates:\n  review: \"Review: {user_prompt}\"\n"), 0o600))

	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProvider("ollama"), mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	mockLLMClient.
		On("Stream", mock.Anything, []llm.Message{{Role: llm.User, Content: "Review: my prompt"}}).
		Return(streamOf("ok"))

	_, err := executeRootCommand(app, "--config", path, "-t", "review", "my prompt")

	require.NoError(t, err)
	mockLLMClient.AssertExpectations(t)
}

func TestRun_WithMissingConfigFile_ShouldReturnError(t *testing.T) {
	app := NewMockApp()

	_, err := executeRootCommand(app, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "hello")

	assert.True(t, errs.IsConfiguration(err))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestRun_WithInteractive_ShouldOpenChatMode(t *testing.T) {
	app := NewMockApp()
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&MockLLMClient{}, nil)
	app.TUI().(*MockTUIService).
		On("InitialModel", mock.MatchedBy(func(opts ui.InitialModelOptions) bool {
			return opts.Title == "PromptForge - lab template" && opts.InitialPrompt == "first prompt" && opts.Evaluator != nil
		})).
		Return(ui.ChatTUIModel{})
	app.TUI().(*MockTUIService).
		On("Run", mock.AnythingOfType("ui.ChatTUIModel")).
		Return(ui.ChatTUIModel{}, nil)

	_, err := executeRootCommand(app, "-t", "lab", "-i", "first", "prompt")

	require.NoError(t, err)
	app.LLM().(*MockLLMService).AssertExpectations(t)
	app.TUI().(*MockTUIService).AssertExpectations(t)
}

func TestRun_WithInteractiveError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&MockLLMClient{}, nil)
	app.TUI().(*MockTUIService).On("InitialModel", mock.Anything).Return(ui.ChatTUIModel{})
	app.TUI().(*MockTUIService).On("Run", mock.Anything).Return(ui.ChatTUIModel{}, errors.New("no tty"))

	_, err := executeRootCommand(app, "-i")

	assert.ErrorContains(t, err, "error running interactive mode")
}

func TestRun_WithNoArgs_ShouldRunLineMode(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	reader := &linesReader{lines: []string{"   ", "hi", "exit"}}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	app.Console().(*MockConsoleService).
		On("NewLineReader", REPL_PROMPT, filepath.Join(os.TempDir(), HISTORY_FILE)).
		Return(reader, nil)
	mockLLMClient.
		On("Stream", mock.Anything, []llm.Message{{Role: llm.User, Content: "Echo: hi"}}).
		Return(streamOf("Echo: ", "hi"))

	output, err := executeRootCommand(app, "-t", "Echo: {user_prompt}")

	require.NoError(t, err)
	assert.Contains(t, output, repl.DEFAULT_BANNER)
	assert.Contains(t, output, "prompt is empty")
	assert.Contains(t, output, "Echo: hi")
	assert.Contains(t, output, repl.GOODBYE)
	assert.True(t, reader.closed)
	app.Console().(*MockConsoleService).AssertExpectations(t)
	mockLLMClient.AssertExpectations(t)
}

func TestRun_WithLineReaderError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&MockLLMClient{}, nil)
	app.Console().(*MockConsoleService).
		On("NewLineReader", mock.Anything, mock.Anything).
		Return(&linesReader{}, errors.New("not a terminal"))

	_, err := executeRootCommand(app)

	assert.ErrorContains(t, err, "error starting line mode")
}

func TestRun_WithInvalidProvider_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	_, err := executeRootCommand(app, "--provider", "invalidprovider", "hello")
	assert.ErrorContains(t, err, "invalid provider")
	assert.True(t, errs.IsConfiguration(err))
}

func TestRun_WithNegativeTokenLimit_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	_, err := executeRootCommand(app, "--prompt-token-limit", "-1", "hello")
	assert.ErrorContains(t, err, "prompt token limit must not be negative")
}

func TestRun_WithInvalidDynamicTemplate_ShouldReturnErrorBeforeClient(t *testing.T) {
	app := NewMockApp()

	_, err := executeRootCommand(app, "--template", "1", "hello")

	assert.True(t, errs.IsConfiguration(err))
	assert.ErrorContains(t, err, "invalid template no, env variable not found PROMPTFORGE_TEMPLATE_1")
	app.LLM().(*MockLLMService).AssertNotCalled(t, "NewClient", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_WithTemplateWithoutSlot_ShouldReturnError(t *testing.T) {
	app := NewMockApp()

	_, err := executeRootCommand(app, "--template", "no slot here", "hello")

	assert.True(t, errs.IsConfiguration(err))
	assert.ErrorContains(t, err, "has no {user_prompt} slot")
}

func TestRun_WithLLMNewClientError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProvider("openai"), mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&MockLLMClient{}, errs.Configurationf("OPENAI_API_KEY environment variable is not set"))

	_, err := executeRootCommand(app, "--provider", "openai", "hello")

	assert.ErrorContains(t, err, "failed to create LLM client")
	assert.True(t, errs.IsConfiguration(err))
	app.LLM().(*MockLLMService).AssertExpectations(t)
}

func TestRun_WithEmptyPrompt_ShouldReturnValidationError(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)

	_, err := executeRootCommand(app, "   ")

	assert.True(t, errs.IsValidation(err))
	mockLLMClient.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestRun_WithLLMSendError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	mockLLMClient.On("Send", mock.Anything, mock.AnythingOfType("[]llm.Message")).
		Return(&llm.LLMSendResponse{}, errors.New("Send error"))

	_, err := executeRootCommand(app, "--no-stream", "hello")

	assert.ErrorContains(t, err, "failed to generate response")
	assert.True(t, errs.IsUpstream(err))
}

func TestRun_WithLLMFormatError_ShouldReturnError(t *testing.T) {
	app := NewMockApp()
	mockLLMClient := MockLLMClient{}
	app.LLM().(*MockLLMService).
		On("NewClient", mock.Anything, llm.LLMProviderGemini, mock.AnythingOfType("llm.LLMClientOptions")).
		Return(&mockLLMClient, nil)
	mockLLMClient.On("Send", mock.Anything, mock.AnythingOfType("[]llm.Message")).
		Return(&llm.LLMSendResponse{Content: "content"}, nil)
	app.Format().(*MockFormatClient).
		On("FormatMarkdown", "content").
		Return("", errors.New("FormatMarkdownError"))

	_, err := executeRootCommand(app, "--no-stream", "hello")

	assert.ErrorContains(t, err, "failed to format response")
	app.Format().(*MockFormatClient).AssertExpectations(t)
}
