package llm

import (
	"context"
	"net/url"
	"os"

	"github.com/klemjul/promptforge/internal/errs"
)

type LLMTokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

type LLMSendResponse struct {
	Content string
	Usage   LLMTokenUsage
}

type LLMStreamEventType string

const (
	LLMStreamEventTypeMessage  LLMStreamEventType = "content"
	LLMStreamEventTypeComplete LLMStreamEventType = "complete"
	LLMStreamEventTypeError    LLMStreamEventType = "error"
)

type LLMStreamEvent struct {
	Content string
	Usage   LLMTokenUsage
	Type    LLMStreamEventType
	// Err is set on error events and names the failing provider.
	Err error
}

// LLMClient produces text for a conversation, either in one piece or as a
// stream. A stream carries content events followed by exactly one complete
// or error event before it is closed. Producers stop once ctx is done.
type LLMClient interface {
	Send(ctx context.Context, messages []Message) (*LLMSendResponse, error)
	Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent
}

type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderOllama LLMProvider = "ollama"
)

var LLMProviders = []LLMProvider{LLMProviderGemini, LLMProviderOpenAI, LLMProviderOllama}

var DefaultModels = map[LLMProvider]string{
	LLMProviderGemini: "gemini-1.5-flash",
	LLMProviderOpenAI: "gpt-4o-mini",
	LLMProviderOllama: "llama3.2",
}

type LLMClientOptions struct {
	Model string
	// APIKey overrides the provider key environment variable.
	APIKey string
	// Endpoint overrides the provider base URL.
	Endpoint string
}

// NewClient builds the client of provider. Every failure is a
// *errs.ConfigurationError.
func NewClient(ctx context.Context, provider LLMProvider, opts LLMClientOptions) (LLMClient, error) {
	model := opts.Model
	if model == "" {
		model = DefaultModels[provider]
	}

	switch provider {
	case LLMProviderOpenAI:
		apiKey := firstNonEmpty(opts.APIKey, os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, errs.Configurationf("OPENAI_API_KEY environment variable is not set")
		}
		if opts.Endpoint != "" {
			if _, err := url.ParseRequestURI(opts.Endpoint); err != nil {
				return nil, errs.Configurationf("openai endpoint URL is invalid: %v", err)
			}
		}
		return newOpenAIClient(apiKey, model, openAIEndpointOptions(opts.Endpoint)...), nil
	case LLMProviderOllama:
		ollamaEndpoint := firstNonEmpty(opts.Endpoint, os.Getenv("OLLAMA_ENDPOINT"))
		if ollamaEndpoint == "" {
			return nil, errs.Configurationf("OLLAMA_ENDPOINT environment variable is not set")
		}
		localEndpoint, err := url.Parse(ollamaEndpoint)
		if err != nil {
			return nil, errs.Configurationf("OLLAMA_ENDPOINT URL is invalid: %v", err)
		}
		return newOllamaClient(*localEndpoint, model), nil
	case LLMProviderGemini:
		apiKey := firstNonEmpty(opts.APIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if apiKey == "" {
			return nil, errs.Configurationf("GEMINI_API_KEY environment variable is not set")
		}
		client, err := newGeminiClient(ctx, apiKey, model, opts.Endpoint)
		if err != nil {
			return nil, errs.Configuration(err)
		}
		return client, nil
	default:
		return nil, errs.Configurationf("%s: invalid provider", provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func streamError(provider string, err error) LLMStreamEvent {
	return LLMStreamEvent{
		Type:    LLMStreamEventTypeError,
		Content: err.Error(),
		Err:     errs.Upstream(provider, err),
	}
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, out chan<- LLMStreamEvent, ev LLMStreamEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
