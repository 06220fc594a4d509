package llm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/klemjul/promptforge/internal/errs"
	"github.com/ollama/ollama/api"
)

const ollamaProviderName = "ollama"

type ollamaChatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

type llmClientOllama struct {
	client ollamaChatClient
	model  string
}

func newOllamaClient(localEndpoint url.URL, model string) *llmClientOllama {
	return &llmClientOllama{
		client: api.NewClient(&localEndpoint, http.DefaultClient),
		model:  model,
	}
}

// Send consumes the chat stream until it completes.
func (ai *llmClientOllama) Send(ctx context.Context, messages []Message) (*LLMSendResponse, error) {
	res, err := Aggregate(ctx, ai.chat(ctx, messages), nil)
	if err != nil {
		return nil, errs.Upstream(ollamaProviderName, err)
	}
	return &LLMSendResponse{Content: res.Text, Usage: res.Usage}, nil
}

func (ai *llmClientOllama) Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	return ai.chat(ctx, messages)
}

func (ai *llmClientOllama) chat(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	out := make(chan LLMStreamEvent)
	stream := true
	go func() {
		defer close(out)

		err := ai.client.Chat(ctx, &api.ChatRequest{
			Model:    ai.model,
			Messages: ai.toOllamaMessages(messages),
			Stream:   &stream,
		}, func(resp api.ChatResponse) error {
			if !send(ctx, out, LLMStreamEvent{Content: resp.Message.Content, Type: LLMStreamEventTypeMessage}) {
				return ctx.Err()
			}
			if resp.Done {
				send(ctx, out, LLMStreamEvent{
					Type: LLMStreamEventTypeComplete,
					Usage: LLMTokenUsage{
						InputTokens:  int64(resp.PromptEvalCount),
						OutputTokens: int64(resp.EvalCount),
					},
				})
			}
			return nil
		})

		if err != nil {
			send(ctx, out, streamError(ollamaProviderName, err))
		}
	}()
	return out
}

func (ai *llmClientOllama) toOllamaMessages(messages []Message) []api.Message {
	var ollamaMessages []api.Message
	for _, msg := range messages {
		ollamaMessages = append(ollamaMessages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return ollamaMessages
}
