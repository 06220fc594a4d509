package llm

import (
	"context"

	"github.com/klemjul/promptforge/internal/errs"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIProviderName = "openai"

type openaiChatStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

type openaiChatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) openaiChatStream
}

// openaiCompletionsService narrows the SDK service to openaiChatCompletions.
type openaiCompletionsService struct {
	service *openai.ChatCompletionService
}

func (s openaiCompletionsService) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return s.service.New(ctx, body, opts...)
}

func (s openaiCompletionsService) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) openaiChatStream {
	return s.service.NewStreaming(ctx, body, opts...)
}

type llmClientOpenAi struct {
	client openaiChatCompletions
	model  string
}

func newOpenAIClient(openAIKey string, model string, opts ...option.RequestOption) *llmClientOpenAi {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(openAIKey)}, opts...)...)
	return &llmClientOpenAi{
		client: openaiCompletionsService{service: &client.Chat.Completions},
		model:  model,
	}
}

func openAIEndpointOptions(endpoint string) []option.RequestOption {
	if endpoint == "" {
		return nil
	}
	return []option.RequestOption{option.WithBaseURL(endpoint)}
}

func (ai *llmClientOpenAi) toOpenAiMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	var openAiMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case Assistant:
			openAiMessages = append(openAiMessages, openai.AssistantMessage(msg.Content))
		case System:
			openAiMessages = append(openAiMessages, openai.SystemMessage(msg.Content))
		default:
			openAiMessages = append(openAiMessages, openai.UserMessage(msg.Content))
		}
	}
	return openAiMessages
}

func (ai *llmClientOpenAi) Send(ctx context.Context, messages []Message) (*LLMSendResponse, error) {
	res, err := ai.client.New(
		ctx,
		openai.ChatCompletionNewParams{
			Model:    ai.model,
			Messages: ai.toOpenAiMessages(messages),
			N:        openai.Int(1),
		},
	)
	if err != nil {
		return nil, errs.Upstream(openAIProviderName, err)
	}
	if len(res.Choices) == 0 {
		return nil, errs.Upstreamf(openAIProviderName, "response has no choices")
	}

	return &LLMSendResponse{
		Content: res.Choices[0].Message.Content,
		Usage: LLMTokenUsage{
			InputTokens:  res.Usage.PromptTokens,
			OutputTokens: res.Usage.CompletionTokens,
		},
	}, nil
}

func (ai *llmClientOpenAi) Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	out := make(chan LLMStreamEvent)

	go func() {
		defer close(out)
		acc := openai.ChatCompletionAccumulator{}
		aiStream := ai.client.NewStreaming(
			ctx,
			openai.ChatCompletionNewParams{
				Model:    ai.model,
				Messages: ai.toOpenAiMessages(messages),
				StreamOptions: openai.ChatCompletionStreamOptionsParam{
					IncludeUsage: openai.Bool(true),
				},
				N: openai.Int(1),
			},
		)
		defer aiStream.Close()

		for aiStream.Next() {
			chunk := aiStream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				ok := send(ctx, out, LLMStreamEvent{
					Type:    LLMStreamEventTypeMessage,
					Content: chunk.Choices[0].Delta.Content,
					Usage: LLMTokenUsage{
						InputTokens:  chunk.Usage.PromptTokens,
						OutputTokens: chunk.Usage.CompletionTokens,
					},
				})
				if !ok {
					return
				}
			}
		}

		if err := aiStream.Err(); err != nil {
			send(ctx, out, streamError(openAIProviderName, err))
			return
		}

		var content string
		if len(acc.ChatCompletion.Choices) > 0 {
			content = acc.ChatCompletion.Choices[0].Message.Content
		}
		send(ctx, out, LLMStreamEvent{
			Type:    LLMStreamEventTypeComplete,
			Content: content,
			Usage: LLMTokenUsage{
				InputTokens:  acc.ChatCompletion.Usage.PromptTokens,
				OutputTokens: acc.ChatCompletion.Usage.CompletionTokens,
			},
		})
	}()

	return out
}
