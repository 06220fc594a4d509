package llm

import (
	"context"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/errs"
	"google.golang.org/genai"
)

const geminiProviderName = "gemini"

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type llmClientGemini struct {
	models geminiModels
	model  string
}

func newGeminiClient(ctx context.Context, apiKey string, model string, endpoint string) (*llmClientGemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: endpoint},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}
	return &llmClientGemini{models: client.Models, model: model}, nil
}

// toGeminiContents splits messages into the system instruction and the chat
// contents. Assistant turns use the model role.
func (ai *llmClientGemini) toGeminiContents(messages []Message) (*genai.GenerateContentConfig, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case System:
			system = append(system, msg.Content)
		case Assistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		},
	}, contents
}

func (ai *llmClientGemini) Send(ctx context.Context, messages []Message) (*LLMSendResponse, error) {
	config, contents := ai.toGeminiContents(messages)
	resp, err := ai.models.GenerateContent(ctx, ai.model, contents, config)
	if err != nil {
		return nil, errs.Upstream(geminiProviderName, err)
	}
	if len(resp.Candidates) == 0 {
		return nil, errs.Upstreamf(geminiProviderName, "response has no candidates")
	}

	return &LLMSendResponse{
		Content: resp.Text(),
		Usage:   geminiUsage(resp),
	}, nil
}

func (ai *llmClientGemini) Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	out := make(chan LLMStreamEvent)

	go func() {
		defer close(out)
		config, contents := ai.toGeminiContents(messages)

		var full strings.Builder
		var usage LLMTokenUsage
		for resp, err := range ai.models.GenerateContentStream(ctx, ai.model, contents, config) {
			if err != nil {
				send(ctx, out, streamError(geminiProviderName, err))
				return
			}
			if resp.UsageMetadata != nil {
				usage = geminiUsage(resp)
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			full.WriteString(text)
			if !send(ctx, out, LLMStreamEvent{Type: LLMStreamEventTypeMessage, Content: text, Usage: usage}) {
				return
			}
		}

		send(ctx, out, LLMStreamEvent{
			Type:    LLMStreamEventTypeComplete,
			Content: full.String(),
			Usage:   usage,
		})
	}()

	return out
}

func geminiUsage(resp *genai.GenerateContentResponse) LLMTokenUsage {
	if resp.UsageMetadata == nil {
		return LLMTokenUsage{}
	}
	return LLMTokenUsage{
		InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
	}
}
