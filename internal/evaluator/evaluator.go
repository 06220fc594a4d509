// Package evaluator runs one prompt through template binding, generation and
// the conversation log.
package evaluator

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/conversation"
	"github.com/klemjul/promptforge/internal/errs"
	"github.com/klemjul/promptforge/internal/llm"
	"github.com/klemjul/promptforge/internal/log"
	"github.com/klemjul/promptforge/internal/prompt"
	"go.uber.org/zap"
)

type State string

const (
	Idle        State = "idle"
	Validating  State = "validating"
	Rejected    State = "rejected"
	Bound       State = "bound"
	Generating  State = "generating"
	Aggregating State = "aggregating"
	Completed   State = "completed"
	Failed      State = "failed"
)

type Options struct {
	Template *prompt.Template
	Client   llm.LLMClient
	Store    *conversation.Store
	Logger   *zap.Logger

	// Streaming selects the streaming client variant.
	Streaming bool
	// IncludeHistory sends the answered turns of the session before the
	// bound request.
	IncludeHistory bool
	// PromptTokenLimit rejects prompts estimated above it. Zero disables the
	// check.
	PromptTokenLimit int
	// OnState observes every state transition of a turn.
	OnState func(State)
}

type Result struct {
	Request   string
	Text      string
	Fragments []string
	Usage     llm.LLMTokenUsage
	Streamed  bool
}

type Evaluator struct {
	opts   Options
	logger *zap.Logger
	turns  int
}

func New(opts Options) (*Evaluator, error) {
	if opts.Template == nil {
		return nil, errors.New("evaluator requires a template")
	}
	if opts.Client == nil {
		return nil, errors.New("evaluator requires a client")
	}
	if opts.Store == nil {
		return nil, errors.New("evaluator requires a conversation store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		opts:   opts,
		logger: log.WithSession(logger, opts.Store.ID()),
	}, nil
}

func (e *Evaluator) Store() *conversation.Store { return e.opts.Store }

func (e *Evaluator) Streaming() bool { return e.opts.Streaming }

// Evaluate runs one turn for userPrompt. onFragment, when not nil, observes
// streamed fragments as they arrive. A rejected prompt leaves the store
// untouched; any later failure leaves the user turn without an answer.
func (e *Evaluator) Evaluate(ctx context.Context, userPrompt string, onFragment func(string)) (*Result, error) {
	e.turns++
	t := &turn{evaluator: e, logger: e.logger.With(zap.Int("turn", e.turns))}
	t.transition(Idle)
	t.transition(Validating)

	request, err := e.opts.Template.Bind(userPrompt)
	if err == nil && e.opts.PromptTokenLimit > 0 {
		if tokens := llm.RoughEstimateTokens(strings.TrimSpace(userPrompt)); tokens > e.opts.PromptTokenLimit {
			err = errs.Validation("prompt exceeds estimated token limit of %d tokens (got %d)", e.opts.PromptTokenLimit, tokens)
		}
	}
	if err != nil {
		t.transition(Rejected)
		t.logger.Debug("prompt rejected", zap.Error(err))
		return nil, err
	}
	t.transition(Bound)

	messages := e.messages(request)
	e.opts.Store.Append(conversation.Turn{Role: conversation.User, Content: userPrompt})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.transition(Generating)
	var res *Result
	if e.opts.Streaming {
		res, err = t.stream(ctx, messages, onFragment)
	} else {
		res, err = t.send(ctx, messages)
	}
	if err == nil && res.Text == "" {
		err = errs.Upstreamf("", "empty response")
	}
	if err != nil {
		t.transition(Failed)
		t.logger.Warn("turn failed", zap.String("kind", errs.Kind(err)), zap.Error(err))
		return nil, err
	}

	res.Request = request
	e.opts.Store.Append(conversation.Turn{Role: conversation.Assistant, Content: res.Text})
	t.transition(Completed)
	t.logger.Info("turn completed",
		zap.Int64("input_tokens", res.Usage.InputTokens),
		zap.Int64("output_tokens", res.Usage.OutputTokens),
		zap.Int("fragments", len(res.Fragments)),
	)
	return res, nil
}

func (e *Evaluator) messages(request string) []llm.Message {
	var messages []llm.Message
	if e.opts.IncludeHistory {
		for _, previous := range e.opts.Store.Answered() {
			role := llm.User
			if previous.Role == conversation.Assistant {
				role = llm.Assistant
			}
			messages = append(messages, llm.Message{Role: role, Content: previous.Content})
		}
	}
	return append(messages, llm.Message{Role: llm.User, Content: request})
}

type turn struct {
	evaluator *Evaluator
	logger    *zap.Logger
	state     State
}

func (t *turn) transition(to State) {
	t.logger.Debug("turn state", zap.String("from", string(t.state)), zap.String("to", string(to)))
	t.state = to
	if t.evaluator.opts.OnState != nil {
		t.evaluator.opts.OnState(to)
	}
}

func (t *turn) stream(ctx context.Context, messages []llm.Message, onFragment func(string)) (*Result, error) {
	events := t.evaluator.opts.Client.Stream(ctx, messages)
	t.transition(Aggregating)

	aggregated, err := llm.Aggregate(ctx, events, onFragment)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:      aggregated.Text,
		Fragments: aggregated.Fragments,
		Usage:     aggregated.Usage,
		Streamed:  true,
	}, nil
}

func (t *turn) send(ctx context.Context, messages []llm.Message) (*Result, error) {
	res, err := t.evaluator.opts.Client.Send(ctx, messages)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, errs.Upstream("", err)
	}
	t.transition(Aggregating)
	return &Result{Text: res.Content, Usage: res.Usage}, nil
}
