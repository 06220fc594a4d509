package llm

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/errs"
)

var ErrStreamIncomplete = errors.New("stream closed before completion")

// Aggregation is the joined result of a completed stream.
type Aggregation struct {
	Text string
	// Fragments are the content fragments in arrival order.
	Fragments []string
	Usage     LLMTokenUsage
}

// Aggregate consumes events until the stream completes. onFragment, when not
// nil, observes every non-empty fragment as it arrives. A stream that errors,
// closes without completing, or outlives ctx yields no partial result.
func Aggregate(ctx context.Context, events <-chan LLMStreamEvent, onFragment func(string)) (*Aggregation, error) {
	var text strings.Builder
	var fragments []string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var event LLMStreamEvent
		var ok bool
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok = <-events:
		}
		if !ok {
			return nil, errs.Upstream("", ErrStreamIncomplete)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch event.Type {
		case LLMStreamEventTypeMessage:
			if event.Content == "" {
				continue
			}
			text.WriteString(event.Content)
			fragments = append(fragments, event.Content)
			if onFragment != nil {
				onFragment(event.Content)
			}
		case LLMStreamEventTypeComplete:
			return &Aggregation{
				Text:      text.String(),
				Fragments: fragments,
				Usage:     event.Usage,
			}, nil
		case LLMStreamEventTypeError:
			if event.Err != nil {
				return nil, errs.Upstream("", event.Err)
			}
			return nil, errs.Upstream("", errors.New(event.Content))
		default:
			return nil, errs.Upstreamf("", "unexpected stream event type %q", event.Type)
		}
	}
}
