package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/chunker"
	"github.com/kiransahoo/ddd-refactor/internal/llm"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
	"github.com/kiransahoo/ddd-refactor/internal/parser"
)

// State is the validation loop's position for one chunk.
type State int

const (
	StateDrafting State = iota
	StateAwaitingModel
	StateValidating
	StateAccepted
	StateCorrecting
	StateExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDrafting:
		return "drafting"
	case StateAwaitingModel:
		return "awaiting-model"
	case StateValidating:
		return "validating"
	case StateAccepted:
		return "accepted"
	case StateCorrecting:
		return "correcting"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Loop runs the bounded generate, validate, correct exchange for single
// chunks. Every Run terminates in at most maxAttempts model calls and always
// returns a verdict whose fix either parses or is the fallback annotation.
type Loop struct {
	client      llm.Client
	maxAttempts int
	log         *zap.Logger
}

// NewLoop creates a Loop bounded to maxAttempts model calls per chunk.
func NewLoop(client llm.Client, maxAttempts int) *Loop {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Loop{
		client:      client,
		maxAttempts: maxAttempts,
		log:         logging.Get("agent"),
	}
}

// Run drives one chunk to a terminal verdict. The conversation grows only by
// corrective user messages between attempts; model replies are never echoed
// back into it. Chunks are independent: no state survives across calls.
func (l *Loop) Run(ctx context.Context, ch chunker.Chunk, basePrompt, domainContext string) ChunkVerdict {
	conv := BuildConversation(basePrompt, domainContext, ch.Text)
	state := StateDrafting

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		state = l.transition(ch.Index, attempt, state, StateAwaitingModel)
		reply, err := l.client.Chat(ctx, conv)
		if err != nil {
			l.log.Warn("model call failed",
				zap.Int("chunk", ch.Index),
				zap.Int("attempt", attempt),
				zap.Error(err))
			state = l.transition(ch.Index, attempt, state, StateCorrecting)
			conv = append(conv, llm.Message{Role: llm.RoleUser, Content: feedbackModelFailure})
			continue
		}

		state = l.transition(ch.Index, attempt, state, StateValidating)
		verdict, ok := ExtractVerdict(reply)
		if !ok {
			state = l.transition(ch.Index, attempt, state, StateCorrecting)
			conv = append(conv, llm.Message{Role: llm.RoleUser, Content: feedbackBadJSON})
			continue
		}

		// A clean verdict or an empty fix needs no syntax gate.
		if !verdict.Violation || verdict.SuggestedFix == "" {
			l.transition(ch.Index, attempt, state, StateAccepted)
			return ChunkVerdict{
				ChunkIndex:   ch.Index,
				Violation:    verdict.Violation,
				Reason:       verdict.Reason,
				SuggestedFix: verdict.SuggestedFix,
				Attempts:     attempt,
			}
		}

		if parseErr := parser.Check(verdict.SuggestedFix); parseErr != nil {
			state = l.transition(ch.Index, attempt, state, StateCorrecting)
			conv = append(conv, llm.Message{Role: llm.RoleUser, Content: feedbackBadFix(parseErr)})
			continue
		}

		l.transition(ch.Index, attempt, state, StateAccepted)
		return ChunkVerdict{
			ChunkIndex:   ch.Index,
			Violation:    true,
			Reason:       verdict.Reason,
			SuggestedFix: verdict.SuggestedFix,
			Attempts:     attempt,
		}
	}

	l.transition(ch.Index, l.maxAttempts, state, StateExhausted)
	l.log.Warn("attempts exhausted, emitting fallback verdict",
		zap.Int("chunk", ch.Index),
		zap.Int("attempts", l.maxAttempts))
	return FallbackVerdict(ch, l.maxAttempts)
}

func (l *Loop) transition(chunk, attempt int, from, to State) State {
	l.log.Debug("loop transition",
		zap.Int("chunk", chunk),
		zap.Int("attempt", attempt),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	return to
}

// FallbackVerdict is the deterministic exhausted-loop result: the chunk text
// survives verbatim inside a comment so no detected violation is silently
// dropped and the output stays parseable.
func FallbackVerdict(ch chunker.Chunk, attempts int) ChunkVerdict {
	return ChunkVerdict{
		ChunkIndex:   ch.Index,
		Violation:    true,
		Reason:       "Max parse attempts reached, fallback comment only.",
		SuggestedFix: "// fallback refactor, snippet unparseable\n/*\n" + ch.Text + "\n*/",
		Attempts:     attempts,
		Fallback:     true,
	}
}
