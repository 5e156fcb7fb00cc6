// Package engine drives a single conversation against the reasoning
// service: the message list, the opaque continuation state, and the
// send/stop request lifecycle. One engine instance serves one active
// conversation at a time.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jurislink/jurislink-client/internal/autotitle"
	"github.com/jurislink/jurislink-client/internal/reasoning"
	"github.com/jurislink/jurislink-client/internal/session"
)

var (
	// ErrBusy rejects a Send while another exchange is in flight.
	ErrBusy = errors.New("an exchange is already in flight")

	// ErrEmptyMessage rejects whitespace-only input.
	ErrEmptyMessage = errors.New("message is empty")
)

const (
	stoppedNotice   = "Generation stopped."
	transportNotice = "**Connection Error**"
)

// Exchanger is the one-call-per-exchange reasoning contract. Satisfied by
// *reasoning.Client; tests substitute fakes.
type Exchanger interface {
	Exchange(ctx context.Context, r reasoning.Request) (*reasoning.Response, error)
}

// Outcome classifies how an exchange ended.
type Outcome int

const (
	// OutcomeReplied: the service answered and the session was persisted.
	OutcomeReplied Outcome = iota
	// OutcomeStopped: the user aborted; a stopped notice was appended and
	// nothing was persisted.
	OutcomeStopped
	// OutcomeDiscarded: the conversation changed while the exchange was in
	// flight, so its result was dropped without touching state.
	OutcomeDiscarded
)

// Result reports a finished exchange.
type Result struct {
	Outcome   Outcome
	Reply     session.Message
	SessionID string
	Index     []session.IndexEntry
}

// Engine is safe for use by one UI goroutine plus concurrent Stop calls.
type Engine struct {
	store        *session.Store
	ai           Exchanger
	artifactsDir string
	log          *zap.Logger

	mu      sync.Mutex
	sending bool
	cancel  context.CancelFunc

	// gen increments whenever the addressable conversation changes; an
	// exchange dispatched under an older gen is an orphan and its result
	// is discarded on arrival.
	gen uint64

	sessionID    string
	messages     []session.Message
	facts        map[string]string
	strategy     json.RawMessage
	backendState json.RawMessage
}

func New(store *session.Store, ai Exchanger, artifactsDir string, log *zap.Logger) *Engine {
	return &Engine{store: store, ai: ai, artifactsDir: artifactsDir, log: log}
}

// Send runs one exchange: append the user message optimistically, call the
// reasoning service, apply the response, persist. Returns ErrBusy while
// another exchange is in flight and ErrEmptyMessage for blank input. A
// transport failure appends an error-flagged message and returns the
// underlying error; user cancellation is not an error and yields
// OutcomeStopped.
func (e *Engine) Send(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	e.mu.Lock()
	if e.sending {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.sending = true
	sendCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	gen := e.gen
	reqID := uuid.NewString()

	e.messages = append(e.messages, session.Message{Role: session.RoleUser, Content: text})
	history := append([]session.Message(nil), e.messages...)
	prevState := e.backendState
	e.mu.Unlock()

	resp, err := e.ai.Exchange(sendCtx, reasoning.Request{
		Message:       text,
		History:       history,
		PreviousState: prevState,
	})
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sending = false
	e.cancel = nil

	if gen != e.gen {
		e.log.Debug("discarding orphaned exchange", zap.String("request_id", reqID))
		return &Result{Outcome: OutcomeDiscarded}, nil
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			stopped := session.Message{Role: session.RoleAssistant, Content: stoppedNotice}
			e.messages = append(e.messages, stopped)
			return &Result{Outcome: OutcomeStopped, Reply: stopped, SessionID: e.sessionID}, nil
		}
		errMsg := session.Message{Role: session.RoleAssistant, Content: transportNotice, IsError: true}
		e.messages = append(e.messages, errMsg)
		return nil, fmt.Errorf("exchange: %w", err)
	}

	// Full replace when the response carries the field; absent fields keep
	// the prior value.
	if resp.FinalState != nil {
		e.backendState = resp.FinalState
	}
	if resp.Facts != nil {
		e.facts = resp.Facts
	}
	if resp.Strategy != nil {
		e.strategy = resp.Strategy
	}

	// Sessions exist only after their first successful exchange.
	if e.sessionID == "" {
		e.sessionID = session.NewID()
	}

	docURL := ""
	if e.artifactsDir != "" && resp.Docs != nil {
		path, derr := reasoning.WriteArtifacts(e.artifactsDir, e.sessionID, resp.Docs)
		if derr != nil {
			e.log.Warn("artifact write failed",
				zap.String("session_id", e.sessionID), zap.Error(derr))
		}
		docURL = path
	}

	reply := session.Message{
		Role:    session.RoleAssistant,
		Content: resp.Response,
		IsError: resp.Errored(),
		DocURL:  docURL,
	}
	e.messages = append(e.messages, reply)

	title := autotitle.Derive(autotitle.Input{
		ShortTitle: resp.ShortTitle,
		Facts:      e.facts,
		Messages:   e.messages,
	})

	snapshot := &session.Session{
		ID:           e.sessionID,
		Messages:     append([]session.Message(nil), e.messages...),
		Facts:        copyFacts(e.facts),
		Strategy:     e.strategy,
		BackendState: e.backendState,
	}
	index, serr := e.store.Save(ctx, snapshot, title, false)
	if serr != nil {
		e.log.Error("session save failed",
			zap.String("session_id", e.sessionID), zap.Error(serr))
	}

	return &Result{
		Outcome:   OutcomeReplied,
		Reply:     reply,
		SessionID: e.sessionID,
		Index:     index,
	}, nil
}

// Stop signals cancellation to the in-flight exchange. No-op when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// LoadSession hydrates the engine from a persisted session. An exchange
// still in flight for the previous conversation is orphaned: its result is
// dropped silently when it arrives.
func (e *Engine) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	s, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.sessionID = s.ID
	e.messages = append([]session.Message(nil), s.Messages...)
	e.facts = copyFacts(s.Facts)
	e.strategy = s.Strategy
	e.backendState = s.BackendState
	return s, nil
}

// NewConversation clears in-memory state only. No session is created until
// the first successful exchange.
func (e *Engine) NewConversation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.sessionID = ""
	e.messages = nil
	e.facts = nil
	e.strategy = nil
	e.backendState = nil
}

// SessionID returns the current session id, or "" before the first
// successful exchange.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Sending reports whether an exchange is in flight.
func (e *Engine) Sending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending
}

// Messages returns a copy of the conversation so far.
func (e *Engine) Messages() []session.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.Message(nil), e.messages...)
}

// Facts returns a copy of the last extracted facts.
func (e *Engine) Facts() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyFacts(e.facts)
}

func copyFacts(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
