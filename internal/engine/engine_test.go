package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jurislink/jurislink-client/internal/reasoning"
	"github.com/jurislink/jurislink-client/internal/session"
)

// fakeAI scripts the reasoning service. When block is set, Exchange waits
// until the channel closes or the context is cancelled, which lets tests
// hold an exchange in flight.
type fakeAI struct {
	mu      sync.Mutex
	resp    reasoning.Response
	err     error
	block   chan struct{}
	calls   int
	lastReq reasoning.Request
}

func (f *fakeAI) Exchange(ctx context.Context, r reasoning.Request) (*reasoning.Response, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = r
	resp, err, block := f.resp, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	cp := resp
	return &cp, nil
}

func (f *fakeAI) set(resp reasoning.Response, err error) {
	f.mu.Lock()
	f.resp, f.err, f.block = resp, err, nil
	f.mu.Unlock()
}

func (f *fakeAI) last() reasoning.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func newTestEngine(t *testing.T, ai Exchanger) (*Engine, *session.Store, *session.Cache) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cache, err := session.OpenCache(fmt.Sprintf("file:eng_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	store := session.NewStore(cache, nil, nil, zap.NewNop())
	return New(store, ai, t.TempDir(), zap.NewNop()), store, cache
}

func waitSending(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !e.Sending() {
		if time.Now().After(deadline) {
			t.Fatal("exchange never entered flight")
		}
		time.Sleep(time.Millisecond)
	}
}

func okResponse() reasoning.Response {
	return reasoning.Response{
		Response: "You may have a claim under state law.",
		Facts: map[string]string{
			"Legal_Issue":  "Security Deposit Dispute",
			"Jurisdiction": "California",
		},
		FinalState: json.RawMessage(`{"step":1}`),
		Status:     reasoning.StatusOK,
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeAI{})
	_, err := eng.Send(context.Background(), "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, eng.Messages())
}

func TestSendSuccessPersistsAndTitles(t *testing.T) {
	ai := &fakeAI{resp: okResponse()}
	eng, _, cache := newTestEngine(t, ai)

	res, err := eng.Send(context.Background(), "my landlord kept my deposit")
	require.NoError(t, err)

	assert.Equal(t, OutcomeReplied, res.Outcome)
	assert.Len(t, res.SessionID, 26, "ulid session id")
	assert.Equal(t, res.SessionID, eng.SessionID())

	msgs := eng.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "my landlord kept my deposit", msgs[0].Content)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	assert.False(t, msgs[1].IsError)

	// Fact-derived title, jurisdiction suffixed, capped with an ellipsis.
	require.Len(t, res.Index, 1)
	assert.Equal(t, "Security Deposit Dispute...", res.Index[0].Title)

	saved, err := cache.Load(res.SessionID)
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 2)
	assert.Equal(t, "Security Deposit Dispute", saved.Facts["Legal_Issue"])
	assert.JSONEq(t, `{"step":1}`, string(saved.BackendState))
}

func TestSendKeepsPriorStateWhenResponseOmitsFields(t *testing.T) {
	ai := &fakeAI{resp: okResponse()}
	eng, _, _ := newTestEngine(t, ai)
	ctx := context.Background()

	_, err := eng.Send(ctx, "my landlord kept my deposit")
	require.NoError(t, err)
	id := eng.SessionID()

	// Second response carries no facts and no state; prior values survive.
	ai.set(reasoning.Response{Response: "Anything else?", Status: reasoning.StatusOK}, nil)
	_, err = eng.Send(ctx, "what should I do next")
	require.NoError(t, err)

	assert.Equal(t, id, eng.SessionID(), "session id is stable after the first exchange")
	assert.Equal(t, "Security Deposit Dispute", eng.Facts()["Legal_Issue"])

	// The state sent upstream was the one from the first exchange.
	assert.JSONEq(t, `{"step":1}`, string(ai.last().PreviousState))
}

func TestSendShortTitleOutranksFacts(t *testing.T) {
	resp := okResponse()
	resp.ShortTitle = "Deposit Fight"
	ai := &fakeAI{resp: resp}
	eng, _, _ := newTestEngine(t, ai)

	res, err := eng.Send(context.Background(), "my landlord kept my deposit")
	require.NoError(t, err)
	require.Len(t, res.Index, 1)
	assert.Equal(t, "Deposit Fight", res.Index[0].Title)
}

func TestSendBusyWhileInFlight(t *testing.T) {
	block := make(chan struct{})
	ai := &fakeAI{resp: okResponse(), block: block}
	eng, _, _ := newTestEngine(t, ai)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = eng.Send(ctx, "first")
	}()
	waitSending(t, eng)

	_, err := eng.Send(ctx, "second")
	require.ErrorIs(t, err, ErrBusy)

	close(block)
	<-done
	assert.False(t, eng.Sending())
}

func TestStopYieldsStoppedNoticeWithoutPersisting(t *testing.T) {
	block := make(chan struct{})
	ai := &fakeAI{resp: okResponse(), block: block}
	eng, _, cache := newTestEngine(t, ai)
	ctx := context.Background()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := eng.Send(ctx, "my landlord kept my deposit")
		done <- outcome{res, err}
	}()
	waitSending(t, eng)
	eng.Stop()

	out := <-done
	require.NoError(t, out.err, "user cancellation is not an error")
	assert.Equal(t, OutcomeStopped, out.res.Outcome)
	assert.Equal(t, "Generation stopped.", out.res.Reply.Content)

	msgs := eng.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Generation stopped.", msgs[1].Content)
	assert.False(t, msgs[1].IsError)

	// Nothing was persisted and no session id was minted.
	assert.Empty(t, eng.SessionID())
	entries, err := cache.Index()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Nil(t, eng.Facts())
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeAI{resp: okResponse()})
	eng.Stop()
	_, err := eng.Send(context.Background(), "still works")
	require.NoError(t, err)
}

func TestTransportErrorAppendsErrorMessage(t *testing.T) {
	ai := &fakeAI{err: errors.New("dial tcp: connection refused")}
	eng, _, cache := newTestEngine(t, ai)

	res, err := eng.Send(context.Background(), "my landlord kept my deposit")
	require.Error(t, err)
	assert.Nil(t, res)

	msgs := eng.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsError)
	assert.Equal(t, "**Connection Error**", msgs[1].Content)

	assert.Empty(t, eng.SessionID())
	entries, ierr := cache.Index()
	require.NoError(t, ierr)
	assert.Empty(t, entries)
}

func TestServiceReportedErrorStillPersists(t *testing.T) {
	ai := &fakeAI{resp: reasoning.Response{
		Response: "I ran into a problem researching that.",
		Status:   reasoning.StatusError,
	}}
	eng, _, cache := newTestEngine(t, ai)

	res, err := eng.Send(context.Background(), "my landlord kept my deposit")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplied, res.Outcome)
	assert.True(t, res.Reply.IsError)
	assert.NotEmpty(t, res.SessionID)

	entries, err := cache.Index()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOrphanedExchangeDiscarded(t *testing.T) {
	block := make(chan struct{})
	ai := &fakeAI{resp: okResponse(), block: block}
	eng, _, cache := newTestEngine(t, ai)
	ctx := context.Background()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := eng.Send(ctx, "orphan me")
		done <- outcome{res, err}
	}()
	waitSending(t, eng)

	eng.NewConversation()
	close(block)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, OutcomeDiscarded, out.res.Outcome)

	// The orphan left no trace: no messages, no session, nothing persisted.
	assert.Empty(t, eng.Messages())
	assert.Empty(t, eng.SessionID())
	entries, err := cache.Index()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadSessionHydratesState(t *testing.T) {
	ai := &fakeAI{resp: okResponse()}
	eng, store, _ := newTestEngine(t, ai)
	ctx := context.Background()

	saved := &session.Session{
		ID: session.NewID(),
		Messages: []session.Message{
			{Role: session.RoleUser, Content: "earlier question"},
			{Role: session.RoleAssistant, Content: "earlier answer"},
		},
		Facts:        map[string]string{"Legal_Issue": "Wage Theft"},
		BackendState: json.RawMessage(`{"step":7}`),
	}
	_, err := store.Save(ctx, saved, "Wage Theft", false)
	require.NoError(t, err)

	s, err := eng.LoadSession(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wage Theft", s.Title)
	assert.Equal(t, saved.ID, eng.SessionID())
	assert.Len(t, eng.Messages(), 2)

	// The next exchange continues from the restored state.
	_, err = eng.Send(ctx, "follow up")
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":7}`, string(ai.last().PreviousState))
	require.Len(t, ai.last().History, 3)
}

func TestLoadSessionMissing(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeAI{})
	_, err := eng.LoadSession(context.Background(), "ghost")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRenameSticksAcrossLaterExchanges(t *testing.T) {
	ai := &fakeAI{resp: okResponse()}
	eng, store, cache := newTestEngine(t, ai)
	ctx := context.Background()

	_, err := eng.Send(ctx, "my landlord kept my deposit")
	require.NoError(t, err)
	id := eng.SessionID()

	_, err = store.Rename(ctx, id, "My Case")
	require.NoError(t, err)

	resp := okResponse()
	resp.ShortTitle = "Some Other Title"
	ai.set(resp, nil)
	_, err = eng.Send(ctx, "one more thing")
	require.NoError(t, err)

	entry, err := cache.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, "My Case", entry.Title)
	assert.True(t, entry.IsRenamed)
}

func TestNewConversationResetsState(t *testing.T) {
	ai := &fakeAI{resp: okResponse()}
	eng, _, _ := newTestEngine(t, ai)
	ctx := context.Background()

	_, err := eng.Send(ctx, "my landlord kept my deposit")
	require.NoError(t, err)
	require.NotEmpty(t, eng.SessionID())

	eng.NewConversation()
	assert.Empty(t, eng.SessionID())
	assert.Empty(t, eng.Messages())
	assert.Nil(t, eng.Facts())

	// The next exchange starts clean: empty previous state, fresh history.
	ai.set(okResponse(), nil)
	_, err = eng.Send(ctx, "new matter")
	require.NoError(t, err)
	assert.Empty(t, ai.last().PreviousState)
	require.Len(t, ai.last().History, 1)
}

func TestSendWritesArtifacts(t *testing.T) {
	resp := okResponse()
	resp.Docs = &reasoning.DocSet{
		DemandLetter: "JVBERi1sZXR0ZXI=", // base64 "%PDF-letter"
	}
	ai := &fakeAI{resp: resp}
	eng, _, _ := newTestEngine(t, ai)

	res, err := eng.Send(context.Background(), "draft a demand letter")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply.DocURL)
	assert.Contains(t, res.Reply.DocURL, "_demand_letter.pdf")
}
