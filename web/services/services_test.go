package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"estate-agent/chat"
	apperrors "estate-agent/errors"
	"estate-agent/gemini"
	"estate-agent/identity"
	"estate-agent/places"
	"estate-agent/session"
	"estate-agent/storage"
	"estate-agent/web/format"
	"estate-agent/web/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGenerator struct {
	mu       sync.Mutex
	resp     *gemini.GenerateResponse
	err      error
	gate     chan struct{}
	started  chan struct{}
	once     sync.Once
	requests [][]gemini.Content
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []gemini.Content, _ *types.LatLng) (*gemini.GenerateResponse, error) {
	f.mu.Lock()
	snapshot := make([]gemini.Content, len(contents))
	copy(snapshot, contents)
	f.requests = append(f.requests, snapshot)
	gate := f.gate
	f.mu.Unlock()

	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeGenerator) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func textResponse(text string, chunks ...gemini.GroundingChunk) *gemini.GenerateResponse {
	return &gemini.GenerateResponse{
		Candidates: []gemini.Candidate{{
			Content:           gemini.Content{Role: "model", Parts: []gemini.Part{{Text: text}}},
			GroundingMetadata: &gemini.GroundingMetadata{GroundingChunks: chunks},
		}},
	}
}

type testStack struct {
	sessions *SessionService
	turns    *TurnService
	gen      *fakeGenerator
	durable  *storage.MemoryStore
}

func newStack(t *testing.T, gen *fakeGenerator) *testStack {
	t.Helper()
	logger := zap.NewNop()
	durable := storage.NewMemoryStore()
	guest := storage.NewMemoryStore()
	store := session.NewStore(durable, guest, logger)
	idmgr := identity.NewManager(durable, logger)
	renderer, err := format.NewRenderer(32, logger)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	manager := chat.NewManager(gen, places.NewNormalizer(logger), "You scout areas for movers.", logger)

	sessions := NewSessionService(store, idmgr, renderer, logger)
	sessions.Bootstrap(context.Background())
	return &testStack{
		sessions: sessions,
		turns:    NewTurnService(sessions, manager, logger),
		gen:      gen,
		durable:  durable,
	}
}

func collectEvents() (func(TurnEvent), *[]TurnEvent) {
	var events []TurnEvent
	return func(ev TurnEvent) { events = append(events, ev) }, &events
}

func activeMessages(t *testing.T, stack *testStack) []types.RenderedMessage {
	t.Helper()
	var activeID string
	for _, s := range stack.sessions.Summaries() {
		if s.Active {
			activeID = s.ID
		}
	}
	msgs, err := stack.sessions.Messages(activeID)
	if err != nil {
		t.Fatalf("Messages(%q) error = %v", activeID, err)
	}
	return msgs
}

func TestSubmitEmitsLifecycleEvents(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("Camden has two strong picks.", gemini.GroundingChunk{
		Maps: &gemini.MapsChunk{Title: "Camden Lofts", URI: "https://maps.example/lofts"},
	})}
	stack := newStack(t, gen)
	emit, events := collectEvents()

	err := stack.turns.Submit(context.Background(), "Flats near Camden", nil, emit)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if len(*events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(*events))
	}
	if (*events)[0].Type != EventUserMessage || (*events)[0].Message.Text != "Flats near Camden" {
		t.Errorf("events[0] = %+v, want user message", (*events)[0])
	}
	if (*events)[1].Type != EventThinking || !(*events)[1].Message.IsThinking {
		t.Errorf("events[1] = %+v, want thinking placeholder", (*events)[1])
	}
	final := (*events)[2]
	if final.Type != EventMessage {
		t.Errorf("events[2].Type = %q, want %q", final.Type, EventMessage)
	}
	if final.Message.Text != "Camden has two strong picks." {
		t.Errorf("final text = %q, want model answer", final.Message.Text)
	}
	if len(final.Message.Places) != 1 || final.Message.Places[0].Title != "Camden Lofts" {
		t.Errorf("final places = %v, want Camden Lofts", final.Message.Places)
	}
	if !strings.Contains(final.Message.HTML, "<p>") {
		t.Errorf("final HTML = %q, want rendered markdown", final.Message.HTML)
	}

	// The resolved turn is recorded: welcome, user, resolved model message.
	msgs := activeMessages(t, stack)
	if len(msgs) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(msgs))
	}
	if msgs[2].IsThinking {
		t.Error("placeholder still marked thinking after resolution")
	}
}

func TestSubmitRejectsBlankMessage(t *testing.T) {
	stack := newStack(t, &fakeGenerator{resp: textResponse("unused")})
	emit, events := collectEvents()

	err := stack.turns.Submit(context.Background(), "   \n\t", nil, emit)
	if !apperrors.IsInvalidInput(err) {
		t.Errorf("Submit() error = %v, want ErrInvalidInput", err)
	}
	if len(*events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(*events))
	}
	if msgs := activeMessages(t, stack); len(msgs) != 1 {
		t.Errorf("len(messages) = %d, want welcome only", len(msgs))
	}
}

func TestSubmitRejectsOverlappingTurn(t *testing.T) {
	gen := &fakeGenerator{
		resp:    textResponse("slow answer"),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	stack := newStack(t, gen)

	done := make(chan error, 1)
	emit, _ := collectEvents()
	go func() {
		done <- stack.turns.Submit(context.Background(), "first question", nil, emit)
	}()
	<-gen.started

	secondEmit, secondEvents := collectEvents()
	err := stack.turns.Submit(context.Background(), "second question", nil, secondEmit)
	if !apperrors.IsTurnInFlight(err) {
		t.Errorf("Submit() during flight error = %v, want ErrTurnInFlight", err)
	}
	if len(*secondEvents) != 0 {
		t.Errorf("rejected submit emitted %d events, want 0", len(*secondEvents))
	}

	close(gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	// Only the first turn made it into the log.
	msgs := activeMessages(t, stack)
	if len(msgs) != 3 {
		t.Errorf("len(messages) = %d, want 3 (welcome + one turn)", len(msgs))
	}
	if gen.requestCount() != 1 {
		t.Errorf("provider called %d times, want 1", gen.requestCount())
	}

	// The flag clears once the turn resolves.
	if err := stack.turns.Submit(context.Background(), "third question", nil, emit); err != nil {
		t.Errorf("Submit() after flight error = %v", err)
	}
}

func TestSwitchMidFlightLandsInOriginatingSession(t *testing.T) {
	gen := &fakeGenerator{
		resp:    textResponse("late answer"),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	stack := newStack(t, gen)
	origin := stack.sessions.Summaries()[0].ID

	done := make(chan error, 1)
	emit, events := collectEvents()
	go func() {
		done <- stack.turns.Submit(context.Background(), "question in origin", nil, emit)
	}()
	<-gen.started

	// Switching sessions is not blocked by the in-flight turn.
	fresh := stack.sessions.Create(context.Background())

	close(gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	originMsgs, err := stack.sessions.Messages(origin)
	if err != nil {
		t.Fatalf("Messages(origin) error = %v", err)
	}
	if len(originMsgs) != 3 {
		t.Fatalf("origin len(messages) = %d, want 3", len(originMsgs))
	}
	if got := originMsgs[2].Text; got != "late answer" {
		t.Errorf("origin resolved text = %q, want %q", got, "late answer")
	}

	freshMsgs, err := stack.sessions.Messages(fresh.ID)
	if err != nil {
		t.Fatalf("Messages(fresh) error = %v", err)
	}
	if len(freshMsgs) != 1 {
		t.Errorf("fresh len(messages) = %d, want welcome only", len(freshMsgs))
	}
	if final := (*events)[2]; final.SessionID != origin {
		t.Errorf("final event SessionID = %q, want origin %q", final.SessionID, origin)
	}
}

func TestDeleteMidFlightDiscardsResult(t *testing.T) {
	gen := &fakeGenerator{
		resp:    textResponse("orphaned answer"),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	stack := newStack(t, gen)
	origin := stack.sessions.Summaries()[0].ID

	done := make(chan error, 1)
	emit, _ := collectEvents()
	go func() {
		done <- stack.turns.Submit(context.Background(), "doomed question", nil, emit)
	}()
	<-gen.started

	if err := stack.sessions.Delete(context.Background(), origin); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	close(gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// The replacement session never sees the orphaned result.
	for _, s := range stack.sessions.Summaries() {
		msgs, err := stack.sessions.Messages(s.ID)
		if err != nil {
			t.Fatalf("Messages(%q) error = %v", s.ID, err)
		}
		for _, msg := range msgs {
			if msg.Text == "orphaned answer" {
				t.Errorf("orphaned result landed in session %q", s.ID)
			}
		}
	}
}

func TestProviderFailureDegradesToApology(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("dial tcp: connection refused")}
	stack := newStack(t, gen)
	emit, events := collectEvents()

	if err := stack.turns.Submit(context.Background(), "Flats near Camden", nil, emit); err != nil {
		t.Fatalf("Submit() error = %v, degraded turns must not fail", err)
	}

	final := (*events)[2]
	if final.Message.Text != "Sorry, something went wrong while searching. Please try again in a moment." {
		t.Errorf("final text = %q, want the fixed apology", final.Message.Text)
	}
	if len(final.Message.Places) != 0 {
		t.Errorf("final places = %v, want none", final.Message.Places)
	}
	if final.Message.IsThinking {
		t.Error("apology message still marked thinking")
	}
}

func TestSelectReseedsConversationContext(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("answer")}
	stack := newStack(t, gen)
	ctx := context.Background()
	origin := stack.sessions.Summaries()[0].ID
	emit, _ := collectEvents()

	if err := stack.turns.Submit(ctx, "first question", nil, emit); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	stack.sessions.Create(ctx)
	if err := stack.turns.Submit(ctx, "fresh session question", nil, emit); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := stack.sessions.Select(origin); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := stack.turns.Submit(ctx, "back again", nil, emit); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	last := gen.requests[len(gen.requests)-1]
	// Origin's history: first exchange plus the new turn; the other
	// session's turns must not bleed in.
	if len(last) != 3 {
		t.Fatalf("seeded history length = %d, want 3", len(last))
	}
	if last[0].Parts[0].Text != "first question" {
		t.Errorf("seeded history starts with %q, want %q", last[0].Parts[0].Text, "first question")
	}
	for _, content := range last {
		if content.Parts[0].Text == "fresh session question" {
			t.Error("another session's turn leaked into the seeded history")
		}
	}
}

func TestSignInSwapsNamespaces(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("guest answer")}
	stack := newStack(t, gen)
	ctx := context.Background()
	emit, _ := collectEvents()

	if err := stack.turns.Submit(ctx, "guest question about Leeds", nil, emit); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := stack.sessions.SignIn(ctx, types.Identity{ID: "u-dana", Name: "Dana"}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	summaries := stack.sessions.Summaries()
	if len(summaries) != 1 || summaries[0].Title != session.DefaultTitle {
		t.Errorf("signed-in summaries = %v, want one fresh default session", summaries)
	}

	if err := stack.sessions.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	summaries = stack.sessions.Summaries()
	if len(summaries) != 1 || !strings.HasPrefix(summaries[0].Title, "guest question") {
		t.Errorf("guest summaries after sign-out = %v, want the guest session back", summaries)
	}
}
