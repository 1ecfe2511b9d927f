package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/virtualhq/agenthq/backend/internal/apperr"
	"github.com/virtualhq/agenthq/backend/internal/events"
	conv "github.com/virtualhq/agenthq/backend/internal/model/conversation"
	"github.com/virtualhq/agenthq/backend/internal/model/persona"
	"github.com/virtualhq/agenthq/backend/internal/realtime"
	"github.com/virtualhq/agenthq/backend/internal/service/strategy"
)

type accessFunc func(userID, personaID string) bool

func (f accessFunc) CanAccessPersona(userID, personaID string) bool {
	return f(userID, personaID)
}

type handlerFunc func(ctx context.Context, req strategy.Request) (strategy.Result, error)

func (f handlerFunc) Generate(ctx context.Context, req strategy.Request) (strategy.Result, error) {
	return f(ctx, req)
}

type recordingHub struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (h *recordingHub) Broadcast(_ string, evt realtime.Event) {
	h.mu.Lock()
	h.events = append(h.events, evt)
	h.mu.Unlock()
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func testPersonas() persona.Store {
	return persona.NewMemoryStore([]persona.Persona{
		{ID: "company_mascot", Name: "Bytey", Strategy: "scripted", Greeting: "Hello hello!"},
		{ID: "ceo", Name: "Victoria", Strategy: "scripted", Greeting: "Make it count."},
		{ID: "broken", Name: "Glitch", Strategy: "quantum", Greeting: "..."},
	})
}

func okHandler(reply string) handlerFunc {
	return func(_ context.Context, _ strategy.Request) (strategy.Result, error) {
		return strategy.Result{Content: reply, Confidence: 0.8, TokenCount: 7}, nil
	}
}

func newTestEngine(t *testing.T, h strategy.Handler, allow accessFunc) (*Service, *recordingHub) {
	t.Helper()
	registry := strategy.NewRegistry(time.Second)
	if h != nil {
		registry.Register("scripted", h)
	}
	if allow == nil {
		allow = func(string, string) bool { return true }
	}
	hub := &recordingHub{}
	return NewService(allow, testPersonas(), registry, hub, events.NewBus()), hub
}

func TestStartConversationGreetingIsFirstMessage(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), nil)

	c, err := engine.StartConversation(context.Background(), "u1", "company_mascot", "")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}
	if c.Status != conv.StatusActive {
		t.Fatalf("unexpected status %q", c.Status)
	}
	if len(c.Messages) != 1 {
		t.Fatalf("expected only the greeting, got %d messages", len(c.Messages))
	}
	first := c.Messages[0]
	if first.Origin != conv.OriginAgent || first.AuthorID != "company_mascot" || first.Content != "Hello hello!" {
		t.Fatalf("messages[0] is not the persona greeting: %+v", first)
	}
}

func TestStartConversationWithInitialMessage(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("welcome aboard"), nil)

	c, err := engine.StartConversation(context.Background(), "u1", "company_mascot", "hello there")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}
	if len(c.Messages) != 3 {
		t.Fatalf("expected greeting+user+agent, got %d messages", len(c.Messages))
	}
	if c.Messages[0].Origin != conv.OriginAgent {
		t.Fatal("greeting must precede the initial user message")
	}
	if c.Messages[1].Origin != conv.OriginUser || c.Messages[1].Content != "hello there" {
		t.Fatalf("unexpected user message %+v", c.Messages[1])
	}
	reply := c.Messages[2]
	if reply.Origin != conv.OriginAgent || reply.Content != "welcome aboard" || reply.Fallback {
		t.Fatalf("unexpected agent reply %+v", reply)
	}
}

func TestStartConversationAccessDenied(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), func(_, personaID string) bool {
		return personaID != "ceo"
	})

	_, err := engine.StartConversation(context.Background(), "u1", "ceo", "")
	if !errors.Is(err, apperr.ErrAccess) {
		t.Fatalf("want ErrAccess, got %v", err)
	}
}

func TestStartConversationUnknownPersona(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), nil)

	_, err := engine.StartConversation(context.Background(), "u1", "ghost", "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStartConversationUnsupportedStrategy(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), nil)

	_, err := engine.StartConversation(context.Background(), "u1", "broken", "")
	if !errors.Is(err, apperr.ErrUnsupportedStrategy) {
		t.Fatalf("want ErrUnsupportedStrategy, got %v", err)
	}
}

func TestSendMessageAppendsReplyAndBroadcasts(t *testing.T) {
	engine, hub := newTestEngine(t, okHandler("on it"), nil)

	c, err := engine.StartConversation(context.Background(), "u1", "company_mascot", "")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}

	reply, err := engine.SendMessage(context.Background(), "u1", c.ID, "please schedule the standup")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if reply.Content != "on it" || reply.Origin != conv.OriginAgent {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if hub.count() != 1 {
		t.Fatalf("expected 1 broadcast, got %d", hub.count())
	}

	got, err := engine.GetConversation(context.Background(), "u1", c.ID)
	if err != nil {
		t.Fatalf("GetConversation err: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	// "please", "schedule", "standup" qualify; "the" is too short.
	if len(got.Context.Topics) != 3 {
		t.Fatalf("unexpected topics %v", got.Context.Topics)
	}
}

func TestSendMessageOwnershipAndExistence(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), nil)

	c, err := engine.StartConversation(context.Background(), "u1", "company_mascot", "")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}

	if _, err := engine.SendMessage(context.Background(), "intruder", c.ID, "mine now"); !errors.Is(err, apperr.ErrAccess) {
		t.Fatalf("want ErrAccess, got %v", err)
	}
	if _, err := engine.SendMessage(context.Background(), "u1", "no-such-id", "hello"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSendMessageToEndedConversation(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), nil)
	ctx := context.Background()

	c, err := engine.StartConversation(ctx, "u1", "company_mascot", "")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := engine.SendMessage(ctx, "u1", c.ID, fmt.Sprintf("message number %d", i)); err != nil {
			t.Fatalf("SendMessage %d err: %v", i, err)
		}
	}

	ended, err := engine.EndConversation(ctx, "u1", c.ID)
	if err != nil {
		t.Fatalf("EndConversation err: %v", err)
	}
	if ended.Status != conv.StatusEnded || ended.EndedAt.IsZero() {
		t.Fatalf("end not stamped: %+v", ended.Status)
	}
	before := len(ended.Messages)

	_, err = engine.SendMessage(ctx, "u1", c.ID, "one more thing")
	if !errors.Is(err, apperr.ErrState) {
		t.Fatalf("want ErrState, got %v", err)
	}

	got, _ := engine.GetConversation(ctx, "u1", c.ID)
	if len(got.Messages) != before {
		t.Fatalf("message count changed on rejected send: %d != %d", len(got.Messages), before)
	}

	if _, err := engine.EndConversation(ctx, "u1", c.ID); !errors.Is(err, apperr.ErrState) {
		t.Fatalf("ending twice: want ErrState, got %v", err)
	}
}

func TestDispatchFailureSubstitutesFallback(t *testing.T) {
	failing := handlerFunc(func(_ context.Context, _ strategy.Request) (strategy.Result, error) {
		return strategy.Result{}, errors.New("backend exploded")
	})
	engine, _ := newTestEngine(t, failing, nil)
	ctx := context.Background()

	c, err := engine.StartConversation(ctx, "u1", "company_mascot", "")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}

	reply, err := engine.SendMessage(ctx, "u1", c.ID, "are you alive?")
	if err != nil {
		t.Fatalf("SendMessage must not fail on handler error, got %v", err)
	}
	if !reply.Fallback {
		t.Fatal("fallback reply not flagged")
	}
	if reply.Content == "" || reply.Origin != conv.OriginAgent {
		t.Fatalf("fallback reply malformed: %+v", reply)
	}

	got, _ := engine.GetConversation(ctx, "u1", c.ID)
	if got.Messages[len(got.Messages)-1].ID != reply.ID {
		t.Fatal("fallback reply not appended to conversation state")
	}
}

func TestLateReplyDiscardedWhenConversationEnds(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := handlerFunc(func(_ context.Context, _ strategy.Request) (strategy.Result, error) {
		close(entered)
		<-release
		return strategy.Result{Content: "too late", Confidence: 0.8}, nil
	})
	engine, hub := newTestEngine(t, blocking, nil)
	ctx := context.Background()

	c, err := engine.StartConversation(ctx, "u1", "company_mascot", "")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := engine.SendMessage(ctx, "u1", c.ID, "anyone there?")
		errCh <- err
	}()

	// End the conversation while the handler is still generating the reply.
	<-entered
	if _, err := engine.EndConversation(ctx, "u1", c.ID); err != nil {
		t.Fatalf("EndConversation err: %v", err)
	}
	close(release)

	if err := <-errCh; !errors.Is(err, apperr.ErrState) {
		t.Fatalf("late reply: want ErrState, got %v", err)
	}

	got, err := engine.GetConversation(ctx, "u1", c.ID)
	if err != nil {
		t.Fatalf("GetConversation err: %v", err)
	}
	for _, m := range got.Messages {
		if m.Content == "too late" {
			t.Fatal("late reply appended to ended conversation")
		}
	}
	if hub.count() != 0 {
		t.Fatalf("late reply must not be broadcast, got %d events", hub.count())
	}
}

func TestListConversationsTotalIndependentOfPage(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := engine.StartConversation(ctx, "u1", "company_mascot", ""); err != nil {
			t.Fatalf("StartConversation %d err: %v", i, err)
		}
	}
	if _, err := engine.StartConversation(ctx, "someone-else", "company_mascot", ""); err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}

	page, err := engine.ListConversations(ctx, "u1", 2, 0)
	if err != nil {
		t.Fatalf("ListConversations err: %v", err)
	}
	if len(page.Conversations) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page.Conversations))
	}
	if page.Total != 3 {
		t.Fatalf("total must reflect full set: want 3, got %d", page.Total)
	}

	rest, err := engine.ListConversations(ctx, "u1", 2, 2)
	if err != nil {
		t.Fatalf("ListConversations err: %v", err)
	}
	if len(rest.Conversations) != 1 || rest.Total != 3 {
		t.Fatalf("unexpected second page: %d items, total %d", len(rest.Conversations), rest.Total)
	}
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("hi"), nil)
	ctx := context.Background()

	first, _ := engine.StartConversation(ctx, "u1", "company_mascot", "")
	second, _ := engine.StartConversation(ctx, "u1", "ceo", "")

	// Touch the older conversation so it becomes the most recent.
	time.Sleep(2 * time.Millisecond)
	if _, err := engine.SendMessage(ctx, "u1", first.ID, "still here"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	page, err := engine.ListConversations(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatalf("ListConversations err: %v", err)
	}
	if page.Conversations[0].ID != first.ID || page.Conversations[1].ID != second.ID {
		t.Fatal("conversations not sorted by most recent activity")
	}
}

func TestSummaryRegeneratedAfterTenMessages(t *testing.T) {
	engine, _ := newTestEngine(t, okHandler("noted"), nil)
	ctx := context.Background()

	c, err := engine.StartConversation(ctx, "u1", "company_mascot", "")
	if err != nil {
		t.Fatalf("StartConversation err: %v", err)
	}

	// Greeting is 1 message; five exchanges bring the count to 11.
	for i := 0; i < 5; i++ {
		if _, err := engine.SendMessage(ctx, "u1", c.ID, fmt.Sprintf("quarterly planning topic %d", i)); err != nil {
			t.Fatalf("SendMessage %d err: %v", i, err)
		}
	}

	got, _ := engine.GetConversation(ctx, "u1", c.ID)
	if got.Context.Summary == "" {
		t.Fatal("summary not regenerated after ten messages")
	}
	if !strings.Contains(got.Context.Summary, "11 messages") {
		t.Fatalf("summary should mention the message count: %q", got.Context.Summary)
	}
}

func TestMergeTopicsHeuristic(t *testing.T) {
	var c conv.Context
	mergeTopics(&c, "The Budget REVIEW for next fiscal year needs sign-off today")

	// First five words of length >= 4: budget, review, next, fiscal, year.
	want := []string{"budget", "fiscal", "next", "review", "year"}
	if len(c.Topics) != len(want) {
		t.Fatalf("unexpected topics %v", c.Topics)
	}
	for i, topic := range want {
		if c.Topics[i] != topic {
			t.Fatalf("topics mismatch at %d: got %v want %v", i, c.Topics, want)
		}
	}

	// Re-merging the same text must not duplicate entries.
	mergeTopics(&c, "budget review again")
	count := 0
	for _, topic := range c.Topics {
		if topic == "budget" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate topic after re-merge: %v", c.Topics)
	}
}
