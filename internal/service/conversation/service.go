// Package conversation implements the conversation engine: message intake,
// bounded context construction, reply dispatch, context-summary maintenance
// and status transitions.
package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/virtualhq/agenthq/backend/internal/apperr"
	"github.com/virtualhq/agenthq/backend/internal/events"
	conv "github.com/virtualhq/agenthq/backend/internal/model/conversation"
	"github.com/virtualhq/agenthq/backend/internal/model/persona"
	"github.com/virtualhq/agenthq/backend/internal/realtime"
	"github.com/virtualhq/agenthq/backend/internal/service/strategy"
	"github.com/virtualhq/agenthq/backend/pkg/logger"
)

const (
	// contextWindow is how many trailing messages feed the prompt context.
	contextWindow = 10
	// summaryEvery regenerates the free-text summary once the message count
	// has grown by this many since the last regeneration.
	summaryEvery = 10
	// fallbackContent is the fixed, user-safe reply substituted when a
	// strategy handler fails or times out.
	fallbackContent = "Sorry, I couldn't put together a proper reply just now. Please try again in a moment."
)

// AccessChecker is the slice of the identity store the engine consults.
type AccessChecker interface {
	CanAccessPersona(userID, personaID string) bool
}

// Broadcaster pushes agent messages to a user's live connections.
type Broadcaster interface {
	Broadcast(userID string, evt realtime.Event)
}

// entry pairs one conversation with its own lock so operations on distinct
// conversations never block each other. The engine lock guards only the map.
type entry struct {
	mu   sync.Mutex
	conv conv.Conversation
	// summaryAt is the message count at the last summary regeneration.
	summaryAt int
}

// Service is the conversation engine.
type Service struct {
	mu      sync.RWMutex
	entries map[string]*entry

	access   AccessChecker
	personas persona.Store
	registry *strategy.Registry
	hub      Broadcaster
	bus      *events.Bus
	now      func() time.Time
	log      zerolog.Logger
}

// Page is the result of ListConversations: one page plus the full total.
type Page struct {
	Conversations []conv.Conversation `json:"conversations"`
	Total         int                 `json:"total"`
}

// NewService wires the engine to its collaborators.
func NewService(access AccessChecker, personas persona.Store, registry *strategy.Registry, hub Broadcaster, bus *events.Bus) *Service {
	return &Service{
		entries:  make(map[string]*entry),
		access:   access,
		personas: personas,
		registry: registry,
		hub:      hub,
		bus:      bus,
		now:      time.Now,
		log:      logger.Named("conversation"),
	}
}

// StartConversation creates an active conversation whose first message is the
// persona's greeting. When an initial user message is supplied, one agent
// reply is produced synchronously before the snapshot is returned.
func (s *Service) StartConversation(ctx context.Context, userID, personaID, firstMessage string) (conv.Conversation, error) {
	if !s.access.CanAccessPersona(userID, personaID) {
		return conv.Conversation{}, fmt.Errorf("%w: persona %s not granted", apperr.ErrAccess, personaID)
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return conv.Conversation{}, fmt.Errorf("%w: persona %s", apperr.ErrNotFound, personaID)
	}
	if !s.registry.Supports(p.Strategy) {
		return conv.Conversation{}, fmt.Errorf("%w: no handler for key %q (persona %s)",
			apperr.ErrUnsupportedStrategy, p.Strategy, p.ID)
	}

	now := s.now().UTC()
	c := conv.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		PersonaID: personaID,
		Status:    conv.StatusActive,
		Messages: []conv.Message{{
			ID:         ulid.Make().String(),
			Origin:     conv.OriginAgent,
			AuthorID:   personaID,
			Content:    p.Greeting,
			CreatedAt:  now,
			Strategy:   "greeting",
			Confidence: 1,
		}},
		CreatedAt:    now,
		LastActiveAt: now,
	}

	e := &entry{conv: c}
	s.mu.Lock()
	s.entries[c.ID] = e
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		Type: events.ConversationStarted, UserID: userID, ConversationID: c.ID, PersonaID: personaID,
	})
	s.log.Info().Str("conversation", c.ID).Str("user", userID).Str("persona", personaID).Msg("conversation started")

	if firstMessage != "" {
		if _, err := s.exchange(ctx, e, p, userID, firstMessage); err != nil {
			return conv.Conversation{}, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Snapshot(), nil
}

// SendMessage appends the user message, produces the agent reply and returns
// it. The reply is also fanned out to every live connection of the user.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID, text string) (conv.Message, error) {
	if text == "" {
		return conv.Message{}, fmt.Errorf("%w: message text is required", apperr.ErrValidation)
	}

	e, err := s.entryFor(userID, conversationID)
	if err != nil {
		return conv.Message{}, err
	}

	e.mu.Lock()
	personaID := e.conv.PersonaID
	e.mu.Unlock()

	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return conv.Message{}, fmt.Errorf("%w: persona %s", apperr.ErrNotFound, personaID)
	}
	if !s.registry.Supports(p.Strategy) {
		return conv.Message{}, fmt.Errorf("%w: no handler for key %q (persona %s)",
			apperr.ErrUnsupportedStrategy, p.Strategy, p.ID)
	}

	return s.exchange(ctx, e, p, userID, text)
}

// exchange is the locked append / unlocked dispatch / locked merge cycle of a
// single turn.
func (s *Service) exchange(ctx context.Context, e *entry, p persona.Persona, userID, text string) (conv.Message, error) {
	now := s.now().UTC()
	userMsg := conv.Message{
		ID:        ulid.Make().String(),
		Origin:    conv.OriginUser,
		AuthorID:  userID,
		Content:   text,
		CreatedAt: now,
	}

	e.mu.Lock()
	if e.conv.Status != conv.StatusActive {
		e.mu.Unlock()
		return conv.Message{}, fmt.Errorf("%w: conversation is %s", apperr.ErrState, e.conv.Status)
	}
	e.conv.Messages = append(e.conv.Messages, userMsg)
	e.conv.LastActiveAt = now
	mergeTopics(&e.conv.Context, text)
	window := e.conv.Window(contextWindow)
	e.mu.Unlock()

	// The dispatch must survive a caller that stops waiting: the reply is
	// still committed so later retrieval and fan-out can deliver it.
	result, err := s.registry.Dispatch(context.WithoutCancel(ctx), strategy.Request{
		Persona: p,
		History: window[:len(window)-1],
		Input:   text,
	})

	agentMsg := conv.Message{
		ID:        ulid.Make().String(),
		Origin:    conv.OriginAgent,
		AuthorID:  p.ID,
		CreatedAt: s.now().UTC(),
		Strategy:  p.Strategy,
	}
	if err != nil {
		agentMsg.Content = fallbackContent
		agentMsg.Fallback = true
	} else {
		agentMsg.Content = result.Content
		agentMsg.Confidence = result.Confidence
		agentMsg.TokenCount = result.TokenCount
	}

	e.mu.Lock()
	if e.conv.Status != conv.StatusActive {
		// The conversation ended while the reply was being generated; the
		// late reply is discarded rather than appended.
		e.mu.Unlock()
		s.log.Debug().Str("conversation", e.conv.ID).Msg("discarding late reply for ended conversation")
		return conv.Message{}, fmt.Errorf("%w: conversation is %s", apperr.ErrState, conv.StatusEnded)
	}
	e.conv.Messages = append(e.conv.Messages, agentMsg)
	e.conv.LastActiveAt = agentMsg.CreatedAt
	if len(e.conv.Messages)-e.summaryAt >= summaryEvery {
		e.conv.Context.Summary = summarize(e.conv.Context.Topics, len(e.conv.Messages))
		e.summaryAt = len(e.conv.Messages)
	}
	convID := e.conv.ID
	// Broadcasting inside the critical section keeps per-connection event
	// order aligned with append order; Broadcast never blocks.
	s.hub.Broadcast(userID, realtime.Event{
		Type:           events.MessageExchanged,
		ConversationID: convID,
		Message:        agentMsg,
	})
	e.mu.Unlock()

	s.bus.Publish(events.Event{
		Type: events.MessageExchanged, UserID: userID, ConversationID: convID,
		PersonaID: p.ID, Fallback: agentMsg.Fallback,
	})
	return agentMsg, nil
}

// GetConversation returns an ownership-checked snapshot.
func (s *Service) GetConversation(_ context.Context, userID, conversationID string) (conv.Conversation, error) {
	e, err := s.entryFor(userID, conversationID)
	if err != nil {
		return conv.Conversation{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Snapshot(), nil
}

// ListConversations pages the user's conversations, most recent activity
// first. Total always reflects the full matching set, not the page size.
func (s *Service) ListConversations(_ context.Context, userID string, limit, offset int) (Page, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	matched := make([]*entry, 0)
	for _, e := range s.entries {
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	owned := make([]conv.Conversation, 0)
	for _, e := range matched {
		e.mu.Lock()
		if e.conv.UserID == userID {
			owned = append(owned, e.conv.Snapshot())
		}
		e.mu.Unlock()
	}

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].LastActiveAt.After(owned[j].LastActiveAt)
	})

	total := len(owned)
	if offset >= total {
		return Page{Conversations: []conv.Conversation{}, Total: total}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return Page{Conversations: owned[offset:end], Total: total}, nil
}

// EndConversation transitions to ended; the transition is terminal.
func (s *Service) EndConversation(_ context.Context, userID, conversationID string) (conv.Conversation, error) {
	e, err := s.entryFor(userID, conversationID)
	if err != nil {
		return conv.Conversation{}, err
	}

	e.mu.Lock()
	if e.conv.Status != conv.StatusActive {
		e.mu.Unlock()
		return conv.Conversation{}, fmt.Errorf("%w: conversation is %s", apperr.ErrState, e.conv.Status)
	}
	now := s.now().UTC()
	e.conv.Status = conv.StatusEnded
	e.conv.EndedAt = now
	e.conv.LastActiveAt = now
	snapshot := e.conv.Snapshot()
	e.mu.Unlock()

	s.bus.Publish(events.Event{
		Type: events.ConversationEnded, UserID: userID, ConversationID: conversationID, PersonaID: snapshot.PersonaID,
	})
	s.log.Info().Str("conversation", conversationID).Msg("conversation ended")
	return snapshot, nil
}

// entryFor resolves a conversation and enforces ownership.
func (s *Service) entryFor(userID, conversationID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, conversationID)
	}

	e.mu.Lock()
	owner := e.conv.UserID
	e.mu.Unlock()
	if owner != userID {
		return nil, fmt.Errorf("%w: conversation belongs to another user", apperr.ErrAccess)
	}
	return e, nil
}
