// Package strategy routes a (persona, context, message) tuple to the
// reply-generation backend registered for the persona's strategy key and
// normalizes the result. The registry is resolved once at startup, so an
// unknown key is a configuration defect rather than a runtime string-miss.
package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtualhq/agenthq/backend/internal/apperr"
	"github.com/virtualhq/agenthq/backend/internal/model/conversation"
	"github.com/virtualhq/agenthq/backend/internal/model/persona"
	"github.com/virtualhq/agenthq/backend/pkg/logger"
)

// Request carries everything a handler may consult: the persona descriptor,
// the bounded context window (oldest first) and the new user message.
type Request struct {
	Persona persona.Persona
	History []conversation.Message
	Input   string
}

// Result is the normalized reply: content plus confidence and an approximate
// token count.
type Result struct {
	Content    string
	Confidence float64
	TokenCount int
}

// Handler generates one reply within the dispatcher's time budget.
type Handler interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Registry is the closed strategy table. Register is called only during
// startup wiring; Dispatch never mutates the table, so reads are lock-free.
type Registry struct {
	handlers map[string]Handler
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRegistry returns an empty registry whose dispatches are bounded by the
// given time budget.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Registry{
		handlers: make(map[string]Handler),
		timeout:  timeout,
		log:      logger.Named("strategy"),
	}
}

// Register binds a handler to a strategy key. Later bindings replace earlier
// ones, which lets wiring downgrade a key to a stub when a backend is absent.
func (r *Registry) Register(key string, h Handler) {
	r.handlers[key] = h
}

// Supports reports whether a handler is registered for the key. Callers can
// reject a misconfigured persona before mutating any conversation state.
func (r *Registry) Supports(key string) bool {
	_, ok := r.handlers[key]
	return ok
}

// Keys lists the registered strategy keys. Intended for startup logging.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}

// Dispatch resolves the persona's handler and runs it under the time budget.
// An unregistered key fails with ErrUnsupportedStrategy and must not be
// retried; any other failure is the caller's cue to substitute a fallback.
func (r *Registry) Dispatch(ctx context.Context, req Request) (Result, error) {
	h, ok := r.handlers[req.Persona.Strategy]
	if !ok {
		return Result{}, fmt.Errorf("%w: no handler for key %q (persona %s)",
			apperr.ErrUnsupportedStrategy, req.Persona.Strategy, req.Persona.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := h.Generate(ctx, req)
	if err != nil {
		r.log.Warn().Err(err).Str("persona", req.Persona.ID).Str("strategy", req.Persona.Strategy).Msg("handler failed")
		return Result{}, err
	}
	if res.TokenCount == 0 {
		res.TokenCount = approxTokens(res.Content)
	}
	return res, nil
}

// approxTokens estimates token usage for backends that do not report it.
func approxTokens(content string) int {
	return len(content)/4 + 1
}
