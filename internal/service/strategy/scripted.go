package strategy

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// scriptedConfidence is deliberately lower than the model-backed handler's;
// scripted replies acknowledge rather than reason.
const scriptedConfidence = 0.55

// ScriptedHandler produces deterministic template replies. It keeps personas
// conversational when no model backend is configured and serves personas whose
// descriptor opts into scripted behavior.
type ScriptedHandler struct{}

// NewScriptedHandler returns the shared scripted backend.
func NewScriptedHandler() *ScriptedHandler {
	return &ScriptedHandler{}
}

var scriptedShapes = []string{
	"On %q: %s",
	"Let me take that one. You mentioned %q; %s",
	"Good question. About %q: %s",
	"Noted. Regarding %q, %s",
}

var scriptedBodies = map[string][]string{
	"hr": {
		"the current policy covers that; I'll send you the relevant handbook section.",
		"that falls under people-ops, and I can open a ticket with the details you gave me.",
	},
	"it": {
		"first check the cable, then the status page; if both look fine I'll escalate.",
		"that error usually clears after a restart; tell me the exact message if it persists.",
	},
	"fun": {
		"that calls for a celebration by the snack shelf!",
		"I vote we make that the topic of the next office trivia round.",
	},
	"default": {
		"here's my take based on what you've shared so far.",
		"I'd start small, check the result, and adjust from there.",
		"that's worth a short follow-up; let me summarise what I understood.",
	},
}

// Generate composes a reply from the persona's first tag bucket and a stable
// hash of the input, so identical requests yield identical replies.
func (h *ScriptedHandler) Generate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	bodies := scriptedBodies["default"]
	for _, tag := range req.Persona.Tags {
		if b, ok := scriptedBodies[tag]; ok {
			bodies = b
			break
		}
	}

	seed := hashString(req.Persona.ID + "|" + req.Input)
	shape := scriptedShapes[seed%uint32(len(scriptedShapes))]
	body := bodies[seed%uint32(len(bodies))]

	content := fmt.Sprintf(shape, excerpt(req.Input), body)
	return Result{Content: content, Confidence: scriptedConfidence}, nil
}

// excerpt trims the user input to a quotable fragment.
func excerpt(input string) string {
	input = strings.TrimSpace(input)
	const max = 48
	if len(input) <= max {
		return input
	}
	cut := strings.LastIndex(input[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return input[:cut] + "…"
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
