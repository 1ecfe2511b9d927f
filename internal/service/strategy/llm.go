package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/virtualhq/agenthq/backend/internal/model/conversation"
	"github.com/virtualhq/agenthq/backend/internal/model/persona"
)

// llmConfidence is reported for model-generated replies; backends expose no
// usable confidence signal of their own.
const llmConfidence = 0.9

// LLMHandler generates replies through an eino chain backed by a chat model.
type LLMHandler struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewLLMHandler compiles the persona prompt chain around the supplied model.
func NewLLMHandler(ctx context.Context, chatModel model.ChatModel) (*LLMHandler, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}
	return &LLMHandler{chain: runnable}, nil
}

// Generate runs one persona turn through the chain.
func (h *LLMHandler) Generate(ctx context.Context, req Request) (Result, error) {
	input := map[string]any{
		"system":  systemPrompt(req.Persona),
		"history": historyMessages(req.History),
		"query":   req.Input,
	}

	opts := []compose.Option{
		compose.WithChatModelOption(model.WithTemperature(float32(req.Persona.Temperature))),
	}
	if req.Persona.MaxTokens > 0 {
		opts = append(opts, compose.WithChatModelOption(model.WithMaxTokens(req.Persona.MaxTokens)))
	}

	response, err := h.chain.Invoke(ctx, input, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("run chat chain: %w", err)
	}

	res := Result{Content: response.Content, Confidence: llmConfidence}
	if meta := response.ResponseMeta; meta != nil && meta.Usage != nil {
		res.TokenCount = meta.Usage.TotalTokens
	}
	return res, nil
}

// systemPrompt renders the persona descriptor into the system message.
func systemPrompt(p persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s at a virtual company headquarters.\n", p.Name, p.Title)
	if p.PromptHint != "" {
		fmt.Fprintf(&b, "Style guidance: %s\n", p.PromptHint)
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "Your areas: %s.\n", strings.Join(p.Tags, ", "))
	}
	b.WriteString("Stay in character. Keep replies focused on the employee's message.")
	return b.String()
}

// historyMessages maps the bounded context window into schema messages.
func historyMessages(history []conversation.Message) []*schema.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Origin {
		case conversation.OriginUser:
			out = append(out, schema.UserMessage(msg.Content))
		case conversation.OriginAgent:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
