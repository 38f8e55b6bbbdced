package agent

import (
	"context"

	"github.com/bull/corpus-agent/internal/llm"
)

// GeneralConversationTool answers queries that need no retrieval: greetings,
// common-knowledge questions, creative tasks. It is the registry's default
// tool.
type GeneralConversationTool struct {
	client llm.Client
}

// NewGeneralConversationTool creates the default conversational tool.
func NewGeneralConversationTool(client llm.Client) *GeneralConversationTool {
	return &GeneralConversationTool{client: client}
}

func (t *GeneralConversationTool) Name() string { return DefaultToolName }

func (t *GeneralConversationTool) Description() string {
	return "Useful for general conversation, greetings, common-knowledge questions, " +
		"creative tasks such as writing a poem, or any query that does not fit the " +
		"capabilities of the other tools. This is the default tool."
}

// Execute passes the query straight to the model with the conversation
// history as context.
func (t *GeneralConversationTool) Execute(ctx context.Context, req Request) (string, error) {
	return t.client.GenerateText(ctx, req.Query, req.History)
}
