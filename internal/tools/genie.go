package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"geniebot/internal/domain"
	"geniebot/internal/genie"
	"geniebot/internal/session"
)

// AskGenieToolName is the function name the agent calls to query Genie.
const AskGenieToolName = "ask_genie"

type askGenieArgs struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// NewGenieRegistry builds the per-turn tool registry: one ask_genie tool
// bound to the caller's session. The session supplies the token and the
// Genie conversation id, and captures the conversation id from each answer
// so follow-up calls keep context.
func NewGenieRegistry(client *genie.Client, spaceID string, sess *session.Session, logger zerolog.Logger) *Registry {
	r := NewRegistry()
	def := Definition{
		Name:        AskGenieToolName,
		Description: "Ask the Genie data room a natural-language question about the data. Pass the user's question verbatim. Reuse conversation_id from earlier answers in the same chat.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The user's question, unchanged.",
				},
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation id from a previous answer, if any.",
				},
			},
			"required": []string{"question"},
		},
	}

	exec := func(ctx context.Context, rawArgs json.RawMessage) (json.RawMessage, error) {
		var args askGenieArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return marshalQueryError("Malformed ask_genie arguments.", err.Error()), nil
		}

		conversationID := args.ConversationID
		if conversationID == "" {
			conversationID = sess.ConversationID()
		}
		token, _ := sess.Token()

		payload, err := client.Ask(ctx, genie.AskRequest{
			Question:       args.Question,
			ConversationID: conversationID,
			SpaceID:        spaceID,
			Token:          token,
		})
		if err != nil {
			logger.Error().Err(err).Str("session_id", sess.ID()).Msg("ask_genie failed")
			return marshalQueryError(describeAskError(err), err.Error()), nil
		}

		sess.SetConversationID(payload.ConversationID)
		out, err := json.Marshal(payload)
		if err != nil {
			return marshalQueryError("An error occurred while talking to Genie.", err.Error()), nil
		}
		return out, nil
	}

	// Registration on a fresh registry cannot collide.
	_ = r.Register(def, exec)
	return r
}

func describeAskError(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingWorkspace):
		return "The Genie space is not configured."
	case errors.Is(err, domain.ErrMissingToken):
		return "No Databricks credential is available for this conversation."
	default:
		return "An error occurred while talking to Genie."
	}
}

func marshalQueryError(msg, details string) json.RawMessage {
	out, err := json.Marshal(domain.QueryError{Error: msg, Details: details})
	if err != nil {
		return json.RawMessage(`{"error":"An error occurred while talking to Genie."}`)
	}
	return out
}
