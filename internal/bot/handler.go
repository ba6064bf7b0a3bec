// Package bot wires incoming Teams activities to the agent orchestrator:
// credential exchange, Genie space discovery, turn execution, and reply
// rendering.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geniebot/internal/auth"
	"geniebot/internal/blobstore"
	"geniebot/internal/domain"
	"geniebot/internal/foundry"
	"geniebot/internal/genie"
	"geniebot/internal/orchestrator"
	"geniebot/internal/session"
	"geniebot/internal/store"
	"geniebot/internal/teams"
	"geniebot/internal/tools"
)

// User-facing copy. Internal failure detail goes to the log, never to chat.
const (
	ackMessage       = "Working on it..."
	welcomeMessage   = "Hello! I'm your data assistant. Ask me a question about your data and I'll query the workspace for you."
	emptyPrompt      = "Please ask a question about your data."
	noAnswerMessage  = "I couldn't find an answer to that question. Try rephrasing it."
	signInMessage    = "I couldn't get a credential for you. Please sign in to the bot and try again."
	configMessage    = "The bot isn't fully configured yet. Please contact your administrator."
	genericErrorLine = "Something went wrong while processing your question. Please try again."
)

// Replier sends replies into a Teams conversation.
type Replier interface {
	ReplyText(ctx context.Context, activity *teams.Activity, text string) error
	ReplyCard(ctx context.Context, activity *teams.Activity, card *teams.AdaptiveCard) error
}

// UserTokenSource fetches the signed-in user's SSO token.
type UserTokenSource interface {
	GetUserToken(ctx context.Context, userID, connectionName, channelID string) (string, error)
}

// tokenExchanger swaps a user token for a Databricks one.
type tokenExchanger interface {
	DatabricksToken(ctx context.Context, userToken string) (*auth.Token, error)
}

// connectionGetter resolves project connections.
type connectionGetter interface {
	GetConnection(ctx context.Context, name string) (*foundry.Connection, error)
}

// turnRunner executes one question against the agent runtime.
type turnRunner interface {
	ProcessMessage(ctx context.Context, question string, registry *tools.Registry) (*orchestrator.Result, error)
}

// Config carries the handler's static wiring.
type Config struct {
	ConnectionName  string // Foundry project connection holding the Genie space
	OAuthConnection string // Bot Framework OAuth connection for user SSO
}

// Handler processes bot activities.
type Handler struct {
	cfg         Config
	orch        turnRunner
	genie       *genie.Client
	broker      tokenExchanger
	replier     Replier
	userTokens  UserTokenSource
	connections connectionGetter
	sessions    *session.Manager
	turns       store.Store
	sink        blobstore.Sink
	log         zerolog.Logger

	mu      sync.Mutex
	spaceID string
}

// New creates a bot handler.
func New(cfg Config, orch turnRunner, genieClient *genie.Client, broker tokenExchanger,
	replier Replier, userTokens UserTokenSource, connections connectionGetter,
	sessions *session.Manager, turns store.Store, sink blobstore.Sink, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:         cfg,
		orch:        orch,
		genie:       genieClient,
		broker:      broker,
		replier:     replier,
		userTokens:  userTokens,
		connections: connections,
		sessions:    sessions,
		turns:       turns,
		sink:        sink,
		log:         logger,
	}
}

// OnActivity dispatches one incoming activity.
func (h *Handler) OnActivity(ctx context.Context, activity *teams.Activity) {
	switch activity.Type {
	case teams.ActivityMessage:
		h.onMessage(ctx, activity)
	case teams.ActivityConversationUpdate:
		h.onConversationUpdate(ctx, activity)
	default:
		h.log.Debug().Str("type", activity.Type).Msg("ignoring activity")
	}
}

// onConversationUpdate greets the conversation when the bot itself is added.
func (h *Handler) onConversationUpdate(ctx context.Context, activity *teams.Activity) {
	for _, member := range activity.MembersAdded {
		if member.ID == activity.Recipient.ID {
			if err := h.replier.ReplyText(ctx, activity, welcomeMessage); err != nil {
				h.log.Error().Err(err).Msg("welcome reply failed")
			}
			return
		}
	}
}

func (h *Handler) onMessage(ctx context.Context, activity *teams.Activity) {
	question := strings.TrimSpace(activity.Text)
	logger := h.log.With().
		Str("session_id", activity.Conversation.ID).
		Str("user_id", activity.From.ID).
		Logger()

	if question == "" {
		h.replyText(ctx, activity, emptyPrompt, logger)
		return
	}

	start := time.Now()
	turn := &domain.Turn{
		TurnID:    "turn_" + uuid.NewString()[:8],
		SessionID: activity.Conversation.ID,
		Question:  question,
		CreatedAt: start.UTC(),
	}
	logger = logger.With().Str("turn_id", turn.TurnID).Logger()
	logger.Info().Msg("turn started")

	h.replyText(ctx, activity, ackMessage, logger)

	spaceID, err := h.genieSpaceID(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("genie space discovery failed")
		h.abortTurn(ctx, activity, turn, start, configMessage, err, logger)
		return
	}

	sess := h.sessions.Get(activity.Conversation.ID)
	if err := h.ensureToken(ctx, activity, sess); err != nil {
		logger.Error().Err(err).Msg("credential exchange failed")
		h.abortTurn(ctx, activity, turn, start, signInMessage, err, logger)
		return
	}

	registry := tools.NewGenieRegistry(h.genie, spaceID, sess, logger)
	result, err := h.orch.ProcessMessage(ctx, question, registry)
	if err != nil {
		logger.Error().Err(err).Msg("turn failed")
		turn.Status = domain.TurnStatusFailed
		turn.Error = err.Error()
		turn.LatencyMs = time.Since(start).Milliseconds()
		h.recordTurn(ctx, turn, logger)
		h.replyText(ctx, activity, genericErrorLine, logger)
		return
	}

	text := result.Text
	if text == "" && result.ImageName == "" {
		text = noAnswerMessage
	}
	if text != "" {
		h.replyText(ctx, activity, text, logger)
	}
	if result.ImageName != "" {
		card := teams.ImageCard("", h.sink.URL(result.ImageName))
		if err := h.replier.ReplyCard(ctx, activity, card); err != nil {
			logger.Error().Err(err).Msg("image card reply failed")
		}
	}

	turn.Status = domain.TurnStatusCompleted
	turn.ReplyChars = len(text)
	turn.ImageName = result.ImageName
	turn.LatencyMs = time.Since(start).Milliseconds()
	h.recordTurn(ctx, turn, logger)
	logger.Info().Int64("latency_ms", turn.LatencyMs).Msg("turn completed")
}

// genieSpaceID resolves the Genie space from the project connection once and
// caches it for the process lifetime.
func (h *Handler) genieSpaceID(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.spaceID != "" {
		return h.spaceID, nil
	}

	conn, err := h.connections.GetConnection(ctx, h.cfg.ConnectionName)
	if err != nil {
		return "", err
	}
	spaceID := conn.GenieSpaceID()
	if spaceID == "" {
		return "", domain.ErrMissingWorkspace
	}
	h.spaceID = spaceID
	h.log.Info().Str("space_id", spaceID).Msg("genie space resolved")
	return spaceID, nil
}

// ensureToken makes sure the session holds a usable Databricks token,
// exchanging the user's SSO token when the cached one is missing or stale.
func (h *Handler) ensureToken(ctx context.Context, activity *teams.Activity, sess *session.Session) error {
	if _, ok := sess.Token(); ok {
		return nil
	}

	userToken, err := h.userTokens.GetUserToken(ctx, activity.From.ID, h.cfg.OAuthConnection, activity.ChannelID)
	if err != nil {
		return err
	}
	if userToken == "" {
		return domain.ErrMissingToken
	}

	token, err := h.broker.DatabricksToken(ctx, userToken)
	if err != nil {
		return err
	}
	sess.SetToken(token.Value, token.ExpiresIn)
	return nil
}

func (h *Handler) abortTurn(ctx context.Context, activity *teams.Activity, turn *domain.Turn, start time.Time, userMsg string, cause error, logger zerolog.Logger) {
	turn.Status = domain.TurnStatusAborted
	turn.Error = cause.Error()
	turn.LatencyMs = time.Since(start).Milliseconds()
	h.recordTurn(ctx, turn, logger)
	h.replyText(ctx, activity, userMsg, logger)
}

func (h *Handler) recordTurn(ctx context.Context, turn *domain.Turn, logger zerolog.Logger) {
	if err := h.turns.CreateTurn(ctx, turn); err != nil {
		logger.Error().Err(err).Msg("turn record write failed")
	}
}

func (h *Handler) replyText(ctx context.Context, activity *teams.Activity, text string, logger zerolog.Logger) {
	if err := h.replier.ReplyText(ctx, activity, text); err != nil {
		logger.Error().Err(err).Msg("reply failed")
	}
}
