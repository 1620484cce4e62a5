// Package orchestrator decides, per sent message, whether an automated reply
// is produced, by whom, and after what delay.
package orchestrator

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pawmate/autoreply/src/guard"
	"github.com/pawmate/autoreply/src/keyword"
	"github.com/pawmate/autoreply/src/llm"
	"github.com/pawmate/autoreply/src/storage"
)

// Reference copy used when the pipeline declines or fails to generate.
const (
	// DefaultThrottledReply is persisted when the abuse guard denies a
	// generation attempt. The user is never told they were rate-limited.
	DefaultThrottledReply = "消息有点多啦，让我喘口气，稍等一下再聊哦～"

	// DefaultFallbackReply is persisted when the provider yields no text.
	DefaultFallbackReply = "抱歉，我这边有点卡，稍后再试～"

	// DefaultSystemReply is the canned acknowledgement for system
	// conversations.
	DefaultSystemReply = "您好，这里是平台通知账号，人工客服看到后会尽快回复您～"
)

// recentWindowForGuard is how many prior user messages accompany a guard
// consult.
const recentWindowForGuard = guard.WindowSize

// Store is the persistence surface the orchestrator needs.
type Store interface {
	CreateMessage(ctx context.Context, msg *storage.Message) error
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]storage.Message, error)
	GetGuardState(ctx context.Context, conversationID string) (*storage.GuardState, error)
	SaveGuardState(ctx context.Context, state *storage.GuardState) error
}

// AgentRouter generates model-backed replies. An empty string with a nil
// error means "no reply available, use the fallback".
type AgentRouter interface {
	GenerateAgentReply(ctx context.Context, agentType, userMessage string, history []llm.Message) (string, error)
}

// Notifier receives every persisted message for realtime fan-out.
type Notifier interface {
	NotifyMessage(msg *storage.Message)
}

// DelayRange is a randomized artificial delay window. The variable delay is
// deliberate product behavior simulating typing and thinking time.
type DelayRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Config tunes the orchestrator.
type Config struct {
	PeerDelay      DelayRange
	AgentDelay     DelayRange
	HistoryLimit   int
	ThrottledReply string
	FallbackReply  string
	SystemReply    string

	// ProviderName and Model annotate generated reply rows, matching the
	// active router configuration.
	ProviderName string
	Model        string
}

// DefaultConfig returns the reference timings and copy.
func DefaultConfig() Config {
	return Config{
		PeerDelay:      DelayRange{Min: 2000 * time.Millisecond, Max: 5000 * time.Millisecond},
		AgentDelay:     DelayRange{Min: 800 * time.Millisecond, Max: 2000 * time.Millisecond},
		HistoryLimit:   20,
		ThrottledReply: DefaultThrottledReply,
		FallbackReply:  DefaultFallbackReply,
		SystemReply:    DefaultSystemReply,
	}
}

// Orchestrator combines the keyword matcher, abuse guard and provider router
// into the per-message reply decision.
type Orchestrator struct {
	store    Store
	matcher  *keyword.Matcher
	router   AgentRouter
	notifier Notifier
	config   Config
	logger   *slog.Logger

	// baseCtx owns scheduled replies: they outlive the triggering request
	// but are cancelled on shutdown.
	baseCtx context.Context
	wg      sync.WaitGroup

	// convLocks serializes guard-state transactions per conversation, so
	// concurrent sends can't both read a stale cooldown and double-generate.
	convLocksMu sync.Mutex
	convLocks   map[string]*sync.Mutex

	// Injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	intn  func(n int) int
}

// Options configures a new Orchestrator.
type Options struct {
	Store    Store
	Matcher  *keyword.Matcher
	Router   AgentRouter
	Notifier Notifier
	Config   Config
	Logger   *slog.Logger

	// BaseContext bounds the lifetime of scheduled replies. Defaults to
	// context.Background().
	BaseContext context.Context
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if cfg.ThrottledReply == "" {
		cfg.ThrottledReply = DefaultThrottledReply
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = DefaultFallbackReply
	}
	if cfg.SystemReply == "" {
		cfg.SystemReply = DefaultSystemReply
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Orchestrator{
		store:     opts.Store,
		matcher:   opts.Matcher,
		router:    opts.Router,
		notifier:  opts.Notifier,
		config:    cfg,
		logger:    logger.With("component", "reply_orchestrator"),
		baseCtx:   baseCtx,
		convLocks: make(map[string]*sync.Mutex),
		now:       time.Now,
		sleep:     sleepCtx,
		intn:      rand.Intn,
	}
}

// HandleUserMessage persists the user's message and schedules an automated
// reply appropriate for the conversation flavor. The user's send succeeds or
// fails on the persist alone; everything after is best effort.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, conv *storage.Conversation, text string) (*storage.Message, error) {
	msg := &storage.Message{
		ConversationID: conv.ID,
		Role:           llm.RoleUser,
		Content:        text,
	}
	if err := o.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	o.notify(msg)

	// Each send schedules its own independent timer; replies may land out
	// of send order when delays differ.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.replyLater(conv, text)
	}()

	return msg, nil
}

// Wait blocks until all scheduled replies have finished. Intended for
// shutdown and tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) replyLater(conv *storage.Conversation, userText string) {
	logger := o.logger.With("conversation_id", conv.ID, "flavor", conv.Flavor)

	delay := o.randomDelay(conv.Flavor)
	if err := o.sleep(o.baseCtx, delay); err != nil {
		logger.Debug("reply timer cancelled", "error", err)
		return
	}

	var reply *storage.Message
	switch conv.Flavor {
	case storage.FlavorAgent:
		reply = o.agentReply(o.baseCtx, conv, userText)
	case storage.FlavorSystem:
		reply = &storage.Message{
			ConversationID: conv.ID,
			Role:           llm.RoleAssistant,
			Content:        o.config.SystemReply,
		}
	default:
		if text := o.matcher.PickReply(userText); text != "" {
			reply = &storage.Message{
				ConversationID: conv.ID,
				Role:           llm.RoleAssistant,
				Content:        text,
			}
		}
	}
	if reply == nil {
		return
	}

	// A failed auto-reply write is logged and swallowed: the user's own
	// send already succeeded.
	if err := o.store.CreateMessage(o.baseCtx, reply); err != nil {
		logger.Warn("failed to persist automated reply", "error", err)
		return
	}
	o.notify(reply)
}

// agentReply runs the guard and the provider router for an AI-agent
// conversation and always produces some reply message. The whole
// read-decide-generate-save sequence holds the conversation lock: a second
// send must observe the first one's reply timestamp and window append.
func (o *Orchestrator) agentReply(ctx context.Context, conv *storage.Conversation, userText string) *storage.Message {
	mu := o.conversationLock(conv.ID)
	mu.Lock()
	defer mu.Unlock()

	logger := o.logger.With("conversation_id", conv.ID, "agent_type", conv.AgentType)
	trimmed := strings.TrimSpace(userText)

	state, err := o.store.GetGuardState(ctx, conv.ID)
	if err != nil {
		logger.Warn("failed to load guard state, using empty state", "error", err)
		state = &storage.GuardState{ConversationID: conv.ID}
	}

	var lastReply time.Time
	if state.LastReplyAt != nil {
		lastReply = *state.LastReplyAt
	}
	recent := lastN(state.RecentMessages, recentWindowForGuard)
	decision := guard.ShouldAllowAI(trimmed, lastReply, recent, o.now())

	// The current message joins the rolling window regardless of outcome.
	state.RecentMessages = guard.AppendToWindow(state.RecentMessages, trimmed)
	if err := o.store.SaveGuardState(ctx, state); err != nil {
		logger.Warn("failed to save guard state", "error", err)
	}

	if !decision.Allow {
		logger.Info("guard denied generation", "reason", string(decision.Reason))
		return &storage.Message{
			ConversationID: conv.ID,
			Role:           llm.RoleAssistant,
			Content:        o.config.ThrottledReply,
		}
	}

	history := o.loadHistory(ctx, conv, userText)
	text, err := o.router.GenerateAgentReply(ctx, conv.AgentType, trimmed, history)
	if err != nil {
		// Only cancellation reaches here; the conversation is being torn
		// down, so no reply at all.
		logger.Debug("generation cancelled", "error", err)
		return nil
	}
	if text == "" {
		// A failed call does not advance the cooldown: the user shouldn't
		// be penalized for a provider-side failure.
		return &storage.Message{
			ConversationID: conv.ID,
			Role:           llm.RoleAssistant,
			Content:        o.config.FallbackReply,
		}
	}

	now := o.now()
	state.LastReplyAt = &now
	if err := o.store.SaveGuardState(ctx, state); err != nil {
		logger.Warn("failed to record reply timestamp", "error", err)
	}

	return &storage.Message{
		ConversationID: conv.ID,
		Role:           llm.RoleAssistant,
		Provider:       o.config.ProviderName,
		Model:          o.config.Model,
		Content:        text,
	}
}

// loadHistory maps the stored tail of the conversation into provider turns.
// The just-persisted user message is dropped from the window because the
// router sends it separately.
func (o *Orchestrator) loadHistory(ctx context.Context, conv *storage.Conversation, userText string) []llm.Message {
	stored, err := o.store.GetRecentMessages(ctx, conv.ID, o.config.HistoryLimit+1)
	if err != nil {
		o.logger.Warn("failed to load history", "conversation_id", conv.ID, "error", err)
		return nil
	}
	if n := len(stored); n > 0 && stored[n-1].Role == llm.RoleUser && stored[n-1].Content == userText {
		stored = stored[:n-1]
	}
	if len(stored) > o.config.HistoryLimit {
		stored = stored[len(stored)-o.config.HistoryLimit:]
	}

	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return history
}

func (o *Orchestrator) conversationLock(conversationID string) *sync.Mutex {
	o.convLocksMu.Lock()
	defer o.convLocksMu.Unlock()
	mu, ok := o.convLocks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		o.convLocks[conversationID] = mu
	}
	return mu
}

func (o *Orchestrator) randomDelay(flavor string) time.Duration {
	r := o.config.PeerDelay
	if flavor == storage.FlavorAgent {
		r = o.config.AgentDelay
	}
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(o.intn(int(r.Max-r.Min)))
}

func (o *Orchestrator) notify(msg *storage.Message) {
	if o.notifier != nil {
		o.notifier.NotifyMessage(msg)
	}
}

func lastN(items []string, n int) []string {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
