package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmate/autoreply/src/llm"
	"github.com/pawmate/autoreply/src/persona"
)

type fakeProvider struct {
	name       string
	resp       *llm.GenerateResponse
	err        error
	credential bool

	lastReq *llm.GenerateRequest
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.lastReq = req
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeProvider) HasCredential() bool { return f.credential }

func testPersonas() *persona.Registry {
	return persona.NewRegistry([]persona.Persona{
		{
			ID:           "adoption-consultant",
			Name:         "领养顾问",
			SystemPrompt: "你是领养顾问。",
			Tone:         "亲切",
			MaxTokens:    512,
		},
	})
}

func newTestRouter(p llm.Provider) *Router {
	return New(Options{
		Providers: map[string]llm.Provider{"fake": p},
		Active:    "fake",
		Personas:  testPersonas(),
	})
}

func TestGenerateAgentReplySuccess(t *testing.T) {
	p := &fakeProvider{
		name: "fake",
		resp: &llm.GenerateResponse{Text: "欢迎咨询领养！", Model: "fake-1"},
	}
	r := newTestRouter(p)

	text, err := r.GenerateAgentReply(context.Background(), "adoption-consultant", "你好", nil)
	require.NoError(t, err)
	assert.Equal(t, "欢迎咨询领养！", text)

	require.NotNil(t, p.lastReq)
	assert.Equal(t, "你好", p.lastReq.UserMessage)
	assert.Equal(t, 512, p.lastReq.MaxTokens)
	assert.InDelta(t, 0.85, p.lastReq.Temperature, 1e-9)
}

func TestGenerateAgentReplySystemPromptComposition(t *testing.T) {
	p := &fakeProvider{resp: &llm.GenerateResponse{Text: "ok"}}
	r := newTestRouter(p)

	_, err := r.GenerateAgentReply(context.Background(), "adoption-consultant", "你好", nil)
	require.NoError(t, err)

	prompt := p.lastReq.SystemPrompt
	assert.True(t, strings.HasPrefix(prompt, "你是领养顾问。"), "persona prompt must come first")
	assert.Contains(t, prompt, antiSpamInstruction)
	assert.Contains(t, prompt, "回复语气要求：亲切。")
}

func TestGenerateAgentReplyNoActiveProvider(t *testing.T) {
	r := New(Options{
		Providers: map[string]llm.Provider{},
		Active:    "missing",
		Personas:  testPersonas(),
	})

	text, err := r.GenerateAgentReply(context.Background(), "adoption-consultant", "你好", nil)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestGenerateAgentReplyUnknownPersona(t *testing.T) {
	p := &fakeProvider{resp: &llm.GenerateResponse{Text: "ok"}}
	r := newTestRouter(p)

	text, err := r.GenerateAgentReply(context.Background(), "nonexistent", "你好", nil)
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.Nil(t, p.lastReq, "provider must not be called for an unknown persona")
}

func TestGenerateAgentReplyProviderFailuresCollapse(t *testing.T) {
	failures := []error{
		llm.ErrNoAPIKey,
		llm.ErrEmptyResponse,
		&llm.APIError{StatusCode: 500, Provider: "fake", Message: "boom"},
		errors.New("connection refused"),
	}
	for _, failure := range failures {
		r := newTestRouter(&fakeProvider{err: failure})
		text, err := r.GenerateAgentReply(context.Background(), "adoption-consultant", "你好", nil)
		require.NoError(t, err, "failure %v must not surface as an error", failure)
		assert.Equal(t, "", text)
	}
}

func TestGenerateAgentReplyCancellation(t *testing.T) {
	r := newTestRouter(&fakeProvider{resp: &llm.GenerateResponse{Text: "ok"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.GenerateAgentReply(ctx, "adoption-consultant", "你好", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateAgentReplyHistoryBounded(t *testing.T) {
	p := &fakeProvider{resp: &llm.GenerateResponse{Text: "ok"}}
	r := New(Options{
		Providers:    map[string]llm.Provider{"fake": p},
		Active:       "fake",
		Personas:     testPersonas(),
		HistoryLimit: 3,
	})

	history := make([]llm.Message, 10)
	for i := range history {
		history[i] = llm.Message{Role: llm.RoleUser, Content: string(rune('a' + i))}
	}

	_, err := r.GenerateAgentReply(context.Background(), "adoption-consultant", "你好", history)
	require.NoError(t, err)
	require.Len(t, p.lastReq.History, 3)
	assert.Equal(t, "h", p.lastReq.History[0].Content, "the newest turns must be kept")
}

func TestDebugSnapshot(t *testing.T) {
	p := &fakeProvider{credential: true}
	r := newTestRouter(p)

	snap := r.DebugSnapshot()
	assert.Equal(t, "fake", snap.ActiveProvider)
	assert.Equal(t, []string{"fake"}, snap.Registered)
	assert.True(t, snap.HasCredential)
	assert.Equal(t, []string{"adoption-consultant"}, snap.Personas)
	assert.Equal(t, defaultHistoryLimit, snap.HistoryLimit)
}
