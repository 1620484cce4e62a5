package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmate/autoreply/src/keyword"
	"github.com/pawmate/autoreply/src/llm"
	"github.com/pawmate/autoreply/src/orchestrator"
	"github.com/pawmate/autoreply/src/persona"
	"github.com/pawmate/autoreply/src/router"
	"github.com/pawmate/autoreply/src/storage"
)

type stubRouterProvider struct {
	reply string
}

func (s *stubRouterProvider) Name() string { return "stub" }

func (s *stubRouterProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Text: s.reply, Model: "stub-1"}, nil
}

func (s *stubRouterProvider) HasCredential() bool { return true }

type testEnv struct {
	server       *Server
	orchestrator *orchestrator.Orchestrator
	store        *storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := storage.NewStore(db)

	replyRouter := router.New(router.Options{
		Providers: map[string]llm.Provider{"stub": &stubRouterProvider{reply: "欢迎咨询领养！"}},
		Active:    "stub",
		Personas:  persona.NewRegistry(persona.DefaultPersonas()),
	})

	hub := NewHub()
	orch := orchestrator.New(orchestrator.Options{
		Store:    store,
		Matcher:  keyword.NewMatcher(keyword.DefaultGroups()),
		Router:   replyRouter,
		Notifier: hub,
		Config: orchestrator.Config{
			ProviderName: "stub",
			Model:        "stub-1",
		},
	})

	srv := New(Options{
		Store:        store,
		Orchestrator: orch,
		ReplyRouter:  replyRouter,
		Hub:          hub,
	})
	return &testEnv{server: srv, orchestrator: orch, store: store}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createConversation(t *testing.T, flavor, agentType string) storage.Conversation {
	t.Helper()
	rec := e.request(t, http.MethodPost, "/api/conversations", map[string]string{
		"flavor":     flavor,
		"agent_type": agentType,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var conv storage.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	return conv
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateConversation(t *testing.T) {
	env := newTestEnv(t)

	conv := env.createConversation(t, "agent", "adoption-consultant")
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, storage.FlavorAgent, conv.Flavor)
	assert.Equal(t, "adoption-consultant", conv.AgentType)
}

func TestCreateConversationDefaultsToPeer(t *testing.T) {
	env := newTestEnv(t)

	conv := env.createConversation(t, "", "")
	assert.Equal(t, storage.FlavorPeer, conv.Flavor)
}

func TestCreateConversationRejectsUnknownFlavor(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/conversations", map[string]string{"flavor": "group"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAgentConversationRequiresAgentType(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/conversations", map[string]string{"flavor": "agent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t)
	env.createConversation(t, "peer", "")
	env.createConversation(t, "system", "")

	rec := env.request(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var conversations []storage.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conversations))
	assert.Len(t, conversations, 2)
}

func TestSendMessageProducesAgentReply(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "agent", "adoption-consultant")

	rec := env.request(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", map[string]string{
		"content": "想领养一只猫",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var msg storage.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, llm.RoleUser, msg.Role)

	env.orchestrator.Wait()

	listRec := env.request(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, listRec.Code)

	var messages []storage.Message
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleAssistant, messages[1].Role)
	assert.Equal(t, "欢迎咨询领养！", messages[1].Content)
	assert.Equal(t, "stub", messages[1].Provider)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "peer", "")

	rec := env.request(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", map[string]string{
		"content": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageUnknownConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/conversations/nonexistent/messages", map[string]string{
		"content": "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviderSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/debug/provider", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap router.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "stub", snap.ActiveProvider)
	assert.True(t, snap.HasCredential)
}

func TestEventsStreamDeliversMessages(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "agent", "adoption-consultant")

	httpSrv := httptest.NewServer(env.server.Handler())
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + httpSrv.URL[len("http"):] + "/api/conversations/" + conv.ID + "/events"
	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "done")

	// Give the handler a moment to register the subscription.
	time.Sleep(100 * time.Millisecond)

	rec := env.request(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", map[string]string{
		"content": "想领养一只猫",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var roles []string
	for i := 0; i < 2; i++ {
		_, data, err := ws.Read(ctx)
		require.NoError(t, err)
		var msg storage.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		roles = append(roles, msg.Role)
	}
	assert.Equal(t, []string{llm.RoleUser, llm.RoleAssistant}, roles)
}
