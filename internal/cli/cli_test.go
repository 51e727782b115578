package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-workflows/backend/internal/completion"
	"ai-workflows/backend/internal/config"
	"ai-workflows/backend/internal/logging"
	"ai-workflows/backend/internal/workflow"
	"ai-workflows/backend/pkg/models"
)

const appointmentWorkflow = `{"name":"Appointment Update Workflow","followups":{"followup":{"title":"Appointment Updated","model":"appointment"},"true":{"followup":{"title":"Send Message","action":"send-message"}}}}`

// fakeUpstream answers every chat completion with content and records the
// requests it saw.
type fakeUpstream struct {
	mu       sync.Mutex
	content  string
	requests []completion.Request
	auth     []string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req completion.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(completion.Reply{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-2024-08-06",
		Choices: []completion.Choice{{
			Message:      completion.Message{Role: completion.RoleAssistant, Content: f.content},
			FinishReason: "stop",
		}},
	})
}

func startUpstream(t *testing.T, content string) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{content: content}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TOKEN", "deploy-token")
	t.Setenv("UPSTREAM_BASE_URL", srv.URL)
	return f
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ai-workflows")
	assert.Contains(t, out, workflow.VocabularyVersion)
}

func TestPromptCommand(t *testing.T) {
	out, err := execute(t, "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, workflow.SystemPrompt()+"\n", out)
}

func TestVocabularyCommand(t *testing.T) {
	out, err := execute(t, "", "vocabulary")
	require.NoError(t, err)

	var vocab models.Vocabulary
	require.NoError(t, json.Unmarshal([]byte(out), &vocab))
	assert.Len(t, vocab.TriggerModels, len(workflow.TriggerModels))
	assert.Len(t, vocab.Actions, len(workflow.Actions))
}

func TestGenerateCommand_Args(t *testing.T) {
	upstream := startUpstream(t, "Here you go:\n```json\n"+appointmentWorkflow+"\n```")

	out, err := execute(t, "", "generate", "--compact", "When an appointment is updated", "send a message")
	require.NoError(t, err)
	assert.Equal(t, appointmentWorkflow+"\n", out)

	require.Len(t, upstream.requests, 1)
	req := upstream.requests[0]
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 0.2, req.Temperature)
	assert.Equal(t, "deploy-token", req.Metadata.Token)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "When an appointment is updated send a message", req.Messages[1].Content)
	assert.Equal(t, "Bearer sk-test", upstream.auth[0])
}

func TestGenerateCommand_StdinIndented(t *testing.T) {
	upstream := startUpstream(t, appointmentWorkflow)

	out, err := execute(t, "  When an appointment is updated send a message\n", "generate")
	require.NoError(t, err)
	assert.JSONEq(t, appointmentWorkflow, out)
	assert.Contains(t, out, "\n  \"name\"")
	assert.Equal(t, "When an appointment is updated send a message", upstream.requests[0].Messages[1].Content)
}

func TestGenerateCommand_Errors(t *testing.T) {
	t.Run("malformed output", func(t *testing.T) {
		startUpstream(t, "Sorry, I cannot help with that.")
		_, err := execute(t, "", "generate", "do something")
		require.Error(t, err)
		assert.Contains(t, err.Error(), workflow.KindMalformedOutput)
	})

	t.Run("empty stdin", func(t *testing.T) {
		startUpstream(t, appointmentWorkflow)
		_, err := execute(t, "   \n", "generate")
		assert.EqualError(t, err, "no prompt given")
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("UPSTREAM_API_KEY", "")
		_, err := execute(t, "", "generate", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration loading failed")
	})
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("", "")
	require.NoError(t, err)
	return cfg
}

func TestNewHandler_AppointmentScenario(t *testing.T) {
	startUpstream(t, "```json\n"+appointmentWorkflow+"\n```")
	e, err := NewHandler(context.Background(), loadTestConfig(t), logging.Discard())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ai-workflows",
		strings.NewReader(`{"prompt":"When an appointment is updated send a message"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, appointmentWorkflow, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewHandler_MalformedOutput(t *testing.T) {
	startUpstream(t, "{ not json }")
	e, err := NewHandler(context.Background(), loadTestConfig(t), logging.Discard())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ai-workflows", strings.NewReader(`{"prompt":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, workflow.KindMalformedOutput, rec.Header().Get("X-Error-Kind"))
	assert.Contains(t, rec.Body.String(), `"error":`)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe_GracefulShutdown(t *testing.T) {
	startUpstream(t, appointmentWorkflow)
	cfg := loadTestConfig(t)
	cfg.HTTP.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, logging.Discard()) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.HTTP.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
