package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetpotato0/wanderai/assistant"
	"github.com/sweetpotato0/wanderai/llm/llmtest"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/rag/document"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
	"github.com/sweetpotato0/wanderai/rag/webhook"
	"github.com/sweetpotato0/wanderai/reply"
	"github.com/sweetpotato0/wanderai/router"
	"github.com/sweetpotato0/wanderai/task"
)

const testSecret = "s3cret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router    http.Handler
	assistant *assistant.Assistant
	kb        *retrieval.Service
	hooks     *webhook.Manager
	stub      *llmtest.Stub
}

func setupTestRouter(t *testing.T, stub *llmtest.Stub, opts ...assistant.Option) fixture {
	t.Helper()
	quiet := logging.Discard()
	kb := retrieval.NewFromDocuments([]document.Document{{
		ID:          "lonavala",
		Name:        "Lonavala",
		Category:    "hill station",
		Description: "Hill station 64 km from Pune, popular in the monsoon.",
		Source:      "places.json",
	}}, retrieval.WithLogger(quiet))
	a := assistant.New(stub, kb, append([]assistant.Option{
		assistant.WithLogger(quiet),
		assistant.WithTaskOptions(task.WithLogger(quiet)),
		assistant.WithRouter(router.New(stub, router.WithLogger(quiet))),
	}, opts...)...)
	hooks := webhook.NewManager(kb, testSecret, "")
	return fixture{
		router:    New(Config{Host: "127.0.0.1", Port: 0}, a, hooks).Handler(),
		assistant: a,
		kb:        kb,
		hooks:     hooks,
		stub:      stub,
	}
}

func do(h http.Handler, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleChat(t *testing.T) {
	t.Run("returns the reply", func(t *testing.T) {
		f := setupTestRouter(t, llmtest.New())
		body, _ := json.Marshal(ChatRequest{Message: "asdfghjkl"})

		w := do(f.router, http.MethodPost, "/v1/chat", body, nil)

		require.Equal(t, http.StatusOK, w.Code)
		var r reply.Reply
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
		assert.Equal(t, reply.TypeClarification, r.Type)
		assert.NotEmpty(t, r.SessionID)
		assert.Equal(t, 0, f.stub.Calls())
	})

	t.Run("limits each client separately", func(t *testing.T) {
		f := setupTestRouter(t, llmtest.New(), assistant.WithRateLimit(1))
		body, _ := json.Marshal(ChatRequest{Message: "asdfghjkl"})
		chat := func(remoteAddr string) reply.Reply {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.RemoteAddr = remoteAddr
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
			var r reply.Reply
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
			return r
		}

		assert.Equal(t, reply.TypeClarification, chat("10.0.0.1:5000").Type)
		assert.Equal(t, reply.TypeClarification, chat("10.0.0.2:5000").Type)
		limited := chat("10.0.0.1:5001")
		assert.Equal(t, reply.TypeError, limited.Type)
		assert.Equal(t, reply.RateLimitedText, limited.Response)
	})

	t.Run("keeps the session", func(t *testing.T) {
		f := setupTestRouter(t, llmtest.New())
		id := f.assistant.ProcessMessage(context.Background(), "asdfghjkl", "").SessionID
		body, _ := json.Marshal(ChatRequest{Message: "asdfghjkl", SessionID: id})

		w := do(f.router, http.MethodPost, "/v1/chat", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var r reply.Reply
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
		assert.Equal(t, id, r.SessionID)

		w = do(f.router, http.MethodGet, "/v1/sessions/"+id, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var tr assistant.Transcript
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tr))
		assert.Equal(t, id, tr.SessionID)
		assert.Len(t, tr.Messages, 4)
		assert.Equal(t, 2, tr.Stats.TotalMessages)
	})

	t.Run("missing message", func(t *testing.T) {
		f := setupTestRouter(t, llmtest.New())

		w := do(f.router, http.MethodPost, "/v1/chat", []byte(`{"session_id":"x"}`), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "INVALID_REQUEST", resp.Code)
	})
}

func TestHandleSessions(t *testing.T) {
	f := setupTestRouter(t, llmtest.New())

	w := do(f.router, http.MethodGet, "/v1/sessions/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(f.router, http.MethodDelete, "/v1/sessions/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := f.assistant.ProcessMessage(context.Background(), "asdfghjkl", "").SessionID
	w = do(f.router, http.MethodDelete, "/v1/sessions/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(f.router, http.MethodGet, "/v1/sessions/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleWebhook(t *testing.T) {
	payload := []byte(`{"action":"add","type":"place","data":{"name":"Alibaug","category":"beach","description":"Quiet beaches."}}`)

	t.Run("applies signed updates", func(t *testing.T) {
		f := setupTestRouter(t, llmtest.New())
		sig := f.hooks.Validator().Sign(payload)

		w := do(f.router, http.MethodPost, "/v1/webhooks/kb", payload, map[string]string{webhook.SignatureHeader: sig})

		require.Equal(t, http.StatusOK, w.Code)
		var resp WebhookResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, "Successfully processed add for Alibaug", resp.Message)

		refreshed, err := f.kb.ConditionalRefresh(context.Background())
		require.NoError(t, err)
		assert.True(t, refreshed)
		assert.Len(t, f.kb.Documents(), 2)

		w = do(f.router, http.MethodGet, "/v1/webhooks/kb/stats", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var stats webhook.Stats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.TotalUpdates)
		assert.Equal(t, 1, stats.UpdatesByAction["add"])
	})

	t.Run("rejects a bad signature", func(t *testing.T) {
		f := setupTestRouter(t, llmtest.New())

		w := do(f.router, http.MethodPost, "/v1/webhooks/kb", payload, map[string]string{webhook.SignatureHeader: "deadbeef"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a malformed payload", func(t *testing.T) {
		f := setupTestRouter(t, llmtest.New())
		bad := []byte(`{"action":"explode","type":"place","data":{"name":"x"}}`)
		sig := f.hooks.Validator().Sign(bad)

		w := do(f.router, http.MethodPost, "/v1/webhooks/kb", bad, map[string]string{webhook.SignatureHeader: sig})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDescribePlace(t *testing.T) {
	f := setupTestRouter(t, llmtest.New("  A green hill station near Pune.  "))

	w := do(f.router, http.MethodGet, "/v1/places/Lonavala/description", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp DescriptionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Lonavala", resp.Place)
	assert.Equal(t, "A green hill station near Pune.", resp.Description)
	require.Len(t, f.stub.Requests(), 1)
	assert.Contains(t, f.stub.Requests()[0].Prompt, "Lonavala")
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupTestRouter(t, llmtest.New())

	w := do(f.router, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = do(f.router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "# HELP"))
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", Config{Host: "0.0.0.0", Port: 8080}.Addr())
}
