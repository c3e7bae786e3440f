package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neuassist/neuassist/internal/chat"
	"github.com/neuassist/neuassist/internal/llm"
	"github.com/neuassist/neuassist/internal/log"
	"github.com/neuassist/neuassist/internal/store"
	"github.com/neuassist/neuassist/internal/testutil"
)

const testModel = "qwen-max-latest"

func newTestServer(t *testing.T, upstream chat.Upstream, rateBurst int) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "conversations.json"), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	svc, err := chat.New(chat.Config{
		Upstream:     upstream,
		Store:        st,
		Logger:       log.NewNop(),
		SystemPrompt: "测试",
		DefaultModel: testModel,
	})
	if err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Store:  st,
		Chat:   svc,
		Models: ModelCatalog{
			Available: []string{testModel, "qwq-plus"},
			Thinking:  []string{"qwq-plus"},
			Default:   testModel,
		},
		CORSOrigins: []string{"http://localhost:5173"},
		RateBurst:   rateBurst,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, st
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_ValidationErrors(t *testing.T) {
	srv, st := newTestServer(t, &testutil.ScriptedUpstream{}, 0)
	conv, _ := st.Create()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"malformed body", `{`, http.StatusBadRequest, "无效的请求数据"},
		{"missing message", `{"conversation_id":"` + conv.ID + `"}`, http.StatusBadRequest, "消息不能为空"},
		{"missing conversation id", `{"message":"hi"}`, http.StatusBadRequest, "对话ID不能为空"},
		{"unknown conversation", `{"message":"hi","conversation_id":"nope"}`, http.StatusNotFound, "对话不存在"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/chat", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if resp["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", resp["error"], tt.wantError)
			}
		})
	}
}

func TestChat_StreamsTurn(t *testing.T) {
	upstream := &testutil.ScriptedUpstream{
		Passes: [][]llm.Delta{{
			{Kind: llm.DeltaAnswer, Text: "你"},
			{Kind: llm.DeltaAnswer, Text: "好"},
		}},
	}
	srv, st := newTestServer(t, upstream, 0)
	conv, _ := st.Create()

	rec := doJSON(t, srv, http.MethodPost, "/api/chat",
		`{"message":"打个招呼","conversation_id":"`+conv.ID+`"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Error("X-Accel-Buffering header missing")
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Error("Cache-Control header missing")
	}

	frames, err := testutil.ParseSSE(rec.Body)
	if err != nil {
		t.Fatalf("ParseSSE() error = %v", err)
	}
	want := []string{"answer_start", "answer", "answer", "done"}
	if got := testutil.Types(frames); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("frame types = %v, want %v", got, want)
	}

	done := frames[len(frames)-1].Payload
	messages, ok := done["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Errorf("done messages = %v, want 2 entries", done["messages"])
	}
	if title, _ := done["title"].(string); !strings.HasPrefix(title, "新对话") {
		t.Errorf("done title = %v", done["title"])
	}

	first := frames[0]
	if content, present := first.Payload["content"]; !present || content != "" {
		t.Errorf("answer_start frame = %s, want empty content field", first.Raw)
	}
}

func TestChat_UpstreamErrorEmitsErrorFrame(t *testing.T) {
	upstream := &testutil.ScriptedUpstream{
		Passes: [][]llm.Delta{{{Kind: llm.DeltaAnswer, Text: "部分"}}},
		Errs:   []error{errTest},
	}
	srv, st := newTestServer(t, upstream, 0)
	conv, _ := st.Create()

	rec := doJSON(t, srv, http.MethodPost, "/api/chat",
		`{"message":"hi","conversation_id":"`+conv.ID+`"}`)

	frames, err := testutil.ParseSSE(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	types := testutil.Types(frames)
	if types[len(types)-1] != "error" {
		t.Fatalf("frame types = %v, want terminal error", types)
	}
	for _, typ := range types {
		if typ == "done" {
			t.Fatal("done frame present in a failed turn")
		}
	}
	errFrame := frames[len(frames)-1].Payload
	if msg, _ := errFrame["error"].(string); !strings.HasPrefix(msg, "AI服务错误: ") {
		t.Errorf("error frame = %v", errFrame)
	}
}

var errTest = errors.New("connection reset by peer")

func TestConversationCRUD(t *testing.T) {
	srv, _ := newTestServer(t, &testutil.ScriptedUpstream{}, 0)

	// Create
	rec := doJSON(t, srv, http.MethodPost, "/api/conversations", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || !strings.HasPrefix(created.Title, "新对话") {
		t.Errorf("created = %+v", created)
	}

	// List
	rec = doJSON(t, srv, http.MethodGet, "/api/conversations", "")
	var listed struct {
		Conversations []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Conversations) != 1 || listed.Conversations[0].ID != created.ID {
		t.Errorf("listed = %+v", listed)
	}

	// Delete
	rec = doJSON(t, srv, http.MethodDelete, "/api/conversations/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/api/conversations/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestConversationHistory(t *testing.T) {
	srv, st := newTestServer(t, &testutil.ScriptedUpstream{}, 0)
	conv, _ := st.Create()
	st.Append(conv.ID, store.Message{Content: "问", IsUser: true, Timestamp: "2026-08-26 10:00:00"})
	st.Append(conv.ID, store.Message{Content: "答", IsUser: false, Reasoning: "想"})

	rec := doJSON(t, srv, http.MethodGet, "/api/conversations/"+conv.ID+"/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var history []struct {
		User      string `json:"user"`
		AI        string `json:"ai"`
		Reasoning string `json:"reasoning"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].User != "问" || history[0].AI != "答" {
		t.Errorf("history = %+v", history)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations/absent/history", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("history for unknown conversation = %d, want 404", rec.Code)
	}
}

func TestModelEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &testutil.ScriptedUpstream{}, 0)

	rec := doJSON(t, srv, http.MethodGet, "/api/models", "")
	var models []string
	if err := json.Unmarshal(rec.Body.Bytes(), &models); err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 {
		t.Errorf("models = %v", models)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/thinking_models", "")
	var thinking []string
	if err := json.Unmarshal(rec.Body.Bytes(), &thinking); err != nil {
		t.Fatal(err)
	}
	if len(thinking) != 1 || thinking[0] != "qwq-plus" {
		t.Errorf("thinking models = %v", thinking)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/default_model", "")
	var def string
	if err := json.Unmarshal(rec.Body.Bytes(), &def); err != nil {
		t.Fatal(err)
	}
	if def != testModel {
		t.Errorf("default model = %q", def)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, &testutil.ScriptedUpstream{}, 2)

	var last int
	for range 3 {
		rec := doJSON(t, srv, http.MethodGet, "/api/models", "")
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &testutil.ScriptedUpstream{}, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("allow-origin set for an unlisted origin")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &testutil.ScriptedUpstream{}, 0)

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health body = %s", rec.Body.String())
	}
}
