package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/neuassist/neuassist/internal/chat"
	"github.com/neuassist/neuassist/internal/log"
	"github.com/neuassist/neuassist/internal/store"
)

// maxChatBodyBytes bounds the inbound turn request body.
const maxChatBodyBytes = 1 << 20

type chatHandler struct {
	logger   log.Logger
	store    *store.Store
	streamer Streamer
}

// chatRequest is the inbound turn request. DeepThinking defaults to true
// when the field is absent.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	ModelName      string `json:"model_name"`
	DeepThinking   *bool  `json:"deep_thinking"`
	WebSearch      bool   `json:"web_search"`
}

// chat validates the turn request and streams the resulting events. All
// validation failures respond pre-stream with a JSON error; once streaming
// starts the connection only carries SSE frames.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求数据", h.logger)
		return
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "消息不能为空", h.logger)
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "对话ID不能为空", h.logger)
		return
	}
	if _, err := h.store.Get(req.ConversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "对话不存在", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "系统错误", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", h.logger)
		return
	}

	deepThinking := true
	if req.DeepThinking != nil {
		deepThinking = *req.DeepThinking
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for event := range h.streamer.Stream(ctx, chat.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		ModelName:      req.ModelName,
		DeepThinking:   deepThinking,
		WebSearch:      req.WebSearch,
	}) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("encoding stream event", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			h.logger.Debug("client disconnected mid-stream", "error", err)
			return
		}
		flusher.Flush()
	}
}
