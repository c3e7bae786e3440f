package api

import (
	"errors"
	"net/http"

	"github.com/neuassist/neuassist/internal/log"
	"github.com/neuassist/neuassist/internal/store"
)

type conversationHandler struct {
	logger log.Logger
	store  *store.Store
}

func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	summaries := h.store.List()
	writeJSON(w, http.StatusOK, struct {
		Conversations []store.Summary `json:"conversations"`
	}{summaries}, h.logger)
}

func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Create()
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "系统错误", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}{conv.ID, conv.Title}, h.logger)
}

func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Delete(r.PathValue("id"))
	if err != nil {
		h.logger.Error("deleting conversation", "error", err)
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "对话不存在", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) history(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.PairedHistory(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "对话不存在", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "系统错误", h.logger)
		return
	}
	if history == nil {
		history = []store.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, history, h.logger)
}
