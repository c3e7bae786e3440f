package api

import (
	"net/http"

	"github.com/neuassist/neuassist/internal/log"
)

type modelHandler struct {
	logger log.Logger
	catalog ModelCatalog
}

func (h *modelHandler) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Available, h.logger)
}

func (h *modelHandler) thinkingModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Thinking, h.logger)
}

func (h *modelHandler) defaultModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Default, h.logger)
}
