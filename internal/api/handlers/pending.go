package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/pending"
)

// PendingHandler exposes the parked release queue
type PendingHandler struct {
	pending *pending.Service
	logger  *logrus.Logger
}

func NewPendingHandler(pendingSvc *pending.Service, logger *logrus.Logger) *PendingHandler {
	return &PendingHandler{pending: pendingSvc, logger: logger}
}

func (h *PendingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PendingHandler) list(w http.ResponseWriter) {
	releases, err := h.pending.All()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load pending releases")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(releases)
}

func (h *PendingHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id parameter", http.StatusBadRequest)
		return
	}

	if err := h.pending.Remove(id); err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to delete pending release")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
