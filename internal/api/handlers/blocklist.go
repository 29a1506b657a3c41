package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/blocklist"
)

// BlocklistHandler exposes the blocklist ledger
type BlocklistHandler struct {
	blocklist *blocklist.Service
	logger    *logrus.Logger
}

func NewBlocklistHandler(blocklistSvc *blocklist.Service, logger *logrus.Logger) *BlocklistHandler {
	return &BlocklistHandler{blocklist: blocklistSvc, logger: logger}
}

func (h *BlocklistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BlocklistHandler) list(w http.ResponseWriter) {
	entries, err := h.blocklist.All()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load blocklist")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *BlocklistHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id parameter", http.StatusBadRequest)
		return
	}

	if err := h.blocklist.Delete(id); err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to delete blocklist entry")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
