package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/tracked"
)

// StatusHandler reports library and download counters
type StatusHandler struct {
	db      *models.Database
	tracked *tracked.Service
	logger  *logrus.Logger
}

func NewStatusHandler(db *models.Database, trackedSvc *tracked.Service, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:      db,
		tracked: trackedSvc,
		logger:  logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	Authors          int            `json:"authors"`
	MonitoredAuthors int            `json:"monitored_authors"`
	Pending          int            `json:"pending"`
	Blocklisted      int            `json:"blocklisted"`
	Downloads        map[string]int `json:"downloads_by_state"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authors, err := h.db.GetAllAuthors()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load authors")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	pending, err := h.db.GetAllPending()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load pending releases")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	blocklist, err := h.db.GetAllBlocklist()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load blocklist")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		Authors:     len(authors),
		Pending:     len(pending),
		Blocklisted: len(blocklist),
		Downloads:   make(map[string]int),
	}
	for _, author := range authors {
		if author.Monitored {
			response.MonitoredAuthors++
		}
	}
	for _, download := range h.tracked.All() {
		response.Downloads[string(download.State)]++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
