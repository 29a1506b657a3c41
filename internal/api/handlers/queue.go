package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/tracked"
)

// QueueHandler exposes the tracked downloads, including unmapped ones
type QueueHandler struct {
	tracked *tracked.Service
	logger  *logrus.Logger
}

func NewQueueHandler(trackedSvc *tracked.Service, logger *logrus.Logger) *QueueHandler {
	return &QueueHandler{tracked: trackedSvc, logger: logger}
}

// QueueItem is the JSON view of one tracked download
type QueueItem struct {
	DownloadID string   `json:"download_id"`
	Title      string   `json:"title"`
	State      string   `json:"state"`
	Status     string   `json:"status"`
	Protocol   string   `json:"protocol"`
	Indexer    string   `json:"indexer,omitempty"`
	AuthorID   uint64   `json:"author_id,omitempty"`
	BookIDs    []uint64 `json:"book_ids,omitempty"`
	Unmapped   bool     `json:"unmapped"`
	Trackable  bool     `json:"trackable"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (h *QueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *QueueHandler) list(w http.ResponseWriter) {
	downloads := h.tracked.All()

	items := make([]QueueItem, 0, len(downloads))
	for _, download := range downloads {
		item := QueueItem{
			DownloadID: download.DownloadID,
			Title:      download.Item.Title,
			State:      string(download.State),
			Status:     string(download.Item.Status),
			Protocol:   string(download.Protocol),
			Indexer:    download.Indexer,
			Unmapped:   !download.Remote.Mapped(),
			Trackable:  download.IsTrackable,
			Warnings:   download.Warnings,
		}
		if download.Remote.Mapped() {
			item.AuthorID = download.Remote.Author.ID
			item.BookIDs = download.Remote.BookIDs()
		}
		items = append(items, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// remove stops tracking a download, or marks it ignored with ?ignore=true
func (h *QueueHandler) remove(w http.ResponseWriter, r *http.Request) {
	downloadID := r.URL.Query().Get("id")
	if downloadID == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("ignore") == "true" {
		if err := h.tracked.Ignore(downloadID); err != nil {
			h.logger.WithError(err).WithField("download_id", downloadID).Error("Failed to ignore download")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	} else {
		h.tracked.StopTracking(downloadID)
	}

	w.WriteHeader(http.StatusNoContent)
}
