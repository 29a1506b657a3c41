// Package history is the append-only, per-download-id event log. It is the
// durable source of truth the tracked-download state machine rebuilds from
// after a restart; a failed write here must propagate, because a gap in the
// ledger breaks every idempotence guarantee downstream.
package history

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/models"
)

type Service struct {
	db  *models.Database
	log *logrus.Logger
}

func NewService(db *models.Database, log *logrus.Logger) *Service {
	return &Service{db: db, log: log}
}

// RegisterHandlers subscribes the ledger to library mutation events
func (s *Service) RegisterHandlers(bus eventbus.Publisher) {
	bus.Subscribe(eventbus.AuthorDeleted, func(event eventbus.Event) {
		if err := s.db.DeleteHistoryByAuthor(event.AuthorID); err != nil {
			s.log.WithError(err).WithField("author_id", event.AuthorID).Error("Failed to clear history for deleted author")
		}
	})
}

// Add appends one entry. Every state-changing event elsewhere in the system
// appends exactly one row here.
func (s *Service) Add(entry *models.HistoryEntry) error {
	if err := s.db.InsertHistory(entry); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"download_id": entry.DownloadID,
		"event":       entry.EventType,
		"title":       entry.SourceTitle,
	}).Debug("History entry appended")
	return nil
}

// FindByDownloadID returns all entries for a download id, newest first
func (s *Service) FindByDownloadID(downloadID string) ([]*models.HistoryEntry, error) {
	entries, err := s.db.GetHistoryByDownloadID(downloadID)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
	return entries, nil
}

// GetLatestGrab returns the most recent grabbed entry for a download id, or
// nil when none exists
func (s *Service) GetLatestGrab(downloadID string) (*models.HistoryEntry, error) {
	entries, err := s.FindByDownloadID(downloadID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.EventType == models.HistoryGrabbed {
			return entry, nil
		}
	}
	return nil, nil
}

// GetLatestDownloadHistoryItem returns the most recent lifecycle entry for a
// download id, skipping per-file sub-events like fileImported
func (s *Service) GetLatestDownloadHistoryItem(downloadID string) (*models.HistoryEntry, error) {
	entries, err := s.FindByDownloadID(downloadID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.EventType.IsLifecycle() {
			return entry, nil
		}
	}
	return nil, nil
}

// DownloadAlreadyImported scans newest-first and reports true the moment an
// imported event is seen, false the moment a grabbed event is seen first. A
// later grab of the same download id supersedes an earlier import record,
// which models re-grab/re-import cycles correctly.
func (s *Service) DownloadAlreadyImported(downloadID string) (bool, error) {
	entries, err := s.FindByDownloadID(downloadID)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		switch entry.EventType {
		case models.HistoryDownloadImported:
			return true, nil
		case models.HistoryGrabbed:
			return false, nil
		}
	}
	return false, nil
}

// MostRecentForBook returns the newest lifecycle entry referencing a book, or
// nil when the book has no history
func (s *Service) MostRecentForBook(bookID uint64) (*models.HistoryEntry, error) {
	entries, err := s.db.GetHistoryByBook(bookID)
	if err != nil {
		return nil, err
	}

	var latest *models.HistoryEntry
	for _, entry := range entries {
		if !entry.EventType.IsLifecycle() {
			continue
		}
		if latest == nil || entry.Date.After(latest.Date) {
			latest = entry
		}
	}
	return latest, nil
}
