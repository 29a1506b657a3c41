// Package blocklist is the append-only ledger of releases that must never be
// re-grabbed for an author. Release identity is unreliable across indexers,
// so matching is protocol-specific and deliberately tolerant.
package blocklist

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/models"
)

type Service struct {
	db            *models.Database
	sizeTolerance int64
	dateTolerance time.Duration
	log           *logrus.Logger
}

func NewService(db *models.Database, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		db:            db,
		sizeTolerance: cfg.BlocklistSizeTolerance,
		dateTolerance: cfg.BlocklistDateTolerance,
		log:           log,
	}
}

// RegisterHandlers subscribes the ledger to library mutation events
func (s *Service) RegisterHandlers(bus eventbus.Publisher) {
	bus.Subscribe(eventbus.AuthorDeleted, func(event eventbus.Event) {
		if err := s.DeleteAllForAuthor(event.AuthorID); err != nil {
			s.log.WithError(err).WithField("author_id", event.AuthorID).Error("Failed to clear blocklist for deleted author")
		}
	})
}

// IsBlocklisted reports whether the release matches a stored entry for the
// author
func (s *Service) IsBlocklisted(authorID uint64, release models.ReleaseInfo) bool {
	entries, err := s.db.GetBlocklistByAuthor(authorID)
	if err != nil {
		s.log.WithError(err).WithField("author_id", authorID).Error("Failed to query blocklist")
		return false
	}

	for _, entry := range entries {
		if s.matches(entry, release) {
			return true
		}
	}
	return false
}

// matches applies the protocol-specific identity rules. Torrents have a
// reliable info-hash when present; usenet uploads only have publish date and
// size, which differ slightly between indexers for the same upload.
func (s *Service) matches(entry *models.BlocklistEntry, release models.ReleaseInfo) bool {
	if entry.Protocol != release.Protocol {
		return false
	}

	switch release.Protocol {
	case models.ProtocolTorrent:
		if entry.InfoHash != "" {
			return strings.EqualFold(entry.InfoHash, release.InfoHash)
		}
		// Legacy entries without a hash: indexer name is the only identity left
		return entry.Indexer == release.Indexer

	case models.ProtocolUsenet:
		if entry.PublishedDate.Equal(release.PublishDate) {
			return true
		}

		if entry.Indexer != "" && entry.Indexer != release.Indexer {
			return false
		}

		dateDiff := entry.PublishedDate.Sub(release.PublishDate)
		if dateDiff < 0 {
			dateDiff = -dateDiff
		}
		if dateDiff > s.dateTolerance {
			return false
		}

		sizeDiff := entry.Size - release.Size
		if sizeDiff < 0 {
			sizeDiff = -sizeDiff
		}
		return sizeDiff <= s.sizeTolerance
	}

	return false
}

// Block inserts an immutable entry for the candidate release
func (s *Service) Block(remote *models.RemoteBook, message string) error {
	if remote == nil || remote.Author == nil {
		return fmt.Errorf("cannot blocklist an unmapped release")
	}

	entry := &models.BlocklistEntry{
		AuthorID:      remote.Author.ID,
		BookIDs:       remote.BookIDs(),
		SourceTitle:   remote.Release.Title,
		Quality:       remote.ParsedQuality,
		Protocol:      remote.Release.Protocol,
		Indexer:       remote.Release.Indexer,
		InfoHash:      remote.Release.InfoHash,
		PublishedDate: remote.Release.PublishDate,
		Size:          remote.Release.Size,
		Message:       message,
	}

	if err := s.db.InsertBlocklist(entry); err != nil {
		return fmt.Errorf("failed to insert blocklist entry: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"author_id": entry.AuthorID,
		"title":     entry.SourceTitle,
		"message":   message,
	}).Info("Release blocklisted")
	return nil
}

// Delete removes entries by id
func (s *Service) Delete(ids ...uint64) error {
	for _, id := range ids {
		if err := s.db.DeleteBlocklist(id); err != nil {
			return fmt.Errorf("failed to delete blocklist entry %d: %w", id, err)
		}
	}
	return nil
}

// DeleteAllForAuthor removes every entry for an author, invoked when the
// author is deleted
func (s *Service) DeleteAllForAuthor(authorID uint64) error {
	return s.db.DeleteBlocklistByAuthor(authorID)
}

// All returns every stored entry, for the operational API
func (s *Service) All() ([]*models.BlocklistEntry, error) {
	return s.db.GetAllBlocklist()
}
