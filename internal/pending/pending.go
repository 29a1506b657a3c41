// Package pending parks temporarily rejected releases for a later retry.
package pending

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/models"
)

// Candidate pairs a release with the reason it is being parked
type Candidate struct {
	Remote *models.RemoteBook
	Reason string
}

type Service struct {
	db  *models.Database
	bus eventbus.Publisher
	log *logrus.Logger
}

func NewService(db *models.Database, bus eventbus.Publisher, log *logrus.Logger) *Service {
	return &Service{db: db, bus: bus, log: log}
}

// RegisterHandlers subscribes the queue to library mutation events
func (s *Service) RegisterHandlers(bus eventbus.Publisher) {
	bus.Subscribe(eventbus.AuthorDeleted, func(event eventbus.Event) {
		if err := s.db.DeletePendingByAuthor(event.AuthorID); err != nil {
			s.log.WithError(err).WithField("author_id", event.AuthorID).Error("Failed to clear pending releases for deleted author")
		}
	})
}

// Add inserts the candidates, deduplicating against existing rows and within
// the batch: duplicate temporary rejections of the same candidate collapse
// into a single pending release. Identity is (author, books, title, indexer),
// so same-titled releases from one indexer targeting different book sets stay
// distinct.
func (s *Service) Add(candidates []Candidate) error {
	existing, err := s.db.GetAllPending()
	if err != nil {
		return fmt.Errorf("failed to load pending releases: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, release := range existing {
		seen[pendingKey(release.AuthorID, release.BookIDs, release.Title, release.Indexer)] = true
	}

	added := 0
	for _, candidate := range candidates {
		remote := candidate.Remote
		if remote == nil || remote.Author == nil {
			continue
		}

		key := pendingKey(remote.Author.ID, remote.BookIDs(), remote.Release.Title, remote.Release.Indexer)
		if seen[key] {
			continue
		}
		seen[key] = true

		release := &models.PendingRelease{
			AuthorID: remote.Author.ID,
			BookIDs:  remote.BookIDs(),
			Title:    remote.Release.Title,
			Indexer:  remote.Release.Indexer,
			Release:  remote.Release,
			Quality:  remote.ParsedQuality,
			Reason:   candidate.Reason,
		}
		if err := s.db.InsertPending(release); err != nil {
			return fmt.Errorf("failed to insert pending release: %w", err)
		}
		added++
	}

	if added > 0 {
		s.log.WithField("count", added).Info("Releases added to pending queue")
		s.bus.Publish(eventbus.Event{Type: eventbus.PendingUpdated})
	}
	return nil
}

// All returns every parked release
func (s *Service) All() ([]*models.PendingRelease, error) {
	return s.db.GetAllPending()
}

// Remove deletes parked releases by id
func (s *Service) Remove(ids ...uint64) error {
	for _, id := range ids {
		if err := s.db.DeletePending(id); err != nil {
			return fmt.Errorf("failed to delete pending release %d: %w", id, err)
		}
	}
	return nil
}

func pendingKey(authorID uint64, bookIDs []uint64, title, indexer string) string {
	sorted := append([]uint64(nil), bookIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprintf("%d|%v|%s|%s", authorID, sorted, title, indexer)
}
