package tracked

import (
	"context"
	"encoding/json"
	"fmt"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/blocklist"
	"github.com/bookarr/bookarr/internal/decision"
	"github.com/bookarr/bookarr/internal/downloader"
	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/history"
	"github.com/bookarr/bookarr/internal/metrics"
	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/parser"
	"github.com/bookarr/bookarr/internal/quality"
)

// Service owns the tracked-download cache and its lifecycle transitions
type Service struct {
	cache     *gocache.Cache
	db        *models.Database
	history   *history.Service
	blocklist *blocklist.Service
	parser    *parser.Parser
	bus       eventbus.Publisher
	log       *logrus.Logger
}

var _ decision.QueueProvider = (*Service)(nil)

func NewService(db *models.Database, historySvc *history.Service, blocklistSvc *blocklist.Service, releaseParser *parser.Parser, bus eventbus.Publisher, log *logrus.Logger) *Service {
	return &Service{
		cache:     gocache.New(gocache.NoExpiration, 0),
		db:        db,
		history:   historySvc,
		blocklist: blocklistSvc,
		parser:    releaseParser,
		bus:       bus,
		log:       log,
	}
}

// RegisterHandlers subscribes the cache to library mutation events so no
// tracked download keeps pointing at a deleted entity
func (s *Service) RegisterHandlers(bus eventbus.Publisher) {
	bus.Subscribe(eventbus.AuthorDeleted, func(event eventbus.Event) {
		s.refreshReferencing(event.AuthorID, nil)
	})
	bus.Subscribe(eventbus.BooksDeleted, func(event eventbus.Event) {
		s.refreshReferencing(event.AuthorID, event.BookIDs)
	})
}

// Track maps one client item to a tracked download, creating or refreshing
// the cache entry
func (s *Service) Track(item downloader.Item) (*Download, error) {
	if existing := s.get(item.DownloadID); existing != nil && existing.State != StateDownloading {
		// Cheap refresh: only the client snapshot moved
		updated := existing.clone()
		updated.Item = item
		updated.IsTrackable = true

		// Re-queue case: the client restarted a download we considered
		// terminal, so tracking restarts from the beginning
		if item.Status != existing.Item.Status &&
			(item.Status == downloader.StatusQueued || item.Status == downloader.StatusDownloading) {
			updated.State = StateDownloading
		}

		s.cache.Set(item.DownloadID, updated, gocache.NoExpiration)
		return updated, nil
	}

	download := &Download{
		DownloadID:  item.DownloadID,
		Item:        item,
		State:       StateDownloading,
		IsTrackable: true,
	}

	remote := s.parser.Resolve(item.Title)

	entries, err := s.history.FindByDownloadID(item.DownloadID)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for download %s: %w", item.DownloadID, err)
	}

	if latest := latestLifecycle(entries); latest != nil {
		download.State = stateForHistory(latest.EventType)
		download.Indexer = latest.Indexer
		download.Protocol = latest.Protocol
		if latest.EventType == models.HistoryImportIncomplete {
			download.Warnings = parseStatusMessages(latest, s.log)
		}
	}

	// Client titles get mangled (renamed, truncated); the search-time source
	// title in history is reliable, so fall back to it, then to the entity
	// ids the grab recorded.
	if !remote.Mapped() && len(entries) > 0 {
		earliest := entries[len(entries)-1]
		remote = s.parser.Resolve(earliest.SourceTitle)
		if !remote.Mapped() {
			remote = s.parser.ResolveWithHint(earliest.SourceTitle, earliest.AuthorID, earliest.BookIDs)
		}
	}

	if remote.Mapped() {
		remote.Release.Title = item.Title
		remote.Release.Size = item.Size
		remote.Release.Protocol = download.Protocol
		remote.Release.Indexer = download.Indexer
		s.scoreRemote(remote)
		download.Remote = remote
	} else {
		s.log.WithFields(logrus.Fields{
			"download_id": item.DownloadID,
			"title":       item.Title,
		}).Warn("Download could not be mapped to the library, tracking as unmapped")
	}

	s.cache.Set(item.DownloadID, download, gocache.NoExpiration)
	return download, nil
}

// ProcessClientItems reconciles one client poll: tracks every reported item
// and applies completion/failure transitions. Only a full poll, with every
// client reporting, marks vanished ids as non-trackable; a partial poll must
// not prune the downloads of a client that merely failed to answer.
func (s *Service) ProcessClientItems(ctx context.Context, items []downloader.Item, fullPoll bool) error {
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		seen[item.DownloadID] = true

		download, err := s.Track(item)
		if err != nil {
			s.log.WithError(err).WithField("download_id", item.DownloadID).Error("Failed to track download")
			continue
		}

		if download.State != StateDownloading {
			continue
		}

		switch item.Status {
		case downloader.StatusCompleted:
			if err := s.markCompleted(download); err != nil {
				return err
			}
		case downloader.StatusFailed:
			if err := s.markFailed(download, "Download client reported failure"); err != nil {
				return err
			}
		}
	}

	if fullPoll {
		s.pruneMissing(seen)
	}
	s.updateGauges()
	return nil
}

// markCompleted transitions a download to imported, unless history shows it
// was already imported by an earlier cycle
func (s *Service) markCompleted(download *Download) error {
	imported, err := s.history.DownloadAlreadyImported(download.DownloadID)
	if err != nil {
		return err
	}

	if !imported {
		if err := s.appendEvent(download, models.HistoryDownloadImported); err != nil {
			return err
		}
	}

	s.setState(download, StateImported)
	s.bus.Publish(eventbus.Event{
		Type:       eventbus.DownloadCompleted,
		DownloadID: download.DownloadID,
		AuthorID:   remoteAuthorID(download.Remote),
		BookIDs:    remoteBookIDs(download.Remote),
	})
	return nil
}

// markFailed transitions a download to failed, blocklists the release so it
// is never grabbed again, and notifies
func (s *Service) markFailed(download *Download, message string) error {
	if err := s.appendEvent(download, models.HistoryDownloadFailed); err != nil {
		return err
	}

	if download.Remote.Mapped() {
		if err := s.blocklist.Block(download.Remote, message); err != nil {
			s.log.WithError(err).WithField("download_id", download.DownloadID).Error("Failed to blocklist failed download")
		}
	}

	s.setState(download, StateDownloadFailed)
	s.bus.Publish(eventbus.Event{
		Type:       eventbus.DownloadFailed,
		DownloadID: download.DownloadID,
		AuthorID:   remoteAuthorID(download.Remote),
		BookIDs:    remoteBookIDs(download.Remote),
		Data:       map[string]string{"message": message},
	})
	return nil
}

// Ignore stops caring about a download without failing it
func (s *Service) Ignore(downloadID string) error {
	download := s.get(downloadID)
	if download == nil {
		return fmt.Errorf("download %s is not tracked", downloadID)
	}

	if err := s.appendEvent(download, models.HistoryDownloadIgnored); err != nil {
		return err
	}

	s.setState(download, StateIgnored)
	s.bus.Publish(eventbus.Event{
		Type:       eventbus.DownloadIgnored,
		DownloadID: downloadID,
		AuthorID:   remoteAuthorID(download.Remote),
	})
	return nil
}

// StopTracking drops a download from the cache entirely
func (s *Service) StopTracking(downloadID string) {
	s.cache.Delete(downloadID)
	s.updateGauges()
}

// All returns a snapshot of every tracked download, unmapped ones included
func (s *Service) All() []*Download {
	items := s.cache.Items()
	downloads := make([]*Download, 0, len(items))
	for _, item := range items {
		downloads = append(downloads, item.Object.(*Download))
	}
	return downloads
}

// QueueForAuthor implements decision.QueueProvider: the active queue is the
// set of tracked downloads still moving toward import for this author
func (s *Service) QueueForAuthor(authorID uint64) []decision.QueueItem {
	var queue []decision.QueueItem
	for _, download := range s.All() {
		if !download.Remote.Mapped() || download.Remote.Author.ID != authorID {
			continue
		}
		if download.State == StateImported || download.State == StateIgnored {
			continue
		}

		queue = append(queue, decision.QueueItem{
			BookIDs:        download.Remote.BookIDs(),
			Quality:        download.Remote.ParsedQuality,
			FormatScore:    download.Remote.FormatScore,
			PendingRemoval: download.State == StateDownloadFailed,
		})
	}
	return queue
}

// refreshReferencing re-resolves every tracked download that references the
// mutated author/books, so none keeps pointing at a deleted entity. Exactly
// one refreshed event fires per batch of affected entries.
func (s *Service) refreshReferencing(authorID uint64, bookIDs []uint64) {
	deleted := make(map[uint64]bool, len(bookIDs))
	for _, id := range bookIDs {
		deleted[id] = true
	}

	refreshed := 0
	for _, download := range s.All() {
		if !download.Remote.Mapped() || download.Remote.Author.ID != authorID {
			continue
		}
		if len(deleted) > 0 && !referencesAny(download.Remote, deleted) {
			continue
		}

		updated := download.clone()
		updated.Remote = s.reresolve(download)
		s.cache.Set(download.DownloadID, updated, gocache.NoExpiration)
		refreshed++
	}

	if refreshed > 0 {
		s.log.WithFields(logrus.Fields{
			"author_id": authorID,
			"count":     refreshed,
		}).Info("Re-resolved tracked downloads after library mutation")
		s.bus.Publish(eventbus.Event{Type: eventbus.TrackedRefreshed, AuthorID: authorID})
	}
	s.updateGauges()
}

// reresolve runs the same two-tier resolution as Track against the now
// reduced library; a nil result is correct when the entities are gone
func (s *Service) reresolve(download *Download) *models.RemoteBook {
	remote := s.parser.Resolve(download.Item.Title)

	if !remote.Mapped() {
		entries, err := s.history.FindByDownloadID(download.DownloadID)
		if err != nil || len(entries) == 0 {
			return nil
		}
		earliest := entries[len(entries)-1]
		remote = s.parser.Resolve(earliest.SourceTitle)
		if !remote.Mapped() {
			remote = s.parser.ResolveWithHint(earliest.SourceTitle, earliest.AuthorID, earliest.BookIDs)
		}
	}

	if !remote.Mapped() {
		return nil
	}
	remote.Release.Title = download.Item.Title
	remote.Release.Size = download.Item.Size
	remote.Release.Protocol = download.Protocol
	remote.Release.Indexer = download.Indexer
	s.scoreRemote(remote)
	return remote
}

// pruneMissing marks cached entries absent from the latest poll as
// non-trackable without deleting them
func (s *Service) pruneMissing(seen map[string]bool) {
	for _, download := range s.All() {
		if seen[download.DownloadID] || !download.IsTrackable {
			continue
		}
		updated := download.clone()
		updated.IsTrackable = false
		s.cache.Set(download.DownloadID, updated, gocache.NoExpiration)

		s.log.WithField("download_id", download.DownloadID).Debug("Download no longer reported by client, marked non-trackable")
	}
}

// scoreRemote recomputes the custom format score under the author's profile
func (s *Service) scoreRemote(remote *models.RemoteBook) {
	profile, err := s.db.GetProfileByID(remote.Author.QualityProfileID)
	if err != nil {
		s.log.WithError(err).WithField("author_id", remote.Author.ID).Error("Failed to load profile for format scoring")
		return
	}
	remote.Formats = quality.MatchFormats(profile, remote.Release.Title)
	remote.FormatScore = quality.FormatScore(profile, remote.Formats)
	remote.QualityRank = profile.IndexOf(remote.ParsedQuality.Quality)
}

func (s *Service) appendEvent(download *Download, eventType models.HistoryEventType) error {
	entry := &models.HistoryEntry{
		AuthorID:    remoteAuthorID(download.Remote),
		BookIDs:     remoteBookIDs(download.Remote),
		DownloadID:  download.DownloadID,
		EventType:   eventType,
		SourceTitle: download.Item.Title,
		Protocol:    download.Protocol,
		Indexer:     download.Indexer,
	}
	if download.Remote.Mapped() {
		entry.Quality = download.Remote.ParsedQuality
	}
	return s.history.Add(entry)
}

func (s *Service) setState(download *Download, state State) {
	updated := download.clone()
	updated.State = state
	s.cache.Set(download.DownloadID, updated, gocache.NoExpiration)
	s.updateGauges()
}

func (s *Service) get(downloadID string) *Download {
	if value, found := s.cache.Get(downloadID); found {
		return value.(*Download)
	}
	return nil
}

func (s *Service) updateGauges() {
	counts := map[State]int{
		StateDownloading:    0,
		StateImported:       0,
		StateImportFailed:   0,
		StateDownloadFailed: 0,
		StateIgnored:        0,
	}
	for _, download := range s.All() {
		counts[download.State]++
	}
	for state, count := range counts {
		metrics.TrackedDownloads.WithLabelValues(string(state)).Set(float64(count))
	}
}

// parseStatusMessages decodes serialized import warnings from an
// import-incomplete history row. Malformed payloads are a data fault: log
// and continue with no warnings rather than aborting state reconstruction.
func parseStatusMessages(entry *models.HistoryEntry, log *logrus.Logger) []string {
	raw, ok := entry.Data["statusMessages"]
	if !ok || raw == "" {
		return nil
	}

	var messages []string
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		log.WithError(err).WithField("download_id", entry.DownloadID).Warn("Undeserializable status messages in history, continuing without warnings")
		return nil
	}
	return messages
}

func latestLifecycle(entries []*models.HistoryEntry) *models.HistoryEntry {
	for _, entry := range entries {
		if entry.EventType.IsLifecycle() {
			return entry
		}
	}
	return nil
}

func referencesAny(remote *models.RemoteBook, bookIDs map[uint64]bool) bool {
	for _, book := range remote.Books {
		if bookIDs[book.ID] {
			return true
		}
	}
	return false
}

func remoteAuthorID(remote *models.RemoteBook) uint64 {
	if remote.Mapped() {
		return remote.Author.ID
	}
	return 0
}

func remoteBookIDs(remote *models.RemoteBook) []uint64 {
	if remote.Mapped() {
		return remote.BookIDs()
	}
	return nil
}
