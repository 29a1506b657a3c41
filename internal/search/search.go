// Package search orchestrates one full acquisition pass: fan out to the
// indexers, resolve candidates against the library, run the decision chain
// and hand the verdicts to the grab processor.
package search

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/decision"
	"github.com/bookarr/bookarr/internal/grab"
	"github.com/bookarr/bookarr/internal/indexer"
	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/parser"
	"github.com/bookarr/bookarr/internal/pending"
	"github.com/bookarr/bookarr/internal/quality"
)

type Service struct {
	db            *models.Database
	searcher      *indexer.Searcher
	parser        *parser.Parser
	engine        *decision.Engine
	processor     *grab.Processor
	pending       *pending.Service
	monitoredOnly bool
	log           *logrus.Logger
}

func NewService(db *models.Database, searcher *indexer.Searcher, p *parser.Parser, engine *decision.Engine, processor *grab.Processor, pendingSvc *pending.Service, monitoredOnly bool, log *logrus.Logger) *Service {
	return &Service{
		db:            db,
		searcher:      searcher,
		parser:        p,
		engine:        engine,
		processor:     processor,
		pending:       pendingSvc,
		monitoredOnly: monitoredOnly,
		log:           log,
	}
}

// SearchAuthor runs one acquisition pass for a single author
func (s *Service) SearchAuthor(ctx context.Context, authorID uint64) (grab.Result, error) {
	author, err := s.db.GetAuthorByID(authorID)
	if err != nil {
		return grab.Result{}, fmt.Errorf("failed to load author %d: %w", authorID, err)
	}

	profile, err := s.db.GetProfileByID(author.QualityProfileID)
	if err != nil {
		return grab.Result{}, fmt.Errorf("failed to load quality profile for author %d: %w", authorID, err)
	}

	releases := s.searcher.SearchAll(ctx, author.Name)
	remotes := s.resolveCandidates(releases, author, profile)

	decisions := s.engine.EvaluateAll(remotes, &decision.Context{
		Profile:       profile,
		MonitoredOnly: s.monitoredOnly,
	})

	return s.processor.ProcessDecisions(ctx, decisions)
}

// SearchBook runs one acquisition pass narrowed to a single book
func (s *Service) SearchBook(ctx context.Context, bookID uint64) (grab.Result, error) {
	book, err := s.db.GetBookByID(bookID)
	if err != nil {
		return grab.Result{}, fmt.Errorf("failed to load book %d: %w", bookID, err)
	}

	author, err := s.db.GetAuthorByID(book.AuthorID)
	if err != nil {
		return grab.Result{}, fmt.Errorf("failed to load author %d: %w", book.AuthorID, err)
	}

	profile, err := s.db.GetProfileByID(author.QualityProfileID)
	if err != nil {
		return grab.Result{}, fmt.Errorf("failed to load quality profile for author %d: %w", author.ID, err)
	}

	query := author.Name + " " + book.Title
	releases := s.searcher.SearchAll(ctx, query)

	remotes := s.resolveCandidates(releases, author, profile)
	// Drop candidates that resolved to a different book of the same author
	filtered := remotes[:0]
	for _, remote := range remotes {
		if !remote.Mapped() || containsBook(remote.BookIDs(), bookID) {
			filtered = append(filtered, remote)
		}
	}

	decisions := s.engine.EvaluateAll(filtered, &decision.Context{
		Profile:       profile,
		MonitoredOnly: s.monitoredOnly,
	})

	return s.processor.ProcessDecisions(ctx, decisions)
}

// SearchMonitored runs an acquisition pass for every monitored author whose
// books still want an upgrade. Per-author failures are logged and skipped.
func (s *Service) SearchMonitored(ctx context.Context) {
	authors, err := s.db.GetAllAuthors()
	if err != nil {
		s.log.WithError(err).Error("Failed to load authors for scheduled search")
		return
	}

	for _, author := range authors {
		if !author.Monitored {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if _, err := s.SearchAuthor(ctx, author.ID); err != nil {
			s.log.WithError(err).WithField("author", author.Name).Error("Scheduled search failed for author")
		}
	}
}

// RetryPending re-evaluates every parked release. Entries that get grabbed or
// become permanently rejected are removed; still-temporary entries stay parked
// (the processor's dedup keeps them from being re-added).
func (s *Service) RetryPending(ctx context.Context) error {
	parked, err := s.pending.All()
	if err != nil {
		return fmt.Errorf("failed to load pending releases: %w", err)
	}
	if len(parked) == 0 {
		return nil
	}

	// Profiles are per author; group so each batch evaluates under the right one
	byAuthor := make(map[uint64][]*models.PendingRelease)
	for _, release := range parked {
		byAuthor[release.AuthorID] = append(byAuthor[release.AuthorID], release)
	}

	var decisions []*decision.Decision
	pendingID := make(map[*models.RemoteBook]uint64)

	for authorID, releases := range byAuthor {
		author, err := s.db.GetAuthorByID(authorID)
		if err != nil {
			s.log.WithError(err).WithField("author_id", authorID).Warn("Pending releases reference a missing author, dropping")
			for _, release := range releases {
				if err := s.pending.Remove(release.ID); err != nil {
					return err
				}
			}
			continue
		}

		profile, err := s.db.GetProfileByID(author.QualityProfileID)
		if err != nil {
			s.log.WithError(err).WithField("author_id", authorID).Error("Failed to load quality profile for pending retry")
			continue
		}

		dctx := &decision.Context{Profile: profile, MonitoredOnly: s.monitoredOnly}
		for _, release := range releases {
			remote := s.parser.ResolveWithHint(release.Title, release.AuthorID, release.BookIDs)
			if remote == nil {
				remote = &models.RemoteBook{}
			}
			remote.Release = release.Release
			s.scoreRemote(remote, profile)

			d := s.engine.Evaluate(remote, dctx)
			pendingID[remote] = release.ID
			decisions = append(decisions, d)
		}
	}

	result, err := s.processor.ProcessDecisions(ctx, decisions)
	if err != nil {
		return err
	}

	for _, d := range result.Grabbed {
		if id, ok := pendingID[d.Remote]; ok {
			if err := s.pending.Remove(id); err != nil {
				return err
			}
		}
	}
	for _, d := range result.Rejected {
		if d.TemporarilyRejected() {
			continue
		}
		if id, ok := pendingID[d.Remote]; ok {
			if err := s.pending.Remove(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveCandidates maps raw releases to library entities and scores them
// under the author's profile. Unresolvable releases still produce a candidate
// so the decision engine can report them.
func (s *Service) resolveCandidates(releases []models.ReleaseInfo, author *models.Author, profile *models.QualityProfile) []*models.RemoteBook {
	remotes := make([]*models.RemoteBook, 0, len(releases))
	for _, release := range releases {
		remote := s.parser.Resolve(release.Title)
		if remote == nil {
			remote = &models.RemoteBook{}
		} else if remote.Author != nil && remote.Author.ID != author.ID {
			// Resolved to somebody else's book; not a candidate for this pass
			continue
		}

		remote.Release = release
		s.scoreRemote(remote, profile)
		remotes = append(remotes, remote)
	}
	return remotes
}

func (s *Service) scoreRemote(remote *models.RemoteBook, profile *models.QualityProfile) {
	remote.QualityRank = profile.IndexOf(remote.ParsedQuality.Quality)
	remote.Formats = quality.MatchFormats(profile, remote.Release.Title)
	remote.FormatScore = quality.FormatScore(profile, remote.Formats)
}

func containsBook(ids []uint64, id uint64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
