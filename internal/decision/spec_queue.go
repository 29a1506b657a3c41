package decision

import (
	"fmt"

	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/quality"
)

// queueSpec rejects candidates that would duplicate or downgrade an item
// already in the active download queue. Items that failed and are pending
// removal do not count.
type queueSpec struct {
	queue           QueueProvider
	downloadPropers bool
}

func (s *queueSpec) Name() string { return "queue" }

func (s *queueSpec) Evaluate(remote *models.RemoteBook, ctx *Context) *Rejection {
	items := s.queue.QueueForAuthor(remote.Author.ID)

	wanted := make(map[uint64]bool, len(remote.Books))
	for _, book := range remote.Books {
		wanted[book.ID] = true
	}

	for _, item := range items {
		if item.PendingRemoval {
			continue
		}

		overlaps := false
		for _, id := range item.BookIDs {
			if wanted[id] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			continue
		}

		if !quality.IsUpgradable(ctx.Profile, item.Quality, item.FormatScore, remote.ParsedQuality, remote.FormatScore) {
			return &Rejection{
				Reason: "Queued download is equal or better quality",
				Kind:   Permanent,
			}
		}

		if !quality.IsUpgradeAllowed(ctx.Profile, item.Quality, item.FormatScore, remote.ParsedQuality, remote.FormatScore) {
			return &Rejection{
				Reason: fmt.Sprintf("Profile %q does not allow upgrading the queued download", ctx.Profile.Name),
				Kind:   Permanent,
			}
		}

		if quality.IsRevisionUpgrade(item.Quality, remote.ParsedQuality) && !s.downloadPropers {
			return &Rejection{
				Reason: "Revision upgrade over the queued download, but proper auto-download is disabled",
				Kind:   Permanent,
			}
		}
	}
	return nil
}
