package decision

import (
	"fmt"
	"time"

	"github.com/bookarr/bookarr/internal/history"
	"github.com/bookarr/bookarr/internal/models"
)

// recentGrabSpec implements "don't re-grab while a download is still in
// flight": a grab newer than the freshness window, not yet superseded by a
// failure or ignore, blocks the book temporarily. Self-correcting once the
// window lapses or the download client confirms failure.
type recentGrabSpec struct {
	history *history.Service
	window  time.Duration
}

func (s *recentGrabSpec) Name() string { return "recent-grab" }

func (s *recentGrabSpec) Evaluate(remote *models.RemoteBook, ctx *Context) *Rejection {
	for _, book := range remote.Books {
		entry, err := s.history.MostRecentForBook(book.ID)
		if err != nil {
			return &Rejection{
				Reason: "Unable to read download history",
				Kind:   Temporary,
			}
		}
		if entry == nil || entry.EventType != models.HistoryGrabbed {
			continue
		}

		if age := time.Since(entry.Date); age < s.window {
			return &Rejection{
				Reason: fmt.Sprintf("%q was grabbed %s ago and is still in flight", book.Title, age.Round(time.Minute)),
				Kind:   Temporary,
			}
		}
	}
	return nil
}
