package decision

import (
	"fmt"

	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/quality"
)

// cutoffSpec rejects candidates for books whose on-disk copy already
// satisfies the profile cutoff: once the cutoff is met, no further grab
// should occur for that slot.
type cutoffSpec struct{}

func (s *cutoffSpec) Name() string { return "cutoff" }

func (s *cutoffSpec) Evaluate(remote *models.RemoteBook, ctx *Context) *Rejection {
	for _, book := range remote.Books {
		if !book.HasFile {
			continue
		}

		diskScore := quality.FormatScore(ctx.Profile, book.FileFormats)
		if !quality.CutoffNotMet(ctx.Profile, []models.QualityModel{book.FileQuality}, diskScore) {
			return &Rejection{
				Reason: fmt.Sprintf("Existing file for %q already meets cutoff %s", book.Title, cutoffName(ctx.Profile)),
				Kind:   Permanent,
			}
		}
	}
	return nil
}

func cutoffName(profile *models.QualityProfile) string {
	for _, item := range profile.Items {
		if item.Quality.ID == profile.Cutoff {
			return item.Quality.Name
		}
	}
	return "unknown"
}
