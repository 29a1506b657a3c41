package decision

import (
	"fmt"

	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/quality"
)

// upgradeDiskSpec rejects candidates that are not a strict improvement over
// the file already on disk, or whose upgrade the profile disallows.
type upgradeDiskSpec struct{}

func (s *upgradeDiskSpec) Name() string { return "upgrade-disk" }

func (s *upgradeDiskSpec) Evaluate(remote *models.RemoteBook, ctx *Context) *Rejection {
	for _, book := range remote.Books {
		if !book.HasFile {
			continue
		}

		diskScore := quality.FormatScore(ctx.Profile, book.FileFormats)

		if !quality.IsUpgradable(ctx.Profile, book.FileQuality, diskScore, remote.ParsedQuality, remote.FormatScore) {
			return &Rejection{
				Reason: fmt.Sprintf("Existing file for %q is equal or better quality", book.Title),
				Kind:   Permanent,
			}
		}

		if !quality.IsUpgradeAllowed(ctx.Profile, book.FileQuality, diskScore, remote.ParsedQuality, remote.FormatScore) {
			return &Rejection{
				Reason: fmt.Sprintf("Profile %q does not allow upgrading %q", ctx.Profile.Name, book.Title),
				Kind:   Permanent,
			}
		}
	}
	return nil
}
