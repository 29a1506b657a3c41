package decision

import (
	"github.com/bookarr/bookarr/internal/blocklist"
	"github.com/bookarr/bookarr/internal/models"
)

// blocklistSpec rejects releases matching a stored blocklist entry
type blocklistSpec struct {
	svc *blocklist.Service
}

func (s *blocklistSpec) Name() string { return "blocklist" }

func (s *blocklistSpec) Evaluate(remote *models.RemoteBook, ctx *Context) *Rejection {
	if s.svc.IsBlocklisted(remote.Author.ID, remote.Release) {
		return &Rejection{
			Reason: "Release is blocklisted",
			Kind:   Permanent,
		}
	}
	return nil
}
