package decision

import (
	"github.com/bookarr/bookarr/internal/models"
)

// indexerTagSpec rejects releases from indexers whose tag restrictions do not
// intersect the author's tags. An untagged indexer or an untagged author
// matches universally.
type indexerTagSpec struct{}

func (s *indexerTagSpec) Name() string { return "indexer-tag" }

func (s *indexerTagSpec) Evaluate(remote *models.RemoteBook, ctx *Context) *Rejection {
	if !ctx.MonitoredOnly {
		return nil
	}
	if len(remote.Release.IndexerTags) == 0 || len(remote.Author.Tags) == 0 {
		return nil
	}

	authorTags := make(map[int]bool, len(remote.Author.Tags))
	for _, tag := range remote.Author.Tags {
		authorTags[tag] = true
	}
	for _, tag := range remote.Release.IndexerTags {
		if authorTags[tag] {
			return nil
		}
	}

	return &Rejection{
		Reason: "Indexer tags do not intersect the author's tags",
		Kind:   Permanent,
	}
}
