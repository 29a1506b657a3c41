package blocklist

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/models"
)

func newTestService(t *testing.T) (*Service, *models.Database) {
	t.Helper()

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		BlocklistSizeTolerance: 2 * 1024 * 1024,
		BlocklistDateTolerance: 2 * time.Minute,
	}
	return NewService(db, cfg, log), db
}

func torrentRemote(authorID uint64, infoHash string) *models.RemoteBook {
	return &models.RemoteBook{
		Release: models.ReleaseInfo{
			Title:    "Jane Doe - The Long Road [EPUB]",
			Protocol: models.ProtocolTorrent,
			Indexer:  "TorrentSource",
			InfoHash: infoHash,
			Size:     50 * 1024 * 1024,
		},
		Author: &models.Author{ID: authorID, Name: "Jane Doe"},
		Books:  []*models.Book{{ID: 10, AuthorID: authorID, Title: "The Long Road"}},
	}
}

func usenetRemote(authorID uint64, indexer string, published time.Time, size int64) *models.RemoteBook {
	return &models.RemoteBook{
		Release: models.ReleaseInfo{
			Title:       "Jane Doe - The Long Road [EPUB]",
			Protocol:    models.ProtocolUsenet,
			Indexer:     indexer,
			PublishDate: published,
			Size:        size,
		},
		Author: &models.Author{ID: authorID, Name: "Jane Doe"},
		Books:  []*models.Book{{ID: 10, AuthorID: authorID, Title: "The Long Road"}},
	}
}

func TestTorrentMatching(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Block(torrentRemote(1, "ABCDEF123456"), "failed download"))

	t.Run("same hash matches regardless of case", func(t *testing.T) {
		release := torrentRemote(1, "abcdef123456").Release
		assert.True(t, svc.IsBlocklisted(1, release))
	})

	t.Run("different hash does not match", func(t *testing.T) {
		release := torrentRemote(1, "000000000000").Release
		assert.False(t, svc.IsBlocklisted(1, release))
	})

	t.Run("other author unaffected", func(t *testing.T) {
		release := torrentRemote(1, "ABCDEF123456").Release
		assert.False(t, svc.IsBlocklisted(2, release))
	})
}

func TestTorrentMatchingWithoutHash(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Block(torrentRemote(1, ""), "failed download"))

	release := torrentRemote(1, "").Release
	assert.True(t, svc.IsBlocklisted(1, release), "hashless entries fall back to indexer identity")

	release.Indexer = "OtherSource"
	assert.False(t, svc.IsBlocklisted(1, release))
}

func TestUsenetMatching(t *testing.T) {
	svc, _ := newTestService(t)

	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	size := int64(50 * 1024 * 1024)
	require.NoError(t, svc.Block(usenetRemote(1, "NzbSource", published, size), "failed download"))

	t.Run("exact publish date matches across indexers", func(t *testing.T) {
		release := usenetRemote(1, "CompletelyDifferent", published, size+100*1024*1024).Release
		assert.True(t, svc.IsBlocklisted(1, release))
	})

	t.Run("same indexer within tolerances matches", func(t *testing.T) {
		release := usenetRemote(1, "NzbSource", published.Add(90*time.Second), size+1024*1024).Release
		assert.True(t, svc.IsBlocklisted(1, release))
	})

	t.Run("different indexer breaks the fuzzy match", func(t *testing.T) {
		release := usenetRemote(1, "OtherSource", published.Add(90*time.Second), size).Release
		assert.False(t, svc.IsBlocklisted(1, release))
	})

	t.Run("date outside tolerance does not match", func(t *testing.T) {
		release := usenetRemote(1, "NzbSource", published.Add(3*time.Minute), size).Release
		assert.False(t, svc.IsBlocklisted(1, release))
	})

	t.Run("size outside tolerance does not match", func(t *testing.T) {
		release := usenetRemote(1, "NzbSource", published.Add(time.Minute), size+3*1024*1024).Release
		assert.False(t, svc.IsBlocklisted(1, release))
	})
}

func TestProtocolsNeverCrossMatch(t *testing.T) {
	svc, _ := newTestService(t)

	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Block(usenetRemote(1, "NzbSource", published, 1000), "failed download"))

	release := torrentRemote(1, "").Release
	release.Indexer = "NzbSource"
	release.PublishDate = published
	release.Size = 1000
	assert.False(t, svc.IsBlocklisted(1, release))
}

func TestBlockRejectsUnmappedRelease(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Error(t, svc.Block(nil, "message"))
	assert.Error(t, svc.Block(&models.RemoteBook{}, "message"))
}

func TestAuthorDeletionClearsEntries(t *testing.T) {
	svc, _ := newTestService(t)
	bus := eventbus.New()
	svc.RegisterHandlers(bus)

	require.NoError(t, svc.Block(torrentRemote(1, "ABCDEF123456"), "failed download"))
	require.NoError(t, svc.Block(torrentRemote(2, "FEDCBA654321"), "failed download"))

	bus.Publish(eventbus.Event{Type: eventbus.AuthorDeleted, AuthorID: 1})

	entries, err := svc.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(2), entries[0].AuthorID)
}
