package pending

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/models"
)

func newTestService(t *testing.T) (*Service, *eventbus.Bus) {
	t.Helper()

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	bus := eventbus.New()
	svc := NewService(db, bus, log)
	svc.RegisterHandlers(bus)
	return svc, bus
}

func remote(authorID uint64, title, indexer string) *models.RemoteBook {
	return &models.RemoteBook{
		Release: models.ReleaseInfo{Title: title, Indexer: indexer, Protocol: models.ProtocolUsenet},
		Author:  &models.Author{ID: authorID, Name: "Jane Doe"},
		Books:   []*models.Book{{ID: 10, AuthorID: authorID, Title: "The Long Road"}},
	}
}

func park(remotes []*models.RemoteBook, reason string) []Candidate {
	candidates := make([]Candidate, 0, len(remotes))
	for _, r := range remotes {
		candidates = append(candidates, Candidate{Remote: r, Reason: reason})
	}
	return candidates
}

func TestAddDeduplicates(t *testing.T) {
	svc, bus := newTestService(t)

	var updates int
	bus.Subscribe(eventbus.PendingUpdated, func(eventbus.Event) { updates++ })

	first := remote(1, "Jane Doe - The Long Road [EPUB]", "NzbSource")
	duplicate := remote(1, "Jane Doe - The Long Road [EPUB]", "NzbSource")
	otherIndexer := remote(1, "Jane Doe - The Long Road [EPUB]", "OtherSource")

	require.NoError(t, svc.Add(park([]*models.RemoteBook{first, duplicate, otherIndexer}, "still in flight")))

	parked, err := svc.All()
	require.NoError(t, err)
	assert.Len(t, parked, 2, "in-batch duplicates collapse")
	assert.Equal(t, 1, updates)

	t.Run("existing rows also deduplicate", func(t *testing.T) {
		require.NoError(t, svc.Add(park([]*models.RemoteBook{remote(1, "Jane Doe - The Long Road [EPUB]", "NzbSource")}, "still in flight")))

		parked, err := svc.All()
		require.NoError(t, err)
		assert.Len(t, parked, 2)
		assert.Equal(t, 1, updates, "no event when nothing was added")
	})
}

func TestAddKeepsDistinctBookSets(t *testing.T) {
	svc, _ := newTestService(t)

	single := remote(1, "Jane Doe - Collected Works [EPUB]", "NzbSource")
	bundle := remote(1, "Jane Doe - Collected Works [EPUB]", "NzbSource")
	bundle.Books = []*models.Book{
		{ID: 10, AuthorID: 1, Title: "The Long Road"},
		{ID: 11, AuthorID: 1, Title: "Winter Tales"},
	}

	require.NoError(t, svc.Add(park([]*models.RemoteBook{single, bundle}, "still in flight")))

	parked, err := svc.All()
	require.NoError(t, err)
	assert.Len(t, parked, 2, "same title and indexer but different book sets stay distinct")
}

func TestAddSkipsUnmapped(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Add([]Candidate{{Reason: "reason"}, {Remote: &models.RemoteBook{}, Reason: "reason"}}))

	parked, err := svc.All()
	require.NoError(t, err)
	assert.Empty(t, parked)
}

func TestRemove(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Add(park([]*models.RemoteBook{remote(1, "Jane Doe - The Long Road [EPUB]", "NzbSource")}, "reason")))
	parked, err := svc.All()
	require.NoError(t, err)
	require.Len(t, parked, 1)

	require.NoError(t, svc.Remove(parked[0].ID))
	parked, err = svc.All()
	require.NoError(t, err)
	assert.Empty(t, parked)
}

func TestAuthorDeletionClearsPending(t *testing.T) {
	svc, bus := newTestService(t)

	require.NoError(t, svc.Add(park([]*models.RemoteBook{
		remote(1, "Jane Doe - The Long Road [EPUB]", "NzbSource"),
		remote(2, "John Smith - Winter Tales [EPUB]", "NzbSource"),
	}, "reason")))

	bus.Publish(eventbus.Event{Type: eventbus.AuthorDeleted, AuthorID: 1})

	parked, err := svc.All()
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, uint64(2), parked[0].AuthorID)
}
