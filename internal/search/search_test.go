package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookarr/bookarr/internal/blocklist"
	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/decision"
	"github.com/bookarr/bookarr/internal/downloader"
	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/grab"
	"github.com/bookarr/bookarr/internal/history"
	"github.com/bookarr/bookarr/internal/indexer"
	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/parser"
	"github.com/bookarr/bookarr/internal/pending"
)

type fakeClient struct {
	sent []string
}

func (f *fakeClient) Name() string              { return "fake" }
func (f *fakeClient) Protocol() models.Protocol { return models.ProtocolUsenet }

func (f *fakeClient) Send(ctx context.Context, remote *models.RemoteBook) (string, error) {
	f.sent = append(f.sent, remote.Release.Title)
	return fmt.Sprintf("dl-%d", len(f.sent)), nil
}

func (f *fakeClient) List(ctx context.Context) ([]downloader.Item, error) { return nil, nil }

func (f *fakeClient) Remove(ctx context.Context, downloadID string, deleteData bool) error {
	return nil
}

type emptyQueue struct{}

func (emptyQueue) QueueForAuthor(uint64) []decision.QueueItem { return nil }

type testEnv struct {
	svc     *Service
	db      *models.Database
	history *history.Service
	pending *pending.Service
	client  *fakeClient
	author  *models.Author
	book    *models.Book
}

func feedFor(title string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:newznab="http://www.newznab.com/DTD/2010/feeds/attributes/">
  <channel>
    <title>Test</title>
    <item>
      <title>%s</title>
      <guid>guid-1</guid>
      <pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>
      <enclosure url="https://example.com/download/1" length="52428800" type="application/x-nzb"/>
    </item>
  </channel>
</rss>`, title)
}

func newTestEnv(t *testing.T, feed string) *testEnv {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, feed)
	}))
	t.Cleanup(server.Close)

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		BlocklistSizeTolerance: 2 * 1024 * 1024,
		BlocklistDateTolerance: 2 * time.Minute,
	}

	bus := eventbus.New()
	historySvc := history.NewService(db, log)
	blocklistSvc := blocklist.NewService(db, cfg, log)
	pendingSvc := pending.NewService(db, bus, log)
	releaseParser := parser.New(db, log)

	client := &fakeClient{}
	engine := decision.NewEngine(blocklistSvc, historySvc, emptyQueue{}, 12*time.Hour, true, log)
	processor := grab.NewProcessor([]downloader.Client{client}, historySvc, pendingSvc, bus, log)

	indexers := []config.IndexerConfig{{
		Name:           "Test",
		URL:            server.URL,
		Protocol:       models.ProtocolUsenet,
		TimeoutSeconds: 5,
		Enabled:        true,
	}}
	searcher := indexer.NewSearcher(indexer.NewClient(log), indexers, log)

	svc := NewService(db, searcher, releaseParser, engine, processor, pendingSvc, true, log)

	profile := &models.QualityProfile{
		Name:           "Standard",
		UpgradeAllowed: true,
		Cutoff:         models.QualityEPUB.ID,
		Items: []models.QualityProfileItem{
			{Quality: models.QualityPDF, Allowed: true},
			{Quality: models.QualityEPUB, Allowed: true},
		},
	}
	require.NoError(t, db.CreateProfile(profile))

	author := &models.Author{Name: "Jane Doe", QualityProfileID: profile.ID, Monitored: true}
	require.NoError(t, db.CreateAuthor(author))
	book := &models.Book{AuthorID: author.ID, Title: "The Long Road", Monitored: true}
	require.NoError(t, db.CreateBook(book))

	return &testEnv{
		svc:     svc,
		db:      db,
		history: historySvc,
		pending: pendingSvc,
		client:  client,
		author:  author,
		book:    book,
	}
}

func TestSearchAuthorGrabsWantedRelease(t *testing.T) {
	env := newTestEnv(t, feedFor("Jane Doe - The Long Road [EPUB]"))

	result, err := env.svc.SearchAuthor(context.Background(), env.author.ID)
	require.NoError(t, err)

	require.Len(t, result.Grabbed, 1)
	assert.Equal(t, []string{"Jane Doe - The Long Road [EPUB]"}, env.client.sent)

	entry, err := env.history.GetLatestGrab("dl-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []uint64{env.book.ID}, entry.BookIDs)

	t.Run("repeat search is blocked by the in-flight grab", func(t *testing.T) {
		result, err := env.svc.SearchAuthor(context.Background(), env.author.ID)
		require.NoError(t, err)

		assert.Empty(t, result.Grabbed)
		require.Len(t, result.Rejected, 1)
		assert.True(t, result.Rejected[0].TemporarilyRejected())

		parked, err := env.pending.All()
		require.NoError(t, err)
		assert.Len(t, parked, 1)
	})
}

func TestSearchAuthorRejectsUnmappableRelease(t *testing.T) {
	env := newTestEnv(t, feedFor("Somebody Else - Unknown Book [EPUB]"))

	result, err := env.svc.SearchAuthor(context.Background(), env.author.ID)
	require.NoError(t, err)

	assert.Empty(t, result.Grabbed)
	require.Len(t, result.Rejected, 1)
	assert.False(t, result.Rejected[0].TemporarilyRejected(), "unmappable is permanent")
	assert.Empty(t, env.client.sent)
}

func TestSearchAuthorSkipsSatisfiedBooks(t *testing.T) {
	env := newTestEnv(t, feedFor("Jane Doe - The Long Road [EPUB]"))

	env.book.HasFile = true
	env.book.FileQuality = models.QualityModel{Quality: models.QualityEPUB, Revision: models.Revision{Version: 1}}
	require.NoError(t, env.db.UpdateBook(env.book))

	result, err := env.svc.SearchAuthor(context.Background(), env.author.ID)
	require.NoError(t, err)

	assert.Empty(t, result.Grabbed)
	assert.Empty(t, env.client.sent)
}

func TestRetryPendingGrabsWhenUnblocked(t *testing.T) {
	env := newTestEnv(t, feedFor("ignored"))

	remote := &models.RemoteBook{
		Release: models.ReleaseInfo{
			Title:       "Jane Doe - The Long Road [EPUB]",
			DownloadURL: "https://example.com/download/1",
			Protocol:    models.ProtocolUsenet,
			Indexer:     "Test",
		},
		Author: env.author,
		Books:  []*models.Book{env.book},
	}
	require.NoError(t, env.pending.Add([]pending.Candidate{{Remote: remote, Reason: "download client was unavailable"}}))

	require.NoError(t, env.svc.RetryPending(context.Background()))

	assert.Equal(t, []string{"Jane Doe - The Long Road [EPUB]"}, env.client.sent)

	parked, err := env.pending.All()
	require.NoError(t, err)
	assert.Empty(t, parked, "grabbed entries leave the pending queue")
}

func TestRetryPendingDropsEntriesForDeletedAuthors(t *testing.T) {
	env := newTestEnv(t, feedFor("ignored"))

	remote := &models.RemoteBook{
		Release: models.ReleaseInfo{Title: "John Smith - Gone [EPUB]", Protocol: models.ProtocolUsenet, Indexer: "Test"},
		Author:  &models.Author{ID: 999, Name: "John Smith"},
		Books:   []*models.Book{{ID: 998, AuthorID: 999, Title: "Gone"}},
	}
	require.NoError(t, env.pending.Add([]pending.Candidate{{Remote: remote, Reason: "reason"}}))

	require.NoError(t, env.svc.RetryPending(context.Background()))

	parked, err := env.pending.All()
	require.NoError(t, err)
	assert.Empty(t, parked)
	assert.Empty(t, env.client.sent)
}
