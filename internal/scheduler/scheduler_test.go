package scheduler

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookarr/bookarr/internal/blocklist"
	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/downloader"
	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/history"
	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/parser"
	"github.com/bookarr/bookarr/internal/tracked"
)

type fakeClient struct {
	name    string
	items   []downloader.Item
	listErr error
}

func (f *fakeClient) Name() string              { return f.name }
func (f *fakeClient) Protocol() models.Protocol { return models.ProtocolUsenet }

func (f *fakeClient) Send(ctx context.Context, remote *models.RemoteBook) (string, error) {
	return "", nil
}

func (f *fakeClient) List(ctx context.Context) ([]downloader.Item, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeClient) Remove(ctx context.Context, downloadID string, deleteData bool) error {
	return nil
}

func newTrackedService(t *testing.T) *tracked.Service {
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

	bus := eventbus.New()
	historySvc := history.NewService(db, log)
	blocklistSvc := blocklist.NewService(db, cfg, log)
	return tracked.NewService(db, historySvc, blocklistSvc, parser.New(db, log), bus, log)
}

func trackableByID(svc *tracked.Service) map[string]bool {
	trackable := make(map[string]bool)
	for _, download := range svc.All() {
		trackable[download.DownloadID] = download.IsTrackable
	}
	return trackable
}

func TestPollClientsSkipsPruningOnPartialPoll(t *testing.T) {
	trackedSvc := newTrackedService(t)

	usenet := &fakeClient{
		name:  "usenet",
		items: []downloader.Item{{DownloadID: "dl-usenet", Title: "one_thing", Status: downloader.StatusDownloading}},
	}
	torrent := &fakeClient{
		name:  "torrent",
		items: []downloader.Item{{DownloadID: "dl-torrent", Title: "other_thing", Status: downloader.StatusDownloading}},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New([]downloader.Client{usenet, torrent}, trackedSvc, nil, time.Minute, time.Minute, time.Minute, log)

	s.pollClients(context.Background())
	trackable := trackableByID(trackedSvc)
	require.True(t, trackable["dl-usenet"])
	require.True(t, trackable["dl-torrent"])

	// One client down: its downloads are still out there and must not be
	// marked non-trackable on the strength of a transport outage
	torrent.listErr = errors.New("connection refused")
	s.pollClients(context.Background())

	trackable = trackableByID(trackedSvc)
	assert.True(t, trackable["dl-usenet"])
	assert.True(t, trackable["dl-torrent"])

	t.Run("a later full poll prunes vanished ids", func(t *testing.T) {
		torrent.listErr = nil
		torrent.items = nil
		s.pollClients(context.Background())

		trackable := trackableByID(trackedSvc)
		assert.True(t, trackable["dl-usenet"])
		assert.False(t, trackable["dl-torrent"])
	})
}

func TestPollClientsDiscardsBatchWhenAllClientsDown(t *testing.T) {
	trackedSvc := newTrackedService(t)

	client := &fakeClient{
		name:  "usenet",
		items: []downloader.Item{{DownloadID: "dl-1", Title: "one_thing", Status: downloader.StatusDownloading}},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New([]downloader.Client{client}, trackedSvc, nil, time.Minute, time.Minute, time.Minute, log)

	s.pollClients(context.Background())
	require.Len(t, trackedSvc.All(), 1)

	client.listErr = errors.New("connection refused")
	s.pollClients(context.Background())

	trackable := trackableByID(trackedSvc)
	assert.True(t, trackable["dl-1"], "an outage is not evidence the download vanished")
}
