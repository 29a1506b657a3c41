package indexer

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/models"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:newznab="http://www.newznab.com/DTD/2010/feeds/attributes/">
  <channel>
    <title>Test Indexer</title>
    <item>
      <title>Jane Doe - The Long Road [2018] [EPUB]</title>
      <link>https://example.com/details/12345</link>
      <guid>https://example.com/details/12345</guid>
      <pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>
      <enclosure url="https://example.com/download/12345" length="52428800" type="application/x-nzb"/>
      <newznab:attr name="size" value="52428800"/>
    </item>
    <item>
      <title>Jane Doe - Winter Tales [AZW3]</title>
      <link>https://example.com/details/12346</link>
      <guid>https://example.com/details/12346</guid>
      <pubDate>Tue, 02 Jan 2024 12:00:00 +0000</pubDate>
      <enclosure url="https://example.com/download/12346" length="1048576" type="application/x-bittorrent"/>
      <newznab:attr name="infohash" value="ABCDEF123456"/>
    </item>
  </channel>
</rss>`

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestFeedParsing(t *testing.T) {
	var response Response
	require.NoError(t, xml.Unmarshal([]byte(sampleFeed), &response))

	assert.Equal(t, "Test Indexer", response.Channel.Title)
	require.Len(t, response.Channel.Items, 2)

	first := response.Channel.Items[0]
	assert.Equal(t, "Jane Doe - The Long Road [2018] [EPUB]", first.Title)
	assert.Equal(t, int64(52428800), GetAttributeInt64(first, "size"))
	assert.Equal(t, "https://example.com/download/12345", first.Enclosure.URL)
	assert.Empty(t, GetAttributeValue(first, "infohash"))

	second := response.Channel.Items[1]
	assert.Equal(t, "ABCDEF123456", GetAttributeValue(second, "infohash"))
	assert.Zero(t, GetAttributeInt64(second, "size"))
}

func TestSearch(t *testing.T) {
	var gotQuery, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAPIKey = r.URL.Query().Get("apikey")
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, sampleFeed)
	}))
	defer server.Close()

	def := config.IndexerConfig{
		Name:     "TestIndexer",
		URL:      server.URL,
		APIKey:   "secret",
		Protocol: models.ProtocolUsenet,
		Priority: 5,
		Tags:     []int{1},
		Enabled:  true,
	}

	client := NewClient(testLogger())
	releases, err := client.Search(context.Background(), def, "Jane Doe")
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", gotQuery)
	assert.Equal(t, "secret", gotAPIKey)
	require.Len(t, releases, 2)

	first := releases[0]
	assert.Equal(t, "Jane Doe - The Long Road [2018] [EPUB]", first.Title)
	assert.Equal(t, "https://example.com/download/12345", first.DownloadURL)
	assert.Equal(t, int64(52428800), first.Size)
	assert.Equal(t, "TestIndexer", first.Indexer)
	assert.Equal(t, 5, first.IndexerPriority)
	assert.Equal(t, []int{1}, first.IndexerTags)
	assert.Equal(t, models.ProtocolUsenet, first.Protocol)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), first.PublishDate.UTC())

	second := releases[1]
	assert.Equal(t, "ABCDEF123456", second.InfoHash)
	assert.Equal(t, int64(1048576), second.Size, "enclosure length backs up a missing size attribute")
}

func TestSearchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "api key required", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testLogger())
	_, err := client.Search(context.Background(), config.IndexerConfig{Name: "Broken", URL: server.URL}, "query")
	assert.Error(t, err)
}

func TestSearchAllMergesAndSkipsFailures(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleFeed)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	indexers := []config.IndexerConfig{
		{Name: "Healthy", URL: healthy.URL, Protocol: models.ProtocolUsenet, TimeoutSeconds: 5, Enabled: true},
		{Name: "Broken", URL: broken.URL, Protocol: models.ProtocolUsenet, TimeoutSeconds: 5, Enabled: true},
		{Name: "Disabled", URL: broken.URL, Protocol: models.ProtocolUsenet, TimeoutSeconds: 5, Enabled: false},
	}

	searcher := NewSearcher(NewClient(testLogger()), indexers, testLogger())
	releases := searcher.SearchAll(context.Background(), "Jane Doe")

	assert.Len(t, releases, 2, "only the healthy indexer contributes")
	for _, release := range releases {
		assert.Equal(t, "Healthy", release.Indexer)
	}
}
