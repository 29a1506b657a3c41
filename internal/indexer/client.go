// Package indexer fetches candidate releases from newznab/torznab-style
// search sources. Wire parsing stops at a normalized ReleaseInfo; protocol
// details never leak into the decision core.
package indexer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/models"
)

// Response represents the XML RSS payload of a newznab API
type Response struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

type Item struct {
	Title      string      `xml:"title"`
	Link       string      `xml:"link"`
	GUID       string      `xml:"guid"`
	PubDate    string      `xml:"pubDate"`
	Enclosure  Enclosure   `xml:"enclosure"`
	Attributes []Attribute `xml:"attr"`
}

// Enclosure carries the actual download URL
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Client performs newznab API searches against one or more indexers
type Client struct {
	httpClient *http.Client
	log        *logrus.Logger
}

func NewClient(log *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		log:        log,
	}
}

// Search queries one indexer and normalizes its results. The context carries
// the per-indexer timeout.
func (c *Client) Search(ctx context.Context, def config.IndexerConfig, query string) ([]models.ReleaseInfo, error) {
	apiURL, err := url.Parse(def.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid indexer URL for %s: %w", def.Name, err)
	}
	if apiURL.Path == "" || apiURL.Path == "/" {
		apiURL.Path = "/api"
	}

	params := url.Values{}
	params.Add("t", "book")
	params.Add("apikey", def.APIKey)
	params.Add("q", query)
	apiURL.RawQuery = params.Encode()

	c.log.WithFields(logrus.Fields{
		"indexer": def.Name,
		"query":   query,
	}).Debug("Performing indexer search")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "bookarr/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer %s request failed: %w", def.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("indexer %s returned status %d: %s", def.Name, resp.StatusCode, string(body))
	}

	var response Response
	if err := xml.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", def.Name, err)
	}

	releases := c.convertItems(def, response.Channel.Items)
	c.log.WithFields(logrus.Fields{
		"indexer": def.Name,
		"count":   len(releases),
	}).Debug("Indexer search completed")
	return releases, nil
}

// convertItems maps raw feed items onto ReleaseInfo
func (c *Client) convertItems(def config.IndexerConfig, items []Item) []models.ReleaseInfo {
	releases := make([]models.ReleaseInfo, 0, len(items))
	for _, item := range items {
		size := GetAttributeInt64(item, "size")
		if size == 0 {
			size = item.Enclosure.Length
		}

		release := models.ReleaseInfo{
			Title:           item.Title,
			DownloadURL:     item.Enclosure.URL,
			GUID:            item.GUID,
			Size:            size,
			Indexer:         def.Name,
			IndexerPriority: def.Priority,
			IndexerTags:     def.Tags,
			Protocol:        def.Protocol,
			InfoHash:        GetAttributeValue(item, "infohash"),
		}
		if release.DownloadURL == "" {
			release.DownloadURL = item.Link
		}
		if date, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
			release.PublishDate = date
		}

		releases = append(releases, release)
	}
	return releases
}

// GetAttributeValue extracts a named attribute from an item
func GetAttributeValue(item Item, name string) string {
	for _, attr := range item.Attributes {
		if attr.Name == name {
			return attr.Value
		}
	}
	return ""
}

// GetAttributeInt64 extracts a named attribute as int64, zero when absent
func GetAttributeInt64(item Item, name string) int64 {
	value := GetAttributeValue(item, name)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
