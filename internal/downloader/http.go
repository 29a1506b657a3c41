package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/models"
)

const sendRetries = 3

// HTTPClient talks to a REST download client (JSON over bearer auth).
// Transient transport failures are retried with exponential backoff before
// surfacing as ErrClientUnavailable.
type HTTPClient struct {
	name       string
	baseURL    string
	apiKey     string
	protocol   models.Protocol
	httpClient *http.Client
	log        *logrus.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg config.DownloadClientConfig, log *logrus.Logger) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("download client URL is required")
	}
	if cfg.Protocol != models.ProtocolUsenet && cfg.Protocol != models.ProtocolTorrent {
		return nil, fmt.Errorf("unknown download client protocol %q", cfg.Protocol)
	}

	return &HTTPClient{
		name:     cfg.Name,
		baseURL:  cfg.URL,
		apiKey:   cfg.APIKey,
		protocol: cfg.Protocol,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}, nil
}

func (c *HTTPClient) Name() string              { return c.name }
func (c *HTTPClient) Protocol() models.Protocol { return c.protocol }

type sendRequest struct {
	Link  string `json:"link"`
	Name  string `json:"name,omitempty"`
	Hash  string `json:"hash,omitempty"`
	Paths struct {
		Category string `json:"category,omitempty"`
	} `json:"paths,omitempty"`
}

type sendResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Data    struct {
		ID   string `json:"id"`
		Hash string `json:"hash"`
	} `json:"data"`
}

// Send dispatches a release to the client and returns its download id. A
// missing id in the response is replaced by a generated one so the grab can
// still be joined against history.
func (c *HTTPClient) Send(ctx context.Context, remote *models.RemoteBook) (string, error) {
	payload := sendRequest{
		Link: remote.Release.DownloadURL,
		Name: remote.Release.Title,
		Hash: remote.Release.InfoHash,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	var result sendResponse
	operation := func() error {
		err := c.doJSON(ctx, http.MethodPost, "/api/v1/downloads", body, &result)
		if err != nil && !errors.Is(err, ErrClientUnavailable) {
			// 404/410 and malformed responses won't get better on retry
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), sendRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}

	if !result.Success {
		reason := "unknown error"
		if result.Error != nil {
			reason = *result.Error
		}
		return "", fmt.Errorf("%w: %s", ErrClientUnavailable, reason)
	}

	downloadID := result.Data.ID
	if downloadID == "" {
		downloadID = result.Data.Hash
	}
	if downloadID == "" {
		downloadID = uuid.NewString()
		c.log.WithFields(logrus.Fields{
			"client": c.name,
			"title":  remote.Release.Title,
		}).Warn("Client response carried no download id, generated one")
	}

	c.log.WithFields(logrus.Fields{
		"client":      c.name,
		"download_id": downloadID,
		"title":       remote.Release.Title,
	}).Info("Release sent to download client")
	return downloadID, nil
}

type listResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Status       string `json:"status"`
		OutputPath   string `json:"output_path"`
		Size         int64  `json:"size"`
		Finished     bool   `json:"finished"`
		CanMoveFiles bool   `json:"can_move_files"`
	} `json:"data"`
}

// List polls every download the client currently knows about
func (c *HTTPClient) List(ctx context.Context) ([]Item, error) {
	var result listResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/downloads", nil, &result); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(result.Data))
	for _, d := range result.Data {
		items = append(items, Item{
			DownloadID:   d.ID,
			Title:        d.Name,
			Status:       normalizeStatus(d.Status),
			OutputPath:   d.OutputPath,
			Size:         d.Size,
			CanBeRemoved: d.Finished,
			CanMoveFiles: d.CanMoveFiles,
		})
	}
	return items, nil
}

// Remove deletes an item from the client
func (c *HTTPClient) Remove(ctx context.Context, downloadID string, deleteData bool) error {
	path := fmt.Sprintf("/api/v1/downloads/%s?delete_data=%t", downloadID, deleteData)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrClientUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrClientUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrReleaseUnavailable, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrClientUnavailable, resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return fmt.Errorf("client request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode client response: %w", err)
		}
	}
	return nil
}

func normalizeStatus(status string) string {
	switch status {
	case "queued", "pending":
		return StatusQueued
	case "downloading", "active":
		return StatusDownloading
	case "completed", "success", "finished":
		return StatusCompleted
	case "failed", "error":
		return StatusFailed
	case "paused":
		return StatusPaused
	default:
		return StatusDownloading
	}
}
