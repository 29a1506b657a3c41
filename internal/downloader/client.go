// Package downloader abstracts the external download client. The core only
// needs to send a release, poll the client's item list and remove items; the
// sentinel errors carry the fault taxonomy the decision processor isolates
// per protocol.
package downloader

import (
	"context"
	"errors"

	"github.com/bookarr/bookarr/internal/models"
)

var (
	// ErrClientUnavailable marks a transport fault: the client is
	// unreachable or erroring. The processor fails fast for the protocol.
	ErrClientUnavailable = errors.New("download client unavailable")

	// ErrReleaseUnavailable marks a release the indexer no longer serves.
	// Rejected but never blocklisted; it may reappear.
	ErrReleaseUnavailable = errors.New("release no longer available")
)

// Item statuses as normalized from the client
const (
	StatusQueued      = "queued"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusPaused      = "paused"
)

// Item is one download as reported by the client poll
type Item struct {
	DownloadID   string
	Title        string
	Status       string
	OutputPath   string
	Size         int64
	CanBeRemoved bool
	CanMoveFiles bool
}

// Client is the capability the core requires from a download client
type Client interface {
	Name() string
	Protocol() models.Protocol
	Send(ctx context.Context, remote *models.RemoteBook) (string, error)
	List(ctx context.Context) ([]Item, error)
	Remove(ctx context.Context, downloadID string, deleteData bool) error
}
