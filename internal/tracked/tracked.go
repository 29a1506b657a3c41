// Package tracked reconciles the download client's view of the world with
// the library and the history ledger. The cache here is derived state: it can
// always be rebuilt from history plus current parsing, so losing it on
// restart is not data loss.
package tracked

import (
	"github.com/bookarr/bookarr/internal/downloader"
	"github.com/bookarr/bookarr/internal/models"
)

// State is the lifecycle position of a tracked download
type State string

const (
	StateDownloading    State = "downloading"
	StateImportFailed   State = "importFailed"
	StateImported       State = "imported"
	StateDownloadFailed State = "downloadFailed"
	StateIgnored        State = "ignored"
)

// Download links one external client item to the library. Remote is nil when
// the title could not be mapped to any known author/book ("unmapped"): such
// downloads are still tracked so the operator can see what the client is
// doing.
type Download struct {
	DownloadID string
	Item       downloader.Item
	Remote     *models.RemoteBook
	State      State
	Protocol   models.Protocol
	Indexer    string

	// IsTrackable is cleared when the id stops appearing in client polls;
	// the entry stays queryable until explicitly stopped.
	IsTrackable bool

	Warnings []string
}

// clone returns a copy so cached entries are swapped whole, never mutated in
// place while readers hold them
func (d *Download) clone() *Download {
	c := *d
	c.Warnings = append([]string(nil), d.Warnings...)
	return &c
}

// stateForHistory seeds the initial state from the newest lifecycle history
// entry when a download is first sighted
func stateForHistory(eventType models.HistoryEventType) State {
	switch eventType {
	case models.HistoryImportIncomplete:
		return StateImportFailed
	case models.HistoryDownloadImported:
		return StateImported
	case models.HistoryDownloadFailed:
		return StateDownloadFailed
	case models.HistoryDownloadIgnored:
		return StateIgnored
	default:
		return StateDownloading
	}
}
