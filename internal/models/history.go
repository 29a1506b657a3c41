package models

import "time"

// HistoryEventType classifies a download history entry
type HistoryEventType string

const (
	HistoryGrabbed          HistoryEventType = "grabbed"
	HistoryFileImported     HistoryEventType = "fileImported"
	HistoryDownloadImported HistoryEventType = "downloadImported"
	HistoryDownloadFailed   HistoryEventType = "downloadFailed"
	HistoryDownloadIgnored  HistoryEventType = "downloadIgnored"
	HistoryImportIncomplete HistoryEventType = "downloadImportIncomplete"
)

// IsLifecycle reports whether the event type is terminal for the download
// lifecycle, as opposed to per-file sub-events like fileImported.
func (t HistoryEventType) IsLifecycle() bool {
	switch t {
	case HistoryGrabbed, HistoryDownloadImported, HistoryDownloadFailed,
		HistoryDownloadIgnored, HistoryImportIncomplete:
		return true
	}
	return false
}

// HistoryEntry is one append-only row in the download history ledger. Rows
// for a download id are never mutated; current status is a fold over them
// ordered by recency.
type HistoryEntry struct {
	ID       uint64 `boltholdKey:"ID"`
	AuthorID uint64 `boltholdIndex:"AuthorID"`
	BookIDs  []uint64

	DownloadID string `boltholdIndex:"DownloadID"`
	EventType  HistoryEventType

	SourceTitle string
	Quality     QualityModel
	Protocol    Protocol
	Indexer     string

	Date time.Time
	Data map[string]string
}
