package models

import "time"

// BlocklistEntry records a release that must never be re-grabbed for an
// author. Entries are immutable once inserted; they are only ever deleted.
type BlocklistEntry struct {
	ID       uint64 `boltholdKey:"ID"`
	AuthorID uint64 `boltholdIndex:"AuthorID"`
	BookIDs  []uint64

	SourceTitle string
	Quality     QualityModel
	Protocol    Protocol

	// Protocol-specific identity used for fuzzy matching
	Indexer       string
	InfoHash      string // torrent only
	PublishedDate time.Time
	Size          int64

	Date    time.Time
	Message string
}
