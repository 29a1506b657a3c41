package models

import "time"

// PendingRelease is a temporarily rejected release parked for a later retry
// once the condition that blocked it (recent grab, queued item) has lapsed.
type PendingRelease struct {
	ID       uint64 `boltholdKey:"ID"`
	AuthorID uint64 `boltholdIndex:"AuthorID"`
	BookIDs  []uint64

	Title   string
	Indexer string
	Release ReleaseInfo
	Quality QualityModel
	Reason  string

	Added time.Time
}
