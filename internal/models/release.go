package models

import "time"

// Protocol identifies how a release is acquired
type Protocol string

const (
	ProtocolUsenet  Protocol = "usenet"
	ProtocolTorrent Protocol = "torrent"
)

// ReleaseInfo is the raw metadata of a candidate release as reported by an
// indexer. Ephemeral: it lives for the duration of one search batch.
type ReleaseInfo struct {
	Title       string
	DownloadURL string
	GUID        string
	Size        int64
	PublishDate time.Time

	Indexer         string
	IndexerPriority int
	IndexerTags     []int

	Protocol Protocol
	InfoHash string // torrent only, may be empty
}

// RemoteBook is a release candidate resolved against the library: the raw
// release plus the author and books it is believed to satisfy and the parsed
// quality/format information.
type RemoteBook struct {
	Release ReleaseInfo

	Author *Author
	Books  []*Book

	ParsedQuality QualityModel
	QualityRank   int // ladder position under the author's profile
	Formats       []CustomFormat
	FormatScore   int
}

// BookIDs returns the ids of the books this candidate would satisfy
func (r *RemoteBook) BookIDs() []uint64 {
	ids := make([]uint64, 0, len(r.Books))
	for _, b := range r.Books {
		ids = append(ids, b.ID)
	}
	return ids
}

// Mapped reports whether the candidate resolved to a usable library entity
func (r *RemoteBook) Mapped() bool {
	return r != nil && r.Author != nil && len(r.Books) > 0
}
