package models

import "time"

// Author represents a monitored author in the library
type Author struct {
	ID   uint64 `boltholdKey:"ID"`
	Name string `boltholdIndex:"Name"`

	QualityProfileID uint64
	Monitored        bool
	Tags             []int // indexer restriction tags, empty = untagged

	// Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Book represents a single work of an author
type Book struct {
	ID       uint64 `boltholdKey:"ID"`
	AuthorID uint64 `boltholdIndex:"AuthorID"`

	Title       string
	ReleaseYear int
	Monitored   bool

	// On-disk file state
	HasFile     bool
	FileQuality QualityModel   // zero value when HasFile is false
	FileFormats []CustomFormat // custom formats matched at import time

	// Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}
