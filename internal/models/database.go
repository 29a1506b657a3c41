package models

import (
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store. It exposes the keyed-record and
// query-by-predicate operations the decision/tracking core needs; cascade
// semantics across services are driven by events, not by this layer.
type Database struct {
	store *bolthold.Store
}

// NewDatabase opens the bolthold store at path
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database
func (db *Database) Close() error {
	return db.store.Close()
}

// Author operations

func (db *Database) CreateAuthor(author *Author) error {
	author.CreatedAt = time.Now()
	author.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), author)
}

func (db *Database) UpdateAuthor(author *Author) error {
	author.UpdatedAt = time.Now()
	return db.store.Update(author.ID, author)
}

func (db *Database) GetAuthorByID(id uint64) (*Author, error) {
	var author Author
	if err := db.store.Get(id, &author); err != nil {
		return nil, err
	}
	return &author, nil
}

func (db *Database) GetAllAuthors() ([]*Author, error) {
	var authors []*Author
	err := db.store.Find(&authors, nil)
	return authors, err
}

func (db *Database) GetMonitoredAuthors() ([]*Author, error) {
	var authors []*Author
	err := db.store.Find(&authors, bolthold.Where("Monitored").Eq(true))
	return authors, err
}

// DeleteAuthor removes the author row and its books. Ledger cleanup is the
// responsibility of event subscribers.
func (db *Database) DeleteAuthor(id uint64) error {
	if err := db.store.DeleteMatching(&Book{}, bolthold.Where("AuthorID").Eq(id).Index("AuthorID")); err != nil {
		return err
	}
	return db.store.Delete(id, &Author{})
}

// Book operations

func (db *Database) CreateBook(book *Book) error {
	book.CreatedAt = time.Now()
	book.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), book)
}

func (db *Database) UpdateBook(book *Book) error {
	book.UpdatedAt = time.Now()
	return db.store.Update(book.ID, book)
}

func (db *Database) GetBookByID(id uint64) (*Book, error) {
	var book Book
	if err := db.store.Get(id, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (db *Database) GetBooksByAuthor(authorID uint64) ([]*Book, error) {
	var books []*Book
	err := db.store.Find(&books, bolthold.Where("AuthorID").Eq(authorID).Index("AuthorID"))
	return books, err
}

func (db *Database) DeleteBook(id uint64) error {
	return db.store.Delete(id, &Book{})
}

// Quality profile operations

func (db *Database) CreateProfile(profile *QualityProfile) error {
	return db.store.Insert(bolthold.NextSequence(), profile)
}

func (db *Database) UpdateProfile(profile *QualityProfile) error {
	return db.store.Update(profile.ID, profile)
}

func (db *Database) GetProfileByID(id uint64) (*QualityProfile, error) {
	var profile QualityProfile
	if err := db.store.Get(id, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Blocklist operations

func (db *Database) InsertBlocklist(entry *BlocklistEntry) error {
	entry.Date = time.Now()
	return db.store.Insert(bolthold.NextSequence(), entry)
}

func (db *Database) GetBlocklistByAuthor(authorID uint64) ([]*BlocklistEntry, error) {
	var entries []*BlocklistEntry
	err := db.store.Find(&entries, bolthold.Where("AuthorID").Eq(authorID).Index("AuthorID"))
	return entries, err
}

func (db *Database) GetAllBlocklist() ([]*BlocklistEntry, error) {
	var entries []*BlocklistEntry
	err := db.store.Find(&entries, nil)
	return entries, err
}

func (db *Database) DeleteBlocklist(id uint64) error {
	return db.store.Delete(id, &BlocklistEntry{})
}

func (db *Database) DeleteBlocklistByAuthor(authorID uint64) error {
	return db.store.DeleteMatching(&BlocklistEntry{}, bolthold.Where("AuthorID").Eq(authorID).Index("AuthorID"))
}

// History operations

func (db *Database) InsertHistory(entry *HistoryEntry) error {
	if entry.Date.IsZero() {
		entry.Date = time.Now()
	}
	return db.store.Insert(bolthold.NextSequence(), entry)
}

func (db *Database) GetHistoryByDownloadID(downloadID string) ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	err := db.store.Find(&entries, bolthold.Where("DownloadID").Eq(downloadID).Index("DownloadID"))
	return entries, err
}

func (db *Database) GetHistoryByBook(bookID uint64) ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	err := db.store.Find(&entries, bolthold.Where("BookIDs").Contains(bookID))
	return entries, err
}

func (db *Database) DeleteHistoryByAuthor(authorID uint64) error {
	return db.store.DeleteMatching(&HistoryEntry{}, bolthold.Where("AuthorID").Eq(authorID).Index("AuthorID"))
}

// Pending release operations

func (db *Database) InsertPending(release *PendingRelease) error {
	release.Added = time.Now()
	return db.store.Insert(bolthold.NextSequence(), release)
}

func (db *Database) GetAllPending() ([]*PendingRelease, error) {
	var releases []*PendingRelease
	err := db.store.Find(&releases, nil)
	return releases, err
}

func (db *Database) DeletePending(id uint64) error {
	return db.store.Delete(id, &PendingRelease{})
}

func (db *Database) DeletePendingByAuthor(authorID uint64) error {
	return db.store.DeleteMatching(&PendingRelease{}, bolthold.Where("AuthorID").Eq(authorID).Index("AuthorID"))
}
