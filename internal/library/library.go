// Package library owns mutations of the author/book catalog. Deletions only
// touch the catalog itself; dependent services (blocklist, history, pending,
// tracked downloads) clean up by subscribing to the published events.
package library

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/models"
)

type Service struct {
	db  *models.Database
	bus eventbus.Publisher
	log *logrus.Logger
}

func NewService(db *models.Database, bus eventbus.Publisher, log *logrus.Logger) *Service {
	return &Service{db: db, bus: bus, log: log}
}

// AddAuthor inserts a new author
func (s *Service) AddAuthor(author *models.Author) error {
	if err := s.db.CreateAuthor(author); err != nil {
		return fmt.Errorf("failed to add author: %w", err)
	}
	s.log.WithField("author", author.Name).Info("Author added")
	return nil
}

// AddBook inserts a new book under an existing author
func (s *Service) AddBook(book *models.Book) error {
	if _, err := s.db.GetAuthorByID(book.AuthorID); err != nil {
		return fmt.Errorf("author %d not found: %w", book.AuthorID, err)
	}
	if err := s.db.CreateBook(book); err != nil {
		return fmt.Errorf("failed to add book: %w", err)
	}
	return nil
}

// DeleteAuthor removes an author with all their books and announces the
// deletion so dependent state gets cleaned up
func (s *Service) DeleteAuthor(authorID uint64) error {
	books, err := s.db.GetBooksByAuthor(authorID)
	if err != nil {
		return fmt.Errorf("failed to load books for author %d: %w", authorID, err)
	}

	if err := s.db.DeleteAuthor(authorID); err != nil {
		return fmt.Errorf("failed to delete author %d: %w", authorID, err)
	}

	bookIDs := make([]uint64, 0, len(books))
	for _, book := range books {
		bookIDs = append(bookIDs, book.ID)
	}

	s.log.WithFields(logrus.Fields{
		"author_id": authorID,
		"books":     len(bookIDs),
	}).Info("Author deleted")

	s.bus.Publish(eventbus.Event{
		Type:     eventbus.AuthorDeleted,
		AuthorID: authorID,
		BookIDs:  bookIDs,
	})
	return nil
}

// DeleteBooks removes books from an author and announces the deletion
func (s *Service) DeleteBooks(authorID uint64, bookIDs []uint64) error {
	for _, id := range bookIDs {
		if err := s.db.DeleteBook(id); err != nil {
			return fmt.Errorf("failed to delete book %d: %w", id, err)
		}
	}

	s.bus.Publish(eventbus.Event{
		Type:     eventbus.BooksDeleted,
		AuthorID: authorID,
		BookIDs:  bookIDs,
	})
	return nil
}
