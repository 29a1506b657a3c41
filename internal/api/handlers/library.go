package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/library"
	"github.com/bookarr/bookarr/internal/models"
)

// AuthorsHandler manages the author catalog
type AuthorsHandler struct {
	db      *models.Database
	library *library.Service
	logger  *logrus.Logger
}

func NewAuthorsHandler(db *models.Database, librarySvc *library.Service, logger *logrus.Logger) *AuthorsHandler {
	return &AuthorsHandler{db: db, library: librarySvc, logger: logger}
}

func (h *AuthorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AuthorsHandler) list(w http.ResponseWriter) {
	authors, err := h.db.GetAllAuthors()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load authors")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authors)
}

func (h *AuthorsHandler) create(w http.ResponseWriter, r *http.Request) {
	var author models.Author
	if err := json.NewDecoder(r.Body).Decode(&author); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if author.Name == "" {
		http.Error(w, "Author name is required", http.StatusBadRequest)
		return
	}

	if err := h.library.AddAuthor(&author); err != nil {
		h.logger.WithError(err).Error("Failed to add author")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(author)
}

func (h *AuthorsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id parameter", http.StatusBadRequest)
		return
	}

	if err := h.library.DeleteAuthor(id); err != nil {
		h.logger.WithError(err).WithField("author_id", id).Error("Failed to delete author")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BooksHandler manages books within the catalog
type BooksHandler struct {
	db      *models.Database
	library *library.Service
	logger  *logrus.Logger
}

func NewBooksHandler(db *models.Database, librarySvc *library.Service, logger *logrus.Logger) *BooksHandler {
	return &BooksHandler{db: db, library: librarySvc, logger: logger}
}

func (h *BooksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BooksHandler) list(w http.ResponseWriter, r *http.Request) {
	authorID, err := strconv.ParseUint(r.URL.Query().Get("author_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid author_id parameter", http.StatusBadRequest)
		return
	}

	books, err := h.db.GetBooksByAuthor(authorID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load books")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(books)
}

func (h *BooksHandler) create(w http.ResponseWriter, r *http.Request) {
	var book models.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if book.AuthorID == 0 || book.Title == "" {
		http.Error(w, "Book author_id and title are required", http.StatusBadRequest)
		return
	}

	if err := h.library.AddBook(&book); err != nil {
		h.logger.WithError(err).Error("Failed to add book")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(book)
}

func (h *BooksHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id parameter", http.StatusBadRequest)
		return
	}

	book, err := h.db.GetBookByID(id)
	if err != nil {
		http.Error(w, "Book not found", http.StatusNotFound)
		return
	}

	if err := h.library.DeleteBooks(book.AuthorID, []uint64{id}); err != nil {
		h.logger.WithError(err).WithField("book_id", id).Error("Failed to delete book")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
