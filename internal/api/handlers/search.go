package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/grab"
	"github.com/bookarr/bookarr/internal/search"
)

// SearchHandler triggers manual acquisition passes
type SearchHandler struct {
	search *search.Service
	logger *logrus.Logger
}

func NewSearchHandler(searchSvc *search.Service, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{search: searchSvc, logger: logger}
}

// SearchResponse summarizes one triggered pass
type SearchResponse struct {
	Grabbed  int `json:"grabbed"`
	Rejected int `json:"rejected"`
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		result grab.Result
		err    error
	)

	switch {
	case r.URL.Query().Get("book_id") != "":
		id, parseErr := strconv.ParseUint(r.URL.Query().Get("book_id"), 10, 64)
		if parseErr != nil {
			http.Error(w, "Invalid book_id parameter", http.StatusBadRequest)
			return
		}
		result, err = h.search.SearchBook(r.Context(), id)
	case r.URL.Query().Get("author_id") != "":
		id, parseErr := strconv.ParseUint(r.URL.Query().Get("author_id"), 10, 64)
		if parseErr != nil {
			http.Error(w, "Invalid author_id parameter", http.StatusBadRequest)
			return
		}
		result, err = h.search.SearchAuthor(r.Context(), id)
	default:
		http.Error(w, "Missing author_id or book_id parameter", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.logger.WithError(err).Error("Manual search failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SearchResponse{
		Grabbed:  len(result.Grabbed),
		Rejected: len(result.Rejected),
	})
}
