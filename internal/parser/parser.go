// Package parser turns release titles into structured guesses and resolves
// them against the library. Download-client-reported titles are frequently
// mangled, so resolution is tolerant: exact match first, then edit distance.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/models"
)

// Maximum edit distance accepted when matching parsed names against the
// library, relative to the shorter string.
const maxDistanceRatio = 0.25

var (
	yearRegex     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	revisionRegex = regexp.MustCompile(`(?i)\b(?:proper|repack|[rv]([2-9]))\b`)
	bracketsRegex = regexp.MustCompile(`[\[\](){}]`)
)

// ParsedInfo is the structured guess extracted from a release title
type ParsedInfo struct {
	AuthorName string
	BookTitle  string
	Year       int
	Quality    models.QualityModel
}

// Parse extracts author, book, year and quality from a release title.
// Expected shapes: "Author - Title [2018] [EPUB]", "Author - Title (2018) EPUB".
func Parse(title string) ParsedInfo {
	info := ParsedInfo{
		Quality: DetermineQuality(title),
	}

	if matches := yearRegex.FindStringSubmatch(title); len(matches) > 1 {
		if year, err := strconv.Atoi(matches[1]); err == nil {
			info.Year = year
		}
	}

	clean := bracketsRegex.ReplaceAllString(title, " ")
	parts := strings.SplitN(clean, " - ", 2)
	if len(parts) == 2 {
		info.AuthorName = strings.TrimSpace(parts[0])
		info.BookTitle = stripReleaseTokens(parts[1])
	}

	return info
}

// DetermineQuality maps quality tokens in a title to a quality model,
// including the revision (proper/repack/r2) of a re-release
func DetermineQuality(title string) models.QualityModel {
	titleLower := strings.ToLower(title)

	quality := models.QualityUnknown
	switch {
	case strings.Contains(titleLower, "epub"):
		quality = models.QualityEPUB
	case strings.Contains(titleLower, "azw3") || strings.Contains(titleLower, "azw"):
		quality = models.QualityAZW3
	case strings.Contains(titleLower, "mobi"):
		quality = models.QualityMOBI
	case strings.Contains(titleLower, "flac"):
		quality = models.QualityFLAC
	case strings.Contains(titleLower, "m4b"):
		quality = models.QualityM4B
	case strings.Contains(titleLower, "mp3"):
		quality = models.QualityMP3
	case strings.Contains(titleLower, "pdf"):
		quality = models.QualityPDF
	}

	revision := models.Revision{Version: 1}
	if matches := revisionRegex.FindStringSubmatch(title); matches != nil {
		revision.Version = 2
		if matches[1] != "" {
			if v, err := strconv.Atoi(matches[1]); err == nil {
				revision.Version = v
			}
		}
	}

	return models.QualityModel{Quality: quality, Revision: revision}
}

// stripReleaseTokens removes year, quality and group noise from a book title
func stripReleaseTokens(s string) string {
	s = yearRegex.ReplaceAllString(s, " ")
	fields := strings.Fields(s)

	var kept []string
	for _, f := range fields {
		switch strings.ToLower(f) {
		case "epub", "mobi", "azw3", "azw", "pdf", "mp3", "m4b", "flac",
			"retail", "proper", "repack", "unabridged", "abridged":
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Parser resolves parsed titles against the library
type Parser struct {
	db  *models.Database
	log *logrus.Logger
}

func New(db *models.Database, log *logrus.Logger) *Parser {
	return &Parser{db: db, log: log}
}

// Resolve parses a title and maps it to a library author and books. Returns
// nil when nothing usable matches; the caller decides whether that is fatal.
func (p *Parser) Resolve(title string) *models.RemoteBook {
	info := Parse(title)
	if info.AuthorName == "" {
		return nil
	}

	author := p.findAuthor(info.AuthorName)
	if author == nil {
		p.log.WithField("title", title).Debug("No library author matches release")
		return nil
	}

	books := p.findBooks(author, info.BookTitle, info.Year)
	if len(books) == 0 {
		p.log.WithFields(logrus.Fields{
			"title":  title,
			"author": author.Name,
		}).Debug("No library book matches release")
		return nil
	}

	return &models.RemoteBook{
		Author:        author,
		Books:         books,
		ParsedQuality: info.Quality,
	}
}

// ResolveWithHint resolves a title constrained to a known author and book
// set, used when history already recorded what a download was grabbed for
func (p *Parser) ResolveWithHint(title string, authorID uint64, bookIDs []uint64) *models.RemoteBook {
	author, err := p.db.GetAuthorByID(authorID)
	if err != nil {
		return nil
	}

	var books []*models.Book
	for _, id := range bookIDs {
		book, err := p.db.GetBookByID(id)
		if err != nil {
			continue
		}
		books = append(books, book)
	}
	if len(books) == 0 {
		return nil
	}

	return &models.RemoteBook{
		Author:        author,
		Books:         books,
		ParsedQuality: DetermineQuality(title),
	}
}

// findAuthor matches a parsed author name against the library, exact
// (case-insensitive) first, then nearest edit distance within tolerance
func (p *Parser) findAuthor(name string) *models.Author {
	authors, err := p.db.GetAllAuthors()
	if err != nil {
		p.log.WithError(err).Error("Failed to load authors for resolution")
		return nil
	}

	nameLower := strings.ToLower(name)

	var best *models.Author
	bestDistance := -1
	for _, author := range authors {
		candidate := strings.ToLower(author.Name)
		if candidate == nameLower {
			return author
		}

		distance := levenshtein.ComputeDistance(nameLower, candidate)
		if bestDistance == -1 || distance < bestDistance {
			best = author
			bestDistance = distance
		}
	}

	if best == nil {
		return nil
	}

	shorter := len(nameLower)
	if l := len(strings.ToLower(best.Name)); l < shorter {
		shorter = l
	}
	if shorter == 0 || float64(bestDistance) > maxDistanceRatio*float64(shorter) {
		return nil
	}
	return best
}

// findBooks matches a parsed book title against an author's books
func (p *Parser) findBooks(author *models.Author, title string, year int) []*models.Book {
	books, err := p.db.GetBooksByAuthor(author.ID)
	if err != nil {
		p.log.WithError(err).Error("Failed to load books for resolution")
		return nil
	}

	titleLower := strings.ToLower(title)

	var best *models.Book
	bestDistance := -1
	for _, book := range books {
		candidate := strings.ToLower(book.Title)
		if candidate == titleLower || (titleLower != "" && strings.Contains(titleLower, candidate)) {
			return []*models.Book{book}
		}
		if year != 0 && book.ReleaseYear == year && titleLower == "" {
			return []*models.Book{book}
		}

		distance := levenshtein.ComputeDistance(titleLower, candidate)
		if bestDistance == -1 || distance < bestDistance {
			best = book
			bestDistance = distance
		}
	}

	if best == nil || titleLower == "" {
		return nil
	}

	shorter := len(titleLower)
	if l := len(strings.ToLower(best.Title)); l < shorter {
		shorter = l
	}
	if shorter == 0 || float64(bestDistance) > maxDistanceRatio*float64(shorter) {
		return nil
	}
	return []*models.Book{best}
}
