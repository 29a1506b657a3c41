package models

// Quality represents a single quality tier
type Quality struct {
	ID   int
	Name string
}

// Known qualities. Profiles define their own ordering; these are just the
// identities the parser can produce.
var (
	QualityUnknown = Quality{ID: 0, Name: "Unknown"}
	QualityPDF     = Quality{ID: 1, Name: "PDF"}
	QualityMP3     = Quality{ID: 2, Name: "MP3"}
	QualityM4B     = Quality{ID: 3, Name: "M4B"}
	QualityMOBI    = Quality{ID: 4, Name: "MOBI"}
	QualityAZW3    = Quality{ID: 5, Name: "AZW3"}
	QualityEPUB    = Quality{ID: 6, Name: "EPUB"}
	QualityFLAC    = Quality{ID: 7, Name: "FLAC"}
)

// Revision distinguishes re-releases of the same quality (proper/repack)
type Revision struct {
	Version int
	Real    int
}

// Compare returns <0, 0 or >0 when r is older, equal or newer than other
func (r Revision) Compare(other Revision) int {
	if r.Real != other.Real {
		return r.Real - other.Real
	}
	return r.Version - other.Version
}

// QualityModel combines a quality tier with its revision
type QualityModel struct {
	Quality  Quality
	Revision Revision
}

// CustomFormat is a tag-like rule matched against release titles. A release
// matches the format when its title contains any of the match terms.
type CustomFormat struct {
	ID         int
	Name       string
	MatchTerms []string
}

// QualityProfileItem is one rung of a profile's quality ladder
type QualityProfileItem struct {
	Quality Quality
	Allowed bool
}

// FormatItem assigns a score to a custom format within a profile
type FormatItem struct {
	Format CustomFormat
	Score  int
}

// QualityProfile defines the ordered quality ladder, the cutoff tier and the
// custom format scoring for an author
type QualityProfile struct {
	ID   uint64 `boltholdKey:"ID"`
	Name string

	UpgradeAllowed bool
	Cutoff         int                  // Quality ID of the cutoff tier
	Items          []QualityProfileItem // ordered worst to best
	MinFormatScore int
	FormatItems    []FormatItem
}

// IndexOf returns the ladder position of q, or -1 if q is not an allowed
// quality in this profile
func (p *QualityProfile) IndexOf(q Quality) int {
	for i, item := range p.Items {
		if item.Quality.ID == q.ID {
			if !item.Allowed {
				return -1
			}
			return i
		}
	}
	return -1
}

// CutoffIndex returns the ladder position of the profile cutoff
func (p *QualityProfile) CutoffIndex() int {
	for i, item := range p.Items {
		if item.Quality.ID == p.Cutoff {
			return i
		}
	}
	return len(p.Items) - 1
}

// IsAllowed reports whether q may be grabbed at all under this profile
func (p *QualityProfile) IsAllowed(q Quality) bool {
	return p.IndexOf(q) >= 0
}
