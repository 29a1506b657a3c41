// Package quality implements the pure comparison rules that decide whether a
// candidate release is an allowed improvement over what is already owned or
// queued, under a quality profile.
package quality

import (
	"strings"

	"github.com/bookarr/bookarr/internal/models"
)

// FormatScore sums the profile scores of the given custom formats
func FormatScore(profile *models.QualityProfile, formats []models.CustomFormat) int {
	score := 0
	for _, format := range formats {
		for _, item := range profile.FormatItems {
			if item.Format.ID == format.ID {
				score += item.Score
			}
		}
	}
	return score
}

// MatchFormats returns the profile's custom formats whose match terms appear
// in the release title
func MatchFormats(profile *models.QualityProfile, title string) []models.CustomFormat {
	titleLower := strings.ToLower(title)

	var matched []models.CustomFormat
	for _, item := range profile.FormatItems {
		for _, term := range item.Format.MatchTerms {
			if strings.Contains(titleLower, strings.ToLower(term)) {
				matched = append(matched, item.Format)
				break
			}
		}
	}
	return matched
}

// CutoffNotMet reports whether the profile still wants something better than
// what is currently owned: true when every current item sits strictly below
// the cutoff tier, or when the best current item's format score is below the
// profile minimum. When it returns false the slot is satisfied and no further
// search or grab should happen.
func CutoffNotMet(profile *models.QualityProfile, current []models.QualityModel, currentScore int) bool {
	if len(current) == 0 {
		return true
	}

	cutoff := profile.CutoffIndex()

	best := -1
	for _, q := range current {
		if rank := profile.IndexOf(q.Quality); rank > best {
			best = rank
		}
	}

	if best < cutoff {
		return true
	}

	return currentScore < profile.MinFormatScore
}

// IsUpgradable reports whether the candidate is a strict improvement over the
// current item: a higher ladder tier, or the same tier with a higher custom
// format score. Equal-or-worse is never an upgrade.
func IsUpgradable(profile *models.QualityProfile, current models.QualityModel, currentScore int, candidate models.QualityModel, candidateScore int) bool {
	currentRank := profile.IndexOf(current.Quality)
	candidateRank := profile.IndexOf(candidate.Quality)

	if candidateRank < currentRank {
		return false
	}
	if candidateRank > currentRank {
		return true
	}

	return candidateScore > currentScore
}

// IsUpgradeAllowed reports whether the profile permits grabbing the candidate
// given the current item. A disallowed quality is never permitted; an upgrade
// over an existing item is only permitted when the profile allows upgrades.
func IsUpgradeAllowed(profile *models.QualityProfile, current models.QualityModel, currentScore int, candidate models.QualityModel, candidateScore int) bool {
	if !profile.IsAllowed(candidate.Quality) {
		return false
	}

	if !profile.UpgradeAllowed && IsUpgradable(profile, current, currentScore, candidate, candidateScore) {
		return false
	}

	return true
}

// IsRevisionUpgrade reports whether candidate is a re-release (proper/repack)
// of the same quality tier as current. This is the narrow check that gates
// auto-download of same-tier re-releases behind configuration.
func IsRevisionUpgrade(current models.QualityModel, candidate models.QualityModel) bool {
	return current.Quality.ID == candidate.Quality.ID &&
		candidate.Revision.Compare(current.Revision) > 0
}
