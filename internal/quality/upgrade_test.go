package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bookarr/bookarr/internal/models"
)

func testProfile() *models.QualityProfile {
	return &models.QualityProfile{
		ID:             1,
		Name:           "Standard",
		UpgradeAllowed: true,
		Cutoff:         models.QualityEPUB.ID,
		Items: []models.QualityProfileItem{
			{Quality: models.QualityPDF, Allowed: true},
			{Quality: models.QualityMOBI, Allowed: true},
			{Quality: models.QualityAZW3, Allowed: false},
			{Quality: models.QualityEPUB, Allowed: true},
		},
		FormatItems: []models.FormatItem{
			{Format: models.CustomFormat{ID: 1, Name: "Retail", MatchTerms: []string{"retail"}}, Score: 10},
			{Format: models.CustomFormat{ID: 2, Name: "Annotated", MatchTerms: []string{"annotated"}}, Score: 5},
		},
	}
}

func qm(q models.Quality) models.QualityModel {
	return models.QualityModel{Quality: q, Revision: models.Revision{Version: 1}}
}

func TestCutoffNotMet(t *testing.T) {
	profile := testProfile()

	t.Run("no current file always wants more", func(t *testing.T) {
		assert.True(t, CutoffNotMet(profile, nil, 0))
	})

	t.Run("below cutoff", func(t *testing.T) {
		assert.True(t, CutoffNotMet(profile, []models.QualityModel{qm(models.QualityPDF)}, 0))
		assert.True(t, CutoffNotMet(profile, []models.QualityModel{qm(models.QualityMOBI)}, 0))
	})

	t.Run("at cutoff is satisfied", func(t *testing.T) {
		assert.False(t, CutoffNotMet(profile, []models.QualityModel{qm(models.QualityEPUB)}, 0))
	})

	t.Run("best of several counts", func(t *testing.T) {
		current := []models.QualityModel{qm(models.QualityPDF), qm(models.QualityEPUB)}
		assert.False(t, CutoffNotMet(profile, current, 0))
	})

	t.Run("format score below minimum keeps wanting", func(t *testing.T) {
		scored := testProfile()
		scored.MinFormatScore = 10
		assert.True(t, CutoffNotMet(scored, []models.QualityModel{qm(models.QualityEPUB)}, 5))
		assert.False(t, CutoffNotMet(scored, []models.QualityModel{qm(models.QualityEPUB)}, 10))
	})
}

func TestCutoffMetByRevisionedQuality(t *testing.T) {
	// A proper of the cutoff tier still meets the cutoff: revision never
	// factors into cutoff math, only into revision-upgrade gating.
	profile := &models.QualityProfile{
		UpgradeAllowed: true,
		Cutoff:         models.QualityMP3.ID,
		Items: []models.QualityProfileItem{
			{Quality: models.QualityMP3, Allowed: true},
			{Quality: models.QualityFLAC, Allowed: true},
		},
	}

	current := models.QualityModel{Quality: models.QualityMP3, Revision: models.Revision{Version: 1}}
	proper := models.QualityModel{Quality: models.QualityMP3, Revision: models.Revision{Version: 2}}

	assert.False(t, CutoffNotMet(profile, []models.QualityModel{current}, 0))
	assert.True(t, IsRevisionUpgrade(current, proper))
}

func TestIsUpgradable(t *testing.T) {
	profile := testProfile()

	assert.True(t, IsUpgradable(profile, qm(models.QualityPDF), 0, qm(models.QualityEPUB), 0))
	assert.False(t, IsUpgradable(profile, qm(models.QualityEPUB), 0, qm(models.QualityPDF), 0))

	// Same tier decided by format score, strictly
	assert.True(t, IsUpgradable(profile, qm(models.QualityEPUB), 0, qm(models.QualityEPUB), 5))
	assert.False(t, IsUpgradable(profile, qm(models.QualityEPUB), 5, qm(models.QualityEPUB), 5))
	assert.False(t, IsUpgradable(profile, qm(models.QualityEPUB), 5, qm(models.QualityEPUB), 0))
}

func TestIsUpgradeAllowed(t *testing.T) {
	profile := testProfile()

	t.Run("disallowed quality never permitted", func(t *testing.T) {
		assert.False(t, IsUpgradeAllowed(profile, qm(models.QualityPDF), 0, qm(models.QualityAZW3), 0))
		assert.False(t, IsUpgradeAllowed(profile, qm(models.QualityPDF), 0, qm(models.QualityFLAC), 0))
	})

	t.Run("upgrade blocked when profile forbids upgrades", func(t *testing.T) {
		frozen := testProfile()
		frozen.UpgradeAllowed = false
		assert.False(t, IsUpgradeAllowed(frozen, qm(models.QualityPDF), 0, qm(models.QualityEPUB), 0))
		// A non-upgrade of an allowed quality is still fine
		assert.True(t, IsUpgradeAllowed(frozen, qm(models.QualityEPUB), 0, qm(models.QualityPDF), 0))
	})

	t.Run("upgrade permitted when profile allows", func(t *testing.T) {
		assert.True(t, IsUpgradeAllowed(profile, qm(models.QualityPDF), 0, qm(models.QualityEPUB), 0))
	})
}

func TestIsRevisionUpgrade(t *testing.T) {
	v1 := models.QualityModel{Quality: models.QualityEPUB, Revision: models.Revision{Version: 1}}
	v2 := models.QualityModel{Quality: models.QualityEPUB, Revision: models.Revision{Version: 2}}
	real := models.QualityModel{Quality: models.QualityEPUB, Revision: models.Revision{Version: 1, Real: 1}}
	otherTier := models.QualityModel{Quality: models.QualityPDF, Revision: models.Revision{Version: 2}}

	assert.True(t, IsRevisionUpgrade(v1, v2))
	assert.False(t, IsRevisionUpgrade(v2, v1))
	assert.False(t, IsRevisionUpgrade(v1, v1))
	assert.True(t, IsRevisionUpgrade(v1, real))
	assert.False(t, IsRevisionUpgrade(v1, otherTier))
}

func TestMatchFormatsAndScore(t *testing.T) {
	profile := testProfile()

	formats := MatchFormats(profile, "Jane Doe - Some Book [EPUB] Retail Annotated")
	assert.Len(t, formats, 2)
	assert.Equal(t, 15, FormatScore(profile, formats))

	formats = MatchFormats(profile, "Jane Doe - Some Book [EPUB]")
	assert.Empty(t, formats)
	assert.Zero(t, FormatScore(profile, formats))
}
