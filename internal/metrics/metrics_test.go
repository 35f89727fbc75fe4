package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"renderowl-intel-api/internal/domain"
)

func TestOutliers_TieringBoundaries(t *testing.T) {
	tree := domain.TaxonomyTree{Series: []domain.Series{{
		Name: "Challenges",
		Themes: []domain.Theme{
			{Name: "extreme", AvgViews: 3500},
			{Name: "high", AvgViews: 2100},
			{Name: "moderate", AvgViews: 1600},
			{Name: "standard", AvgViews: 500},
		},
	}}}

	outliers := Outliers(tree, 1000)
	require := map[string]domain.OutlierTier{}
	for _, o := range outliers {
		require[o.ThemeName] = o.Tier
	}
	assert.Equal(t, domain.TierExtreme, require["extreme"])
	assert.Equal(t, domain.TierHigh, require["high"])
	assert.Equal(t, domain.TierModerate, require["moderate"])
	assert.Equal(t, domain.TierStandard, require["standard"])
}

func TestOutliers_ZeroBaselineYieldsZeroScore(t *testing.T) {
	tree := domain.TaxonomyTree{Series: []domain.Series{{
		Themes: []domain.Theme{{Name: "t", AvgViews: 500}},
	}}}
	outliers := Outliers(tree, 0)
	assert.Equal(t, float64(0), outliers[0].OutlierScore)
	assert.Equal(t, domain.TierStandard, outliers[0].Tier)
}

func TestGroupMetrics_AveragesAcrossCompetitors(t *testing.T) {
	competitors := []domain.CompetitorChannel{
		{MonthlyViews: 1000, MonthlySubGrowth: 10, UploadFrequency: 4},
		{MonthlyViews: 3000, MonthlySubGrowth: 30, UploadFrequency: 8},
	}
	m := GroupMetrics(competitors)
	assert.Equal(t, float64(2000), m.AvgMonthlyViews)
	assert.Equal(t, float64(20), m.AvgMonthlySubs)
	assert.Equal(t, float64(6), m.AvgUploadFrequency)
}

func TestEstimateMonthlyRevenue_UsesBucketAndMultiplier(t *testing.T) {
	// 10-minute videos (bucket <20 -> 3.5), Gaming niche -> 0.8 multiplier.
	rev := EstimateMonthlyRevenue(100000, 10*60, "Gaming")
	assert.InDelta(t, (100000.0/1000)*3.5*0.8, rev, 1e-9)
}

func TestNicheMultiplier_DefaultsWhenUnknown(t *testing.T) {
	assert.Equal(t, defaultNicheMultiplier, nicheMultiplier("Underwater Basket Weaving"))
	assert.Equal(t, 1.49, nicheMultiplier("crypto trading"))
}

func TestCanonicalKey_NormalizesWhitespaceAndDots(t *testing.T) {
	a := CanonicalKey("My Series", "Theme One.Two")
	b := CanonicalKey("my series", "theme one two")
	assert.Equal(t, a, b)
}
