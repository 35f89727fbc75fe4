package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/domain"
)

func TestMergeBatchIntoTree_PreservesDuplicateTitles(t *testing.T) {
	tree := domain.TaxonomyTree{}
	batch := &batchResult{
		Series: []seriesJSON{{
			Name: "Heist Challenges",
			Themes: []themeJSON{{
				Name: "Bank Heists",
				Topics: []topicJSON{
					{Name: "Bank Heist", ExampleTitle: "I Robbed a Bank (Heist Challenge)"},
					{Name: "Bank Heist", ExampleTitle: "I Robbed a Bank (Heist Challenge)"},
				},
			}},
		}},
	}
	mergeBatchIntoTree(&tree, batch)
	require.Len(t, tree.Series, 1)
	require.Len(t, tree.Series[0].Themes, 1)
	assert.Len(t, tree.Series[0].Themes[0].Topics, 2)
}

func TestApplyCoverageCheck_AddsMissingTitlesToMiscellaneous(t *testing.T) {
	videos := []domain.Video{
		{Title: "Covered Title", Views: 100},
		{Title: "Uncovered Title One Two Three", Views: 50},
	}
	tree := domain.TaxonomyTree{Series: []domain.Series{{
		Name: "Main Series",
		Themes: []domain.Theme{{
			Name:   "Main Theme",
			Topics: []domain.Topic{{Name: "Covered", ExampleTitle: "Covered Title"}},
		}},
	}}}

	applyCoverageCheck(&tree, videos)

	require.Len(t, tree.Series[0].Themes, 2)
	misc := tree.Series[0].Themes[1]
	assert.Equal(t, "Miscellaneous", misc.Name)
	require.Len(t, misc.Topics, 1)
	assert.Equal(t, "Uncovered Title One Two Three", misc.Topics[0].ExampleTitle)
	assert.Equal(t, "Uncovered Title One", misc.Topics[0].Name)
}

func TestApplyCoverageCheck_FallsBackToGeneralSeriesWhenTreeEmpty(t *testing.T) {
	videos := []domain.Video{{Title: "Only Title"}}
	tree := domain.TaxonomyTree{}
	applyCoverageCheck(&tree, videos)
	require.Len(t, tree.Series, 1)
	assert.Equal(t, "General", tree.Series[0].Name)
	require.Len(t, tree.Series[0].Themes, 1)
	assert.Equal(t, "Miscellaneous", tree.Series[0].Themes[0].Name)
}

func TestResortByAvgViews_OrdersDescending(t *testing.T) {
	tree := domain.TaxonomyTree{Series: []domain.Series{
		{Name: "Low", Themes: []domain.Theme{{Name: "t", Topics: []domain.Topic{{Views: 10}}}}},
		{Name: "High", Themes: []domain.Theme{{Name: "t", Topics: []domain.Topic{{Views: 1000}}}}},
	}}
	resortByAvgViews(&tree)
	require.Len(t, tree.Series, 2)
	assert.Equal(t, "High", tree.Series[0].Name)
	assert.Equal(t, "Low", tree.Series[1].Name)
}

func TestFirstNWords(t *testing.T) {
	assert.Equal(t, "one two three", firstNWords("one two three four five", 3))
	assert.Equal(t, "one two", firstNWords("one two", 3))
}
