package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/domain"
)

func TestParseVideoStructure_SupportsHHMMSSAndMMSS(t *testing.T) {
	text := `Video Structure:
1. Cold Open Reveal (00:00 - 00:20, Duration: 00:20)
2. The Setup (00:00:20 - 00:05:20, Duration: 00:05:00)
`
	segments, err := parseVideoStructure(text)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 20, segments[0].durationSec)
	assert.Equal(t, 300, segments[1].durationSec)
	assert.Equal(t, 20, segments[1].startSec)
}

func TestParseTimestamp_HandlesLargeHourValues(t *testing.T) {
	sec, err := parseTimestamp("12:30:00")
	require.NoError(t, err)
	assert.Equal(t, 12*3600+30*60, sec)
}

func TestValidate_RejectsOverlongSegment(t *testing.T) {
	p := &domain.PlotOutline{
		TotalDurationSec: 700,
		Segments: []domain.Segment{
			{Name: "Intro", DurationSec: 10, StartSec: 0, EndSec: 10},
			{Name: "Body", DurationSec: 690, StartSec: 10, EndSec: 700},
		},
	}
	err := Validate(p)
	require.Error(t, err)
}

func TestValidate_RejectsLongIntro(t *testing.T) {
	p := &domain.PlotOutline{
		TotalDurationSec: 100,
		Segments: []domain.Segment{
			{Name: "Intro", DurationSec: 30, StartSec: 0, EndSec: 30},
			{Name: "Body", DurationSec: 70, StartSec: 30, EndSec: 100},
		},
	}
	err := Validate(p)
	require.Error(t, err)
}

func TestValidate_RejectsDiscontinuousSegments(t *testing.T) {
	p := &domain.PlotOutline{
		TotalDurationSec: 40,
		Segments: []domain.Segment{
			{Name: "Intro", DurationSec: 10, StartSec: 0, EndSec: 10},
			{Name: "Body", DurationSec: 30, StartSec: 15, EndSec: 45},
		},
	}
	err := Validate(p)
	require.Error(t, err)
}

func TestValidate_AcceptsSoundOutline(t *testing.T) {
	p := &domain.PlotOutline{
		TotalDurationSec: 40,
		Segments: []domain.Segment{
			{Name: "Intro", DurationSec: 10, StartSec: 0, EndSec: 10},
			{Name: "Body", DurationSec: 30, StartSec: 10, EndSec: 40},
		},
	}
	assert.NoError(t, Validate(p))
}

func TestStripContinuationMarker_RemovesTrailingQuestion(t *testing.T) {
	in := "1. Intro (00:00 - 00:20, Duration: 00:20)\nWould you like me to continue?"
	out := stripContinuationMarker(in)
	assert.NotContains(t, out, "continue")
	assert.Contains(t, out, "1. Intro")
}
