package thumbnail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuidanceScaleKnownStyle(t *testing.T) {
	assert.Equal(t, 9.5, GuidanceScale("meme_style"))
	assert.Equal(t, 9.5, GuidanceScale("Meme_Style"))
}

func TestGuidanceScaleUnknownStyleDefaults(t *testing.T) {
	assert.Equal(t, defaultGuidanceScale, GuidanceScale("never_seen_before"))
	assert.Equal(t, defaultGuidanceScale, GuidanceScale(""))
}

func TestRenderPreviewProducesPNG(t *testing.T) {
	g := &Guidelines{
		LayoutZones: []Zone{{Name: "face", X: 0.1, Y: 0.1, Width: 0.3, Height: 0.5}},
		Typography:  Typography{FontStyle: "bold", ColorHex: "#ffffff", MaxWords: 4},
	}
	data, err := RenderPreview(g, "Test Concept")
	assert.NoError(t, err)
	assert.True(t, len(data) > 8)
	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}
