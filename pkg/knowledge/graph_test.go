package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reelforge/reelforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph() *Graph {
	return New([]Figure{
		{ID: "fig-ada", Name: "Ada Lovelace", Keywords: []string{"ada", "lovelace", "analytical", "engine"},
			ImagePath: "figures/ada.png", RelatedIDs: []string{"fig-babbage"}},
		{ID: "fig-babbage", Name: "Charles Babbage", Keywords: []string{"babbage", "difference", "engine"}},
	})
}

func TestMatchRequiresTwoKeywordHits(t *testing.T) {
	m := NewMatcher(testGraph())

	// One hit ("engine") is not enough.
	_, ok := m.Match(models.Scene{ID: "s1", Description: "a steam engine rolls past"})
	assert.False(t, ok)

	// Two hits match.
	fig, ok := m.Match(models.Scene{ID: "s2", Title: "Ada at work",
		Description: "ada sketches the analytical engine"})
	require.True(t, ok)
	assert.Equal(t, "fig-ada", fig.ID)
	assert.Equal(t, "figures/ada.png", fig.ImagePath)
}

func TestMatchUsesVisualElements(t *testing.T) {
	m := NewMatcher(testGraph())
	fig, ok := m.Match(models.Scene{ID: "s3", Description: "a workshop",
		VisualElements: []string{"babbage portrait", "difference engine model"}})
	require.True(t, ok)
	assert.Equal(t, "fig-babbage", fig.ID)
}

func TestMatchPrefersMoreHits(t *testing.T) {
	m := NewMatcher(testGraph())
	// Three ada hits beat two babbage hits.
	fig, ok := m.Match(models.Scene{ID: "s4",
		Description: "ada lovelace explains the difference engine"})
	require.True(t, ok)
	assert.Equal(t, "fig-ada", fig.ID)
}

func TestMatchCachesPerScene(t *testing.T) {
	m := NewMatcher(testGraph())
	scene := models.Scene{ID: "s5", Description: "ada and her analytical engine"}

	fig1, ok := m.Match(scene)
	require.True(t, ok)

	// A mutated scene with the same id returns the cached match.
	scene.Description = "something entirely unrelated"
	fig2, ok := m.Match(scene)
	require.True(t, ok)
	assert.Equal(t, fig1.ID, fig2.ID)
}

func TestRelatedResolvesIDLinks(t *testing.T) {
	g := testGraph()
	related := g.Related("fig-ada")
	require.Len(t, related, 1)
	assert.Equal(t, "fig-babbage", related[0].ID)

	assert.Empty(t, g.Related("fig-babbage"))
	assert.Empty(t, g.Related("nope"))
}

func TestLoadMissingFileYieldsEmptyGraph(t *testing.T) {
	g, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, g.Len())
}

func TestLoadExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"figures":[{"figure_id":"f1","name":"N","keywords":["a","b"]}]}`), 0o644))
	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	_, ok := g.Figure("f1")
	assert.True(t, ok)
}
