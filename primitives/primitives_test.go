package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxNormalized(t *testing.T) {
	a := Box{5, 0, 5, 1, 0, 1}.Normalized()
	b := Box{1, 0, 1, 5, 0, 5}.Normalized()
	assert.Equal(t, b, a)
	assert.Equal(t, Box{1, 0, 1, 5, 0, 5}, a)
}

func TestBoxIntersects(t *testing.T) {
	b := Box{0, 0, 0, 10, 10, 10}
	assert.True(t, b.Intersects(Box{5, 0, 5, 5, 100, 5}))
	assert.True(t, b.Intersects(Box{10, 10, 10, 12, 12, 12}), "touching corners intersect")
	assert.False(t, b.Intersects(Box{11, 0, 0, 12, 5, 5}))
	assert.False(t, b.Intersects(Box{5, 11, 5, 5, 20, 5}))
}

func TestRenderFlagsString(t *testing.T) {
	assert.Equal(t, "none", RenderFlags(0).String())
	f := FlagLighting | FlagCaveMode
	assert.Equal(t, "lighting+cave", f.String())
	p, err := ParseRenderFlags(f.String())
	require.NoError(t, err)
	assert.Equal(t, f, p)
	p, err = ParseRenderFlags("Lighting, depthshading")
	require.NoError(t, err)
	assert.Equal(t, FlagLighting|FlagDepthShading, p)
	_, err = ParseRenderFlags("lighting+bogus")
	assert.Error(t, err)
}
