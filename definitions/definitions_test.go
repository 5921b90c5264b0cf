package definitions

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	tb := Default()
	stone := tb.BlockID("minecraft:stone")
	require.NotEqual(t, uint16(UnknownID), stone)
	assert.Equal(t, stone, tb.BlockID("stone"))
	assert.True(t, tb.IsAir(tb.BlockID("minecraft:air")))
	assert.False(t, tb.IsAir(stone))
	assert.Equal(t, color.RGBA{0x7d, 0x7d, 0x7d, 0xff}, tb.Lookup(stone, 0).Color)
	assert.Equal(t, 1.0, tb.Lookup(stone, 0).Opacity)
}

func TestUnknownFallsBack(t *testing.T) {
	tb := Default()
	id := tb.BlockID("mod:weird_block")
	assert.Equal(t, uint16(UnknownID), id)
	assert.Equal(t, UnknownColor, tb.Lookup(id, 0).Color)
	assert.Equal(t, UnknownColor, tb.Lookup(60000, 60000).Color)
	assert.Equal(t, "unknown", tb.Biome(60000).Name)
}

func TestBiomeTint(t *testing.T) {
	tb := Default()
	grass := tb.BlockID("grass_block")
	plains := tb.Lookup(grass, tb.BiomeID("plains")).Color
	swamp := tb.Lookup(grass, tb.BiomeID("swamp")).Color
	assert.Equal(t, color.RGBA{0x91, 0xbd, 0x59, 0xff}, plains)
	assert.NotEqual(t, plains, swamp)
	water := tb.Lookup(tb.BlockID("water"), tb.BiomeID("plains"))
	assert.Less(t, water.Opacity, 1.0)
}

func TestSpawnSurface(t *testing.T) {
	tb := Default()
	stone := tb.BlockID("stone")
	assert.True(t, tb.IsSpawnSurface(stone, 0))
	assert.True(t, tb.IsSpawnSurface(stone, SpawnMaxLight))
	assert.False(t, tb.IsSpawnSurface(stone, SpawnMaxLight+1))
	assert.False(t, tb.IsSpawnSurface(tb.BlockID("glass"), 0))
	assert.False(t, tb.IsSpawnSurface(tb.BlockID("bedrock"), 0))
}

func TestDimensions(t *testing.T) {
	tb := Default()
	d, err := tb.Dimension("DIM-1")
	require.NoError(t, err)
	assert.Equal(t, "the_nether", d.Name)
	assert.Equal(t, 8.0, d.Scale)
	d, err = tb.Dimension("overworld")
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.Scale)
	_, err = tb.Dimension("DIM42")
	assert.True(t, errors.Is(err, ErrUnknownDimension))
}

func TestLoadOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), "defs.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
blocks:
  - {name: "minecraft:stone", color: "#010203", solid: true}
  - {name: "mod:glowing_thing", color: "#aabbcc80", solid: true}
dimensions:
  - {name: "aether", path: "DIM7", scale: 2, minY: 0, maxY: 255}
`), 0644))
	tb, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{1, 2, 3, 0xff}, tb.Lookup(tb.BlockID("stone"), 0).Color)
	id := tb.BlockID("mod:glowing_thing")
	require.NotEqual(t, uint16(UnknownID), id)
	assert.Equal(t, uint8(0xaa), tb.Lookup(id, 0).Color.R)
	d, err := tb.Dimension("DIM7")
	require.NoError(t, err)
	assert.Equal(t, 2.0, d.Scale)
	_, err = tb.Dimension("DIM-1")
	assert.NoError(t, err)
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse([]byte("blocks:\n  - {name: x, color: \"#zz\"}\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("blocks:\n  - {name: x, tint: purple}\n"))
	assert.Error(t, err)
}
