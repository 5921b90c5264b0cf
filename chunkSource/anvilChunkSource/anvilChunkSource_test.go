package anvilChunkSource

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save/region"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkSector builds sector data of a chunk filled with one block
// from y=0 to y=15, a chest sits on top of it.
func chunkSector(t *testing.T, cx, cz int, block string) []byte {
	chunk := map[string]interface{}{
		"DataVersion": int32(3465),
		"xPos":        int32(cx),
		"yPos":        int32(0),
		"zPos":        int32(cz),
		"Status":      "full",
		"sections": []map[string]interface{}{
			{
				"Y": int8(0),
				"block_states": map[string]interface{}{
					"palette": []map[string]interface{}{{"Name": block}},
				},
				"biomes": map[string]interface{}{
					"palette": []string{"minecraft:plains"},
				},
			},
		},
		"block_entities": []map[string]interface{}{
			{"id": "minecraft:chest", "x": int32(cx*16 + 1), "y": int32(16), "z": int32(cz*16 + 2)},
		},
	}
	var buf bytes.Buffer
	buf.WriteByte(1)
	zw := gzip.NewWriter(&buf)
	require.NoError(t, nbt.NewEncoder(zw).Encode(chunk, ""))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeChunk(t *testing.T, world string, cx, cz int, block string) {
	dir := filepath.Join(world, "region")
	require.NoError(t, os.MkdirAll(dir, 0755))
	rx, rz := region.At(cx, cz)
	p := filepath.Join(dir, fmt.Sprintf("r.%d.%d.mca", rx, rz))
	var r *region.Region
	var err error
	if _, serr := os.Stat(p); serr == nil {
		r, err = region.Open(p)
	} else {
		r, err = region.Create(p)
	}
	require.NoError(t, err)
	x, z := region.In(cx, cz)
	require.NoError(t, r.WriteSector(x, z, chunkSector(t, cx, cz, block)))
	require.NoError(t, r.Close())
}

func newWorld(t *testing.T) (string, *AnvilChunkSource) {
	world := t.TempDir()
	writeChunk(t, world, 0, 0, "minecraft:stone")
	writeChunk(t, world, 5, 3, "minecraft:sand")
	writeChunk(t, world, -1, -1, "minecraft:dirt")
	s, err := NewAnvilChunkSource(nil, world, definitions.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return world, s
}

func TestDecodeChunk(t *testing.T) {
	_, s := newWorld(t)
	tb := definitions.Default()
	ch, err := s.DecodeChunk("overworld", 0, 0)
	require.NoError(t, err)
	top, ok := ch.Column(3, 3).Top()
	require.True(t, ok)
	assert.Equal(t, 15, top)
	r, ok := ch.Column(3, 3).At(15)
	require.True(t, ok)
	assert.Equal(t, tb.BlockID("stone"), r.Block)
	require.Len(t, ch.Features, 1)
	assert.Equal(t, "minecraft:chest", ch.Features[0].ID)
	assert.Equal(t, 1, ch.Features[0].X)

	ch, err = s.DecodeChunk("overworld", -1, -1)
	require.NoError(t, err)
	r, _ = ch.Column(0, 0).At(0)
	assert.Equal(t, tb.BlockID("dirt"), r.Block)
	assert.Equal(t, primitives.ChunkPos{X: -1, Z: -1}, ch.Pos)
}

func TestDecodeMissing(t *testing.T) {
	_, s := newWorld(t)
	_, err := s.DecodeChunk("overworld", 1, 1)
	assert.ErrorIs(t, err, chunkSource.ErrNotFound)
	_, err = s.DecodeChunk("overworld", 100, 100)
	assert.ErrorIs(t, err, chunkSource.ErrNotFound)
	_, err = s.DecodeChunk("the_nether", 0, 0)
	assert.ErrorIs(t, err, chunkSource.ErrNoDimension)
}

func TestListChunks(t *testing.T) {
	world, s := newWorld(t)
	require.NoError(t, os.WriteFile(filepath.Join(world, "region", "r.0.0.mca.bak"), []byte("x"), 0644))
	l, err := s.ListChunks("overworld")
	require.NoError(t, err)
	assert.Equal(t, []primitives.ChunkPos{{X: -1, Z: -1}, {X: 0, Z: 0}, {X: 5, Z: 3}}, l)
	_, err = s.ListChunks("the_end")
	assert.ErrorIs(t, err, chunkSource.ErrNoDimension)
}

func TestClosedSource(t *testing.T) {
	_, s := newWorld(t)
	require.NoError(t, s.Close())
	_, err := s.DecodeChunk("overworld", 0, 0)
	assert.ErrorIs(t, err, chunkSource.ErrSourceClosed)
	require.NoError(t, s.Close())
}

func TestExtractRegionPath(t *testing.T) {
	var x, z int
	assert.True(t, ExtractRegionPath("r.-3.12.mca", &x, &z))
	assert.Equal(t, -3, x)
	assert.Equal(t, 12, z)
	assert.False(t, ExtractRegionPath("r.1.mca", nil, nil))
	assert.False(t, ExtractRegionPath("r.1.2.mcr", nil, nil))
}

func TestRegionFolders(t *testing.T) {
	s := &AnvilChunkSource{Root: "/w"}
	assert.Equal(t, "/w/region", s.getRegionFolder("overworld"))
	assert.Equal(t, "/w/DIM-1/region", s.getRegionFolder("the_nether"))
	assert.Equal(t, "/w/DIM1/region", s.getRegionFolder("the_end"))
	assert.Equal(t, "/w/DIM-1/region", s.getRegionFolder("DIM-1"))
	assert.Equal(t, "/w/x/region", s.getRegionFolder("../../x"))
}

func TestWatchReportsChangedChunks(t *testing.T) {
	WatchSettle = 50 * time.Millisecond
	world, s := newWorld(t)
	tb := definitions.Default()
	ch, err := s.DecodeChunk("overworld", 5, 3)
	require.NoError(t, err)
	r, _ := ch.Column(0, 0).At(0)
	require.Equal(t, tb.BlockID("sand"), r.Block)

	var mu sync.Mutex
	changed := []primitives.ChunkPos{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx, "overworld", func(p primitives.ChunkPos) {
		mu.Lock()
		changed = append(changed, p)
		mu.Unlock()
	}))
	writeChunk(t, world, 5, 3, "minecraft:gravel")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changed) > 0
	}, 5*time.Second, 20*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []primitives.ChunkPos{{X: 5, Z: 3}}, changed)
	mu.Unlock()

	ch, err = s.DecodeChunk("overworld", 5, 3)
	require.NoError(t, err)
	r, _ = ch.Column(0, 0).At(0)
	assert.Equal(t, tb.BlockID("gravel"), r.Block)
}
