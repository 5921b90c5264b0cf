package viewport

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/maxsupermanhd/chunkview/chunkCache"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/overlay"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/lac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hillDecoder struct {
	tb      *definitions.Table
	mu      sync.Mutex
	calls   map[string]int
	chest   primitives.ChunkPos
	// top replaces grass_block when set
	top     string
	entered chan struct{}
	gate    chan struct{}
}

func (d *hillDecoder) DecodeChunk(dimension string, cx, cz int) (*chunkSource.Chunk, error) {
	d.mu.Lock()
	d.calls[fmt.Sprintf("%s %d %d", dimension, cx, cz)]++
	top := d.top
	entered, gate := d.entered, d.gate
	d.mu.Unlock()
	if top == "" {
		top = "grass_block"
	}
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	plains := d.tb.BiomeID("plains")
	ch := &chunkSource.Chunk{Pos: primitives.ChunkPos{X: cx, Z: cz}, MinY: -64, MaxY: 319}
	for i := range ch.Columns {
		ch.Columns[i].Runs = []chunkSource.Run{
			{Top: 319, Bottom: 71, Block: d.tb.BlockID("air"), Biome: plains, SkyLight: 15},
			{Top: 70, Bottom: 70, Block: d.tb.BlockID(top), Biome: plains},
			{Top: 69, Bottom: 61, Block: d.tb.BlockID("dirt"), Biome: plains},
			{Top: 60, Bottom: -64, Block: d.tb.BlockID("stone"), Biome: plains},
		}
	}
	if ch.Pos == d.chest {
		ch.Features = []chunkSource.Feature{{ID: "minecraft:chest", X: cx*16 + 3, Y: 64, Z: cz*16 + 4, Properties: map[string]any{"Lock": ""}}}
	}
	return ch, nil
}

func (d *hillDecoder) count(dimension string, cx, cz int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[fmt.Sprintf("%s %d %d", dimension, cx, cz)]
}

func (d *hillDecoder) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.calls {
		n += v
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	depths []int
	props  [][]overlay.Group
	hovers []string
	dims   []string
}

func newController(t *testing.T) (*Controller, *hillDecoder, *recorder) {
	tb := definitions.Default()
	dec := &hillDecoder{tb: tb, calls: map[string]int{}, chest: primitives.ChunkPos{X: 100, Z: 100}}
	chunks := chunkCache.New(nil, dec, chunkCache.Options{})
	t.Cleanup(chunks.Close)
	rec := &recorder{}
	c := New(nil, tb, chunks, nil, nil, Options{Width: 100, Height: 100, Zoom: 4}, Callbacks{
		DemandDepthChange: func(d int) {
			rec.mu.Lock()
			rec.depths = append(rec.depths, d)
			rec.mu.Unlock()
		},
		ShowProperties: func(x, y, z int, g []overlay.Group) {
			rec.mu.Lock()
			rec.props = append(rec.props, g)
			rec.mu.Unlock()
		},
		HoverTextChanged: func(s string) {
			rec.mu.Lock()
			rec.hovers = append(rec.hovers, s)
			rec.mu.Unlock()
		},
		DimensionChanged: func(d definitions.Dimension) {
			rec.mu.Lock()
			rec.dims = append(rec.dims, d.Name)
			rec.mu.Unlock()
		},
	})
	return c, dec, rec
}

func TestUnloadedFrame(t *testing.T) {
	c, dec, _ := newController(t)
	img := c.Redraw()
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, uint8(0xff), img.RGBAAt(50, 50).A)
	assert.Equal(t, "", c.HoverAt(50, 50))
	assert.Empty(t, c.PropertiesAt(50, 50))
	assert.Equal(t, 0, dec.total())
	assert.Equal(t, Unloaded, c.LoadState())
}

func TestVillageVisibleAndClickable(t *testing.T) {
	c, _, rec := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetLocation(10, 10)
	c.MarkBlock("Village", primitives.Box{X1: 0, Y1: 60, Z1: 0, X2: 20, Y2: 70, Z2: 20}, overlay.CategoryColor("Village"), "village", map[string]any{"doors": 5})

	plain := c.Redraw().RGBAAt(50, 50)
	assert.Empty(t, c.PropertiesAt(50, 50))

	c.AddSpecialBlockType("Village")
	marked := c.Redraw().RGBAAt(50, 50)
	assert.NotEqual(t, plain, marked)

	g := c.PropertiesAt(50, 50)
	require.Len(t, g, 1)
	assert.Equal(t, "Village", g[0].Category)
	assert.Equal(t, 5, g[0].Entries[0].Properties["doors"])
	require.Len(t, rec.props, 1)

	assert.Contains(t, c.HoverAt(50, 50), "village")
	// outside of the box
	assert.Empty(t, c.PropertiesAt(99, 99))
}

func TestDimensionSwitchRedecodes(t *testing.T) {
	c, dec, rec := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetLocation(10, 10)
	c.Redraw()
	assert.Equal(t, 1, dec.count("overworld", 0, 0))

	c.SetDimensionPath("DIM-1", 8)
	st := c.State()
	assert.Equal(t, "the_nether", st.Dimension.Name)
	assert.InDelta(t, 1.25, st.CenterX, 1e-9)
	c.Redraw()
	assert.Equal(t, 1, dec.count("the_nether", 0, 0))

	require.NoError(t, c.SetDimension("overworld"))
	x, z := c.Location()
	assert.InDelta(t, 10, x, 1e-9)
	assert.InDelta(t, 10, z, 1e-9)
	c.Redraw()
	assert.Equal(t, 2, dec.count("overworld", 0, 0))
	assert.Equal(t, []string{"overworld", "the_nether", "overworld"}, rec.dims)
}

func TestUnknownDimensionPath(t *testing.T) {
	c, dec, _ := newController(t)
	c.SetDimensionPath("DIM42", 2)
	st := c.State()
	assert.Equal(t, "DIM42", st.Dimension.Name)
	assert.Equal(t, 2.0, st.Dimension.Scale)
	c.Redraw()
	assert.Positive(t, dec.count("DIM42", 0, 0))
	assert.Error(t, c.SetDimension("DIM42"))
}

func TestDepthChangeKeepsDecodes(t *testing.T) {
	c, dec, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetLocation(8, 8)
	top := c.Redraw().RGBAAt(50, 50)
	decoded := dec.total()

	d, clamped := c.SetDepth(60)
	assert.Equal(t, 60, d)
	assert.False(t, clamped)
	cut := c.Redraw().RGBAAt(50, 50)
	assert.NotEqual(t, top, cut)
	assert.Equal(t, decoded, dec.total())
	assert.Contains(t, c.HoverAt(50, 50), "stone")
}

func TestFlagsReuseDecodes(t *testing.T) {
	c, dec, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetLocation(8, 8)
	before := c.Redraw().RGBAAt(50, 50)
	decoded := dec.total()

	c.SetFlags(primitives.FlagMobSpawn)
	after := c.Redraw().RGBAAt(50, 50)
	assert.NotEqual(t, before, after)
	assert.Equal(t, decoded, dec.total())

	c.SetFlags(0)
	assert.Equal(t, before, c.Redraw().RGBAAt(50, 50))
}

func TestDepthClamp(t *testing.T) {
	c, _, rec := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	d, clamped := c.SetDepth(1000)
	assert.Equal(t, 319, d)
	assert.True(t, clamped)
	d, clamped = c.SetDepth(-100)
	assert.Equal(t, -64, d)
	assert.True(t, clamped)
	d, _ = c.MoveDepth(10)
	assert.Equal(t, -54, d)
	assert.Equal(t, []int{319, -64}, rec.depths)

	// the nether is shorter
	c.SetDepth(300)
	c.SetDimensionPath("DIM-1", 8)
	assert.Equal(t, 127, c.State().Depth)
	assert.Equal(t, 127, rec.depths[len(rec.depths)-1])
}

func TestZoomAndPan(t *testing.T) {
	c, _, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	z, clamped := c.SetZoom(100)
	assert.Equal(t, 16.0, z)
	assert.True(t, clamped)
	z, clamped = c.ZoomBy(0.25)
	assert.Equal(t, 4.0, z)
	assert.False(t, clamped)
	c.SetLocation(0, 0)
	c.Pan(40, -8)
	st := c.State()
	assert.InDelta(t, 10, st.CenterX, 1e-9)
	assert.InDelta(t, -2, st.CenterZ, 1e-9)
	c.Resize(64, 32)
	assert.Equal(t, 32, c.Redraw().Bounds().Dy())
}

func TestHoverText(t *testing.T) {
	c, _, rec := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetLocation(10, 10)
	// nothing decoded yet
	assert.Equal(t, "X: 10 Z: 10", c.HoverAt(50, 50))
	c.Redraw()
	text := c.HoverAt(50, 50)
	assert.Contains(t, text, "X: 10 Z: 10 Y: 70")
	assert.Contains(t, text, "grass_block")
	assert.Contains(t, text, "plains")
	c.HoverAt(50, 50)
	assert.Len(t, rec.hovers, 2)
}

func TestLiveEntities(t *testing.T) {
	c, _, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetLocation(1603, 1604)
	c.Redraw()
	assert.Equal(t, 0, c.Overlays().Len())

	c.SetFlags(primitives.FlagShowEntities)
	c.Redraw()
	assert.Equal(t, 1, c.Overlays().Len())
	g := c.PropertiesAt(50, 50)
	require.Len(t, g, 1)
	assert.Equal(t, "Entity", g[0].Category)
	assert.Equal(t, "minecraft:chest", g[0].Entries[0].Properties["id"])

	// scanned once
	c.Redraw()
	assert.Equal(t, 1, c.Overlays().Len())

	// rewritten on disk twice, the chest is still there once
	for i := 0; i < 2; i++ {
		c.ChunkUpdated("overworld", primitives.ChunkPos{X: 100, Z: 100})
		c.Redraw()
	}
	assert.Equal(t, 1, c.Overlays().Len())
	g = c.PropertiesAt(50, 50)
	require.Len(t, g, 1)
	assert.Len(t, g[0].Entries, 1)

	c.ClearCache()
	assert.Equal(t, 0, c.Overlays().Len())
	c.Redraw()
	assert.Equal(t, 1, c.Overlays().Len())
}

func TestChunkUpdated(t *testing.T) {
	c, dec, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetLocation(8, 8)
	c.Redraw()
	c.ChunkUpdated("the_end", primitives.ChunkPos{})
	c.Redraw()
	assert.Equal(t, 1, dec.count("overworld", 0, 0))
	c.ChunkUpdated("overworld", primitives.ChunkPos{})
	c.Redraw()
	assert.Equal(t, 2, dec.count("overworld", 0, 0))
}

func TestChunkUpdatedDuringRedraw(t *testing.T) {
	c, dec, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetZoom(16)
	c.SetLocation(8, 8)
	grass := c.Redraw().RGBAAt(50, 50)
	assert.Equal(t, 1, dec.count("overworld", 0, 0))
	c.ChunkUpdated("overworld", primitives.ChunkPos{})

	dec.mu.Lock()
	dec.entered = make(chan struct{}, 1)
	dec.gate = make(chan struct{})
	dec.mu.Unlock()
	drawn := make(chan struct{})
	go func() {
		c.Redraw()
		close(drawn)
	}()
	<-dec.entered

	// the chunk changes while its old data is being decoded
	dec.mu.Lock()
	dec.top = "sand"
	dec.entered = nil
	dec.mu.Unlock()
	updated := make(chan struct{})
	go func() {
		c.ChunkUpdated("overworld", primitives.ChunkPos{})
		close(updated)
	}()
	select {
	case <-updated:
		t.Fatal("update did not wait for the running redraw")
	case <-time.After(50 * time.Millisecond):
	}
	close(dec.gate)
	<-drawn
	<-updated

	dec.mu.Lock()
	dec.gate = nil
	dec.mu.Unlock()
	sand := c.Redraw().RGBAAt(50, 50)
	assert.Equal(t, 3, dec.count("overworld", 0, 0))
	assert.NotEqual(t, grass, sand)
	assert.Contains(t, c.HoverAt(50, 50), "sand")
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := lac.NewConf()
	require.NoError(t, cfg.SetFromBytesJSON([]byte(`{"view": {"zoom": 0.5, "width": 320}}`)))
	opts := OptionsFromConfig(cfg.SubTree("view"))
	assert.Equal(t, 0.5, opts.Zoom)
	assert.Equal(t, 320, opts.Width)
	assert.Equal(t, DefaultHeight, opts.Height)

	opts = OptionsFromConfig(lac.NewConf().SubTree("view"))
	assert.Equal(t, DefaultZoom, opts.Zoom)
}

func TestMarkBlockScopedToDimension(t *testing.T) {
	c, _, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.MarkBlock("Search", primitives.PointBox(1, 2, 3), overlay.CategoryColor("Search"), "diamond", nil)
	assert.Equal(t, 1, c.Overlays().Len())
	require.NoError(t, c.SetDimension("the_end"))
	assert.Equal(t, 0, c.Overlays().Len())
	c.Unload()
	assert.Equal(t, Unloaded, c.LoadState())
}

func TestRenderConfigDropsEntityFlag(t *testing.T) {
	c, _, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetFlags(primitives.FlagLighting | primitives.FlagShowEntities)
	rc := c.RenderConfig()
	assert.Equal(t, primitives.FlagLighting, rc.Settings.Flags)
	assert.Equal(t, 319, rc.Settings.Depth)
	assert.Equal(t, "overworld", rc.Dimension.Name)
}

func TestMarkerMinimumSize(t *testing.T) {
	c, _, _ := newController(t)
	require.NoError(t, c.SetDimension("overworld"))
	c.SetZoom(0.5)
	r := markerRect(c.viewportLocked(), primitives.PointBox(0, 0, 0))
	assert.Equal(t, MinMarkerSize, r.Dx())
	assert.Equal(t, MinMarkerSize, r.Dy())
}
