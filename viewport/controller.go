/*
	ChunkView, block game map viewer
	Copyright (C) 2022 Maxim Zhuchkov

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.

	Contact me via mail: q3.max.2011@yandex.ru or Discord: MaX#6717
*/

// Package viewport owns pan, zoom, depth and flags of the map view
// and turns them into a composited image.
package viewport

import (
	"image"
	"image/color"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/maxsupermanhd/chunkview/chunkCache"
	"github.com/maxsupermanhd/chunkview/coords"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/imageCache"
	"github.com/maxsupermanhd/chunkview/overlay"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/chunkview/render"
	"github.com/maxsupermanhd/lac"
)

type LoadState int

const (
	Unloaded LoadState = iota
	Loaded
)

func (s LoadState) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "unloaded"
}

const (
	DefaultWidth  = 800
	DefaultHeight = 600
	DefaultZoom   = 1.0
	// MinMarkerSize is the smallest on-screen overlay marker in pixels.
	MinMarkerSize = 10
)

// Callbacks are invoked without holding controller locks, any of
// them may be nil.
type Callbacks struct {
	HoverTextChanged  func(text string)
	DemandDepthChange func(depth int)
	ShowProperties    func(x, y, z int, groups []overlay.Group)
	FoundSpecialBlock func(e overlay.Entry)
	DimensionChanged  func(dim definitions.Dimension)
	RedrawNeeded      func()
}

type Options struct {
	Width, Height int
	Zoom          float64
}

func OptionsFromConfig(cfg *lac.ConfSubtree) Options {
	return Options{
		Width:  cfg.GetDSInt(DefaultWidth, "width"),
		Height: cfg.GetDSInt(DefaultHeight, "height"),
		Zoom:   cfg.GetDSFloat64(DefaultZoom, "zoom"),
	}
}

// ViewState is a snapshot of the controller state.
type ViewState struct {
	State      string               `json:"state"`
	Dimension  definitions.Dimension `json:"dimension"`
	CenterX    float64              `json:"centerX"`
	CenterZ    float64              `json:"centerZ"`
	Zoom       float64              `json:"zoom"`
	Depth      int                  `json:"depth"`
	Flags      string               `json:"flags"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Categories []string             `json:"categories"`
}

// RenderConfig is a private copy of what determines rendered pixels.
type RenderConfig struct {
	Dimension definitions.Dimension
	Settings  render.Settings
}

type Controller struct {
	logger   *log.Logger
	defs     *definitions.Table
	chunks   *chunkCache.ChunkCache
	tiles    *imageCache.ImageCache
	rast     *render.Rasterizer
	overlays *overlay.Index
	cb       Callbacks

	mu         sync.Mutex
	state      LoadState
	dim        definitions.Dimension
	centerX    float64
	centerZ    float64
	zoom       float64
	depth      int
	flags      primitives.RenderFlags
	width      int
	height     int
	enabled    map[string]bool
	discovered map[primitives.ChunkPos]bool
	lastHover  string

	renderMu    sync.Mutex
	img         *image.RGBA
	placeholder *image.RGBA
}

func New(logger *log.Logger, defs *definitions.Table, chunks *chunkCache.ChunkCache, tiles *imageCache.ImageCache, overlays *overlay.Index, opts Options, cb Callbacks) *Controller {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Zoom <= 0 {
		opts.Zoom = DefaultZoom
	}
	zoom, _ := coords.ClampZoom(opts.Zoom)
	if tiles == nil {
		tiles = imageCache.NewImageCache(logger, 0)
	}
	if overlays == nil {
		overlays = overlay.NewIndex()
	}
	ph := image.NewRGBA(image.Rect(0, 0, render.TileSize, render.TileSize))
	render.PaintPlaceholder(ph)
	c := &Controller{
		logger:      logger,
		defs:        defs,
		chunks:      chunks,
		tiles:       tiles,
		rast:        render.NewRasterizer(defs),
		overlays:    overlays,
		cb:          cb,
		zoom:        zoom,
		width:       opts.Width,
		height:      opts.Height,
		enabled:     map[string]bool{},
		discovered:  map[primitives.ChunkPos]bool{},
		placeholder: ph,
	}
	chunks.OnReady(c.chunkReady)
	return c
}

func (c *Controller) Overlays() *overlay.Index {
	return c.overlays
}

func (c *Controller) redrawNeeded() {
	if c.cb.RedrawNeeded != nil {
		c.cb.RedrawNeeded()
	}
}

// SetDimensionPath switches to the dimension stored under path,
// scale is used when the definition table does not know it.
func (c *Controller) SetDimensionPath(path string, scale float64) {
	d, err := c.defs.Dimension(path)
	if err != nil {
		d = definitions.Dimension{Name: path, Path: path, Scale: scale, MinY: 0, MaxY: 255}
	}
	if scale > 0 {
		d.Scale = scale
	}
	c.switchDimension(d)
}

// SetDimension selects a dimension from the definition table.
func (c *Controller) SetDimension(name string) error {
	d, err := c.defs.Dimension(name)
	if err != nil {
		return err
	}
	c.switchDimension(d)
	return nil
}

func (c *Controller) switchDimension(d definitions.Dimension) {
	if d.Scale <= 0 {
		d.Scale = 1
	}
	c.mu.Lock()
	old := c.dim
	wasLoaded := c.state == Loaded
	if wasLoaded {
		// keep looking at the same physical place
		x, z := coords.FromDimension(c.centerX, c.centerZ, old.Scale)
		c.centerX, c.centerZ = coords.ToDimension(x, z, d.Scale)
	}
	c.dim = d
	c.state = Loaded
	depth, clamped := clampDepth(c.depth, d)
	if !wasLoaded {
		depth, clamped = d.MaxY, false
	}
	c.depth = depth
	c.discovered = map[primitives.ChunkPos]bool{}
	c.mu.Unlock()

	c.chunks.SetDimension(d.Name)
	c.chunks.Clear()
	c.tiles.Clear()
	if wasLoaded {
		c.overlays.ClearScope(old.Name)
		c.overlays.ClearScope(liveScope(old.Name))
	}
	c.logger.Printf("Switched to dimension %q (%s) scale %v", d.Name, d.Path, d.Scale)
	if clamped && c.cb.DemandDepthChange != nil {
		c.cb.DemandDepthChange(depth)
	}
	if c.cb.DimensionChanged != nil {
		c.cb.DimensionChanged(d)
	}
	c.redrawNeeded()
}

// Unload drops everything and goes back to the unloaded state.
func (c *Controller) Unload() {
	c.mu.Lock()
	c.state = Unloaded
	c.discovered = map[primitives.ChunkPos]bool{}
	c.mu.Unlock()
	c.chunks.Clear()
	c.tiles.Clear()
	c.overlays.Clear()
	c.redrawNeeded()
}

func clampDepth(depth int, d definitions.Dimension) (int, bool) {
	if depth < d.MinY {
		return d.MinY, true
	}
	if depth > d.MaxY {
		return d.MaxY, true
	}
	return depth, false
}

// SetLocation centres the view on overworld block coordinates.
func (c *Controller) SetLocation(x, z float64) {
	c.mu.Lock()
	c.centerX, c.centerZ = coords.ToDimension(x, z, c.dim.Scale)
	c.mu.Unlock()
	c.redrawNeeded()
}

// Location returns the centre in overworld coordinates.
func (c *Controller) Location() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return coords.FromDimension(c.centerX, c.centerZ, c.dim.Scale)
}

// Pan moves the view by screen pixels.
func (c *Controller) Pan(dx, dy float64) {
	c.mu.Lock()
	c.centerX += dx / c.zoom
	c.centerZ += dy / c.zoom
	c.mu.Unlock()
	c.redrawNeeded()
}

// SetZoom clamps and applies zoom, the second value reports clamping.
func (c *Controller) SetZoom(zoom float64) (float64, bool) {
	z, clamped := coords.ClampZoom(zoom)
	c.mu.Lock()
	c.zoom = z
	c.mu.Unlock()
	c.redrawNeeded()
	return z, clamped
}

func (c *Controller) ZoomBy(factor float64) (float64, bool) {
	c.mu.Lock()
	z := c.zoom * factor
	c.mu.Unlock()
	return c.SetZoom(z)
}

func (c *Controller) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	c.width, c.height = width, height
	c.mu.Unlock()
	c.redrawNeeded()
}

// SetDepth clamps depth to the dimension height range. When clamping
// happens DemandDepthChange is called with the accepted value.
func (c *Controller) SetDepth(depth int) (int, bool) {
	c.mu.Lock()
	d, clamped := clampDepth(depth, c.dim)
	c.depth = d
	c.mu.Unlock()
	if clamped && c.cb.DemandDepthChange != nil {
		c.cb.DemandDepthChange(d)
	}
	c.redrawNeeded()
	return d, clamped
}

func (c *Controller) MoveDepth(delta int) (int, bool) {
	c.mu.Lock()
	d := c.depth + delta
	c.mu.Unlock()
	return c.SetDepth(d)
}

// SetFlags only changes how tiles are painted, decoded chunks stay.
func (c *Controller) SetFlags(flags primitives.RenderFlags) {
	c.mu.Lock()
	c.flags = flags
	c.mu.Unlock()
	c.redrawNeeded()
}

func (c *Controller) Flags() primitives.RenderFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// ClearCache forgets decoded chunks, tiles and live discoveries of
// the current dimension.
func (c *Controller) ClearCache() {
	c.mu.Lock()
	dim := c.dim.Name
	c.discovered = map[primitives.ChunkPos]bool{}
	c.mu.Unlock()
	c.chunks.Clear()
	c.tiles.Clear()
	c.overlays.ClearScope(liveScope(dim))
	c.redrawNeeded()
}

// ChunkUpdated handles an on-disk change of a single chunk. It waits
// for a running redraw so no tile of the old data is stored after it.
func (c *Controller) ChunkUpdated(dimension string, pos primitives.ChunkPos) {
	c.renderMu.Lock()
	c.mu.Lock()
	cur := c.dim.Name
	if cur == dimension {
		delete(c.discovered, pos)
	}
	c.mu.Unlock()
	if cur != dimension {
		c.renderMu.Unlock()
		return
	}
	c.chunks.Invalidate(pos.X, pos.Z)
	c.tiles.InvalidateChunk(dimension, pos)
	x0, z0 := float64(pos.X*coords.ChunkSize), float64(pos.Z*coords.ChunkSize)
	c.overlays.ClearScopeIn(liveScope(dimension), x0, z0, x0+coords.ChunkSize-1, z0+coords.ChunkSize-1)
	c.renderMu.Unlock()
	c.redrawNeeded()
}

func (c *Controller) chunkReady(pos primitives.ChunkPos) {
	c.mu.Lock()
	dim := c.dim.Name
	c.mu.Unlock()
	c.tiles.InvalidateChunk(dim, pos)
	c.redrawNeeded()
}

// AddSpecialBlockType enables drawing and hit-testing of a category.
func (c *Controller) AddSpecialBlockType(category string) {
	c.mu.Lock()
	c.enabled[category] = true
	c.mu.Unlock()
	c.redrawNeeded()
}

func (c *Controller) ClearSpecialBlockTypes() {
	c.mu.Lock()
	c.enabled = map[string]bool{}
	c.mu.Unlock()
	c.redrawNeeded()
}

func (c *Controller) categoryEnabled(category string) bool {
	return c.enabled[category]
}

// MarkBlock puts an annotation of the current dimension on the map.
func (c *Controller) MarkBlock(category string, box primitives.Box, col color.NRGBA, label string, props map[string]any) {
	c.mu.Lock()
	scope := c.dim.Name
	c.mu.Unlock()
	c.mark(overlay.Entry{
		Box:        box,
		Category:   category,
		Label:      label,
		Color:      col,
		Properties: props,
		Scope:      scope,
	})
}

func (c *Controller) mark(e overlay.Entry) {
	if e.Color == (color.NRGBA{}) {
		e.Color = overlay.ColorFor(e.Category, e.Properties)
	}
	c.overlays.Insert(e)
	if c.cb.FoundSpecialBlock != nil {
		c.cb.FoundSpecialBlock(e)
	}
	c.redrawNeeded()
}

func liveScope(dim string) string {
	return "live:" + dim
}

func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	cats := []string{}
	for k, v := range c.enabled {
		if v {
			cats = append(cats, k)
		}
	}
	sort.Strings(cats)
	return ViewState{
		State:      c.state.String(),
		Dimension:  c.dim,
		CenterX:    c.centerX,
		CenterZ:    c.centerZ,
		Zoom:       c.zoom,
		Depth:      c.depth,
		Flags:      c.flags.String(),
		Width:      c.width,
		Height:     c.height,
		Categories: cats,
	}
}

func (c *Controller) LoadState() LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RenderConfig returns a copy for workers that render on their own.
func (c *Controller) RenderConfig() RenderConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RenderConfig{
		Dimension: c.dim,
		Settings:  render.Settings{Flags: tileFlags(c.flags), Depth: c.depth},
	}
}

// tileFlags strips flags that do not change tile pixels.
func tileFlags(f primitives.RenderFlags) primitives.RenderFlags {
	return f &^ primitives.FlagShowEntities
}

func (c *Controller) viewportLocked() coords.Viewport {
	return coords.Viewport{
		CenterX: c.centerX,
		CenterZ: c.centerZ,
		Zoom:    c.zoom,
		Width:   c.width,
		Height:  c.height,
	}
}
