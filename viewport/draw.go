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

package viewport

import (
	"fmt"
	"image"
	"strings"

	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/coords"
	"github.com/maxsupermanhd/chunkview/imageCache"
	"github.com/maxsupermanhd/chunkview/overlay"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/chunkview/render"
)

type frame struct {
	vp       coords.Viewport
	state    LoadState
	dim      string
	minY     int
	settings render.Settings
	entities bool
	enabled  map[string]bool
}

func (c *Controller) snapshot() frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	en := make(map[string]bool, len(c.enabled))
	for k, v := range c.enabled {
		en[k] = v
	}
	return frame{
		vp:       c.viewportLocked(),
		state:    c.state,
		dim:      c.dim.Name,
		minY:     c.dim.MinY,
		settings: render.Settings{Flags: tileFlags(c.flags), Depth: c.depth},
		entities: c.flags.Has(primitives.FlagShowEntities),
		enabled:  en,
	}
}

func (f frame) shows(category string) bool {
	if f.enabled[category] {
		return true
	}
	return f.entities && overlay.KindOf(category) == overlay.KindEntity
}

// Redraw composites visible chunks and overlays into a new image.
func (c *Controller) Redraw() *image.RGBA {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	f := c.snapshot()
	img := image.NewRGBA(f.vp.Bounds())
	render.FillRect(img, img.Bounds(), render.VoidColor)
	if f.state == Unloaded {
		c.img = img
		return img
	}
	c.chunks.SetCenter(f.vp.CenterChunk())
	x0, z0, x1, z1 := f.vp.VisibleChunks()
	var found []*chunkSource.Chunk
	for cz := z0; cz <= z1; cz++ {
		for cx := x0; cx <= x1; cx++ {
			ch := c.chunks.Get(cx, cz)
			render.Composite(img, c.tile(f.dim, ch, f.settings), f.vp.ChunkRect(cx, cz))
			if f.entities && !ch.Missing && len(ch.Features) > 0 {
				found = append(found, ch)
			}
		}
	}
	c.discover(f.dim, found)
	c.drawOverlays(img, f)
	c.img = img
	return img
}

// Image returns a copy of the last composited frame.
func (c *Controller) Image() *image.RGBA {
	c.renderMu.Lock()
	img := c.img
	c.renderMu.Unlock()
	if img == nil {
		return c.Redraw()
	}
	return imageCache.CopyRGBA(img)
}

func (c *Controller) tile(dim string, ch *chunkSource.Chunk, s render.Settings) *image.RGBA {
	if ch.Missing {
		return c.placeholder
	}
	key := primitives.TileKey{Dimension: dim, Pos: ch.Pos, Flags: s.Flags, Depth: s.Depth}
	if t, ok := c.tiles.Get(key); ok {
		return t
	}
	t := c.rast.Paint(ch, s)
	c.tiles.Put(key, t)
	return t
}

// discover turns block entities of freshly seen chunks into overlay
// entries. Every chunk is scanned once until invalidated.
func (c *Controller) discover(dim string, chunks []*chunkSource.Chunk) {
	if len(chunks) == 0 {
		return
	}
	c.mu.Lock()
	if c.dim.Name != dim {
		c.mu.Unlock()
		return
	}
	todo := chunks[:0]
	for _, ch := range chunks {
		if !c.discovered[ch.Pos] {
			c.discovered[ch.Pos] = true
			todo = append(todo, ch)
		}
	}
	c.mu.Unlock()
	for _, ch := range todo {
		for _, ft := range ch.Features {
			props := make(map[string]any, len(ft.Properties)+1)
			for k, v := range ft.Properties {
				props[k] = v
			}
			props["id"] = ft.ID
			c.overlays.Insert(overlay.Entry{
				Box:        primitives.PointBox(float64(ft.X), float64(ft.Y), float64(ft.Z)),
				Category:   overlay.KindEntity.String(),
				Label:      strings.TrimPrefix(ft.ID, "minecraft:"),
				Color:      overlay.EntityColor(props),
				Properties: props,
				Scope:      liveScope(dim),
			})
		}
	}
}

func (c *Controller) drawOverlays(img *image.RGBA, f frame) {
	wx0, wz0 := f.vp.ScreenToWorld(0, 0)
	wx1, wz1 := f.vp.ScreenToWorld(float64(f.vp.Width), float64(f.vp.Height))
	for _, e := range c.overlays.Visible(f.shows, wx0, wz0, wx1, wz1) {
		r := markerRect(f.vp, e.Box)
		render.FillRect(img, r, e.Color)
		edge := e.Color
		edge.A = 0xff
		render.StrokeRect(img, r, edge)
	}
}

// markerRect covers whole blocks of the box and is never smaller than
// MinMarkerSize pixels on either side.
func markerRect(vp coords.Viewport, b primitives.Box) image.Rectangle {
	r := vp.BlockRect(b.X1, b.Z1, b.X2+1, b.Z2+1)
	if d := MinMarkerSize - r.Dx(); d > 0 {
		r.Min.X -= d / 2
		r.Max.X = r.Min.X + MinMarkerSize
	}
	if d := MinMarkerSize - r.Dy(); d > 0 {
		r.Min.Y -= d / 2
		r.Max.Y = r.Min.Y + MinMarkerSize
	}
	return r
}

func (c *Controller) blockUnder(f frame, px, py int) (int, int) {
	wx, wz := f.vp.ScreenToWorld(float64(px)+0.5, float64(py)+0.5)
	return coords.BlockAt(wx, wz)
}

func (c *Controller) overlaysAt(f frame, bx, bz int) []overlay.Group {
	ret := []overlay.Group{}
	for _, g := range c.overlays.QueryColumn(float64(bx), float64(bz), float64(f.minY), float64(f.settings.Depth)) {
		if f.shows(g.Category) {
			ret = append(ret, g)
		}
	}
	return ret
}

// HoverAt describes what is under the screen pixel. Only chunks that
// are already decoded are looked at.
func (c *Controller) HoverAt(px, py int) string {
	f := c.snapshot()
	if f.state == Unloaded {
		return ""
	}
	bx, bz := c.blockUnder(f, px, py)
	text := fmt.Sprintf("X: %d Z: %d", bx, bz)
	cx, cz := coords.WorldToChunk(bx, bz)
	if ch, ok := c.chunks.Cached(cx, cz); ok && !ch.Missing {
		ix, iz := coords.InChunk(bx, bz)
		cave := f.settings.Flags.Has(primitives.FlagCaveMode)
		if sf, ok := render.SurfaceAt(ch, ix, iz, f.settings.Depth, cave, c.defs); ok {
			text += fmt.Sprintf(" Y: %d - %s - %s", sf.Y, c.defs.Block(sf.Block).Name, c.defs.Biome(sf.Biome).Name)
		}
	}
	for _, g := range c.overlaysAt(f, bx, bz) {
		for _, e := range g.Entries {
			label := e.Label
			if label == "" {
				label = g.Category
			}
			text += " - " + label
		}
	}
	c.mu.Lock()
	changed := text != c.lastHover
	c.lastHover = text
	c.mu.Unlock()
	if changed && c.cb.HoverTextChanged != nil {
		c.cb.HoverTextChanged(text)
	}
	return text
}

// PropertiesAt returns overlay records under the screen pixel down
// from the current depth.
func (c *Controller) PropertiesAt(px, py int) []overlay.Group {
	f := c.snapshot()
	if f.state == Unloaded {
		return []overlay.Group{}
	}
	bx, bz := c.blockUnder(f, px, py)
	groups := c.overlaysAt(f, bx, bz)
	if len(groups) > 0 && c.cb.ShowProperties != nil {
		c.cb.ShowProperties(bx, f.settings.Depth, bz, groups)
	}
	return groups
}
