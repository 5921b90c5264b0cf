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

package render

import (
	"image"
	"image/color"
	"math"

	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/primitives"
)

const (
	TileSize = 16
	// MinBrightness keeps unlit blocks visible.
	MinBrightness = 0.2
	// DepthShadingFalloff is how far below the slice shading saturates.
	DepthShadingFalloff = 64
	// DepthShadingMax is the darkening at the end of the falloff window.
	DepthShadingMax = 0.75
)

var (
	SpawnTint    = color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0x80}
	VoidColor    = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	placeholderA = color.RGBA{R: 0x26, G: 0x26, B: 0x26, A: 0xff}
	placeholderB = color.RGBA{R: 0x3a, G: 0x3a, B: 0x3a, A: 0xff}
)

type Settings struct {
	Flags primitives.RenderFlags
	Depth int
}

// Rasterizer paints decoded chunks into tiles. Painting is a pure
// function of the chunk, the settings and the palette.
type Rasterizer struct {
	pal Palette
}

func NewRasterizer(pal Palette) *Rasterizer {
	return &Rasterizer{pal: pal}
}

// Paint renders a TileSize x TileSize tile, missing chunks get the
// placeholder pattern.
func (r *Rasterizer) Paint(ch *chunkSource.Chunk, s Settings) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	if ch == nil || ch.Missing {
		PaintPlaceholder(img)
		return img
	}
	cave := s.Flags.Has(primitives.FlagCaveMode)
	for z := 0; z < TileSize; z++ {
		for x := 0; x < TileSize; x++ {
			sf, ok := SurfaceAt(ch, x, z, s.Depth, cave, r.pal)
			if !ok {
				img.SetRGBA(x, z, VoidColor)
				continue
			}
			img.SetRGBA(x, z, r.Shade(sf, s))
		}
	}
	return img
}

// Shade turns a picked surface into the final pixel colour.
func (r *Rasterizer) Shade(sf Surface, s Settings) color.RGBA {
	c := r.pal.Lookup(sf.Block, sf.Biome).Color
	for i := len(sf.Layers) - 1; i >= 0; i-- {
		l := sf.Layers[i]
		a := r.pal.Lookup(l.Block, l.Biome)
		th := l.Thickness
		if th > 3 {
			th = 3
		}
		c = blend(c, a.Color, 1-math.Pow(1-a.Opacity, float64(th)))
	}
	k := 1.0
	if s.Flags.Has(primitives.FlagLighting) {
		k *= MinBrightness + (1-MinBrightness)*float64(sf.Light())/15
	}
	if s.Flags.Has(primitives.FlagDepthShading) {
		k *= DepthShade(sf.Y, s.Depth)
	}
	c = scale(c, k)
	if s.Flags.Has(primitives.FlagMobSpawn) && sf.Open && r.pal.IsSpawnSurface(sf.Block, sf.BlockLight) {
		c = blend(c, SpawnTint, float64(SpawnTint.A)/255)
	}
	return c
}

// DepthShade is 1 at the slice plane and falls off linearly to
// 1-DepthShadingMax at DepthShadingFalloff blocks below it.
func DepthShade(surfaceY, depth int) float64 {
	d := depth - surfaceY
	if d <= 0 {
		return 1
	}
	if d > DepthShadingFalloff {
		d = DepthShadingFalloff
	}
	return 1 - DepthShadingMax*float64(d)/DepthShadingFalloff
}

func blend(base, over color.RGBA, a float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(base.R)*(1-a) + float64(over.R)*a),
		G: uint8(float64(base.G)*(1-a) + float64(over.G)*a),
		B: uint8(float64(base.B)*(1-a) + float64(over.B)*a),
		A: 0xff,
	}
}

func scale(c color.RGBA, k float64) color.RGBA {
	if k >= 1 {
		return c
	}
	return color.RGBA{
		R: uint8(float64(c.R) * k),
		G: uint8(float64(c.G) * k),
		B: uint8(float64(c.B) * k),
		A: c.A,
	}
}

// PaintPlaceholder fills img with the "not generated" checker.
func PaintPlaceholder(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if ((x-b.Min.X)/4+(y-b.Min.Y)/4)%2 == 0 {
				img.SetRGBA(x, y, placeholderA)
			} else {
				img.SetRGBA(x, y, placeholderB)
			}
		}
	}
}
