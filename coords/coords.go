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

// Package coords converts between block, chunk and screen coordinates.
// Every function is pure, the viewport is passed by value.
package coords

import (
	"image"
	"math"

	"github.com/maxsupermanhd/chunkview/primitives"
)

const (
	ChunkSize = 16
	MinZoom   = 0.1
	MaxZoom   = 16.0
)

// WorldToChunk floor-divides block coordinates by the chunk edge.
func WorldToChunk(x, z int) (int, int) {
	return x >> 4, z >> 4
}

// InChunk returns block offset inside of its chunk.
func InChunk(x, z int) (int, int) {
	return x & (ChunkSize - 1), z & (ChunkSize - 1)
}

func WorldToChunkF(x, z float64) (int, int) {
	return int(math.Floor(x / ChunkSize)), int(math.Floor(z / ChunkSize))
}

// BlockAt returns integer block coordinates containing the point.
func BlockAt(x, z float64) (int, int) {
	return int(math.Floor(x)), int(math.Floor(z))
}

// ClampZoom keeps zoom inside of [MinZoom, MaxZoom], second
// return value reports if the value was changed.
func ClampZoom(zoom float64) (float64, bool) {
	if math.IsNaN(zoom) || zoom < MinZoom {
		return MinZoom, true
	}
	if zoom > MaxZoom {
		return MaxZoom, true
	}
	return zoom, false
}

// ToDimension maps overworld-relative coordinates into a dimension
// that has given scale (nether is 8).
func ToDimension(x, z, scale float64) (float64, float64) {
	if scale <= 0 {
		return x, z
	}
	return x / scale, z / scale
}

func FromDimension(x, z, scale float64) (float64, float64) {
	if scale <= 0 {
		return x, z
	}
	return x * scale, z * scale
}

type Viewport struct {
	CenterX, CenterZ float64
	Zoom             float64
	Width, Height    int
}

func (v Viewport) zoom() float64 {
	z, _ := ClampZoom(v.Zoom)
	return z
}

func (v Viewport) WorldToScreen(x, z float64) (float64, float64) {
	zm := v.zoom()
	return (x-v.CenterX)*zm + float64(v.Width)/2,
		(z-v.CenterZ)*zm + float64(v.Height)/2
}

func (v Viewport) ScreenToWorld(px, py float64) (float64, float64) {
	zm := v.zoom()
	return (px-float64(v.Width)/2)/zm + v.CenterX,
		(py-float64(v.Height)/2)/zm + v.CenterZ
}

// VisibleChunks returns inclusive chunk window covering the viewport.
func (v Viewport) VisibleChunks() (x0, z0, x1, z1 int) {
	wx0, wz0 := v.ScreenToWorld(0, 0)
	wx1, wz1 := v.ScreenToWorld(float64(v.Width), float64(v.Height))
	x0, z0 = WorldToChunkF(wx0, wz0)
	x1, z1 = WorldToChunkF(wx1, wz1)
	return
}

// ChunkRect is the screen rectangle covered by a chunk. Edges are
// rounded so that neighbouring chunks share borders without gaps.
func (v Viewport) ChunkRect(cx, cz int) image.Rectangle {
	return v.BlockRect(float64(cx*ChunkSize), float64(cz*ChunkSize), float64(cx*ChunkSize+ChunkSize), float64(cz*ChunkSize+ChunkSize))
}

// BlockRect maps a world rectangle (upper edge exclusive) to the screen.
func (v Viewport) BlockRect(x0, z0, x1, z1 float64) image.Rectangle {
	px0, py0 := v.WorldToScreen(x0, z0)
	px1, py1 := v.WorldToScreen(x1, z1)
	return image.Rect(int(math.Floor(px0)), int(math.Floor(py0)), int(math.Floor(px1)), int(math.Floor(py1)))
}

func (v Viewport) CenterChunk() primitives.ChunkPos {
	cx, cz := WorldToChunkF(v.CenterX, v.CenterZ)
	return primitives.ChunkPos{X: cx, Z: cz}
}

func (v Viewport) Bounds() image.Rectangle {
	return image.Rect(0, 0, v.Width, v.Height)
}
