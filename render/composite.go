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
	"image/draw"

	"github.com/nfnt/resize"
)

// Composite scales tile to rect with nearest neighbour and draws it
// into dst. Rectangles smaller than a pixel are skipped.
func Composite(dst draw.Image, tile image.Image, rect image.Rectangle) {
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return
	}
	if !rect.Overlaps(dst.Bounds()) {
		return
	}
	src := tile
	if tile.Bounds().Dx() != rect.Dx() || tile.Bounds().Dy() != rect.Dy() {
		src = resize.Resize(uint(rect.Dx()), uint(rect.Dy()), tile, resize.NearestNeighbor)
	}
	draw.Draw(dst, rect, src, src.Bounds().Min, draw.Src)
}

// FillRect blends c over rect, used for overlay markers.
func FillRect(dst draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(dst, rect.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

// StrokeRect draws a one pixel outline of rect.
func StrokeRect(dst draw.Image, rect image.Rectangle, c color.Color) {
	if rect.Empty() {
		return
	}
	u := image.NewUniform(c)
	b := dst.Bounds()
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1),
		image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+1, rect.Min.X+1, rect.Max.Y-1),
		image.Rect(rect.Max.X-1, rect.Min.Y+1, rect.Max.X, rect.Max.Y-1),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(b), u, image.Point{}, draw.Over)
	}
}
