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

package primitives

import (
	"fmt"
	"strings"
)

type ChunkPos struct {
	X, Z int
}

func (p ChunkPos) String() string {
	return fmt.Sprintf("%dx %dz", p.X, p.Z)
}

// DistanceSq is the squared chunk distance between two positions.
func (p ChunkPos) DistanceSq(o ChunkPos) int {
	dx := p.X - o.X
	dz := p.Z - o.Z
	return dx*dx + dz*dz
}

// Box is an axis-aligned region in block coordinates, both corners inclusive.
type Box struct {
	X1, Y1, Z1 float64
	X2, Y2, Z2 float64
}

func PointBox(x, y, z float64) Box {
	return Box{X1: x, Y1: y, Z1: z, X2: x, Y2: y, Z2: z}
}

// Normalized returns the box with every lower corner coordinate
// less or equal to the upper one.
func (b Box) Normalized() Box {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	if b.Z1 > b.Z2 {
		b.Z1, b.Z2 = b.Z2, b.Z1
	}
	return b
}

func (b Box) Intersects(o Box) bool {
	return b.X1 <= o.X2 && b.X2 >= o.X1 &&
		b.Y1 <= o.Y2 && b.Y2 >= o.Y1 &&
		b.Z1 <= o.Z2 && b.Z2 >= o.Z1
}

func (b Box) Center() (x, z float64) {
	return (b.X1 + b.X2) / 2, (b.Z1 + b.Z2) / 2
}

// HalfExtents expects a normalized box.
func (b Box) HalfExtents() (hx, hz float64) {
	return (b.X2 - b.X1) / 2, (b.Z2 - b.Z1) / 2
}

func (b Box) String() string {
	return fmt.Sprintf("[%g %g %g]-[%g %g %g]", b.X1, b.Y1, b.Z1, b.X2, b.Y2, b.Z2)
}

type RenderFlags uint8

const (
	FlagLighting RenderFlags = 1 << iota
	FlagMobSpawn
	FlagCaveMode
	FlagDepthShading
	FlagShowEntities
)

var flagNames = []struct {
	f RenderFlags
	n string
}{
	{FlagLighting, "lighting"},
	{FlagMobSpawn, "mobspawn"},
	{FlagCaveMode, "cave"},
	{FlagDepthShading, "depthshading"},
	{FlagShowEntities, "entities"},
}

func (f RenderFlags) Has(o RenderFlags) bool {
	return f&o == o
}

func (f RenderFlags) String() string {
	s := []string{}
	for _, v := range flagNames {
		if f.Has(v.f) {
			s = append(s, v.n)
		}
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, "+")
}

// ParseRenderFlags accepts names joined with "+" or ",", as produced by String.
func ParseRenderFlags(s string) (RenderFlags, error) {
	var f RenderFlags
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return 0, nil
	}
nextName:
	for _, n := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
		n = strings.ToLower(strings.TrimSpace(n))
		for _, v := range flagNames {
			if v.n == n {
				f |= v.f
				continue nextName
			}
		}
		return f, fmt.Errorf("unknown render flag %q", n)
	}
	return f, nil
}

// TileKey identifies one rasterized chunk tile.
type TileKey struct {
	Dimension string
	Pos       ChunkPos
	Flags     RenderFlags
	Depth     int
}

func (k TileKey) String() string {
	return fmt.Sprintf("{%s at %s %s d%d}", k.Dimension, k.Pos.String(), k.Flags.String(), k.Depth)
}
