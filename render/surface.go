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
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
)

// Palette is the part of the definition table rendering needs.
type Palette interface {
	Lookup(block, biome uint16) definitions.Appearance
	Block(id uint16) definitions.BlockDef
	IsSpawnSurface(id uint16, light uint8) bool
}

// maxLayers caps translucent layers blended over a surface.
const maxLayers = 4

// Layer is a translucent run lying above the surface.
type Layer struct {
	Block, Biome uint16
	Thickness    int
}

// Surface is the block a column shows from above.
type Surface struct {
	Y            int
	Block, Biome uint16
	// light of the cell right above the surface
	SkyLight, BlockLight uint8
	// the cell above is not solid
	Open   bool
	Layers []Layer
}

// Light is the brighter of sky and block light above the surface.
func (s Surface) Light() uint8 {
	if s.SkyLight > s.BlockLight {
		return s.SkyLight
	}
	return s.BlockLight
}

// SurfaceAt picks the visible block of column x, z at or below depth.
// In cave mode it looks past everything exposed to the sky and returns
// the first solid block under enclosed air.
func SurfaceAt(ch *chunkSource.Chunk, x, z, depth int, cave bool, pal Palette) (Surface, bool) {
	if ch == nil || ch.Missing {
		return Surface{}, false
	}
	col := ch.Column(x, z)
	ret := Surface{SkyLight: 15, Open: true}
	enclosed := false
	for _, r := range col.Runs {
		if r.Bottom > depth {
			continue
		}
		top := r.Top
		if top > depth {
			top = depth
		}
		def := pal.Block(r.Block)
		if def.Air {
			if r.SkyLight < 15 {
				enclosed = true
			}
			ret.SkyLight, ret.BlockLight, ret.Open = r.SkyLight, r.BlockLight, true
			continue
		}
		if cave && !enclosed {
			ret.Layers = ret.Layers[:0]
			ret.SkyLight, ret.BlockLight, ret.Open = r.SkyLight, r.BlockLight, !def.Solid
			continue
		}
		if def.Transparent {
			if len(ret.Layers) < maxLayers {
				ret.Layers = append(ret.Layers, Layer{Block: r.Block, Biome: r.Biome, Thickness: top - r.Bottom + 1})
			}
			ret.SkyLight, ret.BlockLight, ret.Open = r.SkyLight, r.BlockLight, true
			continue
		}
		if top < r.Top {
			// sliced through, the cell above is the same block
			ret.SkyLight, ret.BlockLight, ret.Open = r.SkyLight, r.BlockLight, !def.Solid
		}
		ret.Y = top
		ret.Block = r.Block
		ret.Biome = r.Biome
		return ret, true
	}
	return Surface{}, false
}
