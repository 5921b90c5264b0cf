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

package chunkSource

import (
	"fmt"
	"sort"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/save"
	"github.com/maxsupermanhd/chunkview/primitives"
)

const (
	sectionVolume = 16 * 16 * 16
	biomeVolume   = 4 * 4 * 4
)

// LoadRaw parses region sector data (compression byte followed by
// compressed NBT) into a go-mc chunk.
func LoadRaw(d []byte) (*save.Chunk, error) {
	if len(d) < 2 {
		return nil, fmt.Errorf("%w: sector too short (%d bytes)", ErrMalformed, len(d))
	}
	switch d[0] {
	case 1, 2, 3:
	default:
		return nil, fmt.Errorf("%w %d", ErrBadCompressed, d[0])
	}
	ret := &save.Chunk{}
	if err := ret.Load(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ret, nil
}

// bitsFor finds entry width of a packed array that does not span longs.
func bitsFor(length, dataLen int) int {
	if dataLen == 0 {
		return 0
	}
	for bits := 1; bits <= 32; bits++ {
		perLong := 64 / bits
		if (length+perLong-1)/perLong == dataLen {
			return bits
		}
	}
	return -1
}

type paletted struct {
	palette []uint16
	storage *level.BitStorage
}

func newPaletted(palette []uint16, data []uint64, length int) (paletted, error) {
	if len(palette) == 0 {
		return paletted{}, fmt.Errorf("%w: empty palette", ErrMalformed)
	}
	// single entry palettes are uniform whatever data says
	if len(palette) == 1 {
		return paletted{palette: palette}, nil
	}
	bits := bitsFor(length, len(data))
	if bits < 0 {
		return paletted{}, fmt.Errorf("%w: %d longs can not hold %d entries", ErrMalformed, len(data), length)
	}
	p := paletted{palette: palette}
	if bits > 0 {
		p.storage = level.NewBitStorage(bits, length, data)
	}
	return p, nil
}

func (p paletted) get(i int) uint16 {
	if p.storage == nil {
		return p.palette[0]
	}
	v := p.storage.Get(i)
	if v < 0 || v >= len(p.palette) {
		return 0
	}
	return p.palette[v]
}

func nibble(arr []byte, i int, def uint8) uint8 {
	if len(arr) != sectionVolume/2 {
		return def
	}
	return (arr[i/2] >> (4 * (i % 2))) & 0x0F
}

// FromSave converts paletted sections of a 1.18+ chunk into columns.
// Absent sections read as air lit by the sky.
func FromSave(c *save.Chunk, res Resolver) (ret *Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()
	ret = &Chunk{Pos: primitives.ChunkPos{X: int(c.XPos), Z: int(c.ZPos)}}
	if len(c.Sections) == 0 {
		return ret, nil
	}
	sections := make([]save.Section, len(c.Sections))
	copy(sections, c.Sections)
	sort.Slice(sections, func(i, j int) bool { return sections[i].Y > sections[j].Y })
	ret.MaxY = int(sections[0].Y)*16 + 15
	ret.MinY = int(sections[len(sections)-1].Y) * 16
	air := res.BlockID("minecraft:air")
	expect := int(sections[0].Y)
	for _, s := range sections {
		for ; expect > int(s.Y); expect-- {
			for i := range ret.Columns {
				for y := 15; y >= 0; y-- {
					ret.Columns[i].push(expect*16+y, Run{Block: air, SkyLight: 15})
				}
			}
		}
		expect = int(s.Y) - 1
		if err := pushSection(ret, s, res, air); err != nil {
			return nil, fmt.Errorf("section %d: %w", s.Y, err)
		}
	}
	ret.Features = blockEntities(c)
	return ret, nil
}

func pushSection(ret *Chunk, s save.Section, res Resolver, air uint16) error {
	bp := make([]uint16, len(s.BlockStates.Palette))
	for i, v := range s.BlockStates.Palette {
		bp[i] = res.BlockID(v.Name)
	}
	// light-only sections carry no block states
	if len(bp) == 0 {
		bp = []uint16{air}
	}
	blocks, err := newPaletted(bp, s.BlockStates.Data, sectionVolume)
	if err != nil {
		return fmt.Errorf("block states: %w", err)
	}
	biomes := paletted{palette: []uint16{0}}
	if len(s.Biomes.Palette) > 0 {
		pp := make([]uint16, len(s.Biomes.Palette))
		for i, v := range s.Biomes.Palette {
			pp[i] = res.BiomeID(string(v))
		}
		biomes, err = newPaletted(pp, s.Biomes.Data, biomeVolume)
		if err != nil {
			return fmt.Errorf("biomes: %w", err)
		}
	}
	base := int(s.Y) * 16
	for y := 15; y >= 0; y-- {
		for z := 0; z < 16; z++ {
			for x := 0; x < 16; x++ {
				i := y*256 + z*16 + x
				ret.Columns[z*16+x].push(base+y, Run{
					Block:      blocks.get(i),
					Biome:      biomes.get((y/4)*16 + (z/4)*4 + x/4),
					SkyLight:   nibble(s.SkyLight, i, 15),
					BlockLight: nibble(s.BlockLight, i, 0),
				})
			}
		}
	}
	return nil
}

func blockEntities(c *save.Chunk) []Feature {
	ret := []Feature{}
	for _, raw := range c.BlockEntities {
		var head struct {
			ID string `nbt:"id"`
			X  int32  `nbt:"x"`
			Y  int32  `nbt:"y"`
			Z  int32  `nbt:"z"`
		}
		if err := raw.Unmarshal(&head); err != nil || head.ID == "" {
			continue
		}
		props := map[string]any{}
		if err := raw.Unmarshal(&props); err != nil {
			props = map[string]any{"id": head.ID}
		}
		ret = append(ret, Feature{
			ID:         head.ID,
			X:          int(head.X),
			Y:          int(head.Y),
			Z:          int(head.Z),
			Properties: props,
		})
	}
	return ret
}
