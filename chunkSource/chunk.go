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
	"errors"
	"sort"

	"github.com/maxsupermanhd/chunkview/primitives"
)

var (
	ErrNotFound      = errors.New("chunk not found")
	ErrMalformed     = errors.New("malformed chunk data")
	ErrNoDimension   = errors.New("dimension not found")
	ErrNotSupported  = errors.New("not supported by this source")
	ErrSourceClosed  = errors.New("chunk source is closed")
	ErrBadCompressed = errors.New("unknown compression")
)

// Decoder produces render data for a single chunk. Ungenerated chunks
// are reported with ErrNotFound.
type Decoder interface {
	DecodeChunk(dimension string, cx, cz int) (*Chunk, error)
}

// Lister enumerates chunks present in a dimension.
type Lister interface {
	ListChunks(dimension string) ([]primitives.ChunkPos, error)
}

type Source interface {
	Decoder
	Lister
	Close() error
}

// Resolver maps namespaced ids from the save format to numeric ids
// of the definition table.
type Resolver interface {
	BlockID(name string) uint16
	BiomeID(name string) uint16
}

// Run is a vertical stretch of identical cells in a column,
// Top and Bottom are both inclusive.
type Run struct {
	Top, Bottom int
	Block       uint16
	Biome       uint16
	SkyLight    uint8
	BlockLight  uint8
}

func (r Run) sameCell(o Run) bool {
	return r.Block == o.Block && r.Biome == o.Biome && r.SkyLight == o.SkyLight && r.BlockLight == o.BlockLight
}

// Column holds runs ordered from the top of the world down.
type Column struct {
	Runs []Run
}

// At returns the run covering height y.
func (c Column) At(y int) (Run, bool) {
	i := sort.Search(len(c.Runs), func(i int) bool {
		return c.Runs[i].Bottom <= y
	})
	if i >= len(c.Runs) || c.Runs[i].Top < y {
		return Run{}, false
	}
	return c.Runs[i], true
}

// Top is the highest stored height of the column.
func (c Column) Top() (int, bool) {
	if len(c.Runs) == 0 {
		return 0, false
	}
	return c.Runs[0].Top, true
}

// push appends a single cell below the current bottom, merging it
// into the last run when possible.
func (c *Column) push(y int, cell Run) {
	if l := len(c.Runs); l > 0 && c.Runs[l-1].Bottom == y+1 && c.Runs[l-1].sameCell(cell) {
		c.Runs[l-1].Bottom = y
		return
	}
	cell.Top, cell.Bottom = y, y
	c.Runs = append(c.Runs, cell)
}

// Feature is a block entity found in the chunk.
type Feature struct {
	ID         string
	X, Y, Z    int
	Properties map[string]any
}

// Chunk is decoded render data. Columns are indexed by z*16+x.
// Missing chunks stand in for ungenerated or undecodable ones.
type Chunk struct {
	Pos      primitives.ChunkPos
	MinY     int
	MaxY     int
	Columns  [256]Column
	Features []Feature
	Missing  bool
}

func Placeholder(pos primitives.ChunkPos) *Chunk {
	return &Chunk{Pos: pos, Missing: true}
}

func (c *Chunk) Column(x, z int) *Column {
	return &c.Columns[(z&15)*16+(x&15)]
}
