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

package search

import (
	"strings"

	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
)

// BlockSearch matches blocks whose name contains any of Names,
// ignoring case.
type BlockSearch struct {
	Names []string
	ids   map[uint16]string
}

func (b *BlockSearch) Init(defs *definitions.Table) error {
	b.ids = map[uint16]string{}
	for id := 0; id < defs.BlockCount(); id++ {
		if id == definitions.UnknownID {
			continue
		}
		name := defs.Block(uint16(id)).Name
		for _, n := range b.Names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" && strings.Contains(name, n) {
				b.ids[uint16(id)] = name
				break
			}
		}
	}
	if len(b.ids) == 0 {
		return ErrNothingToSearch
	}
	return nil
}

func (b *BlockSearch) SearchedFor() string {
	return strings.Join(b.Names, ", ")
}

func (b *BlockSearch) SearchChunk(ch *chunkSource.Chunk) []Result {
	var ret []Result
	for i := range ch.Columns {
		for _, r := range ch.Columns[i].Runs {
			name, ok := b.ids[r.Block]
			if !ok {
				continue
			}
			ret = append(ret, Result{
				X:      ch.Pos.X*16 + i%16,
				Z:      ch.Pos.Z*16 + i/16,
				Y:      r.Top,
				Bottom: r.Bottom,
				Name:   name,
			})
		}
	}
	return ret
}
