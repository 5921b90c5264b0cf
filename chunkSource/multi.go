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

	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/chunkview/primitives"
)

// Multi asks sources in order, the first one that has the chunk wins.
type Multi []Source

func (m Multi) DecodeChunk(dimension string, cx, cz int) (*Chunk, error) {
	for _, s := range m {
		ch, err := s.DecodeChunk(dimension, cx, cz)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoDimension) {
			continue
		}
		return ch, err
	}
	return nil, ErrNotFound
}

// ListChunks merges listings of all sources. Failing sources do not
// hide chunks of the others, their errors are returned together.
func (m Multi) ListChunks(dimension string) ([]primitives.ChunkPos, error) {
	seen := map[primitives.ChunkPos]struct{}{}
	var errs *multierror.Error
	missing := 0
	for _, s := range m {
		l, err := s.ListChunks(dimension)
		if errors.Is(err, ErrNoDimension) {
			missing++
			continue
		}
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		for _, p := range l {
			seen[p] = struct{}{}
		}
	}
	if missing == len(m) {
		return []primitives.ChunkPos{}, ErrNoDimension
	}
	ret := make([]primitives.ChunkPos, 0, len(seen))
	for p := range seen {
		ret = append(ret, p)
	}
	SortPositions(ret)
	return ret, errs.ErrorOrNil()
}

func (m Multi) Close() error {
	var errs *multierror.Error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// SortPositions orders by Z then X, the order rows are exported in.
func SortPositions(p []primitives.ChunkPos) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].Z != p[j].Z {
			return p[i].Z < p[j].Z
		}
		return p[i].X < p[j].X
	})
}
