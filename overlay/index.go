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

// Package overlay indexes annotated regions of the world (entities,
// structures, villages, search hits) for drawing and hit-testing.
package overlay

import (
	"image/color"
	"math"
	"sort"
	"sync"

	"github.com/maxsupermanhd/chunkview/primitives"
)

// Entry is immutable once inserted.
type Entry struct {
	Box        primitives.Box
	Category   string
	Label      string
	Color      color.NRGBA
	Properties map[string]any
	// Scope ties the entry to a dimension, empty scope survives
	// dimension switches.
	Scope string
}

// Group is every match of one category.
type Group struct {
	Category string
	Entries  []Entry
}

type cellKey struct {
	x, z int
}

// Index is a uniform grid keyed by box centre. Lookups scan
// maxRadius cells around the probe, which stays cheap while boxes
// are small. A range tree would replace it if huge boxes appear.
type Index struct {
	mu        sync.RWMutex
	cats      map[string]map[cellKey][]*Entry
	maxRadius float64
	count     int
}

func NewIndex() *Index {
	return &Index{cats: map[string]map[cellKey][]*Entry{}}
}

func keyOf(b primitives.Box) cellKey {
	cx, cz := b.Center()
	return cellKey{x: int(math.Floor(cx)), z: int(math.Floor(cz))}
}

// Insert normalizes the box and stores the entry.
func (i *Index) Insert(e Entry) {
	e.Box = e.Box.Normalized()
	hx, hz := e.Box.HalfExtents()
	k := keyOf(e.Box)
	i.mu.Lock()
	defer i.mu.Unlock()
	if hx > i.maxRadius {
		i.maxRadius = hx
	}
	if hz > i.maxRadius {
		i.maxRadius = hz
	}
	cells, ok := i.cats[e.Category]
	if !ok {
		cells = map[cellKey][]*Entry{}
		i.cats[e.Category] = cells
	}
	cells[k] = append(cells[k], &e)
	i.count++
}

// MaxQueryRadius only grows until Clear.
func (i *Index) MaxQueryRadius() float64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.maxRadius
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.count
}

// QueryNear returns entries crossing the column from y=0 to y at x, z.
func (i *Index) QueryNear(x, z, y float64) []Group {
	return i.QueryColumn(x, z, 0, y)
}

// QueryColumn returns entries whose box intersects the vertical
// segment [yLow, yHigh] at x, z, grouped by category name.
func (i *Index) QueryColumn(x, z, yLow, yHigh float64) []Group {
	probe := primitives.Box{X1: x, Y1: yLow, Z1: z, X2: x, Y2: yHigh, Z2: z}.Normalized()
	i.mu.RLock()
	defer i.mu.RUnlock()
	r := i.maxRadius
	x0, x1 := int(math.Floor(x-r)), int(math.Floor(x+r))
	z0, z1 := int(math.Floor(z-r)), int(math.Floor(z+r))
	ret := []Group{}
	for cat, cells := range i.cats {
		var found []Entry
		if len(cells) < (x1-x0+1)*(z1-z0+1) {
			for k, entries := range cells {
				if k.x < x0 || k.x > x1 || k.z < z0 || k.z > z1 {
					continue
				}
				found = appendHits(found, entries, probe)
			}
		} else {
			for ix := x0; ix <= x1; ix++ {
				for iz := z0; iz <= z1; iz++ {
					found = appendHits(found, cells[cellKey{x: ix, z: iz}], probe)
				}
			}
		}
		if len(found) > 0 {
			sortEntries(found)
			ret = append(ret, Group{Category: cat, Entries: found})
		}
	}
	sort.Slice(ret, func(a, b int) bool { return ret[a].Category < ret[b].Category })
	return ret
}

func appendHits(to []Entry, entries []*Entry, probe primitives.Box) []Entry {
	for _, e := range entries {
		if e.Box.Intersects(probe) {
			to = append(to, *e)
		}
	}
	return to
}

func sortEntries(e []Entry) {
	sort.SliceStable(e, func(a, b int) bool {
		if e[a].Box.X1 != e[b].Box.X1 {
			return e[a].Box.X1 < e[b].Box.X1
		}
		if e[a].Box.Z1 != e[b].Box.Z1 {
			return e[a].Box.Z1 < e[b].Box.Z1
		}
		return e[a].Box.Y1 < e[b].Box.Y1
	})
}

// Visible lists entries of enabled categories crossing the
// horizontal area [x0, x1] x [z0, z1].
func (i *Index) Visible(enabled func(category string) bool, x0, z0, x1, z1 float64) []Entry {
	area := primitives.Box{X1: x0, Y1: math.Inf(-1), Z1: z0, X2: x1, Y2: math.Inf(1), Z2: z1}.Normalized()
	i.mu.RLock()
	defer i.mu.RUnlock()
	ret := []Entry{}
	for cat, cells := range i.cats {
		if enabled != nil && !enabled(cat) {
			continue
		}
		for _, entries := range cells {
			ret = appendHits(ret, entries, area)
		}
	}
	sort.SliceStable(ret, func(a, b int) bool { return ret[a].Category < ret[b].Category })
	sortWithin(ret)
	return ret
}

func sortWithin(e []Entry) {
	start := 0
	for j := 1; j <= len(e); j++ {
		if j == len(e) || e[j].Category != e[start].Category {
			sortEntries(e[start:j])
			start = j
		}
	}
}

// Categories lists category names present in the index.
func (i *Index) Categories() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ret := make([]string, 0, len(i.cats))
	for k := range i.cats {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// ClearScope drops entries tied to scope. The query radius is
// recomputed from what is left.
func (i *Index) ClearScope(scope string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeLocked(func(e *Entry) bool {
		return e.Scope == scope
	})
}

// ClearScopeIn drops entries of scope lying entirely inside the
// horizontal area [x0, x1] x [z0, z1].
func (i *Index) ClearScopeIn(scope string, x0, z0, x1, z1 float64) {
	area := primitives.Box{X1: x0, Z1: z0, X2: x1, Z2: z1}.Normalized()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeLocked(func(e *Entry) bool {
		return e.Scope == scope &&
			e.Box.X1 >= area.X1 && e.Box.X2 <= area.X2 &&
			e.Box.Z1 >= area.Z1 && e.Box.Z2 <= area.Z2
	})
}

func (i *Index) removeLocked(drop func(e *Entry) bool) {
	i.maxRadius = 0
	i.count = 0
	for cat, cells := range i.cats {
		for k, entries := range cells {
			kept := entries[:0]
			for _, e := range entries {
				if drop(e) {
					continue
				}
				kept = append(kept, e)
				hx, hz := e.Box.HalfExtents()
				i.maxRadius = math.Max(i.maxRadius, math.Max(hx, hz))
			}
			if len(kept) == 0 {
				delete(cells, k)
			} else {
				cells[k] = kept
				i.count += len(kept)
			}
		}
		if len(cells) == 0 {
			delete(i.cats, cat)
		}
	}
}

func (i *Index) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cats = map[string]map[cellKey][]*Entry{}
	i.maxRadius = 0
	i.count = 0
}
