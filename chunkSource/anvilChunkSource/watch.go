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

package anvilChunkSource

import (
	"context"
	"path"
	"time"

	"github.com/Tnze/go-mc/save/region"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/primitives"
)

// WatchSettle is how long a region file has to stay quiet before it
// is rescanned, the game writes regions in several steps.
var WatchSettle = 500 * time.Millisecond

type sectorHashes map[primitives.ChunkPos]uint64

func (s *AnvilChunkSource) hashRegion(dimension string, rx, rz int) (sectorHashes, error) {
	reg, err := region.Open(s.getRegionPath(regionLocator{dimension: dimension, rx: rx, rz: rz}))
	if err != nil {
		return nil, err
	}
	defer reg.Close()
	ret := sectorHashes{}
	for z := 0; z < regionSize; z++ {
		for x := 0; x < regionSize; x++ {
			if !reg.ExistSector(x, z) {
				continue
			}
			d, err := reg.ReadSector(x, z)
			if err != nil {
				continue
			}
			ret[primitives.ChunkPos{X: rx*regionSize + x, Z: rz*regionSize + z}] = xxhash.Sum64(d)
		}
	}
	return ret, nil
}

// Watch reports chunks of a dimension that change on disk until ctx
// is done. Region files are compared sector by sector, so rewriting a
// region without touching a chunk does not report it.
func (s *AnvilChunkSource) Watch(ctx context.Context, dimension string, changed func(primitives.ChunkPos)) error {
	folder := s.getRegionFolder(dimension)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(folder); err != nil {
		watcher.Close()
		return err
	}
	known := map[[2]int]sectorHashes{}
	regions, err := s.listRegions(dimension)
	if err != nil {
		watcher.Close()
		return err
	}
	for _, rg := range regions {
		h, err := s.hashRegion(dimension, rg[0], rg[1])
		if err != nil {
			s.logger.Printf("Failed to scan region %v of %s: %v", rg, dimension, err)
			continue
		}
		known[rg] = h
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		watcher.Close()
		return chunkSource.ErrSourceClosed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer watcher.Close()
		pending := map[[2]int]time.Time{}
		settle := time.NewTicker(WatchSettle / 2)
		defer settle.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Printf("Watcher error on %s: %v", folder, err)
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				var rx, rz int
				if !ExtractRegionPath(path.Base(ev.Name), &rx, &rz) {
					continue
				}
				pending[[2]int{rx, rz}] = time.Now()
			case <-settle.C:
				for rg, at := range pending {
					if time.Since(at) < WatchSettle {
						continue
					}
					delete(pending, rg)
					h, err := s.hashRegion(dimension, rg[0], rg[1])
					if err != nil {
						s.logger.Printf("Failed to rescan region %v of %s: %v", rg, dimension, err)
						continue
					}
					s.Forget(dimension, rg[0], rg[1])
					old := known[rg]
					for p, v := range h {
						if ov, ok := old[p]; !ok || ov != v {
							changed(p)
						}
					}
					for p := range old {
						if _, ok := h[p]; !ok {
							changed(p)
						}
					}
					known[rg] = h
				}
			}
		}
	}()
	return nil
}
