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

// Package anvilChunkSource reads chunks straight from region files of
// a world save directory.
package anvilChunkSource

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"regexp"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/primitives"
)

const regionSize = 32

type AnvilChunkSource struct {
	Root     string
	logger   *log.Logger
	res      chunkSource.Resolver
	requests chan regionRequest
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

func NewAnvilChunkSource(logger *log.Logger, root string, res chunkSource.Resolver) (*AnvilChunkSource, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	s := &AnvilChunkSource{
		Root:     root,
		logger:   logger,
		res:      res,
		requests: make(chan regionRequest, 128),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.regionRouter()
	return s, nil
}

func (s *AnvilChunkSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.requests)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// send hands a request to the router, results arrive on r.result.
func (s *AnvilChunkSource) send(r regionRequest) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return chunkSource.ErrSourceClosed
	}
	s.requests <- r
	return nil
}

func (s *AnvilChunkSource) DecodeChunk(dimension string, cx, cz int) (*chunkSource.Chunk, error) {
	d, err := s.ReadChunkRaw(dimension, cx, cz)
	if err != nil {
		return nil, err
	}
	c, err := chunkSource.LoadRaw(d)
	if err != nil {
		return nil, fmt.Errorf("chunk %d:%d: %w", cx, cz, err)
	}
	ret, err := chunkSource.FromSave(c, s.res)
	if err != nil {
		return nil, fmt.Errorf("chunk %d:%d: %w", cx, cz, err)
	}
	ret.Pos = primitives.ChunkPos{X: cx, Z: cz}
	return ret, nil
}

// ReadChunkRaw returns sector data of a chunk as stored in the region
// file: compression type byte followed by compressed NBT.
func (s *AnvilChunkSource) ReadChunkRaw(dimension string, cx, cz int) ([]byte, error) {
	if !s.hasDimension(dimension) {
		return nil, chunkSource.ErrNoDimension
	}
	r := make(chan interface{}, 2)
	err := s.send(regionRequest{
		op:        regionRouterGetChunk,
		dimension: dimension,
		cx:        cx,
		cz:        cz,
		result:    r,
	})
	if err != nil {
		return nil, err
	}
	switch v := (<-r).(type) {
	case error:
		return nil, v
	case []byte:
		return v, nil
	default:
		return nil, chunkSource.ErrNotFound
	}
}

func (s *AnvilChunkSource) regionChunks(dimension string, rx, rz int) ([]primitives.ChunkPos, error) {
	r := make(chan interface{}, 2)
	err := s.send(regionRequest{
		op:        regionRouterListChunks,
		dimension: dimension,
		cx:        rx * regionSize,
		cz:        rz * regionSize,
		result:    r,
	})
	if err != nil {
		return nil, err
	}
	switch v := (<-r).(type) {
	case error:
		return nil, v
	case []primitives.ChunkPos:
		return v, nil
	default:
		return []primitives.ChunkPos{}, nil
	}
}

// ListChunks enumerates chunks present in region files of a dimension.
// Unreadable regions are skipped and reported together.
func (s *AnvilChunkSource) ListChunks(dimension string) ([]primitives.ChunkPos, error) {
	ret := []primitives.ChunkPos{}
	regions, err := s.listRegions(dimension)
	if err != nil {
		return ret, err
	}
	var errs *multierror.Error
	for _, rg := range regions {
		l, err := s.regionChunks(dimension, rg[0], rg[1])
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("region %d %d: %w", rg[0], rg[1], err))
			continue
		}
		ret = append(ret, l...)
	}
	chunkSource.SortPositions(ret)
	return ret, errs.ErrorOrNil()
}

func (s *AnvilChunkSource) listRegions(dimension string) ([][2]int, error) {
	ents, err := os.ReadDir(s.getRegionFolder(dimension))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, chunkSource.ErrNoDimension
		}
		return nil, err
	}
	ret := [][2]int{}
	for _, e := range ents {
		var rx, rz int
		if e.IsDir() || !ExtractRegionPath(e.Name(), &rx, &rz) {
			continue
		}
		ret = append(ret, [2]int{rx, rz})
	}
	return ret, nil
}

func (s *AnvilChunkSource) hasDimension(dimension string) bool {
	fi, err := os.Stat(s.getRegionFolder(dimension))
	return err == nil && fi.IsDir()
}

// Forget drops an open handle of a region so the next read sees the
// file as it is on disk now.
func (s *AnvilChunkSource) Forget(dimension string, rx, rz int) {
	_ = s.send(regionRequest{
		op:        regionRouterForgetRegion,
		dimension: dimension,
		cx:        rx * regionSize,
		cz:        rz * regionSize,
	})
}

var (
	regionFnameRegexp = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)
)

func ExtractRegionPath(fname string, xx, zz *int) bool {
	r := regionFnameRegexp.FindAllStringSubmatch(fname, -1)
	if len(r) != 1 || len(r[0]) != 3 {
		return false
	}
	x, err := strconv.Atoi(r[0][1])
	if err != nil {
		return false
	}
	z, err := strconv.Atoi(r[0][2])
	if err != nil {
		return false
	}
	if xx != nil {
		*xx = x
	}
	if zz != nil {
		*zz = z
	}
	return true
}

// getRegionFolder maps registry dimension names to vanilla save
// folders, anything else is taken as a path relative to the world.
func (s *AnvilChunkSource) getRegionFolder(dimension string) string {
	switch dimension {
	case "overworld", "", ".":
		return path.Join(s.Root, "region")
	case "the_end":
		return path.Join(s.Root, "DIM1", "region")
	case "the_nether":
		return path.Join(s.Root, "DIM-1", "region")
	default:
		return path.Join(s.Root, path.Clean("/"+dimension), "region")
	}
}

func (s *AnvilChunkSource) getRegionPath(loc regionLocator) string {
	return path.Join(s.getRegionFolder(loc.dimension), fmt.Sprintf("r.%d.%d.mca", loc.rx, loc.rz))
}
