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

// Package imageCache keeps rasterized chunk tiles keyed by everything
// that affects their pixels.
package imageCache

import (
	"container/list"
	"image"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/lac"
)

const DefaultMaxTiles = 8192

type chunkLoc struct {
	dimension string
	pos       primitives.ChunkPos
}

type cachedTile struct {
	key primitives.TileKey
	img *image.RGBA
}

type ImageCache struct {
	logger   *log.Logger
	maxTiles int

	mu      sync.Mutex
	tiles   map[primitives.TileKey]*list.Element
	byChunk map[chunkLoc]map[primitives.TileKey]struct{}
	backlog *list.List

	statHits   atomic.Uint64
	statMisses atomic.Uint64
}

func NewImageCache(logger *log.Logger, maxTiles int) *ImageCache {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	return &ImageCache{
		logger:   logger,
		maxTiles: maxTiles,
		tiles:    map[primitives.TileKey]*list.Element{},
		byChunk:  map[chunkLoc]map[primitives.TileKey]struct{}{},
		backlog:  list.New(),
	}
}

// MaxTilesFromConfig reads the tile bound, non-positive values fall
// back to DefaultMaxTiles.
func MaxTilesFromConfig(l *log.Logger, cfg *lac.ConfSubtree) int {
	return gtzero(l, cfg, DefaultMaxTiles, "maxTiles")
}

func (c *ImageCache) Get(key primitives.TileKey) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.tiles[key]
	if !ok {
		c.statMisses.Add(1)
		return nil, false
	}
	c.statHits.Add(1)
	c.backlog.MoveToFront(e)
	return e.Value.(*cachedTile).img, true
}

// Put stores img, tiles must not be modified afterwards.
func (c *ImageCache) Put(key primitives.TileKey, img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.tiles[key]; ok {
		e.Value.(*cachedTile).img = img
		c.backlog.MoveToFront(e)
		return
	}
	c.tiles[key] = c.backlog.PushFront(&cachedTile{key: key, img: img})
	l := chunkLoc{dimension: key.Dimension, pos: key.Pos}
	s, ok := c.byChunk[l]
	if !ok {
		s = map[primitives.TileKey]struct{}{}
		c.byChunk[l] = s
	}
	s[key] = struct{}{}
	for c.backlog.Len() > c.maxTiles {
		c.removeLocked(c.backlog.Back())
	}
}

func (c *ImageCache) removeLocked(e *list.Element) {
	t := c.backlog.Remove(e).(*cachedTile)
	delete(c.tiles, t.key)
	l := chunkLoc{dimension: t.key.Dimension, pos: t.key.Pos}
	if s, ok := c.byChunk[l]; ok {
		delete(s, t.key)
		if len(s) == 0 {
			delete(c.byChunk, l)
		}
	}
}

// InvalidateChunk drops tiles of a chunk for every flag and depth combination.
func (c *ImageCache) InvalidateChunk(dimension string, pos primitives.ChunkPos) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byChunk[chunkLoc{dimension: dimension, pos: pos}]
	if !ok {
		return
	}
	for k := range s {
		if e, ok := c.tiles[k]; ok {
			c.removeLocked(e)
		}
	}
}

func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles = map[primitives.TileKey]*list.Element{}
	c.byChunk = map[chunkLoc]map[primitives.TileKey]struct{}{}
	c.backlog.Init()
}

func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backlog.Len()
}

func (c *ImageCache) GetStats() map[string]any {
	return map[string]any{
		"cached tiles": c.Len(),
		"max tiles":    c.maxTiles,
		"hits":         c.statHits.Load(),
		"misses":       c.statMisses.Load(),
	}
}

func gtzero(l *log.Logger, c *lac.ConfSubtree, d int, p ...string) int {
	v := c.GetDSInt(d, p...)
	if v > 0 {
		return v
	}
	l.Printf("Negative %v, defaulting to %d!", p, d)
	return d
}
