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

// Package chunkCache keeps decoded chunks of one dimension around so
// redraws do not hit the decoder.
package chunkCache

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/lac"
)

const (
	DefaultWorkers        = 4
	DefaultQueueLen       = 256
	DefaultPriorityRadius = 4
)

type Options struct {
	// MaxEntries bounds the cache, entries farthest from the
	// centre are evicted first. Zero means unbounded.
	MaxEntries int
	// Async makes Get return a placeholder right away and
	// decode in background workers.
	Async          bool
	Workers        int
	QueueLen       int
	PriorityRadius int
}

func OptionsFromConfig(l *log.Logger, cfg *lac.ConfSubtree) Options {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return Options{
		MaxEntries:     cfg.GetDSInt(0, "maxEntries"),
		Async:          cfg.GetDSBool(true, "async"),
		Workers:        gtzero(l, cfg, DefaultWorkers, "workers"),
		QueueLen:       gtzero(l, cfg, DefaultQueueLen, "queueLen"),
		PriorityRadius: gtzero(l, cfg, DefaultPriorityRadius, "priorityRadius"),
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

type failKey struct {
	dimension string
	pos       primitives.ChunkPos
}

type Stats struct {
	Entries      int    `json:"entries"`
	Placeholders int    `json:"placeholders"`
	Pending      int    `json:"pending"`
	Decodes      uint64 `json:"decodes"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Evictions    uint64 `json:"evictions"`
	Dimension    string `json:"dimension"`
}

type ChunkCache struct {
	logger  *log.Logger
	dec     chunkSource.Decoder
	opts    Options
	onReady atomic.Pointer[func(primitives.ChunkPos)]

	mu          sync.Mutex
	dimension   string
	generation  uint64
	center      primitives.ChunkPos
	entries     map[primitives.ChunkPos]*chunkSource.Chunk
	// seq orders decode requests and invalidations. pending holds the
	// seq of the decode whose result is wanted, invalidated the seq of
	// the last Invalidate of a position.
	seq         uint64
	pending     map[primitives.ChunkPos]uint64
	invalidated map[primitives.ChunkPos]uint64
	failed      map[failKey]struct{}

	pipe *pipeline

	statDecodes   atomic.Uint64
	statHits      atomic.Uint64
	statMisses    atomic.Uint64
	statEvictions atomic.Uint64
}

func New(logger *log.Logger, dec chunkSource.Decoder, opts Options) *ChunkCache {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueLen <= 0 {
		opts.QueueLen = DefaultQueueLen
	}
	if opts.PriorityRadius <= 0 {
		opts.PriorityRadius = DefaultPriorityRadius
	}
	c := &ChunkCache{
		logger:  logger,
		dec:     dec,
		opts:    opts,
		entries:     map[primitives.ChunkPos]*chunkSource.Chunk{},
		pending:     map[primitives.ChunkPos]uint64{},
		invalidated: map[primitives.ChunkPos]uint64{},
		failed:      map[failKey]struct{}{},
	}
	if opts.Async {
		c.pipe = newPipeline(opts.Workers, opts.QueueLen, c.complete)
	}
	return c
}

// OnReady sets the function called after a background decode
// stored its result.
func (c *ChunkCache) OnReady(fn func(primitives.ChunkPos)) {
	c.onReady.Store(&fn)
}

// Close stops background workers and waits for them.
func (c *ChunkCache) Close() {
	if c.pipe != nil {
		c.pipe.close()
	}
}

func (c *ChunkCache) Dimension() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// SetDimension switches the decoded dimension, dropping every entry
// when it differs from the current one.
func (c *ChunkCache) SetDimension(dimension string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == dimension {
		return
	}
	c.dimension = dimension
	c.clearLocked()
}

// SetCenter updates the chunk eviction distance and decode priority
// are measured from.
func (c *ChunkCache) SetCenter(pos primitives.ChunkPos) {
	c.mu.Lock()
	c.center = pos
	c.mu.Unlock()
}

// Get returns the chunk at cx, cz. In async mode a miss returns a
// placeholder that is not stored and schedules a decode.
func (c *ChunkCache) Get(cx, cz int) *chunkSource.Chunk {
	pos := primitives.ChunkPos{X: cx, Z: cz}
	c.mu.Lock()
	if e, ok := c.entries[pos]; ok {
		c.mu.Unlock()
		c.statHits.Add(1)
		return e
	}
	c.statMisses.Add(1)
	dim, gen := c.dimension, c.generation
	c.seq++
	seq := c.seq
	if c.pipe != nil {
		if _, ok := c.pending[pos]; !ok {
			t := decodeTask{pos: pos, dimension: dim, generation: gen, seq: seq}
			if c.pipe.submit(t, pos.DistanceSq(c.center) <= c.opts.PriorityRadius*c.opts.PriorityRadius) {
				c.pending[pos] = seq
			}
		}
		c.mu.Unlock()
		return chunkSource.Placeholder(pos)
	}
	c.mu.Unlock()
	ch := c.decode(dim, pos)
	c.mu.Lock()
	if c.generation == gen && c.invalidated[pos] < seq {
		c.storeLocked(pos, ch)
	}
	c.mu.Unlock()
	return ch
}

// Cached returns an entry without ever decoding.
func (c *ChunkCache) Cached(cx, cz int) (*chunkSource.Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[primitives.ChunkPos{X: cx, Z: cz}]
	return e, ok
}

// Invalidate drops a single entry, placeholders included. Decodes
// started before it never store their result.
func (c *ChunkCache) Invalidate(cx, cz int) {
	pos := primitives.ChunkPos{X: cx, Z: cz}
	c.mu.Lock()
	c.seq++
	c.invalidated[pos] = c.seq
	delete(c.entries, pos)
	delete(c.pending, pos)
	c.mu.Unlock()
}

func (c *ChunkCache) Clear() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

func (c *ChunkCache) clearLocked() {
	c.generation++
	c.entries = map[primitives.ChunkPos]*chunkSource.Chunk{}
	c.pending = map[primitives.ChunkPos]uint64{}
	c.invalidated = map[primitives.ChunkPos]uint64{}
}

func (c *ChunkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ChunkCache) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		Entries:   len(c.entries),
		Pending:   len(c.pending),
		Dimension: c.dimension,
	}
	for _, e := range c.entries {
		if e.Missing {
			s.Placeholders++
		}
	}
	c.mu.Unlock()
	s.Decodes = c.statDecodes.Load()
	s.Hits = c.statHits.Load()
	s.Misses = c.statMisses.Load()
	s.Evictions = c.statEvictions.Load()
	return s
}

func (c *ChunkCache) decode(dimension string, pos primitives.ChunkPos) (ret *chunkSource.Chunk) {
	c.statDecodes.Add(1)
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("decoder panic: %v", r)
			}
		}()
		ret, err = c.dec.DecodeChunk(dimension, pos.X, pos.Z)
	}()
	if err == nil && ret != nil {
		ret.Pos = pos
		return ret
	}
	if err != nil && !errors.Is(err, chunkSource.ErrNotFound) {
		c.logFailure(dimension, pos, err)
	}
	return chunkSource.Placeholder(pos)
}

func (c *ChunkCache) logFailure(dimension string, pos primitives.ChunkPos, err error) {
	k := failKey{dimension: dimension, pos: pos}
	c.mu.Lock()
	_, seen := c.failed[k]
	c.failed[k] = struct{}{}
	c.mu.Unlock()
	if !seen {
		c.logger.Printf("Failed to decode chunk %s in %q: %v", pos.String(), dimension, err)
	}
}

func (c *ChunkCache) storeLocked(pos primitives.ChunkPos, ch *chunkSource.Chunk) {
	c.entries[pos] = ch
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.entries) > c.opts.MaxEntries {
		var far primitives.ChunkPos
		fard := -1
		for p := range c.entries {
			if d := p.DistanceSq(c.center); d > fard {
				far, fard = p, d
			}
		}
		delete(c.entries, far)
		c.statEvictions.Add(1)
	}
}

func (c *ChunkCache) complete(t decodeTask) {
	ch := c.decode(t.dimension, t.pos)
	c.mu.Lock()
	if c.generation != t.generation {
		c.mu.Unlock()
		return
	}
	if seq, ok := c.pending[t.pos]; !ok || seq != t.seq {
		// invalidated or requested again while decoding
		c.mu.Unlock()
		return
	}
	delete(c.pending, t.pos)
	c.storeLocked(t.pos, ch)
	c.mu.Unlock()
	if fn := c.onReady.Load(); fn != nil && *fn != nil {
		(*fn)(t.pos)
	}
}
