package chunkCache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDecoder struct {
	mu      sync.Mutex
	calls   map[string]int
	missing map[primitives.ChunkPos]bool
	broken  map[primitives.ChunkPos]bool
	block   chan struct{}
	entered chan struct{}
	// version is what the chunk on disk looks like, reported as MaxY
	version int
}

func newCountingDecoder() *countingDecoder {
	return &countingDecoder{
		calls:   map[string]int{},
		missing: map[primitives.ChunkPos]bool{},
		broken:  map[primitives.ChunkPos]bool{},
	}
}

func (d *countingDecoder) DecodeChunk(dimension string, cx, cz int) (*chunkSource.Chunk, error) {
	d.mu.Lock()
	version := d.version
	d.mu.Unlock()
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.block != nil {
		<-d.block
	}
	pos := primitives.ChunkPos{X: cx, Z: cz}
	d.mu.Lock()
	d.calls[fmt.Sprintf("%s %d %d", dimension, cx, cz)]++
	d.mu.Unlock()
	if d.missing[pos] {
		return nil, chunkSource.ErrNotFound
	}
	if d.broken[pos] {
		return nil, errors.New("corrupt")
	}
	return &chunkSource.Chunk{MaxY: 10 + version}, nil
}

func (d *countingDecoder) setVersion(v int) {
	d.mu.Lock()
	d.version = v
	d.mu.Unlock()
}

func (d *countingDecoder) count(dimension string, cx, cz int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[fmt.Sprintf("%s %d %d", dimension, cx, cz)]
}

func TestGetCachesDecodes(t *testing.T) {
	d := newCountingDecoder()
	c := New(nil, d, Options{})
	c.SetDimension("overworld")
	a := c.Get(1, 2)
	b := c.Get(1, 2)
	assert.Same(t, a, b)
	assert.Equal(t, primitives.ChunkPos{X: 1, Z: 2}, a.Pos)
	assert.Equal(t, 1, d.count("overworld", 1, 2))
	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
}

func TestInvalidateRedecodes(t *testing.T) {
	d := newCountingDecoder()
	c := New(nil, d, Options{})
	c.Get(0, 0)
	c.Get(5, 5)
	c.Invalidate(0, 0)
	_, ok := c.Cached(0, 0)
	assert.False(t, ok)
	c.Get(0, 0)
	c.Get(5, 5)
	assert.Equal(t, 2, d.count("", 0, 0))
	assert.Equal(t, 1, d.count("", 5, 5))
}

func TestMissingChunksArePlaceholders(t *testing.T) {
	d := newCountingDecoder()
	d.missing[primitives.ChunkPos{X: 3, Z: 3}] = true
	d.broken[primitives.ChunkPos{X: 4, Z: 4}] = true
	c := New(nil, d, Options{})
	assert.True(t, c.Get(3, 3).Missing)
	assert.True(t, c.Get(3, 3).Missing)
	assert.Equal(t, 1, d.count("", 3, 3))
	assert.True(t, c.Get(4, 4).Missing)
	assert.Equal(t, 2, c.Stats().Placeholders)

	// chunk got generated later
	delete(d.missing, primitives.ChunkPos{X: 3, Z: 3})
	c.Invalidate(3, 3)
	assert.False(t, c.Get(3, 3).Missing)
}

func TestDimensionSwitchClears(t *testing.T) {
	d := newCountingDecoder()
	c := New(nil, d, Options{})
	c.SetDimension("overworld")
	c.Get(0, 0)
	c.SetDimension("overworld")
	assert.Equal(t, 1, c.Len())
	c.SetDimension("DIM-1")
	assert.Equal(t, 0, c.Len())
	c.Get(0, 0)
	assert.Equal(t, 1, d.count("DIM-1", 0, 0))
	c.SetDimension("overworld")
	c.Get(0, 0)
	assert.Equal(t, 2, d.count("overworld", 0, 0))
}

func TestEvictsFarthest(t *testing.T) {
	d := newCountingDecoder()
	c := New(nil, d, Options{MaxEntries: 3})
	c.SetCenter(primitives.ChunkPos{X: 0, Z: 0})
	c.Get(0, 0)
	c.Get(10, 10)
	c.Get(1, 0)
	c.Get(0, 1)
	assert.Equal(t, 3, c.Len())
	_, ok := c.Cached(10, 10)
	assert.False(t, ok)
	_, ok = c.Cached(0, 0)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestAsyncGet(t *testing.T) {
	d := newCountingDecoder()
	d.block = make(chan struct{})
	c := New(nil, d, Options{Async: true, Workers: 2, QueueLen: 8})
	defer c.Close()
	ready := make(chan primitives.ChunkPos, 4)
	c.OnReady(func(p primitives.ChunkPos) { ready <- p })

	first := c.Get(2, 2)
	assert.True(t, first.Missing)
	c.Get(2, 2)
	close(d.block)

	select {
	case p := <-ready:
		assert.Equal(t, primitives.ChunkPos{X: 2, Z: 2}, p)
	case <-time.After(5 * time.Second):
		t.Fatal("decode did not complete")
	}
	got, ok := c.Cached(2, 2)
	require.True(t, ok)
	assert.False(t, got.Missing)
	assert.Equal(t, 1, d.count("", 2, 2), "duplicate requests must be coalesced")
}

func TestAsyncDropsStaleResults(t *testing.T) {
	d := newCountingDecoder()
	d.block = make(chan struct{})
	c := New(nil, d, Options{Async: true, Workers: 1, QueueLen: 8})
	defer c.Close()
	ready := make(chan primitives.ChunkPos, 4)
	c.OnReady(func(p primitives.ChunkPos) { ready <- p })
	c.Get(1, 1)
	c.Clear()
	close(d.block)
	c.Get(7, 7)
	select {
	case p := <-ready:
		assert.Equal(t, primitives.ChunkPos{X: 7, Z: 7}, p)
	case <-time.After(5 * time.Second):
		t.Fatal("decode did not complete")
	}
	_, ok := c.Cached(1, 1)
	assert.False(t, ok)
}

func TestAsyncInvalidateDuringDecode(t *testing.T) {
	d := newCountingDecoder()
	d.block = make(chan struct{})
	d.entered = make(chan struct{}, 4)
	c := New(nil, d, Options{Async: true, Workers: 2, QueueLen: 8})
	defer c.Close()
	ready := make(chan primitives.ChunkPos, 4)
	c.OnReady(func(p primitives.ChunkPos) { ready <- p })

	d.setVersion(1)
	c.Get(0, 0)
	<-d.entered
	// rewritten on disk while the old data is decoded
	d.setVersion(2)
	c.Invalidate(0, 0)
	c.Get(0, 0)
	<-d.entered
	close(d.block)

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("decode did not complete")
	}
	got, ok := c.Cached(0, 0)
	require.True(t, ok)
	assert.Equal(t, 12, got.MaxY)
	assert.Equal(t, 2, d.count("", 0, 0))
	select {
	case p := <-ready:
		t.Fatalf("outdated decode of %v was stored", p)
	case <-time.After(50 * time.Millisecond):
	}
	got, _ = c.Cached(0, 0)
	assert.Equal(t, 12, got.MaxY)
}

func TestSyncInvalidateDuringDecode(t *testing.T) {
	d := newCountingDecoder()
	d.block = make(chan struct{})
	d.entered = make(chan struct{}, 1)
	c := New(nil, d, Options{})
	d.setVersion(1)
	done := make(chan *chunkSource.Chunk)
	go func() {
		done <- c.Get(0, 0)
	}()
	<-d.entered
	d.setVersion(2)
	c.Invalidate(0, 0)
	close(d.block)
	assert.Equal(t, 11, (<-done).MaxY)
	_, ok := c.Cached(0, 0)
	assert.False(t, ok)

	d.entered = nil
	assert.Equal(t, 12, c.Get(0, 0).MaxY)
}
