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

// Package export renders whole dimensions into a single image in the
// background.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maxsupermanhd/chunkview/chunkCache"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/coords"
	"github.com/maxsupermanhd/chunkview/imageCache"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/chunkview/render"
	"github.com/maxsupermanhd/lac"
)

var (
	ErrNoChunks = errors.New("no chunks to export")
	ErrCanceled = errors.New("export canceled")
	ErrTooLarge = errors.New("export image is too large")
	ErrNoOutput = errors.New("export has no output")
)

const (
	DefaultWorkers = 4
	// MaxPixels bounds the output raster.
	MaxPixels = 1 << 30
	MaxScale  = 16
)

type Source interface {
	chunkSource.Decoder
	chunkSource.Lister
}

type Options struct {
	Workers int
}

func OptionsFromConfig(cfg *lac.ConfSubtree) Options {
	return Options{Workers: cfg.GetDSInt(DefaultWorkers, "workers")}
}

// Job is a private copy of everything the export needs, changing the
// viewport afterwards does not affect it.
type Job struct {
	Dimension string
	Settings  render.Settings
	// Scale is pixels per block, 1 when zero.
	Scale int
	// Path is written atomically, Sink is used when Path is empty.
	Path string
	Sink io.Writer
}

type Progress struct {
	Status   string  `json:"status"`
	Fraction float64 `json:"fraction"`
}

type Result struct {
	TaskID string          `json:"taskID"`
	Path   string          `json:"path,omitempty"`
	Chunks int             `json:"chunks"`
	Bounds image.Rectangle `json:"bounds"`
	Took   time.Duration   `json:"took"`
	Err    error           `json:"-"`
}

type Task struct {
	ID       string
	Job      Job
	cancel   context.CancelFunc
	progress chan Progress
	done     chan Result
	finished chan struct{}
	mu       sync.Mutex
	last     Progress
	result   Result
}

// Progress delivers monotonically non-decreasing progress, reports
// are dropped when nobody reads them. Closed after completion.
func (t *Task) Progress() <-chan Progress {
	return t.progress
}

// Done yields exactly one Result.
func (t *Task) Done() <-chan Result {
	return t.done
}

func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Last() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Finished is closed once the result is available.
func (t *Task) Finished() <-chan struct{} {
	return t.finished
}

// Wait blocks until the task is finished and returns its result.
func (t *Task) Wait() Result {
	<-t.finished
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

type Exporter struct {
	logger *log.Logger
	src    Source
	pal    render.Palette
	bc     *Broadcaster
	opts   Options
	mu     sync.Mutex
	tasks  map[string]*Task
}

// New creates an exporter, bc may be nil.
func New(logger *log.Logger, src Source, pal render.Palette, bc *Broadcaster, opts Options) *Exporter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Exporter{
		logger: logger,
		src:    src,
		pal:    pal,
		bc:     bc,
		opts:   opts,
		tasks:  map[string]*Task{},
	}
}

func (e *Exporter) Task(id string) (*Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	return t, ok
}

// Tasks lists tasks ordered by id.
func (e *Exporter) Tasks() []*Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	ret := make([]*Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		ret = append(ret, t)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret
}

// Start runs the job in the background.
func (e *Exporter) Start(ctx context.Context, job Job) *Task {
	if job.Scale <= 0 {
		job.Scale = 1
	}
	if job.Scale > MaxScale {
		job.Scale = MaxScale
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		ID:       uuid.New().String(),
		Job:      job,
		cancel:   cancel,
		progress: make(chan Progress, 64),
		done:     make(chan Result, 1),
		finished: make(chan struct{}),
	}
	e.mu.Lock()
	e.tasks[t.ID] = t
	e.mu.Unlock()
	go func() {
		defer cancel()
		started := time.Now()
		res := e.run(ctx, t)
		res.TaskID = t.ID
		res.Took = time.Since(started)
		e.finish(t, res)
	}()
	return t
}

func (e *Exporter) report(t *Task, status string, fraction float64) {
	t.mu.Lock()
	if fraction < t.last.Fraction {
		fraction = t.last.Fraction
	}
	p := Progress{Status: status, Fraction: fraction}
	t.last = p
	t.mu.Unlock()
	select {
	case t.progress <- p:
	default:
	}
	if e.bc != nil {
		e.bc.Publish(ProgressReport{TaskID: t.ID, Status: status, Fraction: fraction})
	}
}

func (e *Exporter) finish(t *Task, res Result) {
	if res.Err != nil {
		e.logger.Printf("Export %s of %q failed: %v", t.ID, t.Job.Dimension, res.Err)
	} else {
		e.report(t, "Done", 1)
		e.logger.Printf("Export %s of %q done: %d chunks in %s", t.ID, t.Job.Dimension, res.Chunks, res.Took)
	}
	t.mu.Lock()
	t.result = res
	last := t.last
	t.mu.Unlock()
	close(t.finished)
	close(t.progress)
	t.done <- res
	close(t.done)
	if e.bc != nil {
		r := ProgressReport{TaskID: t.ID, Status: last.Status, Fraction: last.Fraction, Done: true}
		if res.Err != nil {
			r.Status = "Failed"
			r.Error = res.Err.Error()
		}
		e.bc.Publish(r)
	}
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
}

func chunkBounds(l []primitives.ChunkPos) (x0, z0, x1, z1 int) {
	x0, z0, x1, z1 = l[0].X, l[0].Z, l[0].X, l[0].Z
	for _, p := range l[1:] {
		x0, x1 = min(x0, p.X), max(x1, p.X)
		z0, z1 = min(z0, p.Z), max(z1, p.Z)
	}
	return
}

func (e *Exporter) run(ctx context.Context, t *Task) Result {
	job := t.Job
	if job.Path == "" && job.Sink == nil {
		return Result{Err: ErrNoOutput}
	}
	e.report(t, "Listing chunks", 0)
	list, err := e.src.ListChunks(job.Dimension)
	if len(list) == 0 {
		if err != nil {
			return Result{Err: fmt.Errorf("%w: %v", ErrNoChunks, err)}
		}
		return Result{Err: ErrNoChunks}
	}
	if err != nil {
		e.logger.Printf("Export %s: listing was incomplete: %v", t.ID, err)
	}
	x0, z0, x1, z1 := chunkBounds(list)
	px := job.Scale * coords.ChunkSize
	w, h := (x1-x0+1)*px, (z1-z0+1)*px
	if w*h > MaxPixels || w <= 0 || h <= 0 {
		return Result{Err: fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)}
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rast := render.NewRasterizer(e.pal)
	cache := chunkCache.New(e.logger, e.src, chunkCache.Options{MaxEntries: e.opts.Workers * 4})
	defer cache.Close()
	cache.SetDimension(job.Dimension)

	positions := make(chan primitives.ChunkPos, e.opts.Workers)
	painted := make(chan struct{}, e.opts.Workers)
	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range positions {
				if ctx.Err() != nil {
					continue
				}
				ch := cache.Get(p.X, p.Z)
				tile := rast.Paint(ch, job.Settings)
				r := image.Rect((p.X-x0)*px, (p.Z-z0)*px, (p.X-x0+1)*px, (p.Z-z0+1)*px)
				render.Composite(img, tile, r)
				painted <- struct{}{}
			}
		}()
	}
	go func() {
		defer close(positions)
		for _, p := range list {
			select {
			case positions <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(painted)
	}()
	done := 0
	step := max(1, len(list)/100)
	for range painted {
		done++
		if done%step == 0 || done == len(list) {
			e.report(t, fmt.Sprintf("Rendering %d/%d chunks", done, len(list)), 0.9*float64(done)/float64(len(list)))
		}
	}
	if ctx.Err() != nil {
		return Result{Err: canceled(ctx)}
	}
	e.report(t, "Writing image", 0.9)
	if job.Path != "" {
		if err := imageCache.SavePNG(job.Path, img); err != nil {
			return Result{Err: err}
		}
	} else if err := png.Encode(job.Sink, img); err != nil {
		return Result{Err: err}
	}
	return Result{
		Path:   job.Path,
		Chunks: len(list),
		Bounds: image.Rect(x0*coords.ChunkSize, z0*coords.ChunkSize, (x1+1)*coords.ChunkSize, (z1+1)*coords.ChunkSize),
	}
}
