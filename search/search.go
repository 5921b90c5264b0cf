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

// Package search scans every explored chunk of a dimension with a
// pluggable matcher.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/lac"
)

const DefaultWorkers = 4

var ErrNothingToSearch = errors.New("nothing to search for")

// Plugin decides what a search looks for. Init is called once before
// any chunk, SearchChunk concurrently from several workers.
type Plugin interface {
	Init(defs *definitions.Table) error
	SearchChunk(ch *chunkSource.Chunk) []Result
	SearchedFor() string
}

// Result covers blocks Bottom..Y of one column.
type Result struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Z      int    `json:"z"`
	Bottom int    `json:"bottom"`
	Name   string `json:"name"`
}

func (r Result) Box() primitives.Box {
	return primitives.Box{
		X1: float64(r.X), Y1: float64(r.Bottom), Z1: float64(r.Z),
		X2: float64(r.X) + 1, Y2: float64(r.Y) + 1, Z2: float64(r.Z) + 1,
	}
}

type Summary struct {
	SearchedFor string        `json:"searchedFor"`
	Chunks      int           `json:"chunks"`
	Failed      int           `json:"failed"`
	Results     int           `json:"results"`
	Took        time.Duration `json:"took"`
}

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

type Searcher struct {
	logger *log.Logger
	src    Source
	defs   *definitions.Table
	opts   Options
}

func New(logger *log.Logger, src Source, defs *definitions.Table, opts Options) *Searcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Searcher{logger: logger, src: src, defs: defs, opts: opts}
}

// Run searches every listed chunk of dimension. onResult is called
// from a single goroutine, results of one chunk arrive together.
func (s *Searcher) Run(ctx context.Context, dimension string, p Plugin, onResult func(Result)) (Summary, error) {
	started := time.Now()
	sum := Summary{SearchedFor: p.SearchedFor()}
	if err := p.Init(s.defs); err != nil {
		return sum, err
	}
	list, err := s.src.ListChunks(dimension)
	if err != nil && len(list) == 0 {
		return sum, err
	}
	if err != nil {
		s.logger.Printf("Search for %s: listing was incomplete: %v", sum.SearchedFor, err)
	}

	jobs := make(chan primitives.ChunkPos, s.opts.Workers)
	results := make(chan []Result, s.opts.Workers)
	var failed int
	var fmu sync.Mutex
	wg := new(sync.WaitGroup)
	for w := 0; w < s.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				ch, err := s.src.DecodeChunk(dimension, j.X, j.Z)
				if err != nil {
					if !errors.Is(err, chunkSource.ErrNotFound) {
						s.logger.Printf("Search: chunk %s: %v", j, err)
						fmu.Lock()
						failed++
						fmu.Unlock()
					}
					results <- nil
					continue
				}
				results <- p.SearchChunk(ch)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, c := range list {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()
	for r := range results {
		sum.Chunks++
		for i := range r {
			sum.Results++
			if onResult != nil {
				onResult(r[i])
			}
		}
	}
	sum.Failed = failed
	sum.Took = time.Since(started)
	if ctx.Err() != nil {
		return sum, fmt.Errorf("search for %s interrupted: %w", sum.SearchedFor, ctx.Err())
	}
	s.logger.Printf("Search for %s: %d results in %d chunks (%s)", sum.SearchedFor, sum.Results, sum.Chunks, sum.Took.Round(time.Millisecond))
	return sum, nil
}
