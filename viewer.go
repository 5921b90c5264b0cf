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

package main

import (
	"image/color"
	"log"
	"sync"
	"sync/atomic"

	"github.com/maxsupermanhd/chunkview/chunkCache"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/export"
	"github.com/maxsupermanhd/chunkview/imageCache"
	"github.com/maxsupermanhd/chunkview/overlay"
	"github.com/maxsupermanhd/chunkview/search"
	"github.com/maxsupermanhd/chunkview/viewport"
	"github.com/maxsupermanhd/chunkview/worldSave"
	"github.com/maxsupermanhd/lac"
)

var (
	defs      *definitions.Table
	source    chunkSource.Source
	chunks    *chunkCache.ChunkCache
	tiles     *imageCache.ImageCache
	view      *viewport.Controller
	exporter  *export.Exporter
	searcher  *search.Searcher
	progress  = export.NewBroadcaster()
	events    = newMapEventRouter()
	world     = &worldState{}
	exportDir = "exports"

	// set until a client fetches the next frame
	redrawPending atomic.Bool
)

type worldState struct {
	mu         sync.Mutex
	dir        string
	level      worldSave.Level
	locations  []worldSave.Location
	structures []worldSave.Record
}

type viewerOptions struct {
	Chunks   chunkCache.Options
	MaxTiles int
	View     viewport.Options
	Export   export.Options
	Search   search.Options
}

func viewerOptionsFromConfig(cfg *lac.Conf) viewerOptions {
	l := log.Default()
	return viewerOptions{
		Chunks:   chunkCache.OptionsFromConfig(l, cfg.SubTree("chunkCache")),
		MaxTiles: imageCache.MaxTilesFromConfig(l, cfg.SubTree("imageCache")),
		View:     viewport.OptionsFromConfig(cfg.SubTree("view")),
		Export:   export.OptionsFromConfig(cfg.SubTree("export")),
		Search:   search.OptionsFromConfig(cfg.SubTree("search")),
	}
}

func setupViewer(logger *log.Logger, src chunkSource.Source, d *definitions.Table, opts viewerOptions) {
	defs = d
	source = src
	chunks = chunkCache.New(logger, src, opts.Chunks)
	tiles = imageCache.NewImageCache(logger, opts.MaxTiles)
	view = viewport.New(logger, defs, chunks, tiles, nil, opts.View, viewport.Callbacks{
		HoverTextChanged: func(text string) {
			events.Broadcast(mapEvent{Action: eventHover, Data: text})
		},
		DemandDepthChange: func(depth int) {
			events.Broadcast(mapEvent{Action: eventDepth, Data: depth})
		},
		ShowProperties: func(x, y, z int, groups []overlay.Group) {
			events.Broadcast(mapEvent{Action: eventProperties, Data: map[string]any{
				"x": x, "y": y, "z": z, "groups": groups,
			}})
		},
		FoundSpecialBlock: func(e overlay.Entry) {
			events.Broadcast(mapEvent{Action: eventFound, Data: e})
		},
		DimensionChanged: func(dim definitions.Dimension) {
			markStructures(dim.Name)
			events.Broadcast(mapEvent{Action: eventDimension, Data: dim})
		},
		RedrawNeeded: func() {
			if redrawPending.CompareAndSwap(false, true) {
				events.Broadcast(mapEvent{Action: eventRedraw})
			}
		},
	})
	exporter = export.New(logger, src, defs, progress, opts.Export)
	searcher = search.New(logger, src, defs, opts.Search)
}

// loadWorld reads save metadata, missing or broken parts only lose the
// jump locations or structures.
func loadWorld(dir string) {
	world.mu.Lock()
	defer world.mu.Unlock()
	world.dir = dir
	if dir == "" {
		return
	}
	l, err := worldSave.LoadLevel(dir)
	if err != nil {
		log.Printf("Failed to read level of %s: %v", dir, err)
	} else {
		world.level = l
		log.Printf("Opened world %q", l.Name)
	}
	world.locations, err = worldSave.Locations(dir)
	if err != nil {
		log.Printf("Some locations of %s were skipped: %v", dir, err)
	}
	world.structures, err = worldSave.ScanStructures(dir)
	if err != nil {
		log.Printf("Some structures of %s were skipped: %v", dir, err)
	}
	log.Printf("World has %d locations and %d structures", len(world.locations), len(world.structures))
}

func markStructures(dim string) {
	world.mu.Lock()
	recs := worldSave.InDimension(world.structures, dim)
	world.mu.Unlock()
	for _, r := range recs {
		view.MarkBlock(r.Category, r.Box, color.NRGBA{}, r.Label, r.Properties)
	}
}

func jumpTo(loc worldSave.Location) error {
	if view.State().Dimension.Name != loc.Dimension {
		if err := view.SetDimension(loc.Dimension); err != nil {
			return err
		}
	}
	view.SetLocation(loc.X, loc.Z)
	return nil
}
