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
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/chunkSource/anvilChunkSource"
	"github.com/maxsupermanhd/chunkview/chunkSource/postgresChunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/lac"
)

var errSourceTypeNotImplemented = errors.New("source type not implemented")

// sourceConfig is one entry of the "sources" list, earlier entries win
// when several sources have the same chunk.
type sourceConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	World   string `json:"world"`
}

type openedSource struct {
	sourceConfig
	Source chunkSource.Source
}

func initSource(ctx context.Context, logger *log.Logger, sc sourceConfig, defs *definitions.Table) (chunkSource.Source, error) {
	switch sc.Type {
	case "anvil", "filesystem":
		return anvilChunkSource.NewAnvilChunkSource(logger, sc.Address, defs)
	case "postgres":
		s, err := postgresChunkSource.NewPostgresChunkSource(ctx, logger, sc.Address, sc.World, defs)
		if err != nil {
			return nil, err
		}
		ver, count, err := s.GetStatus()
		if err != nil {
			s.Close()
			return nil, err
		}
		log.Printf("Source %s: %s, %d chunks", sc.Name, ver, count)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", errSourceTypeNotImplemented, sc.Type)
	}
}

// initSources opens every configured source, the world directory
// alone is used when none are configured.
func initSources(ctx context.Context, cfg *lac.Conf, world string, defs *definitions.Table) ([]openedSource, error) {
	log.Println("Initializing chunk sources...")
	var list []sourceConfig
	err := cfg.GetToStruct(&list, "sources")
	if err != nil && !errors.Is(err, lac.ErrNoKey) {
		return nil, err
	}
	if len(list) == 0 && world != "" {
		list = append(list, sourceConfig{Name: "world", Type: "anvil", Address: world})
	}
	ret := []openedSource{}
	for i, sc := range list {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("%s-%d", sc.Type, i)
		}
		s, err := initSource(ctx, log.Default(), sc, defs)
		if err != nil {
			log.Printf("Failed to initialize source %s: %v", sc.Name, err)
			continue
		}
		log.Printf("Source %s (%s) initialized", sc.Name, sc.Type)
		ret = append(ret, openedSource{sourceConfig: sc, Source: s})
	}
	if len(ret) == 0 {
		return nil, errors.New("no chunk sources available, set \"world\" or \"sources\" in the config")
	}
	return ret, nil
}

func combineSources(l []openedSource) chunkSource.Multi {
	m := make(chunkSource.Multi, 0, len(l))
	for _, s := range l {
		m = append(m, s.Source)
	}
	return m
}

// watchSources reports chunks rewritten on disk by anvil sources to
// the viewer until exit is closed.
func watchSources(l []openedSource, defs *definitions.Table, exit <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, s := range l {
		a, ok := s.Source.(*anvilChunkSource.AnvilChunkSource)
		if !ok {
			continue
		}
		for _, d := range defs.Dimensions() {
			dim := d.Name
			err := a.Watch(ctx, dim, func(pos primitives.ChunkPos) {
				view.ChunkUpdated(dim, pos)
				events.Broadcast(mapEvent{Action: eventChunk, Data: map[string]any{"dimension": dim, "x": pos.X, "z": pos.Z}})
			})
			if err != nil {
				log.Printf("Not watching %s of %s: %v", dim, s.Name, err)
				continue
			}
			log.Printf("Watching %s of %s for changes", dim, s.Name)
		}
	}
	<-exit
}
