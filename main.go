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
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/maxsupermanhd/chunkview/definitions"
)

var (
	BuildTime  = "00000000.000000"
	CommitHash = "0000000"
	GoVersion  = "0.0"
	GitTag     = "0.0"
)

var (
	mainCtx, mainCtxCancel = context.WithCancel(context.Background())
	openedSources          []openedSource
)

func versionString() string {
	return fmt.Sprintf("%s %s built %s %s", GitTag, CommitHash, BuildTime, GoVersion)
}

func loadDefinitions() (*definitions.Table, error) {
	path := cfg.GetDSString("", "definitions")
	if path == "" {
		return definitions.Default(), nil
	}
	return definitions.Load(path)
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if buildinfo, ok := debug.ReadBuildInfo(); ok {
		GoVersion = buildinfo.GoVersion
	}
	if err := loadConfig(); err != nil {
		log.Fatal("Error loading config file: " + err.Error())
	}
	log.SetOutput(io.MultiWriter(createLogger(), os.Stdout))
	log.Println()
	log.Println("ChunkView is starting up...")
	log.Printf("Built %s, Ver %s (%s)", BuildTime, GitTag, CommitHash)
	log.Println()

	d, err := loadDefinitions()
	if err != nil {
		log.Fatal("Error loading block definitions: " + err.Error())
	}
	log.Printf("Loaded %d block definitions and %d dimensions", d.BlockCount(), len(d.Dimensions()))

	worldDir := cfg.GetDSString("", "world")
	openedSources, err = initSources(mainCtx, cfg, worldDir, d)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		for _, s := range openedSources {
			if c, ok := s.Source.(io.Closer); ok {
				c.Close()
			}
		}
	}()

	setupViewer(log.Default(), combineSources(openedSources), d, viewerOptionsFromConfig(cfg))
	defer chunks.Close()
	exportDir = cfg.GetDSString(exportDir, "export", "dir")
	if abs, err := filepath.Abs(exportDir); err == nil {
		exportDir = abs
	}
	loadWorld(worldDir)
	if err := view.SetDimension(cfg.GetDSString("overworld", "view", "dimension")); err != nil {
		log.Printf("Failed to open starting dimension: %v", err)
	}

	var rs routines
	rs.start("progress broadcaster", func(exit <-chan struct{}) {
		go progress.Start()
		<-exit
		progress.Stop()
	})
	rs.start("event router", events.Run)
	rs.start("templates", func(exit <-chan struct{}) {
		templateManager(exit, cfg.SubTree("web"))
	})
	if cfg.GetDSBool(true, "watch") {
		rs.start("source watcher", func(exit <-chan struct{}) {
			watchSources(openedSources, d, exit)
		})
	}
	rs.start("web server", runWeb)

	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	select {
	case <-s:
		log.Println("Got signal, shutting down")
	case <-mainCtx.Done():
		log.Println("Stop requested, shutting down")
	}
	mainCtxCancel()
	rs.stopAll()
	log.Println("Bye")
}
