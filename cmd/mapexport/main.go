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
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/maxsupermanhd/chunkview/chunkSource/anvilChunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/export"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/chunkview/render"
)

var (
	worldPath = flag.String("world", "", "Path to the world save")
	dname     = flag.String("dim", "overworld", "Dimension name")
	defsPath  = flag.String("defs", "", "Block definitions override")
	flagsStr  = flag.String("flags", "none", "Render flags, for example lighting+cave")
	depth     = flag.Int("depth", 0, "Highest rendered height, dimension top when 0")
	scale     = flag.Int("scale", 1, "Pixels per block")
	out       = flag.String("out", "map.png", "Output image")
	threads   = flag.Int("threads", export.DefaultWorkers, "Thread count")
)

func must(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil {
		log.Println("Not using .env:", err)
	}
	if *worldPath == "" {
		*worldPath = os.Getenv("CHUNKVIEW_WORLD")
	}
	if *worldPath == "" {
		log.Fatalln("World path not set")
	}
	defs, err := definitions.Load(*defsPath)
	must(err)
	dim, err := defs.Dimension(*dname)
	must(err)
	flags, err := primitives.ParseRenderFlags(*flagsStr)
	must(err)
	if *depth == 0 {
		*depth = dim.MaxY
	}
	src, err := anvilChunkSource.NewAnvilChunkSource(log.Default(), *worldPath, defs)
	must(err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-s
		log.Println("Got signal, canceling export")
		cancel()
	}()

	e := export.New(log.Default(), src, defs, nil, export.Options{Workers: *threads})
	task := e.Start(ctx, export.Job{
		Dimension: dim.Name,
		Settings:  render.Settings{Flags: flags, Depth: *depth},
		Scale:     *scale,
		Path:      *out,
	})
	last := ""
	for p := range task.Progress() {
		if p.Status != last {
			log.Printf("%s (%.0f%%)", p.Status, p.Fraction*100)
			last = p.Status
		}
	}
	res := task.Wait()
	must(res.Err)
	size := uint64(0)
	if st, err := os.Stat(res.Path); err == nil {
		size = uint64(st.Size())
	}
	log.Printf("Exported %d chunks of %s to %s (%s, %dx%d blocks) in %s",
		res.Chunks, dim.Name, res.Path, humanize.Bytes(size), res.Bounds.Dx(), res.Bounds.Dy(), res.Took.Round(1e6))
}
