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
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/chunkSource/anvilChunkSource"
	"github.com/maxsupermanhd/chunkview/chunkSource/postgresChunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/search"
)

var (
	worldPath  = flag.String("world", "", "Path to the world save")
	dbstr      = flag.String("db", "", "Database connection string, used instead of -world")
	wname      = flag.String("wname", "", "World name in the database")
	dname      = flag.String("dim", "overworld", "Dimension name")
	blocks     = flag.String("blocks", "portal", "Comma separated block name fragments")
	defsPath   = flag.String("defs", "", "Block definitions override")
	outfname   = flag.String("out", "out.txt", "Filename for writing results to")
	threadsnum = flag.Int("threads", search.DefaultWorkers, "Thread count")
)

func must(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func openSource(ctx context.Context, defs *definitions.Table) (chunkSource.Source, error) {
	if *dbstr != "" {
		return postgresChunkSource.NewPostgresChunkSource(ctx, log.Default(), *dbstr, *wname, defs)
	}
	if *worldPath == "" {
		return nil, fmt.Errorf("either -world or -db is required")
	}
	return anvilChunkSource.NewAnvilChunkSource(log.Default(), *worldPath, defs)
}

func filewriter(results <-chan search.Result, done chan<- int) {
	file, err := os.OpenFile(*outfname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	must(err)
	defer file.Close()
	linecount := 0
	for r := range results {
		linecount++
		fmt.Fprintf(file, "%s x%d z%d y%d..%d\n", r.Name, r.X, r.Z, r.Bottom, r.Y)
	}
	done <- linecount
}

func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil {
		log.Println("Not using .env:", err)
	}
	if *dbstr == "" {
		*dbstr = os.Getenv("CHUNKVIEW_DB")
	}
	defs, err := definitions.Load(*defsPath)
	must(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src, err := openSource(ctx, defs)
	must(err)
	defer src.Close()

	names := []string{}
	for _, n := range strings.Split(*blocks, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	p := &search.BlockSearch{Names: names}
	must(p.Init(defs))

	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-s
		log.Println("Got signal, stopping search")
		cancel()
	}()

	results := make(chan search.Result, 64)
	written := make(chan int)
	go filewriter(results, written)
	searcher := search.New(log.Default(), src, defs, search.Options{Workers: *threadsnum})
	sum, err := searcher.Run(ctx, *dname, p, func(r search.Result) {
		results <- r
	})
	close(results)
	lines := <-written
	if err != nil {
		log.Printf("Search stopped: %v", err)
	}
	log.Printf("Searched %d chunks for %s in %s, %d failed, wrote %d results to %s",
		sum.Chunks, sum.SearchedFor, sum.Took.Round(1e6), sum.Failed, lines, *outfname)
}
