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
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/maxsupermanhd/chunkview/worldSave"
)

var (
	savesPath = flag.String("saves", ".", "World save or a directory of saves")
	dumpAll   = flag.Bool("dump", false, "Dump structure records")
)

func main() {
	flag.Parse()
	worlds, err := worldSave.ListWorlds(*savesPath)
	if err != nil {
		log.Fatalln(err)
	}
	if len(worlds) == 0 {
		log.Println("No worlds found in", *savesPath)
		os.Exit(1)
	}
	for _, w := range worlds {
		l, err := worldSave.LoadLevel(w.Path)
		if err != nil {
			log.Printf("%s: %v", w.Path, err)
			continue
		}
		fmt.Printf("%s (%s), data version %d, last played %s\n", l.Name, w.Path, l.DataVersion, humanize.Time(l.LastPlayed))
		locs, err := worldSave.Locations(w.Path)
		if err != nil {
			log.Printf("Some locations were skipped: %v", err)
		}
		for _, loc := range locs {
			fmt.Printf("  %-24s %-10s %.1f %.1f %.1f\n", loc.Label, loc.Dimension, loc.X, loc.Y, loc.Z)
		}
		recs, err := worldSave.ScanStructures(w.Path)
		if err != nil {
			log.Printf("Some structures were skipped: %v", err)
		}
		counts := map[string]int{}
		for _, r := range recs {
			counts[r.Category]++
		}
		for c, n := range counts {
			fmt.Printf("  %s: %d\n", c, n)
		}
		if *dumpAll {
			spew.Dump(recs)
		}
	}
}
