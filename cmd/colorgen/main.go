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
	"archive/zip"
	"flag"
	"log"
	"os"

	"github.com/maxsupermanhd/chunkview/definitions"
	"gopkg.in/yaml.v3"
)

var (
	JARpath  = flag.String("jar", "", "Path to the client jar")
	defsPath = flag.String("defs", "", "Definitions to start from, embedded ones when empty")
	outPath  = flag.String("out", "colors.yaml", "Where to write the definitions override")
	addNew   = flag.Bool("new", true, "Add blocks missing from the definitions")
)

func must(e error) {
	if e != nil {
		log.Fatal(e)
	}
}

type overrideFile struct {
	Blocks []definitions.BlockDef `yaml:"blocks"`
}

// generate recolours known blocks and optionally appends unknown ones,
// returning the blocks that got a colour and the number of failures.
func generate(j *jar, base *definitions.Table, withNew bool) ([]definitions.BlockDef, int) {
	known := map[string]definitions.BlockDef{}
	for _, b := range base.Blocks() {
		known[b.Name] = b
	}
	ret := []definitions.BlockDef{}
	failed := 0
	for _, n := range j.blockNames() {
		name := "minecraft:" + n
		b, ok := known[name]
		if !ok && !withNew {
			continue
		}
		if b.Air {
			continue
		}
		c, err := j.blockColor(n)
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			failed++
			continue
		}
		if !ok {
			b = definitions.BlockDef{Name: name, Solid: c.A == 0xff}
		}
		b.Color = definitions.Color{R: c.R, G: c.G, B: c.B, A: 0xff}
		if c.A < 0xff && b.Alpha == nil {
			a := int(c.A)
			b.Alpha = &a
		}
		ret = append(ret, b)
	}
	return ret, failed
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	if *JARpath == "" {
		log.Fatal("Path to the jar is required")
	}
	base, err := definitions.Load(*defsPath)
	must(err)

	log.Printf("Opening jar [%s]", *JARpath)
	r, err := zip.OpenReader(*JARpath)
	must(err)
	defer r.Close()
	j := newJar(&r.Reader)
	log.Printf("Mapped %d filenames", len(j.files))

	blocks, failed := generate(j, base, *addNew)
	log.Printf("Coloured %d blocks, %d failed", len(blocks), failed)

	f, err := os.Create(*outPath)
	must(err)
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	must(enc.Encode(overrideFile{Blocks: blocks}))
	must(enc.Close())
	must(f.Close())
	log.Printf("Written %s", *outPath)
}
