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

// Package worldSave reads the metadata of a world save that is not
// chunk data: level.dat, player files and generated structures.
package worldSave

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Tnze/go-mc/save"
)

type Level struct {
	Name        string    `json:"name"`
	SpawnX      int       `json:"spawnX"`
	SpawnY      int       `json:"spawnY"`
	SpawnZ      int       `json:"spawnZ"`
	DataVersion int       `json:"dataVersion"`
	LastPlayed  time.Time `json:"lastPlayed"`
}

type World struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// readDat returns the uncompressed contents of an NBT file, both gzip
// compressed and plain files are accepted.
func readDat(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) < 2 || b[0] != 0x1f || b[1] != 0x8b {
		return b, nil
	}
	gr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}

func LoadLevel(dir string) (Level, error) {
	s, err := os.Stat(dir)
	if err != nil {
		return Level{}, err
	}
	if !s.IsDir() {
		return Level{}, fmt.Errorf("specified root points to file, not directory with world")
	}
	b, err := readDat(filepath.Join(dir, "level.dat"))
	if err != nil {
		return Level{}, err
	}
	l, err := save.ReadLevel(bytes.NewReader(b))
	if err != nil {
		return Level{}, fmt.Errorf("level.dat of %s: %w", dir, err)
	}
	return Level{
		Name:        l.Data.LevelName,
		SpawnX:      int(l.Data.SpawnX),
		SpawnY:      int(l.Data.SpawnY),
		SpawnZ:      int(l.Data.SpawnZ),
		DataVersion: int(l.Data.DataVersion),
		LastPlayed:  time.UnixMilli(l.Data.LastPlayed),
	}, nil
}

// ListWorlds finds worlds in a saves directory, a directory that is a
// world itself is returned alone.
func ListWorlds(saves string) ([]World, error) {
	if l, err := LoadLevel(saves); err == nil {
		return []World{{Name: l.Name, Path: saves}}, nil
	}
	e, err := os.ReadDir(saves)
	if err != nil {
		return nil, err
	}
	worlds := []World{}
	for _, f := range e {
		if !f.IsDir() {
			continue
		}
		p := filepath.Join(saves, f.Name())
		l, err := LoadLevel(p)
		if err != nil {
			continue
		}
		worlds = append(worlds, World{Name: l.Name, Path: p})
	}
	sort.Slice(worlds, func(i, j int) bool {
		return strings.Compare(worlds[i].Name, worlds[j].Name) < 0
	})
	return worlds, nil
}
