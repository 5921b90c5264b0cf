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

package worldSave

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/chunkview/lib/nbtwalk"
)

const (
	KindSpawn  = "spawn"
	KindPlayer = "player"
	KindBed    = "bed"
)

// Location is a place worth jumping to. X and Z are always overworld
// block coordinates, positions in the nether are already multiplied.
type Location struct {
	Label     string  `json:"label"`
	Kind      string  `json:"kind"`
	Dimension string  `json:"dimension"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

const netherScale = 8

// DimensionName turns both numeric and namespaced dimension ids into
// the names used by definitions.
func DimensionName(v any) string {
	switch d := v.(type) {
	case int:
		switch d {
		case -1:
			return "the_nether"
		case 1:
			return "the_end"
		}
		return "overworld"
	case string:
		if d == "" {
			return "overworld"
		}
		return strings.TrimPrefix(d, "minecraft:")
	}
	return "overworld"
}

func toOverworld(l Location) Location {
	if l.Dimension == "the_nether" {
		l.X *= netherScale
		l.Z *= netherScale
	}
	return l
}

type playerData struct {
	pos    [3]float64
	posN   int
	dim    any
	bed    [3]int
	bedN   int
	bedDim any
}

func parsePlayer(data []byte) (playerData, error) {
	var pd playerData
	err := nbtwalk.WalkNBT(data, &nbtwalk.WalkerCallbacks{
		CbDouble: func(p []nbtwalk.NBTnode, n string, val float64) {
			if len(p) == 2 && p[1].N == "Pos" && p[1].Index() < 3 {
				pd.pos[p[1].Index()] = val
				pd.posN++
			}
		},
		CbInt: func(p []nbtwalk.NBTnode, n string, val uint32) {
			if len(p) != 1 {
				return
			}
			switch n {
			case "Dimension":
				pd.dim = int(int32(val))
			case "SpawnX":
				pd.bed[0] = int(int32(val))
				pd.bedN++
			case "SpawnY":
				pd.bed[1] = int(int32(val))
				pd.bedN++
			case "SpawnZ":
				pd.bed[2] = int(int32(val))
				pd.bedN++
			}
		},
		CbString: func(p []nbtwalk.NBTnode, n string, val string) {
			switch {
			case len(p) == 1 && n == "Dimension":
				pd.dim = val
			case len(p) == 1 && n == "SpawnDimension":
				pd.bedDim = val
			case len(p) == 2 && p[1].N == "respawn" && n == "dimension":
				pd.bedDim = val
			}
		},
		// newer saves keep the respawn point in a compound
		CbIntArray: func(p []nbtwalk.NBTnode, n string, val []uint32) {
			if len(p) == 2 && p[1].N == "respawn" && n == "pos" && len(val) == 3 {
				for i := range val {
					pd.bed[i] = int(int32(val[i]))
				}
				pd.bedN = 3
			}
		},
	})
	if err != nil {
		return pd, err
	}
	if pd.posN != 3 {
		return pd, fmt.Errorf("player has no position")
	}
	return pd, nil
}

// LoadPlayers reads playerdata (or the older players directory) of a
// world. Unreadable files are skipped and reported together.
func LoadPlayers(dir string) ([]Location, error) {
	var pdir string
	for _, d := range []string{"playerdata", "players"} {
		if s, err := os.Stat(filepath.Join(dir, d)); err == nil && s.IsDir() {
			pdir = filepath.Join(dir, d)
			break
		}
	}
	if pdir == "" {
		return nil, nil
	}
	e, err := os.ReadDir(pdir)
	if err != nil {
		return nil, err
	}
	var merr *multierror.Error
	ret := []Location{}
	players := 0
	for _, f := range e {
		if f.IsDir() || filepath.Ext(f.Name()) != ".dat" {
			continue
		}
		data, err := readDat(filepath.Join(pdir, f.Name()))
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		pd, err := parsePlayer(data)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		name := strings.TrimSuffix(f.Name(), ".dat")
		if _, err := uuid.Parse(name); err == nil {
			name = fmt.Sprintf("Player %d", players)
		}
		players++
		ret = append(ret, toOverworld(Location{
			Label:     name,
			Kind:      KindPlayer,
			Dimension: DimensionName(pd.dim),
			X:         pd.pos[0],
			Y:         pd.pos[1],
			Z:         pd.pos[2],
		}))
		if pd.bedN == 3 {
			ret = append(ret, toOverworld(Location{
				Label:     name + "'s Bed",
				Kind:      KindBed,
				Dimension: DimensionName(pd.bedDim),
				X:         float64(pd.bed[0]),
				Y:         float64(pd.bed[1]),
				Z:         float64(pd.bed[2]),
			}))
		}
	}
	return ret, merr.ErrorOrNil()
}

// Locations is the world spawn followed by every player and bed.
func Locations(dir string) ([]Location, error) {
	l, err := LoadLevel(dir)
	if err != nil {
		return nil, err
	}
	ret := []Location{{
		Label:     "Spawn",
		Kind:      KindSpawn,
		Dimension: "overworld",
		X:         float64(l.SpawnX),
		Y:         float64(l.SpawnY),
		Z:         float64(l.SpawnZ),
	}}
	players, err := LoadPlayers(dir)
	return append(ret, players...), err
}
