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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Tnze/go-mc/nbt"
	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/chunkview/lib/nbtwalk"
	"github.com/maxsupermanhd/chunkview/primitives"
)

var ErrMalformedRecord = errors.New("malformed record")

// Record is one generated structure or village found in the data
// directory of a world.
type Record struct {
	Category   string         `json:"category"`
	Label      string         `json:"label"`
	Dimension  string         `json:"dimension"`
	Box        primitives.Box `json:"box"`
	Properties map[string]any `json:"properties"`
}

// structures that only generate outside of the overworld
var featureDimensions = map[string]string{
	"Fortress": "the_nether",
	"EndCity":  "the_end",
}

var villageFiles = map[string]string{
	"villages.dat":        "overworld",
	"villages_nether.dat": "the_nether",
	"villages_end.dat":    "the_end",
}

// collectRecords calls done with the primitive fields of every compound
// found directly under the named path, int lists and arrays become []int.
func collectRecords(data []byte, parent []string, done func(key string, props map[string]any)) error {
	depth := len(parent) + 2
	under := func(p []nbtwalk.NBTnode) bool {
		if len(p) < depth-1 {
			return false
		}
		for i, n := range parent {
			if p[i+1].N != n {
				return false
			}
		}
		return true
	}
	var cur map[string]any
	key := ""
	field := func(p []nbtwalk.NBTnode, n string, v any) {
		if cur == nil || !under(p) {
			return
		}
		switch {
		case len(p) == depth:
			cur[n] = v
		case len(p) == depth+1 && p[depth].T == nbt.TagList:
			if i, ok := v.(int); ok {
				l, _ := cur[p[depth].N].([]int)
				cur[p[depth].N] = append(l, i)
			}
		}
	}
	return nbtwalk.WalkNBT(data, &nbtwalk.WalkerCallbacks{
		CbCompound: func(p []nbtwalk.NBTnode, n string) {
			if len(p) == depth-1 && under(p) {
				cur = map[string]any{}
				key = n
				if p[len(p)-1].T == nbt.TagList {
					key = strconv.Itoa(p[len(p)-1].Index())
				}
			}
		},
		CbEnd: func(p []nbtwalk.NBTnode) {
			if len(p) == depth && under(p) && cur != nil {
				done(key, cur)
				cur = nil
			}
		},
		CbByte:   func(p []nbtwalk.NBTnode, n string, val byte) { field(p, n, int(int8(val))) },
		CbShort:  func(p []nbtwalk.NBTnode, n string, val uint16) { field(p, n, int(int16(val))) },
		CbInt:    func(p []nbtwalk.NBTnode, n string, val uint32) { field(p, n, int(int32(val))) },
		CbLong:   func(p []nbtwalk.NBTnode, n string, val uint64) { field(p, n, int64(val)) },
		CbFloat:  func(p []nbtwalk.NBTnode, n string, val float32) { field(p, n, float64(val)) },
		CbDouble: func(p []nbtwalk.NBTnode, n string, val float64) { field(p, n, val) },
		CbString: func(p []nbtwalk.NBTnode, n string, val string) { field(p, n, val) },
		CbIntArray: func(p []nbtwalk.NBTnode, n string, val []uint32) {
			arr := make([]int, len(val))
			for i := range val {
				arr[i] = int(int32(val[i]))
			}
			field(p, n, arr)
		},
		CbList: func(p []nbtwalk.NBTnode, n string, t byte, l int) {
			if t == nbt.TagInt {
				field(p, n, make([]int, 0, l))
			}
		},
	})
}

func intField(props map[string]any, name string) (int, bool) {
	v, ok := props[name].(int)
	return v, ok
}

func featureRecord(file, key string, props map[string]any) (Record, error) {
	bb, _ := props["BB"].([]int)
	id, _ := props["id"].(string)
	if len(bb) != 6 || id == "" {
		return Record{}, fmt.Errorf("%w: %s feature %s has no bounding box or id", ErrMalformedRecord, file, key)
	}
	var dim string
	if v, ok := props["Dimension"]; ok {
		dim = DimensionName(v)
	} else if dim = featureDimensions[id]; dim == "" {
		dim = "overworld"
	}
	return Record{
		Category:  "Structure." + id,
		Label:     id,
		Dimension: dim,
		Box: primitives.Box{
			X1: float64(bb[0]), Y1: float64(bb[1]), Z1: float64(bb[2]),
			X2: float64(bb[3]), Y2: float64(bb[4]), Z2: float64(bb[5]),
		}.Normalized(),
		Properties: props,
	}, nil
}

func villageRecord(file, key, dim string, props map[string]any) (Record, error) {
	r, ok1 := intField(props, "Radius")
	x, ok2 := intField(props, "CX")
	y, ok3 := intField(props, "CY")
	z, ok4 := intField(props, "CZ")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Record{}, fmt.Errorf("%w: %s village %s has no centre or radius", ErrMalformedRecord, file, key)
	}
	return Record{
		Category:  "Village",
		Label:     "Village",
		Dimension: dim,
		Box: primitives.Box{
			X1: float64(x - r), Y1: float64(y - r), Z1: float64(z - r),
			X2: float64(x + r), Y2: float64(y + r), Z2: float64(z + r),
		},
		Properties: props,
	}, nil
}

// ScanStructures reads data/*.dat of a world. Files without features
// give nothing, broken files and records are skipped one by one and
// returned as a combined error next to everything that did parse.
func ScanStructures(dir string) ([]Record, error) {
	ddir := filepath.Join(dir, "data")
	e, err := os.ReadDir(ddir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var merr *multierror.Error
	ret := []Record{}
	for _, f := range e {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".dat") {
			continue
		}
		data, err := readDat(filepath.Join(ddir, name))
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", name, err))
			continue
		}
		var parent []string
		var build func(key string, props map[string]any) (Record, error)
		if dim, ok := villageFiles[name]; ok {
			parent = []string{"data", "Villages"}
			build = func(key string, props map[string]any) (Record, error) {
				return villageRecord(name, key, dim, props)
			}
		} else {
			parent = []string{"data", "Features"}
			build = func(key string, props map[string]any) (Record, error) {
				return featureRecord(name, key, props)
			}
		}
		found := []Record{}
		err = collectRecords(data, parent, func(key string, props map[string]any) {
			r, err := build(key, props)
			if err != nil {
				merr = multierror.Append(merr, err)
				return
			}
			found = append(found, r)
		})
		// records before the damaged part are still good
		ret = append(ret, found...)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", name, err))
		}
	}
	sort.SliceStable(ret, func(i, j int) bool {
		if ret[i].Category != ret[j].Category {
			return ret[i].Category < ret[j].Category
		}
		if ret[i].Box.X1 != ret[j].Box.X1 {
			return ret[i].Box.X1 < ret[j].Box.X1
		}
		return ret[i].Box.Z1 < ret[j].Box.Z1
	})
	return ret, merr.ErrorOrNil()
}

// InDimension filters records of one dimension.
func InDimension(records []Record, dim string) []Record {
	ret := []Record{}
	for _, r := range records {
		if r.Dimension == dim {
			ret = append(ret, r)
		}
	}
	return ret
}
