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
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"strings"

	"github.com/nfnt/resize"
)

const (
	blockstatesPrefix = "assets/minecraft/blockstates/"
	modelsPrefix      = "assets/minecraft/models/"
	texturesPrefix    = "assets/minecraft/textures/"
	// models nest deeper than this only when they loop
	maxParents = 16
	// textures are averaged at most at this size
	sampleSize = 16
)

var (
	errNoModel   = errors.New("no model")
	errNoTexture = errors.New("no texture")
)

// texturePreference picks the face seen from above first.
var texturePreference = []string{"top", "end", "all", "texture", "cross", "plant", "particle", "side"}

type jar struct {
	files  map[string]*zip.File
	colors map[string]color.NRGBA
}

func newJar(r *zip.Reader) *jar {
	j := &jar{files: map[string]*zip.File{}, colors: map[string]color.NRGBA{}}
	for _, f := range r.File {
		j.files[f.Name] = f
	}
	return j
}

func (j *jar) readJSON(name string, v any) error {
	f, ok := j.files[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, errNoModel)
	}
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	return json.NewDecoder(r).Decode(v)
}

// blockNames lists blocks that have a blockstate file, sorted.
func (j *jar) blockNames() []string {
	ret := []string{}
	for n := range j.files {
		if strings.HasPrefix(n, blockstatesPrefix) && strings.HasSuffix(n, ".json") {
			ret = append(ret, strings.TrimSuffix(strings.TrimPrefix(n, blockstatesPrefix), ".json"))
		}
	}
	sort.Strings(ret)
	return ret
}

type modelRef struct {
	Model string `json:"model"`
}

type blockstate struct {
	Variants  map[string]json.RawMessage `json:"variants"`
	Multipart []struct {
		When  json.RawMessage `json:"when"`
		Apply json.RawMessage `json:"apply"`
	} `json:"multipart"`
}

// firstModel reads either a single model or the first of a weighted list.
func firstModel(raw json.RawMessage) string {
	var one modelRef
	if json.Unmarshal(raw, &one) == nil && one.Model != "" {
		return one.Model
	}
	var many []modelRef
	if json.Unmarshal(raw, &many) == nil && len(many) > 0 {
		return many[0].Model
	}
	return ""
}

// stateModel picks the default variant, or the unconditional part of a
// multipart block.
func (j *jar) stateModel(block string) (string, error) {
	var bs blockstate
	if err := j.readJSON(blockstatesPrefix+block+".json", &bs); err != nil {
		return "", err
	}
	if len(bs.Variants) > 0 {
		keys := make([]string, 0, len(bs.Variants))
		for k := range bs.Variants {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if m := firstModel(bs.Variants[keys[0]]); m != "" {
			return m, nil
		}
	}
	for _, p := range bs.Multipart {
		if len(p.When) == 0 {
			if m := firstModel(p.Apply); m != "" {
				return m, nil
			}
		}
	}
	if len(bs.Multipart) > 0 {
		if m := firstModel(bs.Multipart[0].Apply); m != "" {
			return m, nil
		}
	}
	return "", fmt.Errorf("%s: %w", block, errNoModel)
}

func stripNamespace(s string) string {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// modelTexture walks the parent chain collecting texture variables and
// resolves the preferred one to a texture path.
func (j *jar) modelTexture(model string) (string, error) {
	vars := map[string]string{}
	for i := 0; model != "" && i < maxParents; i++ {
		var m struct {
			Parent   string            `json:"parent"`
			Textures map[string]string `json:"textures"`
		}
		if err := j.readJSON(modelsPrefix+stripNamespace(model)+".json", &m); err != nil {
			if i == 0 {
				return "", err
			}
			// builtin parents have no file
			break
		}
		for k, v := range m.Textures {
			if _, ok := vars[k]; !ok {
				vars[k] = v
			}
		}
		model = m.Parent
	}
	resolve := func(v string) string {
		for i := 0; strings.HasPrefix(v, "#") && i < maxParents; i++ {
			v = vars[v[1:]]
		}
		if strings.HasPrefix(v, "#") {
			return ""
		}
		return v
	}
	for _, k := range texturePreference {
		if t := resolve(vars[k]); t != "" {
			return stripNamespace(t), nil
		}
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t := resolve(vars[k]); t != "" {
			return stripNamespace(t), nil
		}
	}
	return "", fmt.Errorf("%s: %w", model, errNoTexture)
}

// textureColor averages the first animation frame, weighted by alpha.
func (j *jar) textureColor(texture string) (color.NRGBA, error) {
	if c, ok := j.colors[texture]; ok {
		return c, nil
	}
	name := texturesPrefix + texture + ".png"
	f, ok := j.files[name]
	if !ok {
		return color.NRGBA{}, fmt.Errorf("%s: %w", name, errNoTexture)
	}
	r, err := f.Open()
	if err != nil {
		return color.NRGBA{}, err
	}
	defer r.Close()
	c, err := averageColor(r)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%s: %w", name, err)
	}
	j.colors[texture] = c
	return c, nil
}

func averageColor(r io.Reader) (color.NRGBA, error) {
	img, err := png.Decode(r)
	if err != nil {
		return color.NRGBA{}, err
	}
	b := img.Bounds()
	if b.Dy() > b.Dx() {
		b.Max.Y = b.Min.Y + b.Dx()
		if s, ok := img.(interface {
			SubImage(image.Rectangle) image.Image
		}); ok {
			img = s.SubImage(b)
		}
	}
	if b.Dx() > sampleSize {
		img = resize.Resize(sampleSize, sampleSize, img, resize.Bilinear)
		b = img.Bounds()
	}
	var rs, gs, bs, as, n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rs += uint64(c.R) * uint64(c.A)
			gs += uint64(c.G) * uint64(c.A)
			bs += uint64(c.B) * uint64(c.A)
			as += uint64(c.A)
			n++
		}
	}
	if n == 0 || as == 0 {
		return color.NRGBA{}, nil
	}
	return color.NRGBA{
		R: uint8(rs / as),
		G: uint8(gs / as),
		B: uint8(bs / as),
		A: uint8(as / n),
	}, nil
}

// blockColor goes blockstate, model, texture.
func (j *jar) blockColor(block string) (color.NRGBA, error) {
	m, err := j.stateModel(block)
	if err != nil {
		return color.NRGBA{}, err
	}
	t, err := j.modelTexture(m)
	if err != nil {
		return color.NRGBA{}, err
	}
	return j.textureColor(t)
}
