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

// Package definitions holds block, biome and dimension tables used
// to turn decoded ids into colours.
package definitions

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrBadColor         = errors.New("bad colour")
)

//go:embed defaults.yaml
var defaultsYAML []byte

// UnknownColor is painted for ids missing from the table.
var UnknownColor = color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff}

// UnknownID is the id every unrecognised block and biome resolves to.
const UnknownID = 0

// SpawnMaxLight is the highest block light at which hostile mobs still spawn.
const SpawnMaxLight = 7

type Tint int

const (
	TintNone Tint = iota
	TintGrass
	TintFoliage
	TintWater
)

func (t *Tint) UnmarshalYAML(n *yaml.Node) error {
	switch strings.ToLower(n.Value) {
	case "", "none":
		*t = TintNone
	case "grass":
		*t = TintGrass
	case "foliage":
		*t = TintFoliage
	case "water":
		*t = TintWater
	default:
		return fmt.Errorf("line %d: unknown tint %q", n.Line, n.Value)
	}
	return nil
}

func (t Tint) MarshalYAML() (interface{}, error) {
	switch t {
	case TintGrass:
		return "grass", nil
	case TintFoliage:
		return "foliage", nil
	case TintWater:
		return "water", nil
	}
	return "none", nil
}

// Color is a #rrggbb value in yaml.
type Color color.RGBA

func (c *Color) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseColor(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*c = Color(v)
	return nil
}

func (c Color) String() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c Color) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("%w %q", ErrBadColor, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w %q: %v", ErrBadColor, s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

type BlockDef struct {
	ID          uint16 `yaml:"-"`
	Name        string `yaml:"name"`
	Color       Color  `yaml:"color"`
	Alpha       *int   `yaml:"alpha,omitempty"`
	Tint        Tint   `yaml:"tint,omitempty"`
	Air         bool   `yaml:"air,omitempty"`
	Solid       bool   `yaml:"solid,omitempty"`
	Transparent bool   `yaml:"transparent,omitempty"`
	Spawn       bool   `yaml:"spawn,omitempty"`
}

// Opacity is in [0, 1], air is fully transparent.
func (b BlockDef) Opacity() float64 {
	if b.Air {
		return 0
	}
	if b.Alpha == nil {
		return 1
	}
	return float64(clamp8(*b.Alpha)) / 255
}

type BiomeDef struct {
	ID      uint16 `yaml:"-"`
	Name    string `yaml:"name"`
	Grass   Color  `yaml:"grass"`
	Foliage Color  `yaml:"foliage"`
	Water   Color  `yaml:"water"`
}

type Dimension struct {
	Name  string  `yaml:"name" json:"name"`
	Path  string  `yaml:"path" json:"path"`
	Scale float64 `yaml:"scale" json:"scale"`
	MinY  int     `yaml:"minY" json:"minY"`
	MaxY  int     `yaml:"maxY" json:"maxY"`
}

// Appearance is the resolved look of a block in a biome.
type Appearance struct {
	Color   color.RGBA
	Opacity float64
}

type file struct {
	Dimensions []Dimension `yaml:"dimensions"`
	Biomes     []BiomeDef  `yaml:"biomes"`
	Blocks     []BlockDef  `yaml:"blocks"`
}

// Table is read-only once built and safe for concurrent use.
type Table struct {
	blocks     []BlockDef
	biomes     []BiomeDef
	blockNames map[string]uint16
	biomeNames map[string]uint16
	dims       []Dimension
}

var (
	defaultTable     *Table
	defaultTableErr  error
	defaultTableOnce sync.Once
)

// Default returns the table built from embedded definitions.
func Default() *Table {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = Parse(nil)
	})
	if defaultTableErr != nil {
		panic(defaultTableErr)
	}
	return defaultTable
}

// Load merges the yaml file at path over embedded definitions.
// Empty path loads defaults only.
func Load(path string) (*Table, error) {
	if path == "" {
		return Parse(nil)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse merges override over embedded definitions by name.
func Parse(override []byte) (*Table, error) {
	var base file
	if err := yaml.Unmarshal(defaultsYAML, &base); err != nil {
		return nil, fmt.Errorf("embedded definitions: %w", err)
	}
	if len(override) > 0 {
		var o file
		if err := yaml.Unmarshal(override, &o); err != nil {
			return nil, fmt.Errorf("definitions override: %w", err)
		}
		base.Blocks = mergeByName(base.Blocks, o.Blocks, func(b BlockDef) string { return b.Name })
		base.Biomes = mergeByName(base.Biomes, o.Biomes, func(b BiomeDef) string { return b.Name })
		base.Dimensions = mergeByName(base.Dimensions, o.Dimensions, func(d Dimension) string { return d.Name })
	}
	return build(base)
}

func mergeByName[T any](base, over []T, name func(T) string) []T {
	idx := map[string]int{}
	for i, v := range base {
		idx[name(v)] = i
	}
	for _, v := range over {
		if i, ok := idx[name(v)]; ok {
			base[i] = v
		} else {
			idx[name(v)] = len(base)
			base = append(base, v)
		}
	}
	return base
}

func build(f file) (*Table, error) {
	t := &Table{
		blocks:     make([]BlockDef, 1, len(f.Blocks)+1),
		biomes:     make([]BiomeDef, 1, len(f.Biomes)+1),
		blockNames: map[string]uint16{},
		biomeNames: map[string]uint16{},
	}
	t.blocks[UnknownID] = BlockDef{Name: "unknown", Color: Color(UnknownColor), Solid: true}
	t.biomes[UnknownID] = BiomeDef{
		Name:    "unknown",
		Grass:   Color{R: 0x91, G: 0xbd, B: 0x59, A: 0xff},
		Foliage: Color{R: 0x77, G: 0xab, B: 0x2f, A: 0xff},
		Water:   Color{R: 0x3f, G: 0x76, B: 0xe4, A: 0xff},
	}
	for _, b := range f.Blocks {
		n := normalizeName(b.Name)
		if _, ok := t.blockNames[n]; ok {
			return nil, fmt.Errorf("duplicate block %q", n)
		}
		if len(t.blocks) > 0xffff {
			return nil, errors.New("too many blocks")
		}
		b.ID = uint16(len(t.blocks))
		b.Name = n
		t.blockNames[n] = b.ID
		t.blocks = append(t.blocks, b)
	}
	for _, b := range f.Biomes {
		n := normalizeName(b.Name)
		if _, ok := t.biomeNames[n]; ok {
			return nil, fmt.Errorf("duplicate biome %q", n)
		}
		b.ID = uint16(len(t.biomes))
		b.Name = n
		t.biomeNames[n] = b.ID
		t.biomes = append(t.biomes, b)
	}
	for _, d := range f.Dimensions {
		if d.Name == "" {
			return nil, errors.New("dimension without a name")
		}
		if d.Scale <= 0 {
			d.Scale = 1
		}
		if d.MaxY < d.MinY {
			d.MinY, d.MaxY = d.MaxY, d.MinY
		}
		t.dims = append(t.dims, d)
	}
	return t, nil
}

func normalizeName(n string) string {
	n = strings.ToLower(strings.TrimSpace(n))
	if !strings.Contains(n, ":") {
		n = "minecraft:" + n
	}
	return n
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func (t *Table) BlockID(name string) uint16 {
	return t.blockNames[normalizeName(name)]
}

func (t *Table) BiomeID(name string) uint16 {
	return t.biomeNames[normalizeName(name)]
}

// Block returns the definition for id, unknown ids yield the unknown block.
func (t *Table) Block(id uint16) BlockDef {
	if int(id) >= len(t.blocks) {
		return t.blocks[UnknownID]
	}
	return t.blocks[id]
}

func (t *Table) Biome(id uint16) BiomeDef {
	if int(id) >= len(t.biomes) {
		return t.biomes[UnknownID]
	}
	return t.biomes[id]
}

// Blocks returns a copy of every known block without the unknown one.
func (t *Table) Blocks() []BlockDef {
	return append([]BlockDef(nil), t.blocks[1:]...)
}

func (t *Table) BlockCount() int {
	return len(t.blocks)
}

// Lookup resolves block colour with biome tint applied.
func (t *Table) Lookup(block, biome uint16) Appearance {
	b := t.Block(block)
	c := color.RGBA(b.Color)
	if b.Tint != TintNone {
		bi := t.Biome(biome)
		var tint Color
		switch b.Tint {
		case TintGrass:
			tint = bi.Grass
		case TintFoliage:
			tint = bi.Foliage
		case TintWater:
			tint = bi.Water
		}
		c = multiply(c, color.RGBA(tint))
	}
	c.A = 0xff
	return Appearance{Color: c, Opacity: b.Opacity()}
}

func multiply(a, b color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8(uint16(a.R) * uint16(b.R) / 255),
		G: uint8(uint16(a.G) * uint16(b.G) / 255),
		B: uint8(uint16(a.B) * uint16(b.B) / 255),
		A: a.A,
	}
}

func (t *Table) IsAir(id uint16) bool {
	return t.Block(id).Air
}

// IsSpawnSurface reports if hostile mobs can spawn on top of block id
// when the block above it has the given block light.
func (t *Table) IsSpawnSurface(id uint16, light uint8) bool {
	b := t.Block(id)
	return b.Spawn && b.Solid && !b.Transparent && light <= SpawnMaxLight
}

// Dimension finds a dimension by its name or its folder path.
func (t *Table) Dimension(name string) (Dimension, error) {
	for _, d := range t.dims {
		if d.Name == name || d.Path == name {
			return d, nil
		}
	}
	return Dimension{}, fmt.Errorf("%w %q", ErrUnknownDimension, name)
}

func (t *Table) Dimensions() []Dimension {
	ret := make([]Dimension, len(t.dims))
	copy(ret, t.dims)
	return ret
}
