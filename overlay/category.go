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

package overlay

import (
	"image/color"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kind is the closed set of overlay categories the viewer knows about,
// everything else is KindOther and carries its own name.
type Kind int

const (
	KindOther Kind = iota
	KindEntity
	KindVillage
	KindStructure
	KindSearch
)

var kindNames = map[Kind]string{
	KindOther:     "Other",
	KindEntity:    "Entity",
	KindVillage:   "Village",
	KindStructure: "Structure",
	KindSearch:    "Search",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Other"
}

// KindOf classifies a category name by its first dotted segment,
// "Structure.Fortress" is KindStructure.
func KindOf(category string) Kind {
	head, _, _ := strings.Cut(category, ".")
	for k, n := range kindNames {
		if k != KindOther && strings.EqualFold(head, n) {
			return k
		}
	}
	return KindOther
}

// CategoryColor derives a stable colour from the category name.
func CategoryColor(category string) color.NRGBA {
	hue := float64(xxhash.Sum64String(category) % 360)
	r, g, b := hsv(hue, 1, 1)
	return color.NRGBA{R: r, G: g, B: b, A: 64}
}

// EntityColor guesses how dangerous an entity is from its properties:
// breedable and utility mobs are white, small records (mostly items)
// blue, everything else red.
func EntityColor(props map[string]any) color.NRGBA {
	id, _ := props["id"].(string)
	id = strings.TrimPrefix(id, "minecraft:")
	_, inLove := props["InLove"]
	_, willing := props["Willing"]
	switch {
	case inLove, willing,
		strings.Contains(strings.ToLower(id), "golem"),
		id == "SnowMan", id == "snow_golem",
		strings.EqualFold(id, "squid"),
		strings.EqualFold(id, "bat"):
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 128}
	case len(props) < 20:
		return color.NRGBA{R: 0x00, G: 0x00, B: 0xff, A: 128}
	default:
		return color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 128}
	}
}

// ColorFor picks the default colour of an entry.
func ColorFor(category string, props map[string]any) color.NRGBA {
	if KindOf(category) == KindEntity && props != nil {
		return EntityColor(props)
	}
	return CategoryColor(category)
}

func hsv(h, s, v float64) (uint8, uint8, uint8) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return uint8(math.Round((r + m) * 255)), uint8(math.Round((g + m) * 255)), uint8(math.Round((b + m) * 255))
}
