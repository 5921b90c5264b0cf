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

package imageCache

import (
	"image"
	"image/draw"
	"image/png"
	"os"
	"path"
)

// SavePNG writes img next to storePath and renames it into place,
// a failed write never leaves a partial file behind.
func SavePNG(storePath string, img image.Image) error {
	err := os.MkdirAll(path.Dir(storePath), 0764)
	if err != nil {
		return err
	}
	tmp := storePath + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = png.Encode(file, img)
	if err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	err = file.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, storePath)
}

func LoadPNG(fp string) (*image.RGBA, error) {
	f, err := os.Open(fp)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ii, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	return ToRGBA(ii), nil
}

func ToRGBA(ii image.Image) *image.RGBA {
	if iirgba, ok := ii.(*image.RGBA); ok {
		return iirgba
	}
	b := ii.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), ii, b.Min, draw.Src)
	return dst
}

func CopyRGBA(from *image.RGBA) *image.RGBA {
	if from == nil {
		return nil
	}
	dx := from.Rect.Dx()
	dy := from.Rect.Dy()
	to := image.NewRGBA(image.Rect(0, 0, dx, dy))
	draw.DrawMask(to, to.Rect, from, from.Rect.Min, nil, image.Point{}, draw.Src)
	return to
}
