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

// Package nbtwalk is a reflectless NBT reader that reports every tag
// through callbacks instead of building a tree.
package nbtwalk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Tnze/go-mc/nbt"
)

var (
	ErrUnknownTag       = errors.New("unknown tag")
	ErrUnexpectedEndTag = errors.New("unexpected TagEnd")
	ErrNegativeSize     = errors.New("negative size")
	ErrOutOfBounds      = errors.New("out of bounds")
)

type ContextedError struct {
	E            error
	ReadingStage string
	Offset       int
}

func (err ContextedError) Error() string {
	return fmt.Sprintf("%s at %d: %s", err.E.Error(), err.Offset, err.ReadingStage)
}

func (err ContextedError) Unwrap() error {
	return err.E
}

// NBTnode is an open compound or list on the way to the current tag.
type NBTnode struct {
	T byte
	N string
	// S and E are the length and element type of a list
	S      int
	E      byte
	toRead int
}

// Index is the position of the list element being read.
func (n NBTnode) Index() int {
	return n.S - n.toRead - 1
}

func ByteTagName(b byte) string {
	names := []string{
		"TagEnd",
		"TagByte",
		"TagShort",
		"TagInt",
		"TagLong",
		"TagFloat",
		"TagDouble",
		"TagByteArray",
		"TagString",
		"TagList",
		"TagCompound",
		"TagIntArray",
		"TagLongArray",
	}
	if int(b) >= len(names) {
		return fmt.Sprintf("unknown tag 0x%02x", b)
	}
	return names[b]
}

func PrintNodeSlice(p []NBTnode) string {
	var b strings.Builder
	for _, v := range p {
		if v.T == nbt.TagList {
			fmt.Fprintf(&b, ".%q[%d]", v.N, v.Index())
		} else {
			fmt.Fprintf(&b, ".%q", v.N)
		}
	}
	return b.String()
}

// Path joins node names with dots, list elements become their index.
func Path(p []NBTnode) string {
	parts := make([]string, 0, len(p))
	for i, v := range p {
		if i > 0 && p[i-1].T != nbt.TagList {
			parts = append(parts, v.N)
		}
		if v.T == nbt.TagList && len(parts) > 0 {
			parts[len(parts)-1] += fmt.Sprintf("[%d]", v.Index())
		}
	}
	return strings.Join(parts, ".")
}

type WalkerCallbacks struct {
	CbEnd       func(p []NBTnode)
	CbByte      func(p []NBTnode, n string, val byte)
	CbShort     func(p []NBTnode, n string, val uint16)
	CbInt       func(p []NBTnode, n string, val uint32)
	CbLong      func(p []NBTnode, n string, val uint64)
	CbFloat     func(p []NBTnode, n string, val float32)
	CbDouble    func(p []NBTnode, n string, val float64)
	CbByteArray func(p []NBTnode, n string, val []byte)
	CbString    func(p []NBTnode, n string, val string)
	CbList      func(p []NBTnode, n string, t byte, l int)
	CbCompound  func(p []NBTnode, n string)
	CbIntArray  func(p []NBTnode, n string, val []uint32)
	CbLongArray func(p []NBTnode, n string, val []uint64)
}

func need(data []byte, i, n int, stage string) error {
	if i+n > len(data) {
		return ContextedError{
			E:            ErrOutOfBounds,
			ReadingStage: stage,
			Offset:       i,
		}
	}
	return nil
}

// inspired by github.com/rmmh/cubeographer
// callbacks get entered and exited from nbt tree, p holds the open
// compounds and lists. List elements have no names, their callbacks
// get an empty one and the list node tells the index.
func WalkNBT(data []byte, cb *WalkerCallbacks) error {
	if cb == nil {
		cb = &WalkerCallbacks{}
	}
	p := make([]NBTnode, 0, 32)
	for i := 0; i < len(data); {
		var t byte
		n := ""
		if len(p) > 0 && p[len(p)-1].T == nbt.TagList {
			top := &p[len(p)-1]
			if top.toRead == 0 {
				p = p[:len(p)-1]
				if len(p) == 0 {
					return nil
				}
				continue
			}
			top.toRead--
			t = top.E
		} else {
			t = data[i]
			i++
			if t == nbt.TagEnd {
				if len(p) == 0 {
					return ContextedError{
						E:            ErrUnexpectedEndTag,
						ReadingStage: "end at the root",
						Offset:       i,
					}
				}
				if cb.CbEnd != nil {
					cb.CbEnd(p)
				}
				p = p[:len(p)-1]
				if len(p) == 0 {
					return nil
				}
				continue
			}
			if err := need(data, i, 2, "name size absent"); err != nil {
				return err
			}
			ns := int(binary.BigEndian.Uint16(data[i:]))
			i += 2
			if err := need(data, i, ns, fmt.Sprintf("name too big (%d > %d)", i+ns, len(data))); err != nil {
				return err
			}
			n = string(data[i : i+ns])
			i += ns
		}
		switch t {
		default:
			return ContextedError{
				E:            ErrUnknownTag,
				ReadingStage: ByteTagName(t),
				Offset:       i,
			}
		case nbt.TagByte:
			if err := need(data, i, 1, "payload absent"); err != nil {
				return err
			}
			if cb.CbByte != nil {
				cb.CbByte(p, n, data[i])
			}
			i += 1
		case nbt.TagShort:
			if err := need(data, i, 2, "payload absent"); err != nil {
				return err
			}
			if cb.CbShort != nil {
				cb.CbShort(p, n, binary.BigEndian.Uint16(data[i:]))
			}
			i += 2
		case nbt.TagInt:
			if err := need(data, i, 4, "payload absent"); err != nil {
				return err
			}
			if cb.CbInt != nil {
				cb.CbInt(p, n, binary.BigEndian.Uint32(data[i:]))
			}
			i += 4
		case nbt.TagLong:
			if err := need(data, i, 8, "payload absent"); err != nil {
				return err
			}
			if cb.CbLong != nil {
				cb.CbLong(p, n, binary.BigEndian.Uint64(data[i:]))
			}
			i += 8
		case nbt.TagFloat:
			if err := need(data, i, 4, "payload absent"); err != nil {
				return err
			}
			if cb.CbFloat != nil {
				cb.CbFloat(p, n, math.Float32frombits(binary.BigEndian.Uint32(data[i:])))
			}
			i += 4
		case nbt.TagDouble:
			if err := need(data, i, 8, "payload absent"); err != nil {
				return err
			}
			if cb.CbDouble != nil {
				cb.CbDouble(p, n, math.Float64frombits(binary.BigEndian.Uint64(data[i:])))
			}
			i += 8
		case nbt.TagByteArray:
			if err := need(data, i, 4, "payload length absent"); err != nil {
				return err
			}
			s := int(int32(binary.BigEndian.Uint32(data[i:])))
			if s < 0 {
				return ContextedError{E: ErrNegativeSize, ReadingStage: "byte array", Offset: i}
			}
			i += 4
			if err := need(data, i, s, "array size too big"); err != nil {
				return err
			}
			if cb.CbByteArray != nil {
				cb.CbByteArray(p, n, data[i:i+s])
			}
			i += s
		case nbt.TagString:
			if err := need(data, i, 2, "string size absent"); err != nil {
				return err
			}
			s := int(binary.BigEndian.Uint16(data[i:]))
			i += 2
			if err := need(data, i, s, "string size too big"); err != nil {
				return err
			}
			if cb.CbString != nil {
				cb.CbString(p, n, string(data[i:i+s]))
			}
			i += s
		case nbt.TagList:
			if err := need(data, i, 5, "length absent"); err != nil {
				return err
			}
			lt := data[i]
			if lt > nbt.TagLongArray {
				return ContextedError{
					E:            ErrUnknownTag,
					ReadingStage: "list type is weird",
					Offset:       i,
				}
			}
			ls := int(int32(binary.BigEndian.Uint32(data[i+1:])))
			if ls < 0 {
				return ContextedError{E: ErrNegativeSize, ReadingStage: "list", Offset: i}
			}
			if lt == nbt.TagEnd && ls > 0 {
				return ContextedError{
					E:            ErrUnexpectedEndTag,
					ReadingStage: "list of TagEnd",
					Offset:       i,
				}
			}
			i += 5
			if cb.CbList != nil {
				cb.CbList(p, n, lt, ls)
			}
			p = append(p, NBTnode{
				T:      nbt.TagList,
				N:      n,
				S:      ls,
				E:      lt,
				toRead: ls,
			})
		case nbt.TagCompound:
			if cb.CbCompound != nil {
				cb.CbCompound(p, n)
			}
			p = append(p, NBTnode{
				T: nbt.TagCompound,
				N: n,
			})
		case nbt.TagIntArray:
			if err := need(data, i, 4, "array length absent"); err != nil {
				return err
			}
			s := int(int32(binary.BigEndian.Uint32(data[i:])))
			if s < 0 {
				return ContextedError{E: ErrNegativeSize, ReadingStage: "int array", Offset: i}
			}
			i += 4
			if err := need(data, i, s*4, "array too big"); err != nil {
				return err
			}
			if cb.CbIntArray != nil {
				arr := make([]uint32, s)
				for ii := range arr {
					arr[ii] = binary.BigEndian.Uint32(data[i+ii*4:])
				}
				cb.CbIntArray(p, n, arr)
			}
			i += s * 4
		case nbt.TagLongArray:
			if err := need(data, i, 4, "array length absent"); err != nil {
				return err
			}
			s := int(int32(binary.BigEndian.Uint32(data[i:])))
			if s < 0 {
				return ContextedError{E: ErrNegativeSize, ReadingStage: "long array", Offset: i}
			}
			i += 4
			if err := need(data, i, s*8, "array too big"); err != nil {
				return err
			}
			if cb.CbLongArray != nil {
				arr := make([]uint64, s)
				for ii := range arr {
					arr[ii] = binary.BigEndian.Uint64(data[i+ii*8:])
				}
				cb.CbLongArray(p, n, arr)
			}
			i += s * 8
		}
	}
	if len(p) > 0 {
		return ContextedError{
			E:            ErrOutOfBounds,
			ReadingStage: "data ends inside " + PrintNodeSlice(p),
			Offset:       len(data),
		}
	}
	return nil
}
