package nbtwalk

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/Tnze/go-mc/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendName(data []byte, name string) []byte {
	ret := binary.BigEndian.AppendUint16(data, uint16(len(name)))
	return append(ret, []byte(name)...)
}

func TestBasicCompound(t *testing.T) {
	data := []byte{nbt.TagCompound}
	data = appendName(data, "Testing")

	data = append(data, nbt.TagString)
	data = appendName(data, "Hello")
	data = appendName(data, "World")

	data = append(data, nbt.TagCompound)
	data = appendName(data, "Arrays")

	data = append(data, nbt.TagByteArray)
	data = appendName(data, "The112233")
	data = append(data, 0, 0, 0, 3)
	data = append(data, 11, 22, 33)

	data = append(data, nbt.TagIntArray)
	data = appendName(data, "NumberNine")
	data = append(data, 0, 0, 0, 1)
	data = binary.BigEndian.AppendUint32(data, 9)

	data = append(data, nbt.TagLongArray)
	data = appendName(data, "NumberNineNine")
	data = append(data, 0, 0, 0, 1)
	data = binary.BigEndian.AppendUint64(data, 99)

	data = append(data, nbt.TagEnd)

	data = append(data, nbt.TagByte)
	data = appendName(data, "Nice")
	data = append(data, 0x69)

	data = append(data, nbt.TagEnd)

	got := []string{}
	ends := 0
	err := WalkNBT(data, &WalkerCallbacks{
		CbEnd: func(p []NBTnode) {
			ends++
		},
		CbByte: func(p []NBTnode, n string, val byte) {
			got = append(got, fmt.Sprintf("%s.%s=%d", Path(p), n, val))
		},
		CbString: func(p []NBTnode, n string, val string) {
			got = append(got, fmt.Sprintf("%s.%s=%s", Path(p), n, val))
		},
		CbByteArray: func(p []NBTnode, n string, val []byte) {
			got = append(got, fmt.Sprintf("%s.%s=%v", Path(p), n, val))
		},
		CbIntArray: func(p []NBTnode, n string, val []uint32) {
			got = append(got, fmt.Sprintf("%s.%s=%v", Path(p), n, val))
		},
		CbLongArray: func(p []NBTnode, n string, val []uint64) {
			got = append(got, fmt.Sprintf("%s.%s=%v", Path(p), n, val))
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		".Hello=World",
		"Arrays.The112233=[11 22 33]",
		"Arrays.NumberNine=[9]",
		"Arrays.NumberNineNine=[99]",
		".Nice=105",
	}, got)
	assert.Equal(t, 2, ends)
}

type item struct {
	Slot  int8   `nbt:"Slot"`
	ID    string `nbt:"id"`
	Count int8   `nbt:"Count"`
}

type player struct {
	Pos       []float64 `nbt:"Pos"`
	Dimension string    `nbt:"Dimension"`
	Inventory []item    `nbt:"Inventory"`
	Empty     []string  `nbt:"Empty"`
	SpawnX    int32     `nbt:"SpawnX"`
}

func TestListElements(t *testing.T) {
	data, err := nbt.Marshal(player{
		Pos:       []float64{10.5, 64, -300.25},
		Dimension: "minecraft:the_nether",
		Inventory: []item{{Slot: 0, ID: "minecraft:torch", Count: 3}, {Slot: 8, ID: "minecraft:bread", Count: 1}},
		Empty:     []string{},
		SpawnX:    -12,
	})
	require.NoError(t, err)

	pos := map[int]float64{}
	ids := map[string]string{}
	lists := map[string]int{}
	var spawn int32
	var dim string
	err = WalkNBT(data, &WalkerCallbacks{
		CbDouble: func(p []NBTnode, n string, val float64) {
			require.Len(t, p, 2)
			assert.Equal(t, "", n)
			assert.Equal(t, byte(nbt.TagDouble), p[1].E)
			pos[p[1].Index()] = val
		},
		CbString: func(p []NBTnode, n string, val string) {
			if n == "Dimension" {
				dim = val
				return
			}
			ids[Path(p)+"."+n] = val
		},
		CbInt: func(p []NBTnode, n string, val uint32) {
			if len(p) == 1 && n == "SpawnX" {
				spawn = int32(val)
			}
		},
		CbList: func(p []NBTnode, n string, tp byte, l int) {
			lists[n] = l
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 10.5, 1: 64, 2: -300.25}, pos)
	assert.Equal(t, "minecraft:the_nether", dim)
	assert.Equal(t, int32(-12), spawn)
	assert.Equal(t, map[string]string{
		"Inventory[0].id": "minecraft:torch",
		"Inventory[1].id": "minecraft:bread",
	}, ids)
	assert.Equal(t, 3, lists["Pos"])
	assert.Equal(t, 2, lists["Inventory"])
	assert.Equal(t, 0, lists["Empty"])
}

func TestNilCallbacks(t *testing.T) {
	data, err := nbt.Marshal(player{Pos: []float64{1, 2, 3}, Inventory: []item{{ID: "a"}}})
	require.NoError(t, err)
	assert.NoError(t, WalkNBT(data, nil))
	assert.NoError(t, WalkNBT(data, &WalkerCallbacks{}))
}

func TestTruncated(t *testing.T) {
	data, err := nbt.Marshal(player{Pos: []float64{1, 2, 3}, Dimension: "overworld"})
	require.NoError(t, err)
	for _, cut := range []int{1, 4, len(data) / 2, len(data) - 1} {
		err := WalkNBT(data[:cut], nil)
		assert.ErrorIs(t, err, ErrOutOfBounds, "cut at %d", cut)
	}

	err = WalkNBT([]byte{nbt.TagEnd}, nil)
	assert.ErrorIs(t, err, ErrUnexpectedEndTag)

	bad := append([]byte{nbt.TagCompound}, appendName(nil, "")...)
	bad = append(bad, 0x42, 0, 0)
	err = WalkNBT(bad, nil)
	assert.ErrorIs(t, err, ErrUnknownTag)
}
