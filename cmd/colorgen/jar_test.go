package main

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func solidPNG(t *testing.T, w, h int, fill func(x, y int) color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testJar(t *testing.T) *jar {
	gray := color.NRGBA{R: 100, G: 100, B: 100, A: 255}
	files := map[string][]byte{
		"assets/minecraft/blockstates/stone.json":        []byte(`{"variants":{"":{"model":"minecraft:block/stone"}}}`),
		"assets/minecraft/models/block/stone.json":       []byte(`{"parent":"minecraft:block/cube_all","textures":{"all":"minecraft:block/stone"}}`),
		"assets/minecraft/models/block/cube_all.json":    []byte(`{"parent":"block/cube","textures":{"particle":"#all"}}`),
		"assets/minecraft/textures/block/stone.png":      solidPNG(t, 16, 16, func(int, int) color.NRGBA { return gray }),
		"assets/minecraft/blockstates/magma_block.json":  []byte(`{"variants":{"facing=down":[{"model":"block/magma"},{"model":"block/other"}],"facing=up":{"model":"block/other"}}}`),
		"assets/minecraft/models/block/magma.json":       []byte(`{"textures":{"particle":"#top","top":"block/magma"}}`),
		"assets/minecraft/textures/block/magma.png":      solidPNG(t, 16, 32, func(_, y int) color.NRGBA { return map[bool]color.NRGBA{true: {R: 200, A: 255}, false: {B: 200, A: 255}}[y < 16] }),
		"assets/minecraft/blockstates/tinted_glass.json": []byte(`{"multipart":[{"when":{"up":"true"},"apply":{"model":"block/other"}},{"apply":{"model":"block/tinted_glass"}}]}`),
		"assets/minecraft/models/block/tinted_glass.json": []byte(`{"textures":{"all":"block/tinted_glass"}}`),
		"assets/minecraft/textures/block/tinted_glass.png": solidPNG(t, 16, 16, func(x, _ int) color.NRGBA {
			if x%2 == 0 {
				return color.NRGBA{G: 80, A: 128}
			}
			return color.NRGBA{}
		}),
		"assets/minecraft/blockstates/broken.json": []byte(`{"variants":{"":{"model":"block/missing"}}}`),
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for n, b := range files {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write(b)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return newJar(zr)
}

func TestBlockColor(t *testing.T) {
	j := testJar(t)
	assert.Equal(t, []string{"broken", "magma_block", "stone", "tinted_glass"}, j.blockNames())

	c, err := j.blockColor("stone")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 255}, c)

	// first frame of the strip only
	c, err = j.blockColor("magma_block")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 200, A: 255}, c)

	c, err = j.blockColor("tinted_glass")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 80, A: 64}, c)

	_, err = j.blockColor("broken")
	assert.ErrorIs(t, err, errNoModel)
	_, err = j.blockColor("dirt")
	assert.ErrorIs(t, err, errNoModel)
}

func TestGenerate(t *testing.T) {
	j := testJar(t)
	base := definitions.Default()
	blocks, failed := generate(j, base, false)
	assert.Equal(t, 0, failed)
	require.Len(t, blocks, 1)
	assert.Equal(t, "minecraft:stone", blocks[0].Name)
	assert.True(t, blocks[0].Solid)

	blocks, failed = generate(j, base, true)
	assert.Equal(t, 1, failed)
	require.Len(t, blocks, 3)

	out, err := yaml.Marshal(overrideFile{Blocks: blocks})
	require.NoError(t, err)
	tb, err := definitions.Parse(out)
	require.NoError(t, err)
	stone := tb.Block(tb.BlockID("stone"))
	assert.Equal(t, "#646464", stone.Color.String())
	glass := tb.Block(tb.BlockID("tinted_glass"))
	require.NotEqual(t, uint16(definitions.UnknownID), glass.ID)
	assert.False(t, glass.Solid)
	assert.Less(t, glass.Opacity(), 1.0)
}
