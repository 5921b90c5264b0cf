package postgresChunkSource

import (
	"bytes"
	"compress/zlib"
	"context"
	"os"
	"testing"

	"github.com/Tnze/go-mc/nbt"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedChunk struct {
	XPos int32 `nbt:"xPos"`
	ZPos int32 `nbt:"zPos"`
}

func TestLoadStoredBareNBT(t *testing.T) {
	d, err := nbt.Marshal(storedChunk{XPos: 4, ZPos: -7})
	require.NoError(t, err)
	c, err := loadStored(d)
	require.NoError(t, err)
	assert.Equal(t, int32(4), c.XPos)
	assert.Equal(t, int32(-7), c.ZPos)
}

func TestLoadStoredSector(t *testing.T) {
	raw, err := nbt.Marshal(storedChunk{XPos: 1, ZPos: 2})
	require.NoError(t, err)
	var buf bytes.Buffer
	buf.WriteByte(2)
	zw := zlib.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	c, err := loadStored(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int32(2), c.ZPos)
}

func TestLoadStoredGarbage(t *testing.T) {
	_, err := loadStored([]byte{nbt.TagCompound, 0xff})
	assert.ErrorIs(t, err, chunkSource.ErrMalformed)
	_, err = loadStored([]byte{7, 7, 7})
	assert.Error(t, err)
}

// Needs a WebChunk database, CHUNKVIEW_TEST_POSTGRES holds the
// connection string and CHUNKVIEW_TEST_WORLD the world name.
func TestDatabase(t *testing.T) {
	conn := os.Getenv("CHUNKVIEW_TEST_POSTGRES")
	if conn == "" {
		t.Skip("CHUNKVIEW_TEST_POSTGRES is not set")
	}
	s, err := NewPostgresChunkSource(context.Background(), nil, conn, os.Getenv("CHUNKVIEW_TEST_WORLD"), definitions.Default())
	require.NoError(t, err)
	defer s.Close()
	_, _, err = s.GetStatus()
	require.NoError(t, err)
	_, err = s.ListChunks("no_such_dimension")
	assert.ErrorIs(t, err, chunkSource.ErrNoDimension)
	_, err = s.DecodeChunk("no_such_dimension", 0, 0)
	assert.ErrorIs(t, err, chunkSource.ErrNotFound)
}
