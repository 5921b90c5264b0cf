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

// Package postgresChunkSource reads chunks collected into a WebChunk
// database.
package postgresChunkSource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/primitives"
)

type PostgresChunkSource struct {
	World  string
	logger *log.Logger
	res    chunkSource.Resolver
	dbpool *pgxpool.Pool
}

func NewPostgresChunkSource(ctx context.Context, logger *log.Logger, connection, world string, res chunkSource.Resolver) (*PostgresChunkSource, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	p, err := pgxpool.Connect(ctx, connection)
	if err != nil {
		return nil, err
	}
	return &PostgresChunkSource{World: world, logger: logger, res: res, dbpool: p}, nil
}

func (s *PostgresChunkSource) Close() error {
	s.dbpool.Close()
	return nil
}

func (s *PostgresChunkSource) DecodeChunk(dimension string, cx, cz int) (*chunkSource.Chunk, error) {
	var d []byte
	derr := s.dbpool.QueryRow(context.Background(), `
		select data
		from chunks
		where x = $1 AND z = $2 AND
			dim = (select dimensions.id
			 from dimensions
			 where dimensions.world = $3 and dimensions.name = $4)
		order by created_at desc
		limit 1;`, cx, cz, s.World, dimension).Scan(&d)
	if derr != nil {
		if errors.Is(derr, pgx.ErrNoRows) {
			return nil, chunkSource.ErrNotFound
		}
		s.logger.Print(derr.Error())
		return nil, derr
	}
	c, err := loadStored(d)
	if err != nil {
		return nil, fmt.Errorf("chunk %d:%d: %w", cx, cz, err)
	}
	ret, err := chunkSource.FromSave(c, s.res)
	if err != nil {
		return nil, fmt.Errorf("chunk %d:%d: %w", cx, cz, err)
	}
	ret.Pos = primitives.ChunkPos{X: cx, Z: cz}
	return ret, nil
}

// loadStored accepts both region sector layout and bare NBT, WebChunk
// stored chunks both ways over time.
func loadStored(d []byte) (*save.Chunk, error) {
	if len(d) > 0 && d[0] == nbt.TagCompound {
		var c save.Chunk
		if err := nbt.Unmarshal(d, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", chunkSource.ErrMalformed, err)
		}
		return &c, nil
	}
	return chunkSource.LoadRaw(d)
}

func (s *PostgresChunkSource) ListChunks(dimension string) ([]primitives.ChunkPos, error) {
	ret := []primitives.ChunkPos{}
	var dimID int
	err := s.dbpool.QueryRow(context.Background(), `SELECT id FROM dimensions WHERE world = $1 and name = $2`, s.World, dimension).Scan(&dimID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ret, chunkSource.ErrNoDimension
		}
		return ret, err
	}
	rows, err := s.dbpool.Query(context.Background(), `select distinct x, z from chunks where dim = $1`, dimID)
	if err != nil {
		return ret, err
	}
	defer rows.Close()
	for rows.Next() {
		var x, z int32
		if err := rows.Scan(&x, &z); err != nil {
			s.logger.Print(err.Error())
			continue
		}
		ret = append(ret, primitives.ChunkPos{X: int(x), Z: int(z)})
	}
	chunkSource.SortPositions(ret)
	return ret, rows.Err()
}

// GetStatus reports database version and chunk count.
func (s *PostgresChunkSource) GetStatus() (string, uint64, error) {
	var ver string
	var count uint64
	if err := s.dbpool.QueryRow(context.Background(), `SELECT version();`).Scan(&ver); err != nil {
		return "", 0, err
	}
	err := s.dbpool.QueryRow(context.Background(), `SELECT COUNT(id) from chunks;`).Scan(&count)
	return ver, count, err
}
