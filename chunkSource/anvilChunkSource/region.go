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

package anvilChunkSource

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Tnze/go-mc/save/region"
	"github.com/maxsupermanhd/chunkview/primitives"
)

const inactivityTimeout = time.Minute

type regionLocator struct {
	dimension string
	rx, rz    int
}

type regionRequest struct {
	op        regionRouterComand
	dimension string
	cx, cz    int
	err       error
	result    chan interface{}
}

type regionRouterComand int

const (
	regionRouterCloseRegion regionRouterComand = iota
	regionRouterForgetRegion
	regionRouterGetChunk
	regionRouterListChunks
)

func (r regionRequest) reply(v interface{}) {
	if r.result != nil {
		r.result <- v
	}
}

// region router receives requests and starts a goroutine for each
// region file, requests of the same file are served in order by it
func (s *AnvilChunkSource) regionRouter() {
	defer s.wg.Done()
	s.logger.Println("Region router started for", s.Root)
	type regionInterface struct {
		exists      bool
		err         error
		c           chan regionRequest
		lastRequest time.Time
	}
	w := map[regionLocator]regionInterface{}
	internal := make(chan regionRequest, 32)
	autoclose := time.NewTicker(inactivityTimeout / 2)
	defer autoclose.Stop()
	scheduleWorker := func(l regionLocator, r regionRequest) {
		c, ok := w[l]
		if ok {
			if c.exists {
				c.c <- r
			} else {
				if c.err != nil {
					r.reply(c.err)
				} else {
					r.reply(nil)
				}
			}
		} else {
			c = regionInterface{
				exists: true,
				c:      make(chan regionRequest, 32),
			}
			s.wg.Add(1)
			go s.regionWorker(l, c.c, internal, r)
		}
		c.lastRequest = time.Now()
		w[l] = c
	}
	handle := func(r regionRequest) {
		l := regionLocator{dimension: r.dimension}
		l.rx, l.rz = region.At(r.cx, r.cz)
		switch r.op {
		case regionRouterCloseRegion:
			c, ok := w[l]
			if !ok || !c.exists {
				s.logger.Printf("Region router got a command to close region but there is no open region (%#v)", l)
				return
			}
			close(c.c)
			c.exists = false
			c.err = r.err
			w[l] = c
		case regionRouterForgetRegion:
			if c, ok := w[l]; ok {
				if c.exists {
					close(c.c)
				}
				delete(w, l)
			}
		case regionRouterGetChunk, regionRouterListChunks:
			scheduleWorker(l, r)
		}
	}
routerLoop:
	for {
		select {
		case <-autoclose.C:
			for k, v := range w {
				if time.Since(v.lastRequest) > inactivityTimeout {
					if v.exists {
						close(v.c)
					}
					delete(w, k)
				}
			}
		case r := <-internal:
			handle(r)
		case r, ok := <-s.requests:
			if !ok {
				break routerLoop
			}
			handle(r)
		}
	}
	for _, v := range w {
		if v.exists {
			close(v.c)
		}
	}
	s.logger.Println("Region router stopped for", s.Root)
}

// region worker holds the file open and serves requests for it. If
// the file is missing or broken it asks the router to close the
// region and answers everything else until the channel is closed.
func (s *AnvilChunkSource) regionWorker(loc regionLocator, ch <-chan regionRequest, internal chan<- regionRequest, initial regionRequest) {
	defer s.wg.Done()
	fail := func(err error) {
		select {
		case internal <- regionRequest{
			op:        regionRouterCloseRegion,
			dimension: loc.dimension,
			cx:        loc.rx * regionSize,
			cz:        loc.rz * regionSize,
			err:       err,
		}:
		default:
		}
		for r := range ch {
			if err != nil {
				r.reply(err)
			} else {
				r.reply(nil)
			}
		}
	}
	reg, err := region.Open(s.getRegionPath(loc))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			initial.reply(nil)
			fail(nil)
			return
		}
		err = fmt.Errorf("region %s %d %d: %w", loc.dimension, loc.rx, loc.rz, err)
		s.logger.Print(err)
		initial.reply(err)
		fail(err)
		return
	}
	defer reg.Close()
	processRequest := func(r regionRequest) error {
		switch r.op {
		case regionRouterGetChunk:
			x, z := region.In(r.cx, r.cz)
			if !reg.ExistSector(x, z) {
				r.reply(nil)
				return nil
			}
			d, err := reg.ReadSector(x, z)
			if err != nil {
				err = fmt.Errorf("chunk %d %d: %w", r.cx, r.cz, err)
				r.reply(err)
				return err
			}
			r.reply(d)
		case regionRouterListChunks:
			ret := []primitives.ChunkPos{}
			for z := 0; z < regionSize; z++ {
				for x := 0; x < regionSize; x++ {
					if reg.ExistSector(x, z) {
						ret = append(ret, primitives.ChunkPos{X: loc.rx*regionSize + x, Z: loc.rz*regionSize + z})
					}
				}
			}
			r.reply(ret)
		}
		return nil
	}
	if err := processRequest(initial); err != nil {
		fail(err)
		return
	}
	for r := range ch {
		if err := processRequest(r); err != nil {
			fail(err)
			return
		}
	}
}
