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

package chunkCache

import (
	"sync"

	"github.com/maxsupermanhd/chunkview/primitives"
)

type decodeTask struct {
	pos        primitives.ChunkPos
	dimension  string
	generation uint64
	seq        uint64
}

// pipeline runs decode tasks on a fixed set of workers, tasks near
// the view centre are taken first.
type pipeline struct {
	qnormal   chan decodeTask
	qpriority chan decodeTask
	wg        sync.WaitGroup
	closeFn   func()
	closed    chan struct{}
}

func newPipeline(workers, queueLen int, do func(decodeTask)) *pipeline {
	closeChan := make(chan struct{})
	p := &pipeline{
		qnormal:   make(chan decodeTask, queueLen),
		qpriority: make(chan decodeTask, queueLen),
		closed:    closeChan,
		closeFn: sync.OnceFunc(func() {
			close(closeChan)
		}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			p.worker(closeChan, do)
			p.wg.Done()
		}()
	}
	return p
}

func (p *pipeline) worker(close <-chan struct{}, do func(decodeTask)) {
	for {
		select {
		case <-close:
			return
		case t := <-p.qpriority:
			do(t)
			continue
		default:
		}
		select {
		case <-close:
			return
		case t := <-p.qpriority:
			do(t)
		case t := <-p.qnormal:
			do(t)
		}
	}
}

// submit never blocks, false means the queue is full or closed.
func (p *pipeline) submit(t decodeTask, priority bool) bool {
	select {
	case <-p.closed:
		return false
	default:
	}
	q := p.qnormal
	if priority {
		q = p.qpriority
	}
	select {
	case q <- t:
		return true
	default:
		return false
	}
}

// stops and waits
func (p *pipeline) close() {
	p.closeFn()
	p.wg.Wait()
}
