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

package main

import (
	"log"
	"sync"
)

// routines are stopped in reverse start order.
type routines struct {
	mu    sync.Mutex
	stops []func()
}

func (rs *routines) start(name string, workfn func(exit <-chan struct{})) func() {
	log.Printf("Starting %s routine", name)
	closechan := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		workfn(closechan)
	}()
	stop := sync.OnceFunc(func() {
		log.Printf("Shutting down %s routine", name)
		close(closechan)
		wg.Wait()
		log.Printf("Routine %s done", name)
	})
	rs.mu.Lock()
	rs.stops = append(rs.stops, stop)
	rs.mu.Unlock()
	return stop
}

func (rs *routines) stopAll() {
	rs.mu.Lock()
	stops := rs.stops
	rs.stops = nil
	rs.mu.Unlock()
	for i := len(stops) - 1; i >= 0; i-- {
		stops[i]()
	}
}
