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
)

// mapEvent is what the viewer tells connected clients, Action is one
// of the event* names.
type mapEvent struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

const (
	eventRedraw     = "redraw"
	eventHover      = "hover"
	eventDepth      = "depth"
	eventProperties = "properties"
	eventFound      = "found"
	eventDimension  = "dimension"
	eventChunk      = "chunk"
	eventSearch     = "search"
)

// stickyEvents describe viewer state, the last one of each is replayed
// to clients that connect later.
var stickyEvents = map[string]bool{
	eventDimension: true,
	eventDepth:     true,
}

type mapEventRouter struct {
	connect    chan chan mapEvent
	disconnect chan chan mapEvent
	events     chan mapEvent
	done       chan struct{}
}

func newMapEventRouter() *mapEventRouter {
	return &mapEventRouter{
		connect:    make(chan chan mapEvent),
		disconnect: make(chan chan mapEvent, 16),
		events:     make(chan mapEvent, 256),
		done:       make(chan struct{}),
	}
}

func (router *mapEventRouter) Run(exitchan <-chan struct{}) {
	clients := map[chan mapEvent]bool{}
	sticky := map[string]mapEvent{}
	defer close(router.done)
	for {
		select {
		case <-exitchan:
			for c := range clients {
				close(c)
			}
			return
		case c := <-router.connect:
			clients[c] = true
			for _, e := range sticky {
				c <- e
			}
		case c := <-router.disconnect:
			if clients[c] {
				delete(clients, c)
				close(c)
			}
		case e := <-router.events:
			if stickyEvents[e.Action] {
				sticky[e.Action] = e
			}
			for c := range clients {
				select {
				case c <- e:
				default:
					log.Printf("Event %v dropped for a slow client", e.Action)
				}
			}
		}
	}
}

// Connect returns a closed channel once the router is stopped.
func (router *mapEventRouter) Connect() chan mapEvent {
	c := make(chan mapEvent, 256)
	select {
	case router.connect <- c:
	case <-router.done:
		close(c)
	}
	return c
}

func (router *mapEventRouter) Disconnect(c chan mapEvent) {
	select {
	case router.disconnect <- c:
	case <-router.done:
	}
}

// Broadcast never blocks the viewer, events are dropped when nobody
// drains the queue.
func (router *mapEventRouter) Broadcast(e mapEvent) {
	select {
	case router.events <- e:
	default:
		log.Printf("Event queue full, %v dropped", e.Action)
	}
}
