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
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/maxsupermanhd/chunkview/export"
)

type wsMessage struct {
	Type     string                 `json:"type"`
	Progress *export.ProgressReport `json:"progress,omitempty"`
	Event    *mapEvent              `json:"event,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	HandshakeTimeout: 2 * time.Second,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		log.Printf("Websocket error: %v %v", status, reason.Error())
	},
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	EnableCompression: true,
}

// wsClientHandlerWrapper streams export progress and map events to the
// client until it disconnects or the server exits.
func wsClientHandlerWrapper(exitchan <-chan struct{}) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Print("Websocket upgrade error:", err)
			return
		}
		defer c.Close()
		errChan := make(chan error, 1)
		go func() {
			for {
				_, _, err := c.ReadMessage()
				if err != nil {
					errChan <- err
					return
				}
			}
		}()
		progc := progress.Subscribe()
		defer progress.Unsubscribe(progc)
		evc := events.Connect()
		defer events.Disconnect(evc)
		for {
			var m wsMessage
			select {
			case p := <-progc:
				m = wsMessage{Type: "progress", Progress: &p}
			case e, ok := <-evc:
				if !ok {
					return
				}
				m = wsMessage{Type: "event", Event: &e}
			case <-errChan:
				return
			case <-exitchan:
				c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(time.Second))
				return
			}
			b, err := json.Marshal(m)
			if err != nil {
				log.Printf("Failed to marshal websocket message: %v", err)
				return
			}
			c.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}
