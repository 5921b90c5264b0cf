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

package export

// ProgressReport is what subscribers of a Broadcaster receive.
type ProgressReport struct {
	TaskID   string  `json:"taskID"`
	Status   string  `json:"status"`
	Fraction float64 `json:"fraction"`
	Done     bool    `json:"done"`
	Error    string  `json:"error,omitempty"`
}

// Broadcaster fans progress of running tasks out to subscribers, new
// subscribers get the last report of every unfinished task.
type Broadcaster struct {
	stopCh    chan struct{}
	publishCh chan ProgressReport
	subCh     chan chan ProgressReport
	unsubCh   chan chan ProgressReport
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		stopCh:    make(chan struct{}),
		publishCh: make(chan ProgressReport, 16),
		subCh:     make(chan chan ProgressReport, 1),
		unsubCh:   make(chan chan ProgressReport, 1),
	}
}

func (b *Broadcaster) Start() {
	subs := map[chan ProgressReport]struct{}{}
	tasks := map[string]ProgressReport{}
	for {
		select {
		case <-b.stopCh:
			return
		case msgCh := <-b.subCh:
			subs[msgCh] = struct{}{}
			for i := range tasks {
				select {
				case msgCh <- tasks[i]:
				default:
				}
			}
		case msgCh := <-b.unsubCh:
			delete(subs, msgCh)
		case msg := <-b.publishCh:
			if msg.Done {
				delete(tasks, msg.TaskID)
			} else {
				tasks[msg.TaskID] = msg
			}
			for msgCh := range subs {
				select {
				case msgCh <- msg:
				default:
				}
			}
		}
	}
}

func (b *Broadcaster) Stop() {
	close(b.stopCh)
}

func (b *Broadcaster) Subscribe() chan ProgressReport {
	msgCh := make(chan ProgressReport, 16)
	b.subCh <- msgCh
	return msgCh
}

func (b *Broadcaster) Unsubscribe(msgCh chan ProgressReport) {
	b.unsubCh <- msgCh
}

// Publish drops the report when the broadcaster is stopped.
func (b *Broadcaster) Publish(msg ProgressReport) {
	select {
	case b.publishCh <- msg:
	case <-b.stopCh:
	}
}
