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
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maxsupermanhd/chunkview/chunkCache"
	"github.com/maxsupermanhd/chunkview/viewport"
	"github.com/maxsupermanhd/chunkview/worldSave"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
)

type hostStatus struct {
	Load1      float64 `json:"load1"`
	Load5      float64 `json:"load5"`
	Load15     float64 `json:"load15"`
	MemUsed    string  `json:"memUsed"`
	MemTotal   string  `json:"memTotal"`
	MemPercent float64 `json:"memPercent"`
	CPUPercent float64 `json:"cpuPercent"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	HeapAlloc  string  `json:"heapAlloc"`
}

type viewerStatus struct {
	Version string             `json:"version"`
	World   worldSave.Level    `json:"world"`
	Sources []string           `json:"sources"`
	View    viewport.ViewState `json:"view"`
	Chunks  chunkCache.Stats   `json:"chunks"`
	Tiles   map[string]any     `json:"tiles"`
	Host    hostStatus         `json:"host"`
}

// sampleHost never fails, unavailable figures stay zero.
func sampleHost() hostStatus {
	ret := hostStatus{Goroutines: runtime.NumGoroutine()}
	if l, err := load.Avg(); err == nil {
		ret.Load1, ret.Load5, ret.Load15 = l.Load1, l.Load5, l.Load15
	}
	if m, err := mem.VirtualMemory(); err == nil {
		ret.MemUsed = humanize.Bytes(m.Used)
		ret.MemTotal = humanize.Bytes(m.Total)
		ret.MemPercent = m.UsedPercent
	}
	// compares against the previous call
	if p, err := cpu.Percent(0, false); err == nil && len(p) > 0 {
		ret.CPUPercent = p[0]
	}
	if up, err := host.Uptime(); err == nil {
		ret.Uptime = (time.Duration(up) * time.Second).String()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	ret.HeapAlloc = humanize.Bytes(ms.HeapAlloc)
	return ret
}

func collectStatus() viewerStatus {
	world.mu.Lock()
	level := world.level
	world.mu.Unlock()
	names := []string{}
	for _, s := range openedSources {
		names = append(names, s.Name)
	}
	return viewerStatus{
		Version: versionString(),
		World:   level,
		Sources: names,
		View:    view.State(),
		Chunks:  chunks.Stats(),
		Tiles:   tiles.GetStats(),
		Host:    sampleHost(),
	}
}

func apiStatus(w http.ResponseWriter, _ *http.Request) (int, string) {
	return respondJSON(w, 200, collectStatus())
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	world.mu.Lock()
	locs := world.locations
	world.mu.Unlock()
	templateRespond("index", w, r, map[string]any{
		"Status":     collectStatus(),
		"Locations":  locs,
		"Dimensions": defs.Dimensions(),
	})
}
