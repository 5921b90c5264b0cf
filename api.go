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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gorilla/mux"
	"github.com/maxsupermanhd/chunkview/chunkSource"
	"github.com/maxsupermanhd/chunkview/definitions"
	"github.com/maxsupermanhd/chunkview/export"
	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/maxsupermanhd/chunkview/search"
	"github.com/maxsupermanhd/chunkview/worldSave"
)

func viewImageHandler(w http.ResponseWriter, r *http.Request) {
	pw, okw, errw := formInt(r, "w")
	ph, okh, errh := formInt(r, "h")
	if errw != nil || errh != nil {
		http.Error(w, "Bad viewport size", http.StatusBadRequest)
		return
	}
	if okw && okh {
		view.Resize(pw, ph)
	}
	redrawPending.Store(false)
	img := view.Redraw()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := png.Encode(w, img); err != nil {
		log.Printf("Failed to encode frame: %v", err)
	}
}

func apiState(w http.ResponseWriter, _ *http.Request) (int, string) {
	return respondJSON(w, 200, view.State())
}

func apiSetLocation(w http.ResponseWriter, r *http.Request) (int, string) {
	x, okx, errx := formFloat(r, "x")
	z, okz, errz := formFloat(r, "z")
	dx, okdx, errdx := formFloat(r, "dx")
	dy, okdy, errdy := formFloat(r, "dy")
	if err := errors.Join(errx, errz, errdx, errdy); err != nil {
		return 400, "Bad coordinates: " + err.Error()
	}
	switch {
	case okx && okz:
		view.SetLocation(x, z)
	case okdx || okdy:
		view.Pan(dx, dy)
	default:
		return 400, "Either x and z or dx and dy are required"
	}
	return respondJSON(w, 200, view.State())
}

func apiSetDimension(w http.ResponseWriter, r *http.Request) (int, string) {
	if name := r.FormValue("name"); name != "" {
		if err := view.SetDimension(name); err != nil {
			return 404, err.Error()
		}
		return respondJSON(w, 200, view.State())
	}
	path := r.FormValue("path")
	if path == "" {
		return 400, "Dimension name or path is required"
	}
	scale, _, err := formFloat(r, "scale")
	if err != nil {
		return 400, "Bad scale: " + err.Error()
	}
	view.SetDimensionPath(path, scale)
	return respondJSON(w, 200, view.State())
}

func apiSetFlags(w http.ResponseWriter, r *http.Request) (int, string) {
	f, err := primitives.ParseRenderFlags(r.FormValue("flags"))
	if err != nil {
		return 400, err.Error()
	}
	view.SetFlags(f)
	return respondJSON(w, 200, view.State())
}

func apiSetDepth(w http.ResponseWriter, r *http.Request) (int, string) {
	depth, okd, errd := formInt(r, "depth")
	delta, okm, errm := formInt(r, "delta")
	if err := errors.Join(errd, errm); err != nil {
		return 400, "Bad depth: " + err.Error()
	}
	var got int
	var clamped bool
	switch {
	case okd:
		got, clamped = view.SetDepth(depth)
	case okm:
		got, clamped = view.MoveDepth(delta)
	default:
		return 400, "Either depth or delta is required"
	}
	return respondJSON(w, 200, map[string]any{"depth": got, "clamped": clamped})
}

func apiSetZoom(w http.ResponseWriter, r *http.Request) (int, string) {
	zoom, okz, errz := formFloat(r, "zoom")
	factor, okf, errf := formFloat(r, "factor")
	if err := errors.Join(errz, errf); err != nil {
		return 400, "Bad zoom: " + err.Error()
	}
	var got float64
	var clamped bool
	switch {
	case okz:
		got, clamped = view.SetZoom(zoom)
	case okf:
		got, clamped = view.ZoomBy(factor)
	default:
		return 400, "Either zoom or factor is required"
	}
	return respondJSON(w, 200, map[string]any{"zoom": got, "clamped": clamped})
}

func apiRefresh(_ http.ResponseWriter, _ *http.Request) (int, string) {
	view.ClearCache()
	return 200, "Cache cleared"
}

func apiOverlayTypes(w http.ResponseWriter, r *http.Request) (int, string) {
	if err := r.ParseForm(); err != nil {
		return 400, "Unable to parse form parameters"
	}
	if r.FormValue("clear") != "" {
		view.ClearSpecialBlockTypes()
	}
	for _, c := range r.Form["category"] {
		if c = strings.TrimSpace(c); c != "" {
			view.AddSpecialBlockType(c)
		}
	}
	return respondJSON(w, 200, map[string]any{
		"enabled":   view.State().Categories,
		"available": view.Overlays().Categories(),
	})
}

type markRequest struct {
	Category   string         `json:"category"`
	Box        primitives.Box `json:"box"`
	Color      string         `json:"color"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

func apiOverlayMark(_ http.ResponseWriter, r *http.Request) (int, string) {
	var m markRequest
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		return 400, "Bad mark: " + err.Error()
	}
	if m.Category == "" {
		return 400, "Category is required"
	}
	var col color.NRGBA
	if m.Color != "" {
		c, err := definitions.ParseColor(m.Color)
		if err != nil {
			return 400, err.Error()
		}
		col = color.NRGBA(c)
	}
	view.MarkBlock(m.Category, m.Box.Normalized(), col, m.Label, m.Properties)
	return 200, "Marked"
}

func pixelParams(r *http.Request) (int, int, error) {
	px, okx, errx := formInt(r, "px")
	py, oky, erry := formInt(r, "py")
	if err := errors.Join(errx, erry); err != nil {
		return 0, 0, err
	}
	if !okx || !oky {
		return 0, 0, errors.New("px and py are required")
	}
	return px, py, nil
}

func apiHover(w http.ResponseWriter, r *http.Request) (int, string) {
	px, py, err := pixelParams(r)
	if err != nil {
		return 400, err.Error()
	}
	return respondJSON(w, 200, map[string]string{"text": view.HoverAt(px, py)})
}

func apiProperties(w http.ResponseWriter, r *http.Request) (int, string) {
	px, py, err := pixelParams(r)
	if err != nil {
		return 400, err.Error()
	}
	return respondJSON(w, 200, view.PropertiesAt(px, py))
}

func apiExport(w http.ResponseWriter, r *http.Request) (int, string) {
	scale, _, err := formInt(r, "scale")
	if err != nil {
		return 400, "Bad scale: " + err.Error()
	}
	rc := view.RenderConfig()
	if rc.Dimension.Name == "" {
		return 409, "No world loaded"
	}
	name := fmt.Sprintf("%s_%s.png", rc.Dimension.Name, time.Now().Format("20060102-150405.000"))
	path := filepath.Join(exportDir, name)
	task := exporter.Start(mainCtx, export.Job{
		Dimension: rc.Dimension.Name,
		Settings:  rc.Settings,
		Scale:     scale,
		Path:      path,
	})
	return respondJSON(w, 202, map[string]string{"taskID": task.ID, "path": path})
}

type exportStatus struct {
	ID       string          `json:"id"`
	Progress export.Progress `json:"progress"`
	Done     bool            `json:"done"`
	Result   *export.Result  `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func statusOf(t *export.Task) exportStatus {
	st := exportStatus{ID: t.ID, Progress: t.Last()}
	select {
	case <-t.Finished():
		res := t.Wait()
		st.Done = true
		st.Result = &res
		if res.Err != nil {
			st.Error = res.Err.Error()
		}
	default:
	}
	return st
}

func apiExportStatus(w http.ResponseWriter, r *http.Request) (int, string) {
	t, ok := exporter.Task(mux.Vars(r)["id"])
	if !ok {
		return 404, "Export not found"
	}
	return respondJSON(w, 200, statusOf(t))
}

func apiExportList(w http.ResponseWriter, _ *http.Request) (int, string) {
	ret := []exportStatus{}
	for _, t := range exporter.Tasks() {
		ret = append(ret, statusOf(t))
	}
	return respondJSON(w, 200, ret)
}

func apiExportCancel(_ http.ResponseWriter, r *http.Request) (int, string) {
	t, ok := exporter.Task(mux.Vars(r)["id"])
	if !ok {
		return 404, "Export not found"
	}
	t.Cancel()
	return 200, "Canceled"
}

func apiSearch(w http.ResponseWriter, r *http.Request) (int, string) {
	names := []string{}
	for _, n := range strings.Split(r.FormValue("block"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return 400, "Block names are required"
	}
	dim := view.State().Dimension.Name
	if dim == "" {
		return 409, "No world loaded"
	}
	p := &search.BlockSearch{Names: names}
	if err := p.Init(defs); err != nil {
		return 400, err.Error()
	}
	view.AddSpecialBlockType("Search")
	go func() {
		sum, err := searcher.Run(mainCtx, dim, p, func(res search.Result) {
			view.MarkBlock("Search", res.Box(), color.NRGBA{}, res.Name, map[string]any{
				"x": res.X, "y": res.Y, "z": res.Z, "bottom": res.Bottom, "block": res.Name,
			})
		})
		data := map[string]any{"summary": sum}
		if err != nil {
			data["error"] = err.Error()
		}
		events.Broadcast(mapEvent{Action: eventSearch, Data: data})
	}()
	return respondJSON(w, 202, map[string]string{"searchedFor": p.SearchedFor(), "dimension": dim})
}

func apiLocations(w http.ResponseWriter, _ *http.Request) (int, string) {
	world.mu.Lock()
	defer world.mu.Unlock()
	locs := world.locations
	if locs == nil {
		locs = []worldSave.Location{}
	}
	return respondJSON(w, 200, locs)
}

func apiJump(w http.ResponseWriter, r *http.Request) (int, string) {
	i, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		return 400, "Bad location index"
	}
	world.mu.Lock()
	if i < 0 || i >= len(world.locations) {
		world.mu.Unlock()
		return 404, "Location not found"
	}
	loc := world.locations[i]
	world.mu.Unlock()
	if err := jumpTo(loc); err != nil {
		return 404, err.Error()
	}
	return respondJSON(w, 200, view.State())
}

func apiStructures(w http.ResponseWriter, r *http.Request) (int, string) {
	world.mu.Lock()
	defer world.mu.Unlock()
	recs := world.structures
	if d := r.FormValue("dimension"); d != "" {
		recs = worldSave.InDimension(recs, d)
	}
	if recs == nil {
		recs = []worldSave.Record{}
	}
	return respondJSON(w, 200, recs)
}

func terrainInfoHandler(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	cx, errx := strconv.Atoi(params["cx"])
	cz, errz := strconv.Atoi(params["cz"])
	if errx != nil || errz != nil {
		http.Error(w, "Bad chunk coordinates", http.StatusBadRequest)
		return
	}
	dim := r.FormValue("dimension")
	if dim == "" {
		dim = view.State().Dimension.Name
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	type result struct {
		ch  *chunkSource.Chunk
		err error
	}
	done := make(chan result, 1)
	go func() {
		ch, err := source.DecodeChunk(dim, cx, cz)
		done <- result{ch, err}
	}()
	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		http.Error(w, "Decode timed out", http.StatusGatewayTimeout)
		return
	}
	if res.err != nil {
		code := http.StatusInternalServerError
		if errors.Is(res.err, chunkSource.ErrNotFound) || errors.Is(res.err, chunkSource.ErrNoDimension) {
			code = http.StatusNotFound
		}
		http.Error(w, res.err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Chunk %d %d of %s\n", cx, cz, dim)
	if cached, ok := chunks.Cached(cx, cz); ok && chunks.Dimension() == dim {
		fmt.Fprintf(w, "Cached: missing=%v\n", cached.Missing)
	}
	spew.Fdump(w, res.ch)
}
