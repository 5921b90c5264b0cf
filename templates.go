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
	"fmt"
	"html/template"
	"log"
	"net/http"
	"reflect"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/maxsupermanhd/lac"
)

const (
	plainmsgColorRed = iota
	plainmsgColorGreen
)

var (
	templatesLock sync.RWMutex
	templates     *template.Template
)

var templatesFuncs = template.FuncMap{
	"inc": func(i int) int {
		return i + 1
	},
	"avail": func(name string, data interface{}) bool {
		m, ok := data.(map[string]interface{})
		if ok {
			_, ok := m[name]
			return ok
		}
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return false
		}
		return v.FieldByName(name).IsValid()
	},
	"spew":  spew.Sdump,
	"bytes": humanize.Bytes,
	"percent": func(p float64) string {
		return fmt.Sprintf("%.1f%%", p)
	},
	"coord": func(f float64) string {
		return humanize.FormatFloat("#,###.#", f)
	},
}

func robotsHandler(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "User-agent: *\nDisallow: /\n\n\n")
}

func faviconHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, "./static/favicon.ico")
}

func plainmsg(w http.ResponseWriter, r *http.Request, color int, msg string) {
	templateRespond("plainmsg", w, r, map[string]interface{}{
		"msgred":   color == plainmsgColorRed,
		"msggreen": color == plainmsgColorGreen,
		"msg":      msg})
}

func parseTemplates(glob string) error {
	t, err := template.New("main").Funcs(templatesFuncs).ParseGlob(glob)
	if err != nil {
		return err
	}
	templatesLock.Lock()
	templates = t
	templatesLock.Unlock()
	return nil
}

// templateManager keeps templates parsed, reloading them on writes
// when template_reload is set.
func templateManager(exit <-chan struct{}, cfg *lac.ConfSubtree) {
	log.Println("Loading web templates")
	templatesGlob := cfg.GetDSString("templates/*.gohtml", "templates_glob")
	if err := parseTemplates(templatesGlob); err != nil {
		log.Printf("Failed to load templates: %v", err)
	}
	if !cfg.GetDSBool(false, "template_reload") {
		<-exit
		return
	}
	log.Println("Starting filesystem watcher for web templates")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Failed to create watcher: %v", err)
		<-exit
		return
	}
	defer watcher.Close()
	templatesDir := cfg.GetDSString("templates/", "templates_dir")
	if err := watcher.Add(templatesDir); err != nil {
		log.Printf("Failed to watch %s: %v", templatesDir, err)
		<-exit
		return
	}
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				log.Println("Templates watcher failed to read from events channel")
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				log.Println("Updating templates")
				if err := parseTemplates(templatesGlob); err != nil {
					log.Println("Error while parsing templates:", err.Error())
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				log.Println("Templates watcher failed to read from error channel")
				return
			}
			log.Println("Templates watcher error:", err)
		case <-exit:
			log.Println("Templates watcher stopped")
			return
		}
	}
}

func templateRespond(page string, w http.ResponseWriter, _ *http.Request, m map[string]interface{}) {
	templatesLock.RLock()
	var in *template.Template
	if templates != nil {
		in = templates.Lookup(page)
	}
	templatesLock.RUnlock()
	if in == nil {
		log.Printf("Template %s not found!", page)
		http.Error(w, "", http.StatusNotFound)
		return
	}
	m["NavWhere"] = page
	m["ChunkViewVersion"] = versionString()
	w.Header().Set("Server", "ChunkView "+CommitHash)
	w.Header().Set("Cache-Control", "no-cache")
	if err := in.Execute(w, m); err != nil {
		log.Println(err)
	}
}
