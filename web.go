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
	"io/fs"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// hiddenFileSystem refuses to serve dotfiles.
type hiddenFileSystem struct {
	http.FileSystem
}

func (fsys hiddenFileSystem) Open(name string) (http.File, error) {
	for _, part := range strings.Split(path.Clean(name), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return nil, fs.ErrNotExist
		}
	}
	return fsys.FileSystem.Open(name)
}

func createRouter(exitchan <-chan struct{}) http.Handler {
	router := mux.NewRouter()
	router.PathPrefix("/static").Handler(http.StripPrefix("/static/", http.FileServer(hiddenFileSystem{http.Dir("./static")}))).Methods("GET")
	router.HandleFunc("/favicon.ico", faviconHandler).Methods("GET")
	router.HandleFunc("/robots.txt", robotsHandler).Methods("GET")

	router.HandleFunc("/", indexHandler).Methods("GET")
	router.HandleFunc("/stop", func(w http.ResponseWriter, _ *http.Request) {
		mainCtxCancel()
		w.WriteHeader(200)
		w.Write([]byte("Success"))
	}).Methods("GET")

	router.HandleFunc("/api/v1/config/save", apiHandle(apiSaveConfig)).Methods("GET")
	router.HandleFunc("/api/v1/status", apiHandle(apiStatus)).Methods("GET")

	router.HandleFunc("/api/v1/view.png", viewImageHandler).Methods("GET")
	router.HandleFunc("/api/v1/state", apiHandle(apiState)).Methods("GET")
	router.HandleFunc("/api/v1/location", apiHandle(apiSetLocation)).Methods("POST")
	router.HandleFunc("/api/v1/dimension", apiHandle(apiSetDimension)).Methods("POST")
	router.HandleFunc("/api/v1/flags", apiHandle(apiSetFlags)).Methods("POST")
	router.HandleFunc("/api/v1/depth", apiHandle(apiSetDepth)).Methods("POST")
	router.HandleFunc("/api/v1/zoom", apiHandle(apiSetZoom)).Methods("POST")
	router.HandleFunc("/api/v1/refresh", apiHandle(apiRefresh)).Methods("POST")
	router.HandleFunc("/api/v1/hover", apiHandle(apiHover)).Methods("GET")
	router.HandleFunc("/api/v1/properties", apiHandle(apiProperties)).Methods("GET")

	router.HandleFunc("/api/v1/overlay/types", apiHandle(apiOverlayTypes)).Methods("POST")
	router.HandleFunc("/api/v1/overlay/mark", apiHandle(apiOverlayMark)).Methods("POST")

	router.HandleFunc("/api/v1/export", apiHandle(apiExport)).Methods("POST")
	router.HandleFunc("/api/v1/export", apiHandle(apiExportList)).Methods("GET")
	router.HandleFunc("/api/v1/export/{id}", apiHandle(apiExportStatus)).Methods("GET")
	router.HandleFunc("/api/v1/export/{id}", apiHandle(apiExportCancel)).Methods("DELETE")

	router.HandleFunc("/api/v1/search", apiHandle(apiSearch)).Methods("POST")

	router.HandleFunc("/api/v1/locations", apiHandle(apiLocations)).Methods("GET")
	router.HandleFunc("/api/v1/locations/{index:[0-9]+}/jump", apiHandle(apiJump)).Methods("POST")
	router.HandleFunc("/api/v1/structures", apiHandle(apiStructures)).Methods("GET")

	router.HandleFunc("/api/v1/ws", wsClientHandlerWrapper(exitchan))

	router.HandleFunc("/debug/chunk/{cx:-?[0-9]+}/{cz:-?[0-9]+}", terrainInfoHandler).Methods("GET")
	router.HandleFunc("/debug/pprof/", pprof.Index)
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	router.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	router.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	router.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))
	router.Handle("/debug/pprof/block", pprof.Handler("block"))
	router.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
	router.HandleFunc("/debug/gc", func(w http.ResponseWriter, r *http.Request) {
		runtime.GC()
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	router1 := handlers.ProxyHeaders(router)
	router2 := handlers.CompressHandler(router1)
	router3 := handlers.CustomLoggingHandler(os.Stdout, router2, customLogger)
	router4 := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router3)
	return router4
}

func runWeb(exitchan <-chan struct{}) {
	addr := cfg.GetDSString("127.0.0.1:3003", "web", "listen_addr")
	if addr == "" {
		log.Println("Not starting web server because listen address is empty")
		<-exitchan
		return
	}
	websrv := http.Server{
		Addr:    addr,
		Handler: createRouter(exitchan),
	}
	log.Println("Web server listens on " + addr)
	go func() {
		if err := websrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Web server returned an error: %s", err)
			mainCtxCancel()
		}
	}()
	<-exitchan
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := websrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %+v", err)
	}
}
