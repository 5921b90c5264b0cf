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
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/maxsupermanhd/lac"
)

var cfg *lac.Conf

func configPath() string {
	path := os.Getenv("CHUNKVIEW_CONFIG")
	if path == "" {
		path = "config.json"
	}
	return path
}

// loadConfig reads .env first so CHUNKVIEW_CONFIG can live there too.
// A missing config file gives an empty config, every key has a default.
func loadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}
	path := configPath()
	c, err := lac.FromFileJSON(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		log.Printf("Config %s not found, using defaults", path)
		c = lac.NewConf()
	}
	cfg = c
	return nil
}

func apiSaveConfig(_ http.ResponseWriter, _ *http.Request) (int, string) {
	err := cfg.ToFileIndentJSON(configPath(), 0644)
	if err != nil {
		return 500, err.Error()
	}
	return 200, "Config saved"
}
