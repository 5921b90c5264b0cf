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
	"io"
	"log"

	"github.com/gorilla/handlers"
	"github.com/natefinch/lumberjack"
)

func customLogger(_ io.Writer, params handlers.LogFormatterParams) {
	r := params.Request
	ip := r.Header.Get("CF-Connecting-IP")
	if ip == "" {
		ip = r.RemoteAddr
	}
	ua := r.Header.Get("user-agent")
	log.Println("["+ip+"]", r.Method, params.StatusCode, r.RequestURI, "["+ua+"]", params.Size)
}

func createLogger() *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.GetDSString("./logs/chunkview.log", "logs_path"),
		MaxSize:    cfg.GetDSInt(10, "logs_max_size"),
		MaxBackups: cfg.GetDSInt(5, "logs_max_backups"),
		Compress:   true,
	}
}
