// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"io"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/logger/medialogutils"
)

var ffmpegErrorMarkers = []string{
	"error",
	"invalid",
	"could not",
	"no such file",
	"conversion failed",
}

// NewProcessLogger logs the output of an ffmpeg process line by line.
func NewProcessLogger(name string, values ...interface{}) *medialogutils.CmdLogger {
	l := logger.GetLogger().WithValues(append([]interface{}{"process", name}, values...)...)
	return medialogutils.NewCmdLogger(func(s string) {
		for _, line := range strings.Split(s, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case isErrorLine(line):
				l.Warnw(line, nil)
			default:
				l.Debugw(line)
			}
		}
	})
}

func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range ffmpegErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// NewRotatingFile opens a size-rotated log file for process output.
func NewRotatingFile(filename string, maxSizeMB int) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     7,
	}
}
