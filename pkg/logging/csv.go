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
	"fmt"
	"os"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/linkdata/deadlock"
)

// CaptureStats is one row of the per-second capture log.
type CaptureStats struct {
	Timestamp      string
	FramesCaptured uint64
	FramesSkipped  uint64
	FrameLag       time.Duration
	AudioChunks    uint64
	AudioOverflows uint64
	AudioBytes     uint64
}

// CSVLogger is used for logging data in CSV format. It does not validate columns or data
type CSVLogger[T any] struct {
	mu   deadlock.Mutex
	f    *os.File
	name string
}

func NewCSVLogger[T any](dir, filename string) (*CSVLogger[T], error) {
	if !strings.HasSuffix(filename, ".csv") {
		filename = filename + ".csv"
	}
	if dir == "" {
		dir = os.TempDir()
	}
	filename = path.Join(dir, filename)
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0)
	t := reflect.TypeFor[T]()
	for i := range t.NumField() {
		columns = append(columns, t.Field(i).Name)
	}
	_, _ = f.WriteString(fmt.Sprintf("%s\n", strings.Join(columns, ",")))

	return &CSVLogger[T]{
		f:    f,
		name: filename,
	}, nil
}

func (l *CSVLogger[T]) Name() string {
	return l.name
}

func (l *CSVLogger[T]) Write(value *T) {
	v := reflect.ValueOf(value).Elem()
	t := v.Type()

	row := make([]string, t.NumField())
	for i := range t.NumField() {
		row[i] = fmt.Sprintf("%v", v.Field(i).Interface())
	}

	l.mu.Lock()
	_, _ = l.f.WriteString(strings.Join(row, ",") + "\n")
	l.mu.Unlock()
}

func (l *CSVLogger[T]) Close() {
	l.mu.Lock()
	_ = l.f.Close()
	l.mu.Unlock()
}

// Discard closes the file and deletes it.
func (l *CSVLogger[T]) Discard() {
	l.Close()
	_ = os.Remove(l.name)
}
