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
	"strings"

	"github.com/linkdata/deadlock"
)

// LineBuffer keeps the last n lines written to it.
type LineBuffer struct {
	mu      deadlock.Mutex
	lines   []string
	idx     int
	partial string
}

func NewLineBuffer(size int) *LineBuffer {
	if size <= 0 {
		size = 1
	}
	return &LineBuffer{
		lines: make([]string, size),
	}
}

func (b *LineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.partial + string(p)
	parts := strings.Split(s, "\n")
	b.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		b.add(line)
	}
	return len(p), nil
}

func (b *LineBuffer) Add(line string) {
	b.mu.Lock()
	b.add(line)
	b.mu.Unlock()
}

func (b *LineBuffer) add(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	b.lines[b.idx%len(b.lines)] = line
	b.idx++
}

// Lines returns buffered lines, oldest first, including an unterminated last line.
func (b *LineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.lines)
	out := make([]string, 0, size+1)
	for i := range size {
		if line := b.lines[(b.idx+i)%size]; line != "" {
			out = append(out, line)
		}
	}
	if b.partial != "" {
		out = append(out, strings.TrimRight(b.partial, "\r"))
	}
	return out
}

func (b *LineBuffer) String() string {
	return strings.Join(b.Lines(), "\n")
}
