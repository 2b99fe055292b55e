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

package video

import (
	"image"
	"time"
)

// Frame is one captured screen image at the session's configured size.
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time     // wall clock time the grab started
	PTS       time.Duration // offset from the first frame
	Seq       uint64
}

func (f *Frame) Width() int {
	return f.Image.Rect.Dx()
}

func (f *Frame) Height() int {
	return f.Image.Rect.Dy()
}

// Grabber returns the current contents of a display.
type Grabber interface {
	Grab() (*image.RGBA, error)
	Close() error
}

// Transform modifies a frame in place before it is written.
type Transform interface {
	Apply(img *image.RGBA)
}

// FrameWriter receives frames in capture order. Ownership of the frame passes to the writer.
type FrameWriter interface {
	Write(f *Frame) error
}
