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
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/livekit/desktop-recorder/pkg/errors"
)

type DisplayInfo struct {
	Index  int
	Bounds image.Rectangle
}

func (d DisplayInfo) String() string {
	return fmt.Sprintf("Display %d (%dx%d at %d,%d)",
		d.Index, d.Bounds.Dx(), d.Bounds.Dy(), d.Bounds.Min.X, d.Bounds.Min.Y)
}

// ListDisplays returns the active displays at the time of the call.
func ListDisplays() []DisplayInfo {
	n := screenshot.NumActiveDisplays()
	displays := make([]DisplayInfo, 0, n)
	for i := range n {
		displays = append(displays, DisplayInfo{
			Index:  i,
			Bounds: screenshot.GetDisplayBounds(i),
		})
	}
	return displays
}

// ScreenGrabber captures one display.
type ScreenGrabber struct {
	display int
	bounds  image.Rectangle
}

func NewScreenGrabber(display int) (*ScreenGrabber, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, errors.ErrNoDisplays
	}
	if display < 0 || display >= n {
		return nil, errors.ErrInvalidConfig("display", "index %d out of range, %d active", display, n)
	}

	return &ScreenGrabber{
		display: display,
		bounds:  screenshot.GetDisplayBounds(display),
	}, nil
}

func (g *ScreenGrabber) Grab() (*image.RGBA, error) {
	return screenshot.CaptureRect(g.bounds)
}

func (g *ScreenGrabber) Close() error {
	return nil
}
