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
	"image/color"

	"go.uber.org/atomic"
)

var bars = []color.RGBA{
	{R: 192, G: 192, B: 192, A: 255},
	{R: 192, G: 192, B: 0, A: 255},
	{R: 0, G: 192, B: 192, A: 255},
	{R: 0, G: 192, B: 0, A: 255},
	{R: 192, G: 0, B: 192, A: 255},
	{R: 192, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 192, A: 255},
}

// PatternGrabber produces scrolling colour bars, for hosts without a display.
type PatternGrabber struct {
	width  int
	height int
	count  atomic.Uint64
}

func NewPatternGrabber(width, height int) *PatternGrabber {
	return &PatternGrabber{
		width:  width,
		height: height,
	}
}

func (g *PatternGrabber) Grab() (*image.RGBA, error) {
	n := int(g.count.Inc() - 1)
	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))

	barWidth := max(g.width/len(bars), 1)
	offset := (n * 4) % g.width
	for x := range g.width {
		c := bars[((x+offset)/barWidth)%len(bars)]
		for y := range g.height {
			i := img.PixOffset(x, y)
			img.Pix[i] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}

	// frame counter strip along the bottom
	strip := max(g.height/20, 1)
	for bit := 0; bit < 16; bit++ {
		var v uint8
		if n&(1<<bit) != 0 {
			v = 255
		}
		x0 := bit * g.width / 16
		x1 := (bit + 1) * g.width / 16
		for y := g.height - strip; y < g.height; y++ {
			for x := x0; x < x1; x++ {
				i := img.PixOffset(x, y)
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
			}
		}
	}

	return img, nil
}

func (g *PatternGrabber) Close() error {
	return nil
}
