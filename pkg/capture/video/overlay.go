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
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/time/rate"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/protocol/logger"
)

// OverlaySource supplies the picture composited into each frame, such as a camera feed.
type OverlaySource interface {
	Next() (image.Image, error)
}

// StaticImage is an OverlaySource that always returns the same picture.
type StaticImage struct {
	img image.Image
}

func NewStaticImage(img image.Image) *StaticImage {
	return &StaticImage{img: img}
}

func LoadImage(filename string) (*StaticImage, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return NewStaticImage(img), nil
}

func (s *StaticImage) Next() (image.Image, error) {
	return s.img, nil
}

// Overlay scales the overlay picture and draws it in the bottom right corner of each frame.
type Overlay struct {
	src     OverlaySource
	width   int
	height  int
	margin  int
	warning rate.Sometimes

	last   image.Image
	scaled *image.RGBA
}

func NewOverlay(src OverlaySource, conf *config.OverlayConfig) *Overlay {
	return &Overlay{
		src:     src,
		width:   conf.Width,
		height:  conf.Height,
		margin:  conf.Margin,
		warning: rate.Sometimes{Interval: 10 * time.Second},
	}
}

func (o *Overlay) Apply(dst *image.RGBA) {
	img, err := o.src.Next()
	if err != nil || img == nil {
		o.warning.Do(func() {
			logger.Warnw("overlay unavailable, frame left unchanged", err)
		})
		return
	}

	// static sources are scaled once
	if img != o.last || o.scaled == nil {
		o.scaled = scale(img, o.width, o.height)
		o.last = img
	}

	b := dst.Bounds()
	full := image.Rect(
		b.Max.X-o.width-o.margin,
		b.Max.Y-o.height-o.margin,
		b.Max.X-o.margin,
		b.Max.Y-o.margin,
	)
	r := full.Intersect(b)
	if r.Empty() {
		return
	}

	draw.Draw(dst, r, o.scaled, r.Min.Sub(full.Min), draw.Src)
}
