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

//go:build gstreamer

package sink

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/go-gst/go-glib/glib"
	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"
	"github.com/linkdata/deadlock"

	"github.com/livekit/desktop-recorder/pkg/capture/video"
	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/protocol/logger"
)

const eosTimeout = 30 * time.Second

var initOnce sync.Once

// GstVideoSink pushes frames through appsrc ! videoconvert ! x264enc ! mp4mux ! filesink.
type GstVideoSink struct {
	conf   *config.CaptureConfig
	path   string
	logger logger.Logger

	pipeline *gst.Pipeline
	src      *app.Source
	loop     *glib.MainLoop

	mu     deadlock.Mutex
	frames uint64
	closed bool
	err    error
	eos    core.Fuse
}

func newGstVideoSink(conf *config.CaptureConfig, vc *config.VideoConfig, path string) (VideoSink, error) {
	initOnce.Do(func() {
		gst.Init(nil)
	})

	s := &GstVideoSink{
		conf:   conf,
		path:   path,
		logger: logger.GetLogger().WithValues("sink", "video", "path", path, "backend", "gstreamer"),
	}
	if err := s.build(vc); err != nil {
		return nil, err
	}

	s.loop = glib.NewMainLoop(glib.MainContextDefault(), false)
	s.pipeline.GetPipelineBus().AddWatch(s.messageWatch)
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, err
	}
	go s.loop.Run()

	return s, nil
}

func (s *GstVideoSink) build(vc *config.VideoConfig) error {
	pipeline, err := gst.NewPipeline("video")
	if err != nil {
		return err
	}

	src, err := gst.NewElement("appsrc")
	if err != nil {
		return err
	}
	src.SetArg("format", "time")
	if err = src.SetProperty("is-live", true); err != nil {
		return err
	}
	if err = src.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1",
		s.conf.FrameWidth, s.conf.FrameHeight, int(math.Round(s.conf.TargetFPS)),
	))); err != nil {
		return err
	}

	videoConvert, err := gst.NewElement("videoconvert")
	if err != nil {
		return err
	}

	x264Enc, err := gst.NewElement("x264enc")
	if err != nil {
		return err
	}
	if vc.Preset != "" {
		x264Enc.SetArg("speed-preset", vc.Preset)
	}

	caps, err := gst.NewElement("capsfilter")
	if err != nil {
		return err
	}
	if err = caps.SetProperty("caps", gst.NewCapsFromString("video/x-h264,profile=main")); err != nil {
		return err
	}

	mux, err := gst.NewElement("mp4mux")
	if err != nil {
		return err
	}
	sink, err := gst.NewElement("filesink")
	if err != nil {
		return err
	}
	if err = sink.SetProperty("location", s.path); err != nil {
		return err
	}
	if err = sink.SetProperty("sync", false); err != nil {
		return err
	}

	elements := []*gst.Element{src, videoConvert, x264Enc, caps, mux, sink}
	if err = pipeline.AddMany(elements...); err != nil {
		return err
	}
	if err = gst.ElementLinkMany(elements...); err != nil {
		return err
	}

	s.pipeline = pipeline
	s.src = app.SrcFromElement(src)
	return nil
}

func (s *GstVideoSink) messageWatch(msg *gst.Message) bool {
	switch msg.Type() {
	case gst.MessageEOS:
		s.eos.Break()
		return false

	case gst.MessageError:
		gErr := msg.ParseError()
		s.logger.Errorw("pipeline error", gErr, "debug", gErr.DebugString())
		s.mu.Lock()
		s.err = gErr
		s.mu.Unlock()
		s.eos.Break()
		return false

	default:
		return true
	}
}

func (s *GstVideoSink) Write(f *video.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSinkClosed
	}
	if err := checkFrame(s.conf, f); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}

	b := gst.NewBufferFromBytes(append([]byte(nil), rawFrame(f)...))
	b.SetPresentationTimestamp(gst.ClockTime(uint64(f.PTS)))
	if flow := s.src.PushBuffer(b); flow != gst.FlowOK {
		return fmt.Errorf("push buffer: %s", flow.String())
	}
	s.frames++
	return nil
}

func (s *GstVideoSink) Path() string {
	return s.path
}

func (s *GstVideoSink) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close sends EOS and waits for mp4mux to finish the file.
func (s *GstVideoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if flow := s.src.EndStream(); flow != gst.FlowOK {
		s.logger.Warnw("failed to end stream", nil, "flow", flow.String())
	}

	select {
	case <-s.eos.Watch():
	case <-time.After(eosTimeout):
		s.logger.Errorw("pipeline frozen", nil)
		s.mu.Lock()
		s.err = errors.New("pipeline frozen")
		s.mu.Unlock()
	}

	_ = s.pipeline.BlockSetState(gst.StateNull)
	s.loop.Quit()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debugw("video file closed", "frames", s.frames)
	return s.err
}
