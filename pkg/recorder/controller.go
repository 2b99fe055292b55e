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

package recorder

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/linkdata/deadlock"

	"github.com/livekit/desktop-recorder/pkg/capture/audio"
	"github.com/livekit/desktop-recorder/pkg/capture/video"
	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/ffmpeg"
	"github.com/livekit/desktop-recorder/pkg/logging"
	"github.com/livekit/desktop-recorder/pkg/muxer"
	"github.com/livekit/desktop-recorder/pkg/session"
	"github.com/livekit/desktop-recorder/pkg/sink"
	"github.com/livekit/desktop-recorder/pkg/stats"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/desktop-recorder/pkg/uploader"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/tracer"
	"github.com/livekit/protocol/utils"
)

const (
	timestampFormat = "20060102_150405"
	maxNameSuffix   = 99
)

// Controller runs at most one recording at a time and turns it into a single combined file.
type Controller struct {
	conf     *config.RecorderConfig
	runner   *ffmpeg.Runner
	muxer    muxer.Muxer
	uploader *uploader.Uploader
	monitor  *stats.Monitor
	clock    clock.Clock

	// captures outlive the request that started them
	ctx    context.Context
	cancel context.CancelFunc

	mu     deadlock.Mutex
	active *Handle
}

// Handle identifies a running recording.
type Handle struct {
	ID           string
	VideoPath    string
	AudioPath    string
	CombinedPath string
	ManifestPath string
	StartedAt    time.Time

	conf    *config.CaptureConfig
	session *session.Session
	logger  logger.Logger
}

// Failed is closed if capture stops on its own before StopRecording.
func (h *Handle) Failed() <-chan struct{} {
	return h.session.Failed()
}

func (h *Handle) Stats() session.Stats {
	return h.session.Stats()
}

// Result describes a finished recording and the files it left on disk.
type Result struct {
	ID        string
	Status    types.Status
	Artifacts []types.Artifact
	Location  string // upload location, if uploaded
	Size      int64
	Stats     session.Stats
}

// Combined returns the combined artifact, if the recording got that far.
func (r *Result) Combined() (types.Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Kind == types.ArtifactCombined {
			return a, true
		}
	}
	return types.Artifact{}, false
}

type Option func(*Controller)

// WithClock sets the clock used to name output files.
func WithClock(c clock.Clock) Option {
	return func(r *Controller) {
		r.clock = c
	}
}

func WithMonitor(m *stats.Monitor) Option {
	return func(r *Controller) {
		r.monitor = m
	}
}

func WithMuxer(m muxer.Muxer) Option {
	return func(r *Controller) {
		r.muxer = m
	}
}

func NewController(conf *config.RecorderConfig, opts ...Option) (*Controller, error) {
	c := &Controller{
		conf:   conf,
		runner: ffmpeg.NewRunner(&conf.FFmpeg),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.runner.CheckAvailable(); err != nil {
		_ = c.runner.Close()
		return nil, err
	}
	if c.muxer == nil {
		c.muxer = muxer.NewFFmpegMuxer(c.runner, &conf.FFmpeg, c.monitor)
	}
	if conf.StorageConfig != nil {
		u, err := uploader.New(conf.StorageConfig, conf.BackupConfig, c.monitor)
		if err != nil {
			_ = c.runner.Close()
			return nil, err
		}
		c.uploader = u
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// StartRecording validates conf, then starts capturing screen and microphone.
// An invalid config returns a ConfigError and no files are created.
func (c *Controller) StartRecording(conf *config.CaptureConfig) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, errors.ErrAlreadyRecording
	}

	devices, err := audio.ListDevices(c.conf.Audio.Source)
	if err != nil {
		return nil, err
	}
	if err = conf.Validate(audio.DeviceIDs(devices)); err != nil {
		return nil, err
	}

	h, err := c.newHandle()
	if err != nil {
		return nil, err
	}
	h.conf = conf
	l := h.logger

	s, err := c.buildSession(conf, h)
	if err != nil {
		l.Errorw("failed to build session", err)
		return nil, err
	}
	if err = s.Start(c.ctx); err != nil {
		// nothing was recorded
		_ = os.Remove(h.VideoPath)
		return nil, err
	}

	h.session = s
	h.StartedAt = c.clock.Now()
	c.active = h

	l.Infow("recording",
		"resolution", conf.Resolution(),
		"fps", conf.TargetFPS,
		"device", conf.InputDeviceID,
		"output", h.CombinedPath,
	)
	return h, nil
}

// newHandle picks the output filenames. When a file from an earlier recording in the same second
// is still there, the names get a _1, _2, ... suffix. Existing files are never reused.
func (c *Controller) newHandle() (*Handle, error) {
	if err := os.MkdirAll(c.conf.OutputDir, 0755); err != nil {
		return nil, err
	}

	ts := c.clock.Now().Format(timestampFormat)
	h := &Handle{ID: utils.NewGuid("REC_")}
	h.logger = logger.GetLogger().WithValues("recordingID", h.ID)

	var taken string
	for i := 0; i <= maxNameSuffix; i++ {
		name := ts
		if i > 0 {
			name = fmt.Sprintf("%s_%d", ts, i)
		}
		h.VideoPath = path.Join(c.conf.OutputDir, fmt.Sprintf("output_%s%s", name, types.FileExtensionMP4))
		h.AudioPath = path.Join(c.conf.OutputDir, fmt.Sprintf("output_%s%s", name, types.FileExtensionMP3))
		h.CombinedPath = path.Join(c.conf.OutputDir, fmt.Sprintf("combined_%s%s", name, types.FileExtensionMP4))
		h.ManifestPath = path.Join(c.conf.OutputDir, fmt.Sprintf("combined_%s%s", name, types.FileExtensionJSON))

		if taken = c.firstExisting(h); taken == "" {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errors.ErrOutputExists, taken)
}

func (c *Controller) firstExisting(h *Handle) string {
	paths := []string{h.VideoPath, h.AudioPath, h.CombinedPath}
	if c.conf.WriteManifest {
		paths = append(paths, h.ManifestPath)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Controller) buildSession(conf *config.CaptureConfig, h *Handle) (*session.Session, error) {
	grabber, err := c.newGrabber(conf)
	if err != nil {
		return nil, err
	}

	videoOpts := []video.Option{video.WithMonitor(c.monitor)}
	if o := c.conf.Video.Overlay; o != nil && o.ImagePath != "" {
		img, err := video.LoadImage(o.ImagePath)
		if err != nil {
			_ = grabber.Close()
			return nil, errors.ErrInvalidConfig("overlay", "could not load %s: %v", o.ImagePath, err)
		}
		videoOpts = append(videoOpts, video.WithTransform(video.NewOverlay(img, o)))
	}

	device, err := audio.NewDevice(c.conf.Audio.Source, conf.InputDeviceID)
	if err != nil {
		_ = grabber.Close()
		return nil, err
	}

	videoSink, err := sink.NewVideoSink(c.ctx, c.runner, conf, &c.conf.Video, h.VideoPath)
	if err != nil {
		_ = grabber.Close()
		return nil, err
	}
	audioSink := sink.NewAudioSink(conf, sink.NewMP3Transcoder(c.runner, c.conf.Audio.Bitrate))

	sessionOpts := []session.Option{session.WithMonitor(c.monitor)}
	if c.conf.Debug.CaptureStats {
		statsLogger, err := logging.NewCSVLogger[logging.CaptureStats](
			c.conf.Debug.StatsDir, fmt.Sprintf("capture_stats_%s", h.ID),
		)
		if err != nil {
			logger.Warnw("failed to create capture stats file", err)
		} else {
			sessionOpts = append(sessionOpts, session.WithStatsLogger(statsLogger))
		}
	}

	return session.New(
		video.NewSource(conf, grabber, videoSink, videoOpts...),
		audio.NewSource(conf, device, audioSink, audio.WithMonitor(c.monitor)),
		videoSink,
		audioSink,
		h.AudioPath,
		sessionOpts...,
	), nil
}

func (c *Controller) newGrabber(conf *config.CaptureConfig) (video.Grabber, error) {
	switch c.conf.Video.Source {
	case types.GrabberPattern:
		return video.NewPatternGrabber(conf.FrameWidth, conf.FrameHeight), nil
	case types.GrabberScreen, "":
		return video.NewScreenGrabber(c.conf.Video.Display)
	default:
		return nil, errors.ErrInvalidConfig("video source", "unknown source %q", c.conf.Video.Source)
	}
}

// Active returns the running recording, or nil.
func (c *Controller) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// StopRecording stops the recording, muxes its files and uploads the result if storage is configured.
// Without a running recording it returns a noop result and no error.
// If muxing fails the separate video and audio files are kept and listed in the result.
func (c *Controller) StopRecording(ctx context.Context, h *Handle) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Controller.StopRecording")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || (h != nil && h != c.active) {
		return &Result{Status: types.StatusNoop}, nil
	}
	h = c.active
	c.active = nil

	res, err := c.finish(ctx, h)
	if c.conf.WriteManifest {
		c.writeManifest(ctx, h, res, err)
	}
	return res, err
}

// finish stops the session, muxes and uploads. Intermediates are kept whenever muxing does not succeed.
func (c *Controller) finish(ctx context.Context, h *Handle) (*Result, error) {
	l := h.logger
	res := &Result{ID: h.ID, Status: types.StatusFailed}
	intermediates := []types.Artifact{
		{Path: h.VideoPath, Kind: types.ArtifactVideo},
		{Path: h.AudioPath, Kind: types.ArtifactAudio},
	}

	err := h.session.Stop(ctx)
	res.Stats = h.session.Stats()
	if err != nil {
		res.Artifacts = existing(intermediates)
		l.Errorw("recording failed", err)
		return res, err
	}

	if err = c.muxer.Mux(ctx, h.VideoPath, h.AudioPath, h.CombinedPath); err != nil {
		res.Artifacts = existing(intermediates)
		l.Errorw("mux failed, keeping separate files", err,
			"video", h.VideoPath,
			"audio", h.AudioPath,
		)
		return res, err
	}

	res.Status = types.StatusComplete
	if c.conf.KeepIntermediates {
		res.Artifacts = append(res.Artifacts, intermediates...)
	} else {
		for _, a := range intermediates {
			if err = os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
				l.Warnw("failed to remove intermediate file", err, "path", a.Path)
				res.Artifacts = append(res.Artifacts, a)
			}
		}
	}

	combined := types.Artifact{Path: h.CombinedPath, Kind: types.ArtifactCombined}
	if c.uploader == nil {
		res.Artifacts = append(res.Artifacts, combined)
		l.Infow("recording complete", "output", h.CombinedPath, "duration", res.Stats.Duration)
		return res, nil
	}

	deleteAfterUpload := c.conf.StorageConfig.DeleteAfterUpload
	location, size, err := c.uploader.Upload(ctx, h.CombinedPath, combined.Filename(), combined.OutputType(), deleteAfterUpload)
	if err != nil || !deleteAfterUpload {
		res.Artifacts = append(res.Artifacts, combined)
	}
	if err != nil {
		// the combined file is still on disk
		l.Warnw("upload failed", err, "output", h.CombinedPath)
		return res, err
	}

	res.Location = location
	res.Size = size
	l.Infow("recording complete", "location", location, "size", size, "duration", res.Stats.Duration)
	return res, nil
}

// Close stops any running recording and releases the ffmpeg log file.
func (c *Controller) Close(ctx context.Context) error {
	var errArray errors.ErrArray
	if h := c.Active(); h != nil {
		_, err := c.StopRecording(ctx, h)
		errArray.Check(err)
	}
	c.cancel()
	errArray.Check(c.runner.Close())
	if errArray.Len() > 0 {
		return errArray.ToError()
	}
	return nil
}

func existing(artifacts []types.Artifact) []types.Artifact {
	var found []types.Artifact
	for _, a := range artifacts {
		if _, err := os.Stat(a.Path); err == nil {
			found = append(found, a)
		}
	}
	return found
}
