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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/livekit/desktop-recorder/pkg/capture/audio"
	"github.com/livekit/desktop-recorder/pkg/capture/video"
	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/recorder"
	"github.com/livekit/desktop-recorder/pkg/stats"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/desktop-recorder/version"
	"github.com/livekit/protocol/logger"
)

func main() {
	cmd := &cli.Command{
		Name:        "desktop-recorder",
		Usage:       "LiveKit Desktop Recorder",
		Version:     version.Version,
		Description: "records the screen and microphone into a single mp4",
		Commands: []*cli.Command{
			{
				Name:   "record",
				Usage:  "record until interrupted or --duration elapses",
				Action: runRecord,
			},
			{
				Name:   "devices",
				Usage:  "list audio input devices",
				Action: listDevices,
			},
			{
				Name:   "displays",
				Usage:  "list active displays",
				Action: listDisplays,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "LiveKit Desktop Recorder yaml config file",
				Sources: cli.EnvVars("DESKTOP_RECORDER_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "config-body",
				Usage:   "LiveKit Desktop Recorder yaml config body",
				Sources: cli.EnvVars("DESKTOP_RECORDER_CONFIG_BODY"),
			},
			&cli.StringFlag{
				Name:  "resolution",
				Usage: "<width>x<height>, or 1080p, 720p, 480p",
			},
			&cli.FloatFlag{
				Name:  "fps",
				Usage: "target frame rate",
			},
			&cli.IntFlag{
				Name:  "device",
				Usage: "audio input device index from the devices command, -1 for the default",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "directory for recordings, defaults to the working directory",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "stop after this long, 0 to record until interrupted",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "video source, screen or pattern",
			},
		},
		Action: runRecord,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Command) (*config.RecorderConfig, error) {
	configBody := c.String("config-body")
	if configBody == "" {
		if configFile := c.String("config"); configFile != "" {
			content, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			configBody = string(content)
		}
	}

	conf, err := config.NewRecorderConfig(configBody)
	if err != nil {
		return nil, err
	}

	if c.IsSet("resolution") {
		conf.Video.Resolution = c.String("resolution")
	}
	if c.IsSet("fps") {
		conf.Video.FPS = c.Float("fps")
	}
	if c.IsSet("device") {
		conf.Audio.Device = c.Int("device")
	}
	if c.IsSet("output-dir") {
		conf.OutputDir = c.String("output-dir")
	}
	if c.IsSet("duration") {
		conf.MaxDuration = c.Duration("duration")
	}
	if c.IsSet("source") {
		conf.Video.Source = types.GrabberType(c.String("source"))
	}

	return conf, nil
}

func runRecord(ctx context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	capture, err := conf.CaptureConfig()
	if err != nil {
		return err
	}

	var monitor *stats.Monitor
	if conf.PrometheusPort > 0 {
		monitor = stats.NewMonitor(conf.NodeID, prometheus.DefaultRegisterer)
		cpu := stats.NewCPUMonitor(conf.NodeID, prometheus.DefaultRegisterer)
		cpu.Start()
		defer cpu.Stop()

		srv, err := startPromServer(conf.PrometheusPort, conf.Debug.EnableProfiling)
		if err != nil {
			return err
		}
		defer func() {
			_ = srv.Shutdown(context.Background())
		}()
	}

	rec, err := recorder.NewController(conf, recorder.WithMonitor(monitor))
	if err != nil {
		return err
	}
	defer func() {
		_ = rec.Close(context.Background())
	}()

	h, err := rec.StartRecording(capture)
	if err != nil {
		return err
	}
	fmt.Printf("recording to %s, press ctrl+c to stop\n", h.CombinedPath)

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(stopChan)

	var limit <-chan time.Time
	if conf.MaxDuration > 0 {
		timer := time.NewTimer(conf.MaxDuration)
		defer timer.Stop()
		limit = timer.C
	}

	select {
	case sig := <-stopChan:
		logger.Infow("exit requested, stopping recording", "signal", sig)
	case <-limit:
		logger.Infow("duration reached, stopping recording", "duration", conf.MaxDuration)
	case <-h.Failed():
		logger.Warnw("capture stopped unexpectedly, finishing recording", nil)
	case <-ctx.Done():
	}

	res, err := rec.StopRecording(context.Background(), h)
	for _, a := range res.Artifacts {
		fmt.Printf("%s: %s\n", a.Kind, a.Path)
	}
	if err != nil {
		return err
	}
	if res.Location != "" {
		fmt.Printf("uploaded: %s\n", res.Location)
	}
	return nil
}

func listDevices(_ context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	devices, err := audio.ListDevices(conf.Audio.Source)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no audio input devices found")
		return nil
	}
	for _, d := range devices {
		if d.IsDefault {
			fmt.Printf("%s [default]\n", d)
		} else {
			fmt.Println(d)
		}
	}
	return nil
}

func listDisplays(_ context.Context, _ *cli.Command) error {
	displays := video.ListDisplays()
	if len(displays) == 0 {
		fmt.Println("no active displays found")
		return nil
	}
	for _, d := range displays {
		fmt.Println(d)
	}
	return nil
}
