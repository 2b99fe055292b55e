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

package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/livekit/desktop-recorder/pkg/errors"
)

const probeTimeout = 15 * time.Second

type ProbeInfo struct {
	Streams []ProbeStream `json:"streams"`
	Format  struct {
		Filename   string `json:"filename"`
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		ProbeScore int    `json:"probe_score"`
	} `json:"format"`
}

type ProbeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Profile   string `json:"profile"`

	// audio
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	ChannelLayout string `json:"channel_layout"`

	// video
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

// Stream returns the first stream of the given codec type ("video" or "audio").
func (p *ProbeInfo) Stream(codecType string) (*ProbeStream, bool) {
	for i := range p.Streams {
		if p.Streams[i].CodecType == codecType {
			return &p.Streams[i], true
		}
	}
	return nil, false
}

func (p *ProbeInfo) Duration() (time.Duration, error) {
	secs, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Probe runs ffprobe on input.
func (r *Runner) Probe(ctx context.Context, input string) (*ProbeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	p := r.command(ctx, r.conf.ProbePath, "ffprobe",
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		input,
	)
	var out bytes.Buffer
	p.SetStdout(&out)

	if err := p.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("ffprobe timeout after %s", probeTimeout)
		}
		return nil, err
	}

	info := &ProbeInfo{}
	if err := json.Unmarshal(out.Bytes(), info); err != nil {
		return nil, err
	}
	return info, nil
}
