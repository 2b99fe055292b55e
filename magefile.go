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

//go:build mage

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/livekit/desktop-recorder/version"
	"github.com/livekit/mageutil"
)

const binary = "bin/desktop-recorder"

// tags returns the build tags for the optional native backends.
// Set RECORDER_TAGS to override, e.g. RECORDER_TAGS=portaudio,gstreamer.
func tags() string {
	if t, ok := os.LookupEnv("RECORDER_TAGS"); ok {
		return t
	}
	return "portaudio"
}

func goCmd(sub string, extraTags ...string) string {
	t := tags()
	if len(extraTags) > 0 {
		t = strings.Join(append([]string{t}, extraTags...), ",")
		t = strings.TrimPrefix(t, ",")
	}
	if t == "" {
		return "go " + sub
	}
	return fmt.Sprintf("go %s -tags %s", sub, t)
}

// Build compiles the recorder with PortAudio capture.
func Build() error {
	fmt.Println("building desktop-recorder", version.Version)
	return mageutil.Run(context.Background(),
		goCmd("build -o "+binary)+" ./cmd/desktop-recorder",
	)
}

// BuildHeadless compiles without cgo audio, for hosts that only use the tone and pattern sources.
func BuildHeadless() error {
	return mageutil.Run(context.Background(),
		fmt.Sprintf("go build -o %s-headless ./cmd/desktop-recorder", binary),
	)
}

func Test() error {
	return mageutil.Run(context.Background(), goCmd("test -race")+" ./...")
}

// Integration records two seconds with the synthetic sources and checks the result with ffprobe.
func Integration() error {
	ctx := context.Background()
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := mageutil.GetToolPath(tool); err != nil {
			return fmt.Errorf("%s is required: %w", tool, err)
		}
	}
	return mageutil.Run(ctx, goCmd("test -v -count=1", "integration")+" ./pkg/recorder/...")
}
