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

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOutputType(t *testing.T) {
	require.Equal(t, OutputTypeMP4, GetOutputType("/tmp/combined_20240101_120000.mp4"))
	require.Equal(t, OutputTypeMP3, GetOutputType("output_20240101_120000.MP3"))
	require.Equal(t, OutputTypeWAV, GetOutputType("output.wav"))
	require.Equal(t, OutputTypeUnknownFile, GetOutputType("output.ogg"))
}

func TestArtifact(t *testing.T) {
	a := Artifact{Path: "/tmp/out/output_20240101_120000.mp3", Kind: ArtifactAudio}
	require.Equal(t, OutputTypeMP3, a.OutputType())
	require.Equal(t, "output_20240101_120000.mp3", a.Filename())
}

func TestIsCompatible(t *testing.T) {
	require.True(t, IsCompatible(OutputTypeMP4, "h264"))
	require.True(t, IsCompatible(OutputTypeMP4, "aac"))
	require.False(t, IsCompatible(OutputTypeMP4, "opus"))
	require.False(t, IsCompatible(OutputTypeUnknownFile, "h264"))
}

func TestSessionStateTransitions(t *testing.T) {
	require.True(t, SessionIdle.CanTransition(SessionRecording))
	require.True(t, SessionRecording.CanTransition(SessionFinalizing))
	require.True(t, SessionFinalizing.CanTransition(SessionClosed))
	require.False(t, SessionFinalizing.CanTransition(SessionRecording))
	require.False(t, SessionClosed.CanTransition(SessionRecording))
	require.False(t, SessionIdle.CanTransition(SessionFinalizing))
	require.Equal(t, "finalizing", SessionFinalizing.String())
}
