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
	"path"
	"strings"
)

type MimeType string
type OutputType string
type FileExtension string
type ArtifactKind string
type GrabberType string
type DeviceType string
type VideoBackend string
type Status string

const (
	// codecs
	MimeTypeH264     MimeType = "video/h264"
	MimeTypeMPEG4    MimeType = "video/mpeg4"
	MimeTypeRawVideo MimeType = "video/x-raw"
	MimeTypeAAC      MimeType = "audio/aac"
	MimeTypeMP3      MimeType = "audio/mpeg"
	MimeTypeRawAudio MimeType = "audio/x-raw"

	// output types
	OutputTypeUnknownFile OutputType = ""
	OutputTypeMP4         OutputType = "video/mp4"
	OutputTypeMP3         OutputType = "audio/mpeg"
	OutputTypeWAV         OutputType = "audio/wav"
	OutputTypeJSON        OutputType = "application/json"

	// file extensions
	FileExtensionMP4  FileExtension = ".mp4"
	FileExtensionMP3  FileExtension = ".mp3"
	FileExtensionWAV  FileExtension = ".wav"
	FileExtensionJSON FileExtension = ".json"

	// artifacts
	ArtifactVideo    ArtifactKind = "video"
	ArtifactAudio    ArtifactKind = "audio"
	ArtifactCombined ArtifactKind = "combined"
	ArtifactManifest ArtifactKind = "manifest"

	// frame grabbers
	GrabberScreen  GrabberType = "screen"
	GrabberPattern GrabberType = "pattern"

	// audio devices
	DevicePortAudio DeviceType = "portaudio"
	DeviceTone      DeviceType = "tone"

	// video sink backends
	BackendFFmpeg    VideoBackend = "ffmpeg"
	BackendGStreamer VideoBackend = "gstreamer"

	// controller results
	StatusComplete Status = "complete"
	StatusNoop     Status = "noop"
	StatusFailed   Status = "failed"
)

var (
	FileExtensionForOutputType = map[OutputType]FileExtension{
		OutputTypeMP4:  FileExtensionMP4,
		OutputTypeMP3:  FileExtensionMP3,
		OutputTypeWAV:  FileExtensionWAV,
		OutputTypeJSON: FileExtensionJSON,
	}

	OutputTypeForArtifact = map[ArtifactKind]OutputType{
		ArtifactVideo:    OutputTypeMP4,
		ArtifactAudio:    OutputTypeMP3,
		ArtifactCombined: OutputTypeMP4,
		ArtifactManifest: OutputTypeJSON,
	}

	// ffprobe codec names accepted per container
	CodecCompatibility = map[OutputType]map[string]MimeType{
		OutputTypeMP4: {
			"h264":  MimeTypeH264,
			"mpeg4": MimeTypeMPEG4,
			"aac":   MimeTypeAAC,
			"mp3":   MimeTypeMP3,
		},
		OutputTypeMP3: {
			"mp3": MimeTypeMP3,
		},
		OutputTypeWAV: {
			"pcm_s16le": MimeTypeRawAudio,
			"pcm_s32le": MimeTypeRawAudio,
		},
	}
)

// Artifact is a file produced by a recording.
type Artifact struct {
	Path string
	Kind ArtifactKind
}

func (a Artifact) OutputType() OutputType {
	return OutputTypeForArtifact[a.Kind]
}

func (a Artifact) Filename() string {
	return path.Base(a.Path)
}

func GetOutputType(filename string) OutputType {
	ext := FileExtension(strings.ToLower(path.Ext(filename)))
	for outputType, e := range FileExtensionForOutputType {
		if e == ext {
			return outputType
		}
	}
	return OutputTypeUnknownFile
}

// IsCompatible reports whether a stream with the given ffprobe codec name can live in outputType.
func IsCompatible(outputType OutputType, codecName string) bool {
	_, ok := CodecCompatibility[outputType][codecName]
	return ok
}
