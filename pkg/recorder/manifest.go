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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"

	"github.com/livekit/desktop-recorder/pkg/types"
)

// Manifest is a json summary written next to each recording.
type Manifest struct {
	RecordingID string       `json:"recording_id,omitempty"`
	NodeID      string       `json:"node_id,omitempty"`
	StartedAt   int64        `json:"started_at,omitempty"`
	EndedAt     int64        `json:"ended_at,omitempty"`
	Status      types.Status `json:"status,omitempty"`
	Error       string       `json:"error,omitempty"`

	Resolution string  `json:"resolution,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	BitDepth   int     `json:"bit_depth,omitempty"`
	Device     int     `json:"device"`

	FramesCaptured uint64 `json:"frames_captured"`
	FramesSkipped  uint64 `json:"frames_skipped"`
	AudioChunks    uint64 `json:"audio_chunks"`
	AudioOverflows uint64 `json:"audio_overflows"`

	Files []*File `json:"files,omitempty"`
}

type File struct {
	Kind     types.ArtifactKind `json:"kind"`
	Filename string             `json:"filename"`
	Location string             `json:"location,omitempty"`
	Size     int64              `json:"size,omitempty"`
}

func (c *Controller) newManifest(h *Handle) *Manifest {
	return &Manifest{
		RecordingID: h.ID,
		NodeID:      c.conf.NodeID,
		StartedAt:   h.StartedAt.UnixNano(),
		Resolution:  h.conf.Resolution(),
		FPS:         h.conf.TargetFPS,
		SampleRate:  h.conf.AudioSampleRate,
		Channels:    h.conf.AudioChannels,
		BitDepth:    h.conf.AudioBitDepth,
		Device:      h.conf.InputDeviceID,
	}
}

func (m *Manifest) AddFile(a types.Artifact, location string) {
	f := &File{
		Kind:     a.Kind,
		Filename: a.Filename(),
		Location: location,
	}
	if location == "" {
		f.Location = a.Path
	}
	if stat, err := os.Stat(a.Path); err == nil {
		f.Size = stat.Size()
	}
	m.Files = append(m.Files, f)
}

func (m *Manifest) Close(endedAt int64) ([]byte, error) {
	m.EndedAt = endedAt

	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeManifest records the outcome of a stopped recording and adds the manifest to its artifacts.
func (c *Controller) writeManifest(ctx context.Context, h *Handle, res *Result, recErr error) {
	m := c.newManifest(h)
	m.Status = res.Status
	if recErr != nil {
		m.Error = recErr.Error()
	}
	m.FramesCaptured = res.Stats.FramesCaptured
	m.FramesSkipped = res.Stats.FramesSkipped
	m.AudioChunks = res.Stats.AudioChunks
	m.AudioOverflows = res.Stats.AudioOverflows

	for _, a := range res.Artifacts {
		var location string
		if a.Kind == types.ArtifactCombined {
			location = res.Location
		}
		m.AddFile(a, location)
	}
	if res.Location != "" {
		if _, ok := res.Combined(); !ok {
			// uploaded and removed locally
			m.Files = append(m.Files, &File{
				Kind:     types.ArtifactCombined,
				Filename: path.Base(h.CombinedPath),
				Location: res.Location,
				Size:     res.Size,
			})
		}
	}

	b, err := m.Close(c.clock.Now().UnixNano())
	if err != nil {
		h.logger.Warnw("failed to encode manifest", err)
		return
	}
	if err = os.WriteFile(h.ManifestPath, b, 0644); err != nil {
		h.logger.Warnw("failed to write manifest", err)
		return
	}

	manifest := types.Artifact{Path: h.ManifestPath, Kind: types.ArtifactManifest}
	res.Artifacts = append(res.Artifacts, manifest)

	if c.uploader != nil && res.Location != "" {
		if _, _, err = c.uploader.Upload(ctx, h.ManifestPath, manifest.Filename(), manifest.OutputType(), false); err != nil {
			h.logger.Warnw("failed to upload manifest", err)
		}
	}
}
