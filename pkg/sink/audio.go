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

package sink

import (
	"context"
	"encoding/binary"
	"os"
	"path"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/linkdata/deadlock"

	"github.com/livekit/desktop-recorder/pkg/capture/audio"
	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/protocol/logger"
)

const wavFormatPCM = 1

// AudioSink buffers chunks in memory and writes them out once on Finalize.
type AudioSink struct {
	conf       *config.CaptureConfig
	transcoder Transcoder
	logger     logger.Logger

	mu        deadlock.Mutex
	chunks    []*audio.Chunk
	count     int
	bytes     int
	finalized bool
}

func NewAudioSink(conf *config.CaptureConfig, transcoder Transcoder) *AudioSink {
	return &AudioSink{
		conf:       conf,
		transcoder: transcoder,
		logger:     logger.GetLogger().WithValues("sink", "audio"),
	}
}

// Append takes ownership of c.
func (s *AudioSink) Append(c *audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return errors.ErrAlreadyFinalized
	}
	s.chunks = append(s.chunks, c)
	s.count++
	s.bytes += len(c.Data)
	return nil
}

func (s *AudioSink) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Frames returns the number of buffered sample frames.
func (s *AudioSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes / (s.conf.AudioChannels * s.conf.BytesPerSample())
}

// Finalize writes all chunks as a WAV next to filename, transcodes it to filename and removes the WAV.
// It can only succeed once.
func (s *AudioSink) Finalize(ctx context.Context, filename string) error {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return errors.ErrAlreadyFinalized
	}
	s.finalized = true
	chunks := s.chunks
	s.chunks = nil
	s.mu.Unlock()

	wavPath := strings.TrimSuffix(filename, path.Ext(filename)) + string(types.FileExtensionWAV)
	if err := s.writeWAV(wavPath, chunks); err != nil {
		_ = os.Remove(wavPath)
		return err
	}

	if err := s.transcoder.Transcode(ctx, wavPath, filename); err != nil {
		// the wav is kept so the audio is not lost
		s.logger.Warnw("failed to transcode audio", err, "wav", wavPath)
		_ = os.Remove(filename)
		return err
	}

	if err := os.Remove(wavPath); err != nil {
		s.logger.Warnw("failed to remove intermediate wav", err, "wav", wavPath)
	}

	s.logger.Debugw("audio file finalized", "path", filename, "chunks", len(chunks))
	return nil
}

func (s *AudioSink) writeWAV(filename string, chunks []*audio.Chunk) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, s.conf.AudioSampleRate, s.conf.AudioBitDepth, s.conf.AudioChannels, wavFormatPCM)
	format := &goaudio.Format{
		NumChannels: s.conf.AudioChannels,
		SampleRate:  s.conf.AudioSampleRate,
	}

	// header first, so an empty recording is still a valid file
	err = enc.Write(&goaudio.IntBuffer{Format: format, Data: []int{}, SourceBitDepth: s.conf.AudioBitDepth})
	for _, c := range chunks {
		if err != nil {
			break
		}
		err = enc.Write(&goaudio.IntBuffer{
			Format:         format,
			Data:           decodePCM(c.Data, s.conf.AudioBitDepth),
			SourceBitDepth: s.conf.AudioBitDepth,
		})
	}

	var errArray errors.ErrArray
	errArray.Check(err)
	errArray.Check(enc.Close())
	errArray.Check(f.Close())
	if errArray.Len() > 0 {
		return errArray.ToError()
	}
	return nil
}

// decodePCM converts interleaved little-endian samples to ints.
func decodePCM(data []byte, bitDepth int) []int {
	switch bitDepth {
	case 32:
		out := make([]int, len(data)/4)
		for i := range out {
			out[i] = int(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
		return out
	default:
		out := make([]int, len(data)/2)
		for i := range out {
			out[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
		return out
	}
}
