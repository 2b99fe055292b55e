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

package errors

import (
	"errors"
	"fmt"

	"github.com/livekit/psrpc"
)

var (
	ErrNoConfig          = errors.New("missing config")
	ErrAlreadyRecording  = errors.New("recording already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrSinkClosed        = errors.New("sink already closed")
	ErrAlreadyFinalized  = errors.New("audio already finalized")
	ErrFrameSizeMismatch = errors.New("frame size does not match sink")
	ErrInputOverflow     = errors.New("audio input overflowed")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrOutputExists      = errors.New("output file already exists")
	ErrFFmpegNotFound    = errors.New("ffmpeg not found")
	ErrMissingStream     = errors.New("output is missing a stream")
	ErrNoDisplays        = errors.New("no active displays")
	ErrProfileNotFound   = errors.New("profile not found")
)

func New(err string) error {
	return errors.New(err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNoop reports whether err is a status rather than a failure: the request
// was ignored because the controller was already in the requested state.
func IsNoop(err error) bool {
	return errors.Is(err, ErrAlreadyRecording) || errors.Is(err, ErrNotRecording)
}

func ErrCouldNotParseConfig(err error) error {
	return fmt.Errorf("could not parse config: %v", err)
}

func ErrUploadFailed(location string, err error) error {
	return fmt.Errorf("%s upload failed: %v", location, err)
}

func ErrFrameSize(gotW, gotH, wantW, wantH int) error {
	return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSizeMismatch, gotW, gotH, wantW, wantH)
}

func ErrMissing(kind string) error {
	return fmt.Errorf("%w: %s", ErrMissingStream, kind)
}

// ConfigError is returned when a CaptureConfig or RecorderConfig field is invalid.
// A session is never created from a config that fails validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func ErrInvalidConfig(field, format string, args ...any) error {
	return &ConfigError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// DeviceError is returned when a capture device cannot be opened.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("failed to open device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func ErrDeviceOpen(device string, err error) error {
	return &DeviceError{Device: device, Err: err}
}

// MuxFailure carries the muxer's exit code and captured diagnostics.
type MuxFailure struct {
	ExitCode    int
	Diagnostics string
	Err         error
}

func (e *MuxFailure) Error() string {
	if e.Diagnostics == "" {
		return fmt.Sprintf("mux failed (exit code %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("mux failed (exit code %d): %v\n%s", e.ExitCode, e.Err, e.Diagnostics)
}

func (e *MuxFailure) Unwrap() error {
	return e.Err
}

func IsMuxFailure(err error) (*MuxFailure, bool) {
	var e *MuxFailure
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Code maps an error to the closest psrpc error code.
func Code(err error) psrpc.ErrorCode {
	if err == nil {
		return ""
	}

	var psrpcErr psrpc.Error
	var configErr *ConfigError
	var deviceErr *DeviceError
	var muxErr *MuxFailure
	switch {
	case errors.As(err, &psrpcErr):
		return psrpcErr.Code()
	case errors.As(err, &configErr), errors.Is(err, ErrFrameSizeMismatch):
		return psrpc.InvalidArgument
	case errors.As(err, &deviceErr), errors.Is(err, ErrFFmpegNotFound), errors.Is(err, ErrNoDisplays):
		return psrpc.Unavailable
	case errors.As(err, &muxErr), errors.Is(err, ErrMissingStream):
		return psrpc.Internal
	case errors.Is(err, ErrProfileNotFound):
		return psrpc.NotFound
	case IsNoop(err), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSinkClosed),
		errors.Is(err, ErrAlreadyFinalized), errors.Is(err, ErrOutputExists):
		return psrpc.FailedPrecondition
	default:
		return psrpc.Unknown
	}
}
