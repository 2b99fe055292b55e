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
	"context"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/linkdata/deadlock"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/logging"
	"github.com/livekit/protocol/logger"
)

// bounds Wait after a context kill when children still hold the output pipes
const waitDelay = 2 * time.Second

// Runner launches ffmpeg and ffprobe processes with shared logging.
type Runner struct {
	conf *config.FFmpegConfig

	mu      deadlock.Mutex
	logFile io.WriteCloser
}

func NewRunner(conf *config.FFmpegConfig) *Runner {
	r := &Runner{conf: conf}
	if conf.LogFile != "" {
		r.logFile = logging.NewRotatingFile(conf.LogFile, conf.LogMaxSize)
	}
	return r
}

// CheckAvailable reports ErrFFmpegNotFound if ffmpeg cannot be executed.
func (r *Runner) CheckAvailable() error {
	if _, err := exec.LookPath(r.conf.Path); err != nil {
		logger.Warnw("ffmpeg not found", err, "path", r.conf.Path)
		return errors.ErrFFmpegNotFound
	}
	return nil
}

// Command prepares an ffmpeg process. name identifies it in logs.
func (r *Runner) Command(ctx context.Context, name string, args ...string) *Process {
	return r.command(ctx, r.conf.Path, name, args...)
}

func (r *Runner) command(ctx context.Context, bin, name string, args ...string) *Process {
	tail := logging.NewLineBuffer(r.conf.StderrTail)
	writers := []io.Writer{tail, logging.NewProcessLogger(name)}
	if r.logFile != nil {
		writers = append(writers, &lockedWriter{mu: &r.mu, w: r.logFile})
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = io.MultiWriter(writers...)
	cmd.WaitDelay = waitDelay

	return &Process{
		name: name,
		cmd:  cmd,
		tail: tail,
	}
}

func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.logFile != nil {
		err := r.logFile.Close()
		r.logFile = nil
		return err
	}
	return nil
}

// lockedWriter serializes writes from concurrent processes into one file.
type lockedWriter struct {
	mu *deadlock.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type Process struct {
	name string
	cmd  *exec.Cmd
	tail *logging.LineBuffer
}

// StdinPipe must be called before Start.
func (p *Process) StdinPipe() (io.WriteCloser, error) {
	return p.cmd.StdinPipe()
}

func (p *Process) SetStdout(w io.Writer) {
	p.cmd.Stdout = w
}

func (p *Process) Start() error {
	logger.Debugw("launching process", "process", p.name, "args", strings.Join(p.cmd.Args, " "))
	if err := p.cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return errors.ErrFFmpegNotFound
		}
		return err
	}
	return nil
}

// Wait returns an *ExitError if the process exited unsuccessfully.
func (p *Process) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}

	exitErr := &ExitError{
		Name:   p.name,
		Code:   -1,
		Stderr: p.tail.String(),
		Err:    err,
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		exitErr.Code = ee.ExitCode()
	}
	return exitErr
}

func (p *Process) Run() error {
	if err := p.Start(); err != nil {
		return err
	}
	return p.Wait()
}

// Tail returns the most recent stderr lines.
func (p *Process) Tail() string {
	return p.tail.String()
}

type ExitError struct {
	Name   string
	Code   int // -1 when killed by a signal
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Name, e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
