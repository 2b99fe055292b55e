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

package pprof

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/protocol/logger"
)

const (
	cpuProfileName = "cpu"
	defaultSeconds = 30
	routePrefix    = "/debug/pprof/"
)

// Profile captures a named runtime profile. The cpu profile samples for the given number of seconds.
func Profile(ctx context.Context, name string, seconds, debug int) ([]byte, error) {
	if name == cpuProfileName {
		return cpuProfile(ctx, seconds)
	}

	p := pprof.Lookup(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrProfileNotFound, name)
	}
	buf := &bytes.Buffer{}
	if err := p.WriteTo(buf, debug); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cpuProfile(ctx context.Context, seconds int) ([]byte, error) {
	if seconds <= 0 {
		seconds = defaultSeconds
	}

	buf := &bytes.Buffer{}
	if err := pprof.StartCPUProfile(buf); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		go pprof.StopCPUProfile()
		return nil, context.Canceled
	case <-time.After(time.Duration(seconds) * time.Second):
	}

	pprof.StopCPUProfile()
	return buf.Bytes(), nil
}

// Register serves /debug/pprof/<name>?seconds=<n>&debug=<n> on mux.
func Register(mux *http.ServeMux) {
	mux.HandleFunc(routePrefix, serveProfile)
}

func serveProfile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, routePrefix)
	seconds, _ := strconv.Atoi(r.URL.Query().Get("seconds"))
	debug, _ := strconv.Atoi(r.URL.Query().Get("debug"))

	b, err := Profile(r.Context(), name, seconds, debug)
	if err != nil {
		if errors.Is(err, errors.ErrProfileNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			logger.Warnw("failed to capture profile", err, "profile", name)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(b)
}
