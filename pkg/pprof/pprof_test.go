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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/desktop-recorder/pkg/errors"
)

func TestProfile(t *testing.T) {
	b, err := Profile(context.Background(), "goroutine", 0, 1)
	require.NoError(t, err)
	require.Contains(t, string(b), "goroutine")

	_, err = Profile(context.Background(), "nonsense", 0, 0)
	require.ErrorIs(t, err, errors.ErrProfileNotFound)
}

func TestCPUProfileCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Profile(ctx, "cpu", 5, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestServeProfile(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/heap?debug=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/nonsense", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
