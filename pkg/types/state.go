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

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionRecording
	SessionFinalizing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionRecording:
		return "recording"
	case SessionFinalizing:
		return "finalizing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether a session may move from s to next.
// Finalizing never returns to Recording.
func (s SessionState) CanTransition(next SessionState) bool {
	switch s {
	case SessionIdle:
		return next == SessionRecording || next == SessionClosed
	case SessionRecording:
		return next == SessionFinalizing || next == SessionClosed
	case SessionFinalizing:
		return next == SessionClosed
	default:
		return false
	}
}
