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

package logging

import (
	"fmt"
	"strings"

	"github.com/aws/smithy-go/logging"

	"github.com/livekit/protocol/logger"
)

// S3Logger only logs aws messages on upload failure
type S3Logger struct {
	buf *LineBuffer
}

func NewS3Logger() *S3Logger {
	return &S3Logger{
		buf: NewLineBuffer(10),
	}
}

func (l *S3Logger) Logf(classification logging.Classification, format string, v ...interface{}) {
	format = "aws %s: " + format
	v = append([]interface{}{strings.ToLower(string(classification))}, v...)
	l.buf.Add(fmt.Sprintf(format, v...))
}

func (l *S3Logger) WriteLogs() {
	for _, msg := range l.buf.Lines() {
		logger.Debugw(msg)
	}
}
