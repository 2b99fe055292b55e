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

package uploader

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/types"
)

// localUploader copies files into a directory on this machine, such as a synced or network folder.
type localUploader struct {
	prefix string
}

func newLocalUploader(prefix string) (*localUploader, error) {
	return &localUploader{prefix: prefix}, nil
}

func (u *localUploader) upload(ctx context.Context, localFilepath, storageFilepath string, _ types.OutputType) (string, int64, error) {
	dest := path.Join(u.prefix, storageFilepath)

	src, _, err := openLocal(localFilepath, "local")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = src.Close()
	}()

	if err = ctx.Err(); err != nil {
		return "", 0, errors.ErrUploadFailed("local", err)
	}
	if dir := path.Dir(dest); dir != "." {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return "", 0, errors.ErrUploadFailed("local", err)
		}
	}

	// written beside the destination so a partial copy never has the final name
	tmp := dest + ".upload"
	dst, err := os.Create(tmp)
	if err != nil {
		return "", 0, errors.ErrUploadFailed("local", err)
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, dest)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", 0, errors.ErrUploadFailed("local", err)
	}

	return dest, size, nil
}
