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
	"os"
	"path"
	"time"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/stats"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/psrpc"
)

const (
	maxRetries = 5
	minDelay   = time.Millisecond * 100
	maxDelay   = time.Second * 5
)

type uploader interface {
	upload(ctx context.Context, localFilepath, storageFilepath string, outputType types.OutputType) (string, int64, error)
}

// Uploader copies finished recordings to storage, falling back to a backup destination.
type Uploader struct {
	primary uploader
	backup  uploader
	monitor *stats.Monitor
}

func New(conf, backup *config.StorageConfig, monitor *stats.Monitor) (*Uploader, error) {
	p, err := getUploader(conf)
	if err != nil {
		return nil, err
	}

	u := &Uploader{
		primary: p,
		monitor: monitor,
	}

	if backup != nil {
		b, err := getUploader(backup)
		if err != nil {
			logger.Errorw("failed to create backup uploader", err)
		} else {
			u.backup = b
		}
	}

	return u, nil
}

func getUploader(conf *config.StorageConfig) (uploader, error) {
	switch {
	case conf == nil:
		return newLocalUploader("")
	case conf.S3 != nil:
		return newS3Uploader(conf.S3, conf.Prefix)
	case conf.GCP != nil:
		return newGCPUploader(conf.GCP, conf.Prefix)
	case conf.Azure != nil:
		return newAzureUploader(conf.Azure, conf.Prefix)
	default:
		return newLocalUploader(conf.Prefix)
	}
}

// Upload stores localFilepath under storageFilepath and returns its location and size.
// The local file is removed only after a successful upload.
func (u *Uploader) Upload(
	ctx context.Context,
	localFilepath, storageFilepath string,
	outputType types.OutputType,
	deleteAfterUpload bool,
) (string, int64, error) {

	start := time.Now()
	location, size, primaryErr := u.primary.upload(ctx, localFilepath, storageFilepath, outputType)
	elapsed := time.Since(start)

	if primaryErr == nil {
		u.monitor.IncUploadCountSuccess(string(outputType), float64(elapsed.Milliseconds()))
		if deleteAfterUpload {
			_ = os.Remove(localFilepath)
		}
		return location, size, nil
	}

	u.monitor.IncUploadCountFailure(string(outputType), float64(elapsed.Milliseconds()))
	if u.backup != nil && ctx.Err() == nil {
		logger.Warnw("primary upload failed, trying backup", primaryErr, "filename", path.Base(localFilepath))
		location, size, backupErr := u.backup.upload(ctx, localFilepath, storageFilepath, outputType)
		if backupErr == nil {
			u.monitor.IncBackupStorageWrites(string(outputType))
			if deleteAfterUpload {
				_ = os.Remove(localFilepath)
			}
			return location, size, nil
		}

		return "", 0, psrpc.NewErrorf(psrpc.Unavailable,
			"primary: %s\nbackup: %s", primaryErr.Error(), backupErr.Error())
	}

	return "", 0, primaryErr
}

// openLocal opens a finished recording for upload and returns its size.
func openLocal(localFilepath, name string) (*os.File, int64, error) {
	f, err := os.Open(localFilepath)
	if err != nil {
		return nil, 0, errors.ErrUploadFailed(name, err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, errors.ErrUploadFailed(name, err)
	}
	return f, stat.Size(), nil
}
