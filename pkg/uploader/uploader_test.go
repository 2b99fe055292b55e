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
	"net/http"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/stats"
	"github.com/livekit/desktop-recorder/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	filename := path.Join(dir, name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestLocalUpload(t *testing.T) {
	src := writeFile(t, t.TempDir(), "combined_20250102_150405.mp4", "combined")
	dest := path.Join(t.TempDir(), "recordings")

	reg := prometheus.NewRegistry()
	u, err := New(&config.StorageConfig{Prefix: dest}, nil, stats.NewMonitor("test", reg))
	require.NoError(t, err)

	location, size, err := u.Upload(context.Background(), src, path.Base(src), types.OutputTypeMP4, true)
	require.NoError(t, err)
	require.Equal(t, path.Join(dest, "combined_20250102_150405.mp4"), location)
	require.Equal(t, int64(len("combined")), size)

	b, err := os.ReadFile(location)
	require.NoError(t, err)
	require.Equal(t, "combined", string(b))

	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err))

	count, err := testutil.GatherAndCount(reg, "livekit_recorder_uploads")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBackupUpload(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "combined.mp4", "combined")

	// a regular file where the primary expects a directory
	blocked := writeFile(t, dir, "blocked", "")
	backupDir := path.Join(t.TempDir(), "backup")

	reg := prometheus.NewRegistry()
	u, err := New(
		&config.StorageConfig{Prefix: path.Join(blocked, "recordings")},
		&config.StorageConfig{Prefix: backupDir},
		stats.NewMonitor("test", reg),
	)
	require.NoError(t, err)

	location, _, err := u.Upload(context.Background(), src, "combined.mp4", types.OutputTypeMP4, false)
	require.NoError(t, err)
	require.Equal(t, path.Join(backupDir, "combined.mp4"), location)
	require.FileExists(t, src)

	count, err := testutil.GatherAndCount(reg, "livekit_recorder_backup_storage_writes")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestUploadFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "combined.mp4", "combined")
	blocked := writeFile(t, dir, "blocked", "")

	u, err := New(
		&config.StorageConfig{Prefix: path.Join(blocked, "primary")},
		&config.StorageConfig{Prefix: path.Join(blocked, "backup")},
		nil,
	)
	require.NoError(t, err)

	_, _, err = u.Upload(context.Background(), src, "combined.mp4", types.OutputTypeMP4, true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "primary:")
	require.Contains(t, err.Error(), "backup:")

	// nothing was stored, so nothing is deleted
	require.FileExists(t, src)
}

func TestUploadCancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "combined.mp4", "combined")
	dest := path.Join(t.TempDir(), "recordings")

	u, err := New(&config.StorageConfig{Prefix: dest}, &config.StorageConfig{Prefix: t.TempDir()}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = u.Upload(ctx, src, "combined.mp4", types.OutputTypeMP4, true)
	require.ErrorContains(t, err, "context canceled")
	require.FileExists(t, src)
	require.NoDirExists(t, dest)
}

func TestS3Location(t *testing.T) {
	for _, test := range []struct {
		conf     *config.S3Config
		expected string
	}{
		{
			conf:     &config.S3Config{Bucket: "recordings"},
			expected: "https://recordings.s3.amazonaws.com/a/combined.mp4",
		},
		{
			conf:     &config.S3Config{Bucket: "recordings", Endpoint: "https://minio.local:9000", ForcePathStyle: true},
			expected: "https://minio.local:9000/recordings/a/combined.mp4",
		},
	} {
		require.Equal(t, test.expected, s3Location(test.conf, "a/combined.mp4"))
	}
}

func TestS3Upload(t *testing.T) {
	key := os.Getenv("AWS_ACCESS_KEY")
	secret := os.Getenv("AWS_SECRET")
	region := os.Getenv("AWS_REGION")
	bucket := os.Getenv("AWS_BUCKET")
	if key == "" || secret == "" || bucket == "" {
		t.Skip("s3 credentials not set")
	}

	primary := &config.StorageConfig{
		S3: &config.S3Config{
			AccessKey: "nonsense",
			Secret:    "public",
			Region:    "us-east-1",
			Bucket:    "fake-bucket",
		},
	}
	backup := &config.StorageConfig{
		Prefix: "testProject",
		S3: &config.S3Config{
			AccessKey: key,
			Secret:    secret,
			Region:    region,
			Bucket:    bucket,
		},
	}
	primary.UpdateStorageConfig()
	backup.UpdateStorageConfig()

	u, err := New(primary, backup, nil)
	require.NoError(t, err)

	location, size, err := u.Upload(context.Background(), "uploader_test.go", "uploader_test.go", "text/plain", false)
	require.NoError(t, err)
	require.NotZero(t, size)
	require.NotEmpty(t, location)

	response, err := http.Get(location)
	require.NoError(t, err)
	defer response.Body.Close()

	require.Equal(t, http.StatusOK, response.StatusCode)
	b, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), "package uploader"))
}
