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
	"fmt"
	"net/url"
	"path"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/types"
)

const (
	azureBlockSize   = 4 * 1024 * 1024
	azureParallelism = 16
)

type AzureUploader struct {
	container azblob.ContainerURL
	prefix    string
}

func newAzureUploader(conf *config.AzureConfig, prefix string) (uploader, error) {
	credential, err := azblob.NewSharedKeyCredential(conf.AccountName, conf.AccountKey)
	if err != nil {
		return nil, err
	}

	containerURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", conf.AccountName, conf.ContainerName))
	if err != nil {
		return nil, err
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{
		Retry: azblob.RetryOptions{
			Policy:        azblob.RetryPolicyExponential,
			MaxTries:      maxRetries,
			RetryDelay:    minDelay,
			MaxRetryDelay: maxDelay,
		},
	})

	return &AzureUploader{
		container: azblob.NewContainerURL(*containerURL, pipeline),
		prefix:    prefix,
	}, nil
}

func (u *AzureUploader) upload(ctx context.Context, localFilepath, storageFilepath string, outputType types.OutputType) (string, int64, error) {
	blobURL := u.container.NewBlockBlobURL(path.Join(u.prefix, storageFilepath))

	file, size, err := openLocal(localFilepath, "Azure")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = file.Close()
	}()

	// PutBlob below 256MB, parallel PutBlock above
	_, err = azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: string(outputType)},
		BlockSize:       azureBlockSize,
		Parallelism:     azureParallelism,
	})
	if err != nil {
		return "", 0, errors.ErrUploadFailed("Azure", err)
	}

	location := blobURL.URL()
	return location.String(), size, nil
}
