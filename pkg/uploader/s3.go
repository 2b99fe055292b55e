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
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/logging"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/psrpc"
)

const (
	defaultBucketLocation = "us-east-1"
	defaultS3Endpoint     = "s3.amazonaws.com"
)

type S3Uploader struct {
	conf   *config.S3Config
	prefix string
	client *s3.Client
}

func newS3Uploader(conf *config.S3Config, prefix string) (uploader, error) {
	region := conf.Region
	if region == "" {
		region = defaultBucketLocation
	}

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(region),
		awsConfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = conf.MaxRetries
				o.MaxBackoff = conf.MaxRetryDelay
				o.Retryables = append(o.Retryables, &s3Retryer{})
			})
		}),
	}
	if conf.AccessKey != "" && conf.Secret != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.Secret, conf.SessionToken),
		))
	}
	if conf.ProxyConfig != nil {
		client, err := proxyClient(conf.ProxyConfig)
		if err != nil {
			return nil, err
		}
		opts = append(opts, awsConfig.WithHTTPClient(client))
	}

	awsConf, err := awsConfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	if conf.Endpoint != "" {
		awsConf.BaseEndpoint = aws.String(conf.Endpoint)
	}
	if conf.Region == "" {
		if err = updateRegion(&awsConf, conf); err != nil {
			return nil, err
		}
	}

	return &S3Uploader{
		conf:   conf,
		prefix: prefix,
		client: s3.NewFromConfig(awsConf, func(o *s3.Options) {
			o.UsePathStyle = conf.ForcePathStyle
		}),
	}, nil
}

func proxyClient(conf *config.ProxyConfig) (*http.Client, error) {
	proxyUrl, err := url.Parse(conf.Url)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(proxyUrl)
	if conf.Username != "" && conf.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(conf.Username + ":" + conf.Password))
		transport.ProxyConnectHeader = http.Header{"Proxy-Authorization": []string{"Basic " + creds}}
	}
	return &http.Client{Transport: transport}, nil
}

// updateRegion asks the bucket where it lives when no region was configured.
func updateRegion(awsConf *aws.Config, conf *config.S3Config) error {
	client := s3.NewFromConfig(*awsConf, func(o *s3.Options) {
		o.UsePathStyle = conf.ForcePathStyle
	})
	resp, err := client.GetBucketLocation(context.Background(), &s3.GetBucketLocationInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return psrpc.NewErrorf(psrpc.InvalidArgument, "failed to retrieve upload bucket region: %v", err)
	}
	if resp.LocationConstraint != "" {
		awsConf.Region = string(resp.LocationConstraint)
	}
	return nil
}

func (u *S3Uploader) upload(ctx context.Context, localFilepath, storageFilepath string, outputType types.OutputType) (string, int64, error) {
	key := path.Join(u.prefix, storageFilepath)

	file, size, err := openLocal(localFilepath, "S3")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = file.Close()
	}()

	disposition := u.conf.ContentDisposition
	if disposition == "" {
		disposition = "inline"
	}
	input := &s3.PutObjectInput{
		Body:               file,
		Bucket:             aws.String(u.conf.Bucket),
		Key:                aws.String(key),
		ContentType:        aws.String(string(outputType)),
		ContentDisposition: aws.String(disposition),
		Metadata:           u.conf.Metadata,
	}
	if u.conf.Tagging != "" {
		input.Tagging = aws.String(u.conf.Tagging)
	}

	// sdk logs are only kept for failed uploads
	l := logging.NewS3Logger()
	up := manager.NewUploader(u.client, func(m *manager.Uploader) {
		m.ClientOptions = append(m.ClientOptions, func(o *s3.Options) {
			o.Logger = l
		})
	})
	if _, err = up.Upload(ctx, input); err != nil {
		l.WriteLogs()
		return "", 0, errors.ErrUploadFailed("S3", err)
	}

	return s3Location(u.conf, key), size, nil
}

func s3Location(conf *config.S3Config, key string) string {
	endpoint := defaultS3Endpoint
	if conf.Endpoint != "" {
		if e, err := url.Parse(conf.Endpoint); err == nil && e.Host != "" {
			endpoint = e.Host
		} else {
			endpoint = conf.Endpoint
		}
	}
	if conf.ForcePathStyle {
		return fmt.Sprintf("https://%s/%s/%s", endpoint, conf.Bucket, key)
	}
	return fmt.Sprintf("https://%s.%s/%s", conf.Bucket, endpoint, key)
}

// s3Retryer retries every failed request up to the configured attempts.
type s3Retryer struct{}

func (r *s3Retryer) IsErrorRetryable(_ error) aws.Ternary {
	return aws.TrueTernary
}
