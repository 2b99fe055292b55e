// Copyright 2023 LiveKit, Inc.
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

package config

import (
	"os"
	"time"
)

type StorageConfig struct {
	Prefix            string `yaml:"prefix"`              // prefix applied to all filenames
	DeleteAfterUpload bool   `yaml:"delete_after_upload"` // remove the local combined file once uploaded

	S3    *S3Config    `yaml:"s3"`    // upload to s3
	Azure *AzureConfig `yaml:"azure"` // upload to azure
	GCP   *GCPConfig   `yaml:"gcp"`   // upload to gcp
}

type S3Config struct {
	AccessKey      string       `yaml:"access_key"`    // (env AWS_ACCESS_KEY_ID)
	Secret         string       `yaml:"secret"`        // (env AWS_SECRET_ACCESS_KEY)
	SessionToken   string       `yaml:"session_token"` // (env AWS_SESSION_TOKEN)
	Region         string       `yaml:"region"`        // (env AWS_DEFAULT_REGION)
	Endpoint       string       `yaml:"endpoint"`
	Bucket         string       `yaml:"bucket"`
	ForcePathStyle bool         `yaml:"force_path_style"`
	ProxyConfig    *ProxyConfig `yaml:"proxy_config"`

	MaxRetries    int           `yaml:"max_retries"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	MinRetryDelay time.Duration `yaml:"min_retry_delay"`

	Metadata           map[string]string `yaml:"metadata"`
	Tagging            string            `yaml:"tagging"`
	ContentDisposition string            `yaml:"content_disposition"`
}

type AzureConfig struct {
	AccountName   string `yaml:"account_name"` // (env AZURE_STORAGE_ACCOUNT)
	AccountKey    string `yaml:"account_key"`  // (env AZURE_STORAGE_KEY)
	ContainerName string `yaml:"container_name"`
}

type GCPConfig struct {
	CredentialsJSON string       `yaml:"credentials_json"` // (env GOOGLE_APPLICATION_CREDENTIALS)
	Bucket          string       `yaml:"bucket"`
	ProxyConfig     *ProxyConfig `yaml:"proxy_config"`
}

type ProxyConfig struct {
	Url      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (c *StorageConfig) IsLocal() bool {
	return c == nil || (c.S3 == nil && c.GCP == nil && c.Azure == nil)
}

// UpdateStorageConfig fills credentials from the environment and retry defaults.
func (c *StorageConfig) UpdateStorageConfig() {
	if c == nil {
		return
	}

	if s3 := c.S3; s3 != nil {
		if s3.AccessKey == "" && s3.Secret == "" {
			s3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
			s3.Secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
			s3.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
		}
		if s3.Region == "" {
			s3.Region = os.Getenv("AWS_DEFAULT_REGION")
		}
		if s3.MaxRetries == 0 {
			s3.MaxRetries = 5
		}
		if s3.MaxRetryDelay == 0 {
			s3.MaxRetryDelay = time.Second * 5
		}
		if s3.MinRetryDelay == 0 {
			s3.MinRetryDelay = time.Millisecond * 100
		}
	}

	if azure := c.Azure; azure != nil {
		if azure.AccountName == "" {
			azure.AccountName = os.Getenv("AZURE_STORAGE_ACCOUNT")
		}
		if azure.AccountKey == "" {
			azure.AccountKey = os.Getenv("AZURE_STORAGE_KEY")
		}
	}

	if gcp := c.GCP; gcp != nil && gcp.CredentialsJSON == "" {
		if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
			if b, err := os.ReadFile(path); err == nil {
				gcp.CredentialsJSON = string(b)
			}
		}
	}
}
