// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
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

package cloud

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/hyperledger/leizu/internal/config"
	"github.com/hyperledger/leizu/internal/log"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

// ArchiveStore keeps credential bundles and genesis blocks under a key.
type ArchiveStore interface {
	Upload(ctx context.Context, key, localPath string) error
}

// NewArchiveStore picks S3 when a bucket is configured, a local directory
// when one is, and nothing otherwise.
func NewArchiveStore(cfg *config.Config) (ArchiveStore, error) {
	switch {
	case cfg.Archive.Bucket != "":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Cloud.Region)})
		if err != nil {
			return nil, errors.Wrap(err, "aws session")
		}
		return NewS3ArchiveStore(s3manager.NewUploader(sess), cfg.Archive.Bucket, cfg.Archive.Prefix), nil
	case cfg.Archive.Dir != "":
		return &FileArchiveStore{Dir: cfg.Archive.Dir}, nil
	}
	return nil, nil
}

type S3ArchiveStore struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

func NewS3ArchiveStore(uploader s3manageriface.UploaderAPI, bucket, prefix string) *S3ArchiveStore {
	return &S3ArchiveStore{uploader: uploader, bucket: bucket, prefix: prefix}
}

func (s *S3ArchiveStore) Upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	objectKey := path.Join(s.prefix, key)
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   f,
	})
	if err != nil {
		return errors.Wrapf(err, "upload s3://%s/%s", s.bucket, objectKey)
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("uploaded %s to %s", localPath, out.Location))
	return nil
}

// FileArchiveStore mirrors uploads into a directory, for runs without object
// storage.
type FileArchiveStore struct {
	Dir string
}

func (s *FileArchiveStore) Upload(ctx context.Context, key, localPath string) error {
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := copy.Copy(localPath, dst); err != nil {
		return errors.Wrapf(err, "archive %s", key)
	}
	return nil
}
