// Copyright 2023 Sneller, Inc.
// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package objectstore

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fiapx/video-processor/errs"
)

// DownloadObject fetches objectKey from the store into localPath, using the
// SDK's concurrent-part Downloader so large source videos transfer in
// parallel chunks rather than a single stream.
func (s *Store) DownloadObject(ctx context.Context, objectKey, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "create local file %s", localPath)
	}
	defer f.Close()

	downloader := manager.NewDownloader(s.client)
	_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return errs.Wrap(errs.StoreUnavailable, err, "download %s", objectKey)
	}
	return nil
}

// UploadDir uploads every file in localDir matching glob pattern to
// objectPrefix, preserving filenames. It returns the object keys written,
// sorted by filename.
func (s *Store) UploadDir(ctx context.Context, localDir, pattern, objectPrefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(localDir, pattern))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "glob %s in %s", pattern, localDir)
	}

	uploader := manager.NewUploader(s.client)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		f, err := os.Open(m)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "open %s", m)
		}
		key := path.Join(objectPrefix, filepath.Base(m))
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return nil, errs.Wrap(errs.StoreUnavailable, err, "upload %s", key)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
