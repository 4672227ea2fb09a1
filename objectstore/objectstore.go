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

// Package objectstore adapts aws-sdk-go-v2's S3 client to the multipart
// upload operations the coordinator needs. Credential resolution and
// request signing are handled entirely by the SDK's aws.Config, supplied
// by the caller; this package never touches either.
package objectstore

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fiapx/video-processor/errs"
)

// DefaultPresignTTL is the default lifetime of a generated part URL (§4.4).
const DefaultPresignTTL = 1 * time.Hour

// Store presigns and orchestrates S3 multipart uploads. Bucket is fixed at
// construction; callers working with multiple buckets build one Store per
// bucket.
type Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	internal string // endpoint the SDK talks to (may be a private DNS name / VPC endpoint)
	public   string // endpoint to rewrite presigned URLs to for external clients
}

// New constructs a Store. internalEndpoint and publicEndpoint are the
// scheme+host the object store is reachable at from inside and outside the
// cluster respectively; pass the same value for both (or leave both empty)
// when no rewriting is needed.
func New(client *s3.Client, bucket, internalEndpoint, publicEndpoint string) *Store {
	return &Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   bucket,
		internal: internalEndpoint,
		public:   publicEndpoint,
	}
}

// InitiateMultipart starts a multipart upload and returns its upload ID.
func (s *Store) InitiateMultipart(ctx context.Context, objectKey, contentType string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errs.Wrap(errs.StoreUnavailable, err, "initiate multipart upload for %s", objectKey)
	}
	return aws.ToString(out.UploadId), nil
}

// PresignPartURL returns a presigned PUT URL for one part of an in-flight
// multipart upload, rewritten to the public endpoint if one was configured.
func (s *Store) PresignPartURL(ctx context.Context, objectKey, uploadID string, partNumber int32, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(objectKey),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", errs.Wrap(errs.StoreUnavailable, err, "presign part %d of upload %s", partNumber, uploadID)
	}
	return s.rewriteEndpoint(req.URL), nil
}

// CompleteMultipart finalizes a multipart upload given the client-reported
// part ETags, which must be sorted by part number.
func (s *Store) CompleteMultipart(ctx context.Context, objectKey, uploadID string, parts []PartETag) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(int32(p.PartNumber)),
			ETag:       aws.String(p.ETag),
		}
	}
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectKey),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return errs.Wrap(errs.StoreRejected, err, "complete multipart upload %s for %s", uploadID, objectKey)
	}
	return nil
}

// AbortMultipart cancels an in-flight multipart upload, releasing any parts
// already stored. Used by the janitor for stuck uploads.
func (s *Store) AbortMultipart(ctx context.Context, objectKey, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectKey),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return errs.Wrap(errs.StoreUnavailable, err, "abort multipart upload %s for %s", uploadID, objectKey)
	}
	return nil
}

// PartETag is the (partNumber, etag) pair CompleteMultipart needs.
type PartETag struct {
	PartNumber int
	ETag       string
}

// rewriteEndpoint swaps the scheme+host of a presigned URL from the
// internal endpoint to the public one. If either endpoint is unset, the two
// are equal, or the URL fails to parse, the URL is returned unchanged —
// rewriting is a best-effort convenience, never a hard requirement.
func (s *Store) rewriteEndpoint(raw string) string {
	if s.internal == "" || s.public == "" || s.internal == s.public {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	internal, err := url.Parse(s.internal)
	if err != nil {
		return raw
	}
	public, err := url.Parse(s.public)
	if err != nil {
		return raw
	}
	if !strings.EqualFold(u.Scheme, internal.Scheme) || !strings.EqualFold(u.Host, internal.Host) {
		return raw
	}
	u.Scheme = public.Scheme
	u.Host = public.Host
	return u.String()
}
