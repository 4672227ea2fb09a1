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

// Package coordinator implements the Upload Coordinator use-cases (§4.5):
// create-video, generate-batch-of-urls, report-part-uploaded, and
// complete-upload. Every use-case returns a success/failure discriminated
// value via a plain (T, error) pair — never a panic — and delegates the
// final UPLOADED transition to reconcile.Service so both the client-driven
// and webhook-driven completion paths share one idempotent code path.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fiapx/video-processor/errs"
	"github.com/fiapx/video-processor/objectstore"
	"github.com/fiapx/video-processor/partplan"
	"github.com/fiapx/video-processor/reconcile"
	"github.com/fiapx/video-processor/repository"
	"github.com/fiapx/video-processor/storage"
	"github.com/fiapx/video-processor/video"
)

// allowedExtensions is the set accepted by create-video, matched
// case-insensitively with an optional leading dot stripped.
var allowedExtensions = map[string]bool{
	"mp4":  true,
	"mov":  true,
	"avi":  true,
	"mkv":  true,
	"webm": true,
}

// MaxMaterializedParts caps how many VideoPart rows create-video inserts
// eagerly. The spec leaves the exact cap to the implementer (§9 Open
// Questions); 10 000 equals partplan's own hard ceiling, so in practice no
// plan ever needs lazy overflow pages today — this constant exists so a
// future, larger part-count ceiling doesn't silently explode repository
// writes.
const MaxMaterializedParts = 10000

// Config bundles the fixed, deployment-level facts the coordinator needs:
// the bucket videos live in and the default batch size for URL generation.
type Config struct {
	Bucket           string
	DefaultBatchSize int
	PresignTTL       time.Duration
	PresignParallel  int
}

func (c Config) withDefaults() Config {
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = 20
	}
	if c.PresignParallel <= 0 {
		c.PresignParallel = 8
	}
	return c
}

// Coordinator wires together the repository, object store, and reconcile
// service behind the use-cases of §4.5.
type Coordinator struct {
	repo      repository.Repository
	store     *objectstore.Store
	reconcile *reconcile.Service
	cfg       Config
	now       func() time.Time
	newID     func() string
}

// New constructs a Coordinator. now and newID are injectable for
// deterministic tests; pass nil for both to use time.Now/uuid.NewString.
func New(repo repository.Repository, store *objectstore.Store, rec *reconcile.Service, cfg Config, now func() time.Time, newID func() string) *Coordinator {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Coordinator{repo: repo, store: store, reconcile: rec, cfg: cfg.withDefaults(), now: now, newID: newID}
}

// CreateVideoInput is the input to CreateVideo.
type CreateVideoInput struct {
	UserID     string
	TotalSize  int64
	DurationMs int64
	Filename   string
	Extension  string
}

// CreateVideoOutput is the result of a successful CreateVideo call.
type CreateVideoOutput struct {
	Video          *video.Video
	NextPartNumber *int
}

// CreateVideo validates the extension, computes a part plan, initiates a
// multipart upload, and persists a new Video in CREATED status with its
// parts eagerly inserted (capped at MaxMaterializedParts; the rest would be
// materialized lazily on demand, discoverable via NextPartNumber, though no
// plan exceeds the cap today). Any failure after InitiateMultipart aborts
// the upload before returning.
func (c *Coordinator) CreateVideo(ctx context.Context, in CreateVideoInput) (CreateVideoOutput, error) {
	ext, err := normalizeExtension(in.Extension)
	if err != nil {
		return CreateVideoOutput{}, err
	}

	plan, err := partplan.Calculate(in.TotalSize)
	if err != nil {
		return CreateVideoOutput{}, err
	}

	id := c.newID()
	fullPath := storage.VideoFile(c.cfg.Bucket, id, in.Filename+"."+ext).FullPath()
	// The object store's key space is bucket-relative; FullPath's leading
	// segment is the bucket itself.
	objectKey := strings.TrimPrefix(fullPath, c.cfg.Bucket+"/")

	uploadID, err := c.store.InitiateMultipart(ctx, objectKey, contentTypeFor(ext))
	if err != nil {
		return CreateVideoOutput{}, err
	}

	now := c.now()
	v := video.New(id, in.UserID, video.Metadata{
		TotalSizeBytes: in.TotalSize,
		DurationMs:     in.DurationMs,
		Filename:       in.Filename,
		Extension:      ext,
	}, video.Storage{UploadID: uploadID, ObjectKey: objectKey, Bucket: c.cfg.Bucket}, now)

	materialize := plan.NumberOfParts
	var nextPartNumber *int
	if materialize > MaxMaterializedParts {
		materialize = MaxMaterializedParts
		next := materialize + 1
		nextPartNumber = &next
	}
	for i := 1; i <= materialize; i++ {
		v.AddPart(i, plan.PartSize)
	}

	if err := c.repo.CreateVideo(ctx, v); err != nil {
		_ = c.store.AbortMultipart(ctx, objectKey, uploadID)
		return CreateVideoOutput{}, errs.Wrap(errs.Internal, err, "persist video %s", id)
	}

	return CreateVideoOutput{Video: v, NextPartNumber: nextPartNumber}, nil
}

// PartURL is a presigned URL for one part, returned by GenerateBatchOfUrls.
type PartURL struct {
	PartNumber int
	URL        string
}

// GenerateBatchOutput is the result of GenerateBatchOfUrls.
type GenerateBatchOutput struct {
	URLs           []PartURL
	UploadID       string
	NextPartNumber *int
}

// GenerateBatchOfUrls presigns up to batchSize (0 = Config.DefaultBatchSize)
// URLs for the first pending parts of videoId. Presigning runs with bounded
// parallelism; if any presign fails, the whole batch fails and no part is
// mutated.
func (c *Coordinator) GenerateBatchOfUrls(ctx context.Context, videoID string, batchSize int) (GenerateBatchOutput, error) {
	if batchSize <= 0 {
		batchSize = c.cfg.DefaultBatchSize
	}

	v, err := c.loadRequired(ctx, videoID)
	if err != nil {
		return GenerateBatchOutput{}, err
	}
	if !v.CanGenerateMoreUrls() {
		return GenerateBatchOutput{}, errs.Newf(errs.InvalidStatusTransition, "video %s in status %s cannot generate more urls", v.ID, v.Status)
	}

	batch := v.GetPendingPartsBatch(batchSize)
	urls := make([]string, len(batch.Batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.PresignParallel)
	for i, p := range batch.Batch {
		i, p := i, p
		g.Go(func() error {
			u, err := c.store.PresignPartURL(gctx, v.Storage.ObjectKey, v.Storage.UploadID, int32(p.PartNumber), c.cfg.PresignTTL)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GenerateBatchOutput{}, errs.Wrap(errs.StoreUnavailable, err, "presign batch for video %s", v.ID)
	}

	now := c.now()
	expected := v.Status
	for i, p := range batch.Batch {
		if err := v.AssignURLToPart(p.PartNumber, urls[i], now); err != nil {
			return GenerateBatchOutput{}, err
		}
	}
	wasTransitioned := expected == video.Created
	if err := v.StartUploadingIfNeeded(now); err != nil {
		return GenerateBatchOutput{}, err
	}

	for _, p := range batch.Batch {
		if err := c.repo.UpdateVideoPart(ctx, v, p.PartNumber); err != nil {
			return GenerateBatchOutput{}, errs.Wrap(errs.Internal, err, "persist part for video %s", v.ID)
		}
	}
	if wasTransitioned {
		if _, err := c.repo.UpdateVideo(ctx, v, expected); err != nil {
			return GenerateBatchOutput{}, errs.Wrap(errs.Internal, err, "persist status transition for video %s", v.ID)
		}
	}

	out := make([]PartURL, len(batch.Batch))
	for i, p := range batch.Batch {
		out[i] = PartURL{PartNumber: p.PartNumber, URL: urls[i]}
	}
	return GenerateBatchOutput{URLs: out, UploadID: v.Storage.UploadID, NextPartNumber: batch.NextPartNumber}, nil
}

// ReportPartUploaded marks partNumber as uploaded with etag, transitioning
// CREATED -> UPLOADING first if needed. Idempotent on repeat reports with
// the same etag.
func (c *Coordinator) ReportPartUploaded(ctx context.Context, videoID string, partNumber int, etag string) (video.Progress, error) {
	v, err := c.loadRequired(ctx, videoID)
	if err != nil {
		return video.Progress{}, err
	}

	now := c.now()
	expected := v.Status
	wasCreated := v.Status == video.Created
	if wasCreated {
		if err := v.StartUploadingIfNeeded(now); err != nil {
			return video.Progress{}, err
		}
	}
	if err := v.MarkPartAsUploaded(partNumber, etag, now); err != nil {
		return video.Progress{}, err
	}

	if err := c.repo.UpdateVideoPart(ctx, v, partNumber); err != nil {
		return video.Progress{}, errs.Wrap(errs.Internal, err, "persist part %d for video %s", partNumber, v.ID)
	}
	if wasCreated {
		if _, err := c.repo.UpdateVideo(ctx, v, expected); err != nil {
			return video.Progress{}, errs.Wrap(errs.Internal, err, "persist status transition for video %s", v.ID)
		}
	}

	return v.GetUploadProgress(), nil
}

// CompleteUploadOutput is the result of CompleteUpload.
type CompleteUploadOutput struct {
	Status video.Status
}

// CompleteUpload requires the video to be fully uploaded while UPLOADING,
// finalizes the multipart upload on the object store, and delegates the
// status transition and event publication to reconcile.Service.
func (c *Coordinator) CompleteUpload(ctx context.Context, videoID, correlationID, traceID string) (CompleteUploadOutput, error) {
	v, err := c.loadRequired(ctx, videoID)
	if err != nil {
		return CompleteUploadOutput{}, err
	}
	if v.Status != video.Uploading {
		return CompleteUploadOutput{}, errs.Newf(errs.InvalidStatusTransition, "cannot complete upload for video %s from status %s", v.ID, v.Status)
	}
	if !v.IsFullyUploaded() {
		return CompleteUploadOutput{}, errs.Newf(errs.Validation, "video %s has unuploaded parts", v.ID)
	}

	tags := v.GetUploadedPartsEtags()
	parts := make([]objectstore.PartETag, len(tags))
	for i, t := range tags {
		parts[i] = objectstore.PartETag{PartNumber: t.PartNumber, ETag: t.ETag}
	}
	if err := c.store.CompleteMultipart(ctx, v.Storage.ObjectKey, v.Storage.UploadID, parts); err != nil {
		return CompleteUploadOutput{}, err
	}

	res, err := c.reconcile.Reconcile(ctx, v, correlationID, traceID)
	if err != nil {
		return CompleteUploadOutput{}, err
	}
	return CompleteUploadOutput{Status: res.Status}, nil
}

func (c *Coordinator) loadRequired(ctx context.Context, videoID string) (*video.Video, error) {
	v, err := c.repo.FindByID(ctx, videoID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "load video %s", videoID)
	}
	if v == nil {
		return nil, errs.Newf(errs.NotFound, "video %s not found", videoID)
	}
	return v, nil
}

func normalizeExtension(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if !allowedExtensions[ext] {
		return "", errs.Newf(errs.Validation, "unsupported extension %q", ext)
	}
	return ext, nil
}

func contentTypeFor(ext string) string {
	return fmt.Sprintf("video/%s", ext)
}
