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

// Package frame implements the Frame Worker (§4.11): it consumes
// "Video Status Changed: SPLITTING" events, extracts frames from every
// segment, and emits COMPLETED (or FAILED on any segment failure).
package frame

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiapx/video-processor/envelope"
	"github.com/fiapx/video-processor/errs"
	"github.com/fiapx/video-processor/eventbus"
	"github.com/fiapx/video-processor/internal/media"
	"github.com/fiapx/video-processor/internal/workspace"
	"github.com/fiapx/video-processor/objectstore"
	"github.com/fiapx/video-processor/repository"
	"github.com/fiapx/video-processor/storage"
	"github.com/fiapx/video-processor/video"
)

// DefaultSegmentDurationMs and DefaultFrameInterval mirror the spec's
// defaults for the time-range function and sampling rate.
const (
	DefaultSegmentDurationMs = 10_000
	DefaultFrameInterval     = 1.0 // seconds between frames => 1 fps
)

// Config tunes the worker.
type Config struct {
	RuntimeTag        string
	OutputBucket      string
	SegmentDurationMs int64
	FrameInterval     float64
}

func (c Config) withDefaults() Config {
	if c.RuntimeTag == "" {
		c.RuntimeTag = "video-processor"
	}
	if c.SegmentDurationMs <= 0 {
		c.SegmentDurationMs = DefaultSegmentDurationMs
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	return c
}

// Worker extracts frames from every segment of a split video and
// transitions it to COMPLETED, or FAILED if any segment fails.
type Worker struct {
	repo      repository.Repository
	segments  *objectstore.Store // where segment_*.mp4 files were written by the split worker
	output    *objectstore.Store
	extractor media.FrameExtractor
	bus       *eventbus.Bus
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// New constructs a Worker.
func New(repo repository.Repository, segments, output *objectstore.Store, extractor media.FrameExtractor, bus *eventbus.Bus, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{
		repo: repo, segments: segments, output: output, extractor: extractor, bus: bus,
		cfg: cfg.withDefaults(), log: log.With().Str("component", "frame.Worker").Logger(), now: time.Now,
	}
}

// Handle implements queue.Handler.
func (w *Worker) Handle(ctx context.Context, env envelope.Envelope) error {
	var detail eventbus.StatusChangedDetail
	if err := env.Decode(&detail); err != nil {
		return err
	}
	if detail.Status != string(video.Splitting) {
		return nil
	}

	v, err := w.repo.FindByID(ctx, detail.VideoID)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "load video %s", detail.VideoID)
	}
	if v == nil {
		return errs.Newf(errs.NonRetryable, "video %s not found", detail.VideoID)
	}
	if video.AtOrBeyond(v.Status, video.Completed) {
		w.log.Info().Str("videoId", v.ID).Msg("already past COMPLETED, skipping")
		return nil
	}

	if err := w.extractAll(ctx, v, detail); err != nil {
		return err
	}
	return nil
}

func (w *Worker) extractAll(ctx context.Context, v *video.Video, detail eventbus.StatusChangedDetail) error {
	ws, release, err := workspace.Acquire(w.cfg.RuntimeTag, v.ID)
	if err != nil {
		return err
	}
	defer release()

	// The state machine requires SPLITTING -> PRINTING -> COMPLETED;
	// PRINTING marks frame extraction as actively in progress.
	printingStart := w.now()
	expectedBeforePrinting := v.Status
	if err := v.Transition(video.Printing, printingStart); err != nil {
		return err
	}
	if _, err := w.repo.UpdateVideo(ctx, v, expectedBeforePrinting); err != nil {
		return errs.Wrap(errs.Internal, err, "persist PRINTING for video %s", v.ID)
	}

	ranges := media.TimeRanges(v.Metadata.DurationMs, w.cfg.SegmentDurationMs)
	outputPrefix := trimBucketPrefix(storage.VideoPrint(w.cfg.OutputBucket, v.ID, "").FullPath(), w.cfg.OutputBucket)

	for i, rng := range ranges {
		segmentKey := storage.VideoPart(v.Storage.Bucket, v.ID, fmt.Sprintf("segment_%04d.mp4", i+1)).FullPath()
		segmentKey = trimBucketPrefix(segmentKey, v.Storage.Bucket)

		segmentPath := ws.Path(fmt.Sprintf("segment_%04d.mp4", i+1))
		if err := w.segments.DownloadObject(ctx, segmentKey, segmentPath); err != nil {
			return w.fail(ctx, v, detail, err)
		}

		// ExtractFrames always names its output frame_0001.jpg,
		// frame_0002.jpg, ...; reusing one directory across segments
		// would let segment N overwrite segment N-1's frames, so each
		// segment gets its own extraction directory and object prefix.
		framesDir := ws.Path(fmt.Sprintf("frames_%04d", i+1))
		if err := os.MkdirAll(framesDir, 0o755); err != nil {
			return w.fail(ctx, v, detail, errs.Wrap(errs.Internal, err, "create frame dir for segment %d", i+1))
		}

		if err := w.extractor.ExtractFrames(ctx, segmentPath, framesDir, rng, 1/w.cfg.FrameInterval); err != nil {
			return w.fail(ctx, v, detail, err)
		}

		segmentPrefix := path.Join(outputPrefix, fmt.Sprintf("segment_%04d", i+1))
		if _, err := w.output.UploadDir(ctx, framesDir, "frame_*.jpg", segmentPrefix); err != nil {
			return w.fail(ctx, v, detail, err)
		}
	}

	now := w.now()
	expected := v.Status
	if err := v.Transition(video.Completed, now); err != nil {
		return err
	}
	if _, err := w.repo.UpdateVideo(ctx, v, expected); err != nil {
		return errs.Wrap(errs.Internal, err, "persist COMPLETED for video %s", v.ID)
	}

	if w.bus != nil {
		downloadURL := v.Storage.Bucket + "/" + outputPrefix
		if err := w.bus.Publish(ctx, eventbus.StatusChangedDetail{
			VideoID:       v.ID,
			VideoPath:     v.Storage.Bucket + "/" + v.Storage.ObjectKey,
			Status:        string(video.Completed),
			CorrelationID: detail.CorrelationID,
			TraceID:       detail.TraceID,
			DownloadURL:   downloadURL,
			Timestamp:     now,
		}); err != nil {
			return errs.Wrap(errs.Internal, err, "publish COMPLETED event for video %s", v.ID)
		}
	}
	return nil
}

// fail transitions v to FAILED and publishes a FAILED event carrying
// errorReason, then returns the original error so the queue runtime can
// still classify and log it.
func (w *Worker) fail(ctx context.Context, v *video.Video, detail eventbus.StatusChangedDetail, cause error) error {
	now := w.now()
	expected := v.Status
	if transErr := v.Transition(video.Failed, now); transErr == nil {
		_, _ = w.repo.UpdateVideo(ctx, v, expected)
	}
	if w.bus != nil {
		_ = w.bus.Publish(ctx, eventbus.StatusChangedDetail{
			VideoID:       v.ID,
			VideoPath:     v.Storage.Bucket + "/" + v.Storage.ObjectKey,
			Status:        string(video.Failed),
			CorrelationID: detail.CorrelationID,
			TraceID:       detail.TraceID,
			ErrorReason:   cause.Error(),
			Timestamp:     now,
		})
	}
	return cause
}

func trimBucketPrefix(fullPath, bucket string) string {
	prefix := bucket + "/"
	if len(fullPath) > len(prefix) && fullPath[:len(prefix)] == prefix {
		return fullPath[len(prefix):]
	}
	return fullPath
}
