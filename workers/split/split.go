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

// Package split implements the Split Worker (§4.10): it consumes
// "Video Status Changed: UPLOADED" events, segments the source video, and
// emits SPLITTING.
package split

import (
	"context"
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

// DefaultSegmentDurationSeconds is the spec's default SEGMENT_DURATION.
const DefaultSegmentDurationSeconds = 10

// Config tunes the worker.
type Config struct {
	RuntimeTag             string
	OutputBucket           string
	SegmentDurationSeconds int
	// EmitFailedOnNonRetryable controls whether a non-retryable handler
	// error also publishes a FAILED status event (§9 Open Questions: the
	// source leaves this as a TODO). When set, this worker emits FAILED
	// immediately — a stuck video with no further signal is worse than a
	// possibly redundant FAILED event. The zero value publishes nothing.
	EmitFailedOnNonRetryable bool
}

func (c Config) withDefaults() Config {
	if c.RuntimeTag == "" {
		c.RuntimeTag = "video-processor"
	}
	if c.SegmentDurationSeconds <= 0 {
		c.SegmentDurationSeconds = DefaultSegmentDurationSeconds
	}
	return c
}

// Worker downloads the source video, segments it, uploads the segments,
// and transitions the video to SPLITTING.
type Worker struct {
	repo      repository.Repository
	input     *objectstore.Store
	output    *objectstore.Store
	segmenter media.Segmenter
	bus       *eventbus.Bus
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// New constructs a Worker.
func New(repo repository.Repository, input, output *objectstore.Store, segmenter media.Segmenter, bus *eventbus.Bus, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{
		repo: repo, input: input, output: output, segmenter: segmenter, bus: bus,
		cfg: cfg.withDefaults(), log: log.With().Str("component", "split.Worker").Logger(), now: time.Now,
	}
}

// Handle implements queue.Handler.
func (w *Worker) Handle(ctx context.Context, env envelope.Envelope) error {
	var detail eventbus.StatusChangedDetail
	if err := env.Decode(&detail); err != nil {
		return err
	}
	if detail.Status != string(video.Uploaded) {
		// Not our event; ack without action.
		return nil
	}

	v, err := w.repo.FindByID(ctx, detail.VideoID)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "load video %s", detail.VideoID)
	}
	if v == nil {
		return errs.Newf(errs.NonRetryable, "video %s not found", detail.VideoID)
	}
	if video.AtOrBeyond(v.Status, video.Splitting) {
		w.log.Info().Str("videoId", v.ID).Msg("already past SPLITTING, skipping")
		return nil
	}

	err = w.split(ctx, v)
	if err != nil {
		if w.cfg.EmitFailedOnNonRetryable && errs.IsKind(err, errs.NonRetryable) && w.bus != nil {
			_ = w.bus.Publish(ctx, eventbus.StatusChangedDetail{
				VideoID:       v.ID,
				VideoPath:     v.Storage.Bucket + "/" + v.Storage.ObjectKey,
				Status:        string(video.Failed),
				CorrelationID: detail.CorrelationID,
				TraceID:       detail.TraceID,
				ErrorReason:   err.Error(),
			})
		}
		return err
	}
	return nil
}

func (w *Worker) split(ctx context.Context, v *video.Video) error {
	ws, release, err := workspace.Acquire(w.cfg.RuntimeTag, v.ID)
	if err != nil {
		return err
	}
	defer release()

	sourcePath := ws.Path(v.Metadata.Filename + "." + v.Metadata.Extension)
	if err := w.input.DownloadObject(ctx, v.Storage.ObjectKey, sourcePath); err != nil {
		return err
	}

	if err := w.segmenter.Segment(ctx, sourcePath, ws.Dir, w.cfg.SegmentDurationSeconds); err != nil {
		return err
	}

	outputPrefix := storage.VideoPart(w.cfg.OutputBucket, v.ID, "").FullPath()
	outputPrefix = trimBucketPrefix(outputPrefix, w.cfg.OutputBucket)
	if _, err := w.output.UploadDir(ctx, ws.Dir, "segment_*.mp4", outputPrefix); err != nil {
		return err
	}

	now := w.now()
	expected := v.Status
	if err := v.Transition(video.Splitting, now); err != nil {
		return err
	}
	if _, err := w.repo.UpdateVideo(ctx, v, expected); err != nil {
		return errs.Wrap(errs.Internal, err, "persist SPLITTING for video %s", v.ID)
	}

	if w.bus != nil {
		if err := w.bus.Publish(ctx, eventbus.StatusChangedDetail{
			VideoID:       v.ID,
			VideoPath:     v.Storage.Bucket + "/" + v.Storage.ObjectKey,
			Status:        string(video.Splitting),
			DurationMs:    v.Metadata.DurationMs,
			VideoName:     v.Metadata.Filename,
			Timestamp:     now,
		}); err != nil {
			return errs.Wrap(errs.Internal, err, "publish SPLITTING event for video %s", v.ID)
		}
	}
	return nil
}

func trimBucketPrefix(fullPath, bucket string) string {
	prefix := bucket + "/"
	if len(fullPath) > len(prefix) && fullPath[:len(prefix)] == prefix {
		return fullPath[len(prefix):]
	}
	return fullPath
}
