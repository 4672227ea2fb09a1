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

// Package reconcile is the idempotent-receiver wrapper (§4.6) shared by
// the HTTP complete-upload path and the object-store webhook path: both
// call Service.Reconcile, and at most one of two concurrent callers on the
// same video ever sees a transition actually applied.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fiapx/video-processor/correlation"
	"github.com/fiapx/video-processor/errs"
	"github.com/fiapx/video-processor/eventbus"
	"github.com/fiapx/video-processor/repository"
	"github.com/fiapx/video-processor/video"
)

// Result is the outcome of a Reconcile call.
type Result struct {
	Status  video.Status
	Skipped bool
}

// Service reconciles a video's status to UPLOADED and publishes exactly one
// Video Status Changed event for the transition that actually happened.
type Service struct {
	repo repository.Repository
	bus  *eventbus.Bus
	now  func() time.Time
}

// New constructs a Service. now is injectable for deterministic tests;
// callers normally pass nil to use time.Now.
func New(repo repository.Repository, bus *eventbus.Bus, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, bus: bus, now: now}
}

// Reconcile transitions v to UPLOADED if it isn't already at or beyond that
// status, using a conditional update so that at most one of N concurrent
// callers on the same video applies the transition. correlationID and
// traceID are resolved from (in order) the ambient Correlation Context,
// the values passed in, then freshly generated UUIDs.
func (s *Service) Reconcile(ctx context.Context, v *video.Video, correlationID, traceID string) (Result, error) {
	if video.AtOrBeyond(v.Status, video.Uploaded) {
		return Result{Status: v.Status, Skipped: true}, nil
	}

	correlationID, traceID = s.resolveIDs(ctx, correlationID, traceID)

	expected := v.Status
	next := *v
	next.Status = video.Uploaded
	next.UpdatedAt = s.now()

	res, err := s.repo.UpdateVideo(ctx, &next, expected)
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, err, "reconcile video %s", v.ID)
	}
	if res == repository.StaleUpdate {
		// Another reconciler already won this race; treat as success.
		return Result{Status: video.Uploaded, Skipped: true}, nil
	}

	if s.bus != nil {
		err := s.bus.Publish(ctx, eventbus.StatusChangedDetail{
			VideoID:       v.ID,
			VideoPath:     v.Storage.Bucket + "/" + v.Storage.ObjectKey,
			DurationMs:    v.Metadata.DurationMs,
			VideoName:     v.Metadata.Filename,
			Status:        string(video.Uploaded),
			CorrelationID: correlationID,
			TraceID:       traceID,
			Timestamp:     next.UpdatedAt,
		})
		if err != nil {
			return Result{}, errs.Wrap(errs.Internal, err, "publish status changed event for video %s", v.ID)
		}
	}

	return Result{Status: video.Uploaded, Skipped: false}, nil
}

func (s *Service) resolveIDs(ctx context.Context, correlationID, traceID string) (string, string) {
	if v, ok := correlation.From(ctx); ok {
		if v.CorrelationID != "" {
			correlationID = v.CorrelationID
		}
		if v.TraceID != "" {
			traceID = v.TraceID
		}
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return correlationID, traceID
}
