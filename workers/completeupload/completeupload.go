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

// Package completeupload implements the Complete-Multipart Consumer (§4.13):
// the object-store webhook counterpart to the coordinator's HTTP
// complete-upload use-case. It MUST be safe to run concurrently with that
// path — both ultimately call reconcile.Service.Reconcile, whose conditional
// write guarantees at most one of them ever applies the transition.
package completeupload

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiapx/video-processor/envelope"
	"github.com/fiapx/video-processor/errs"
	"github.com/fiapx/video-processor/reconcile"
	"github.com/fiapx/video-processor/repository"
	"github.com/fiapx/video-processor/storage"
	"github.com/fiapx/video-processor/video"
)

// ObjectDetail is the JSON detail payload of an object-store
// CompleteMultipartUpload event.
type ObjectDetail struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key string `json:"key"`
	} `json:"object"`
	Reason string `json:"reason"`
}

// Worker reconciles a video's status from the object-store's own view of
// multipart-upload completion, independent of whether the client ever
// called complete-upload over HTTP.
type Worker struct {
	repo      repository.Repository
	reconcile *reconcile.Service
	log       zerolog.Logger
	now       func() time.Time
}

// New constructs a Worker.
func New(repo repository.Repository, svc *reconcile.Service, log zerolog.Logger) *Worker {
	return &Worker{repo: repo, reconcile: svc, log: log.With().Str("component", "completeupload.Worker").Logger(), now: time.Now}
}

// Handle implements queue.Handler.
func (w *Worker) Handle(ctx context.Context, env envelope.Envelope) error {
	var detail ObjectDetail
	if err := env.Decode(&detail); err != nil {
		return err
	}

	// detail.Object.Key is bucket-relative (as stored on video.Storage.
	// ObjectKey); Parse/ExtractVideoID require the full bucket-prefixed
	// form, so the bucket name from the event must be prepended before
	// parsing. The repository, by contrast, is keyed on the bucket-
	// relative key itself.
	fullPath := detail.Bucket.Name + "/" + detail.Object.Key
	videoID, ok := storage.ExtractVideoID(fullPath)
	if !ok {
		return errs.Newf(errs.NonRetryable, "object key %q does not encode a storage path", detail.Object.Key)
	}

	v, err := w.repo.FindByObjectKey(ctx, detail.Object.Key)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "load video by object key %s", detail.Object.Key)
	}
	if v == nil {
		return errs.Newf(errs.NonRetryable, "no video for object key %s (videoId %s)", detail.Object.Key, videoID)
	}
	if video.AtOrBeyond(v.Status, video.Uploaded) {
		w.log.Info().Str("videoId", v.ID).Msg("already at or beyond UPLOADED, skipping")
		return nil
	}

	v.ReconcileAllPartsAsUploaded(w.now())
	for _, p := range v.Parts {
		if err := w.repo.UpdateVideoPart(ctx, v, p.PartNumber); err != nil {
			return errs.Wrap(errs.Internal, err, "persist part %d of video %s", p.PartNumber, v.ID)
		}
	}
	_, err = w.reconcile.Reconcile(ctx, v, env.Metadata.CorrelationID, env.Metadata.TraceID)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "reconcile video %s from webhook", v.ID)
	}
	return nil
}

