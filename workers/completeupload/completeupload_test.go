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

package completeupload

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiapx/video-processor/envelope"
	"github.com/fiapx/video-processor/eventbus"
	"github.com/fiapx/video-processor/reconcile"
	"github.com/fiapx/video-processor/repository"
	"github.com/fiapx/video-processor/video"
)

type countingEventBridge struct {
	count int
}

func (f *countingEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.count++
	return &eventbridge.PutEventsOutput{Entries: []types.PutEventsResultEntry{{EventId: aws.String("e1")}}}, nil
}

func newVideo(id string, withPartURLOnly bool) *video.Video {
	v := video.New(id, "u1", video.Metadata{Filename: "a", Extension: "mp4"},
		video.Storage{UploadID: "up1", Bucket: "b1", ObjectKey: "video/" + id + "/file/a.mp4"}, time.Now())
	v.Status = video.Uploading
	v.AddPart(1, 1024)
	if withPartURLOnly {
		_ = v.AssignURLToPart(1, "https://example/part1", time.Now())
	}
	return v
}

func objectEnvelope(t *testing.T, bucket, key string) envelope.Envelope {
	t.Helper()
	e, err := envelope.New(envelope.Metadata{CorrelationID: "c1", TraceID: "t1"}, ObjectDetail{
		Bucket: struct {
			Name string `json:"name"`
		}{Name: bucket},
		Object: struct {
			Key string `json:"key"`
		}{Key: key},
		Reason: "ObjectCreated:CompleteMultipartUpload",
	})
	require.NoError(t, err)
	return e
}

func TestCompleteUploadWorker_Handle_ReconcilesAndPublishesOnce(t *testing.T) {
	repo := repository.NewMemoryRepository()
	v := newVideo("v1", true)
	require.NoError(t, repo.CreateVideo(context.Background(), v))

	bridge := &countingEventBridge{}
	svc := reconcile.New(repo, eventbus.New(bridge, "bus"), nil)
	w := New(repo, svc, zerolog.Nop())

	err := w.Handle(context.Background(), objectEnvelope(t, "b1", v.Storage.ObjectKey))
	require.NoError(t, err)

	got, _ := repo.FindByID(context.Background(), "v1")
	assert.Equal(t, video.Uploaded, got.Status)
	assert.True(t, got.IsFullyUploaded())
	assert.Equal(t, 1, bridge.count)
}

func TestCompleteUploadWorker_Handle_AlreadyUploaded_Skips(t *testing.T) {
	repo := repository.NewMemoryRepository()
	v := newVideo("v1", true)
	v.Status = video.Uploaded
	require.NoError(t, repo.CreateVideo(context.Background(), v))

	bridge := &countingEventBridge{}
	svc := reconcile.New(repo, eventbus.New(bridge, "bus"), nil)
	w := New(repo, svc, zerolog.Nop())

	err := w.Handle(context.Background(), objectEnvelope(t, "b1", v.Storage.ObjectKey))
	require.NoError(t, err)
	assert.Equal(t, 0, bridge.count)
}

func TestCompleteUploadWorker_Handle_VideoNotFound_NonRetryable(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := reconcile.New(repo, nil, nil)
	w := New(repo, svc, zerolog.Nop())

	err := w.Handle(context.Background(), objectEnvelope(t, "b1", "video/missing/file/a.mp4"))
	require.Error(t, err)
}

func TestCompleteUploadWorker_Handle_MalformedKey_NonRetryable(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := reconcile.New(repo, nil, nil)
	w := New(repo, svc, zerolog.Nop())

	err := w.Handle(context.Background(), objectEnvelope(t, "b1", "not-a-storage-path"))
	require.Error(t, err)
}

func TestCompleteUploadWorker_Handle_ConcurrentWithHTTPPath_ExactlyOnePublish(t *testing.T) {
	repo := repository.NewMemoryRepository()
	v := newVideo("v1", true)
	require.NoError(t, repo.CreateVideo(context.Background(), v))

	bridge := &countingEventBridge{}
	svc := reconcile.New(repo, eventbus.New(bridge, "bus"), nil)
	w := New(repo, svc, zerolog.Nop())

	done := make(chan error, 2)
	go func() {
		done <- w.Handle(context.Background(), objectEnvelope(t, "b1", v.Storage.ObjectKey))
	}()
	go func() {
		current, findErr := repo.FindByID(context.Background(), "v1")
		if findErr != nil {
			done <- findErr
			return
		}
		_, recErr := svc.Reconcile(context.Background(), current, "c2", "t2")
		done <- recErr
	}()

	require.NoError(t, <-done)
	require.NoError(t, <-done)

	got, _ := repo.FindByID(context.Background(), "v1")
	assert.Equal(t, video.Uploaded, got.Status)
	assert.Equal(t, 1, bridge.count)
}
