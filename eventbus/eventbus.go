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

// Package eventbus publishes Video Status Changed events (§4.9) to
// EventBridge. It is the only place in this module that knows the
// source/detail-type constants the rest of the pipeline's consumers key
// their routing rules on.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/fiapx/video-processor/errs"
)

const (
	Source     = "fiapx.video"
	DetailType = "Video Status Changed"
)

// StatusChangedDetail is the JSON detail payload of a Video Status Changed
// event (§6). Optional fields are left as zero values when not applicable
// to the status being reported.
type StatusChangedDetail struct {
	VideoID       string    `json:"videoId"`
	VideoPath     string    `json:"videoPath"`
	Status        string    `json:"status"`
	CorrelationID string    `json:"correlationId"`
	TraceID       string    `json:"traceId"`
	Timestamp     time.Time `json:"timestamp"`
	UserEmail     string    `json:"userEmail,omitempty"`
	VideoName     string    `json:"videoName,omitempty"`
	DurationMs    int64     `json:"duration,omitempty"`
	DownloadURL   string    `json:"downloadUrl,omitempty"`
	ErrorReason   string    `json:"errorReason,omitempty"`
}

// EventBridgeAPI is the subset of *eventbridge.Client Bus depends on.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Bus publishes events onto a single named EventBridge bus.
type Bus struct {
	client  EventBridgeAPI
	busName string
}

// New constructs a Bus targeting busName (pass "" for the account's default
// bus).
func New(client EventBridgeAPI, busName string) *Bus {
	return &Bus{client: client, busName: busName}
}

// Publish sends one Video Status Changed entry. Timestamp defaults to now
// if zero.
func (b *Bus) Publish(ctx context.Context, detail StatusChangedDetail) error {
	if detail.Timestamp.IsZero() {
		detail.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "marshal event detail for video %s", detail.VideoID)
	}

	entry := types.PutEventsRequestEntry{
		Source:       aws.String(Source),
		DetailType:   aws.String(DetailType),
		Detail:       aws.String(string(raw)),
		EventBusName: nonEmptyOrNil(b.busName),
	}

	out, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return errs.Wrap(errs.StoreUnavailable, err, "publish status changed event for video %s", detail.VideoID)
	}
	if out.FailedEntryCount > 0 && len(out.Entries) > 0 {
		e := out.Entries[0]
		return errs.Newf(errs.StoreRejected, "publish status changed event for video %s: %s: %s", detail.VideoID, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
	}
	return nil
}

func nonEmptyOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
