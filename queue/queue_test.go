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

package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiapx/video-processor/envelope"
	"github.com/fiapx/video-processor/errs"
)

// fakeSQS hands out a fixed batch of messages once, then blocks on further
// receives until the context is cancelled, mimicking a drained long-poll
// queue.
type fakeSQS struct {
	mu       sync.Mutex
	pending  []types.Message
	served   bool
	deleted  []string
	extended int32
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if !f.served {
		f.served = true
		msgs := f.pending
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
		return &sqs.ReceiveMessageOutput{}, nil
	}
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, opts ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	atomic.AddInt32(&f.extended, 1)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func envelopeBody(t *testing.T, correlationID string) string {
	t.Helper()
	e, err := envelope.New(envelope.Metadata{CorrelationID: correlationID, TraceID: "trace-1"}, map[string]string{"k": "v"})
	require.NoError(t, err)
	raw, err := e.Marshal()
	require.NoError(t, err)
	return string(raw)
}

func runUntilDrained(t *testing.T, r *Runner, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, r.Run(ctx))
}

func TestRunner_SuccessAcks(t *testing.T) {
	fake := &fakeSQS{pending: []types.Message{
		{MessageId: aws.String("m1"), ReceiptHandle: aws.String("rh1"), Body: aws.String(envelopeBody(t, "c1"))},
	}}

	var handled int32
	handler := HandlerFunc(func(ctx context.Context, env envelope.Envelope) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})

	r := NewRunner(fake, Config{QueueURL: "q", VisibilityTimeoutSeconds: 1}, handler, zerolog.Nop())
	runUntilDrained(t, r, 120*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))
	assert.Equal(t, []string{"rh1"}, fake.deleted)
}

func TestRunner_RetryableErrorLeavesMessage(t *testing.T) {
	fake := &fakeSQS{pending: []types.Message{
		{MessageId: aws.String("m1"), ReceiptHandle: aws.String("rh1"), Body: aws.String(envelopeBody(t, "c1"))},
	}}

	handler := HandlerFunc(func(ctx context.Context, env envelope.Envelope) error {
		return errs.Newf(errs.StoreUnavailable, "transient")
	})

	r := NewRunner(fake, Config{QueueURL: "q", VisibilityTimeoutSeconds: 1}, handler, zerolog.Nop())
	runUntilDrained(t, r, 120*time.Millisecond)

	assert.Empty(t, fake.deleted)
}

func TestRunner_NonRetryableKindAcks(t *testing.T) {
	fake := &fakeSQS{pending: []types.Message{
		{MessageId: aws.String("m1"), ReceiptHandle: aws.String("rh1"), Body: aws.String(envelopeBody(t, "c1"))},
	}}

	handler := HandlerFunc(func(ctx context.Context, env envelope.Envelope) error {
		return errs.Newf(errs.NonRetryable, "poison")
	})

	r := NewRunner(fake, Config{QueueURL: "q", VisibilityTimeoutSeconds: 1}, handler, zerolog.Nop())
	runUntilDrained(t, r, 120*time.Millisecond)

	assert.Equal(t, []string{"rh1"}, fake.deleted)
}

func TestRunner_PatternClassificationAcks(t *testing.T) {
	fake := &fakeSQS{pending: []types.Message{
		{MessageId: aws.String("m1"), ReceiptHandle: aws.String("rh1"), Body: aws.String(envelopeBody(t, "c1"))},
	}}

	handler := HandlerFunc(func(ctx context.Context, env envelope.Envelope) error {
		return errs.Newf(errs.Internal, "object not found in bucket")
	})

	r := NewRunner(fake, Config{QueueURL: "q", VisibilityTimeoutSeconds: 1, ClassifyByPattern: true}, handler, zerolog.Nop())
	runUntilDrained(t, r, 120*time.Millisecond)

	assert.Equal(t, []string{"rh1"}, fake.deleted)
}

func TestRunner_MalformedEnvelopeLeftForRedrive(t *testing.T) {
	fake := &fakeSQS{pending: []types.Message{
		{MessageId: aws.String("m1"), ReceiptHandle: aws.String("rh1"), Body: aws.String("not json")},
	}}

	var called int32
	handler := HandlerFunc(func(ctx context.Context, env envelope.Envelope) error {
		atomic.AddInt32(&called, 1)
		return nil
	})

	r := NewRunner(fake, Config{QueueURL: "q", VisibilityTimeoutSeconds: 1}, handler, zerolog.Nop())
	runUntilDrained(t, r, 120*time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&called))
	assert.Empty(t, fake.deleted)
}

func TestMatchesNonRetryablePattern(t *testing.T) {
	assert.True(t, matchesNonRetryablePattern("status 404 returned"))
	assert.True(t, matchesNonRetryablePattern("the object Does Not Exist"))
	assert.True(t, matchesNonRetryablePattern("NoSuchKey: missing"))
	assert.True(t, matchesNonRetryablePattern("Invalid argument"))
	assert.True(t, matchesNonRetryablePattern("resource NOT FOUND"))
	assert.False(t, matchesNonRetryablePattern("connection reset by peer"))
}
