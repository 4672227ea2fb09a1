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

// Package queue is the reusable Message Consumer Runtime (§4.7): a
// long-poll loop over SQS that parses each message's envelope, dispatches
// to a typed Handler, and acks/nacks/extends visibility based on the
// handler's outcome. Every worker (split, frame, complete-multipart
// consumer) is a thin Handler implementation plumbed into a Runner.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/fiapx/video-processor/envelope"
	"github.com/fiapx/video-processor/errs"
)

// Handler processes one parsed envelope. A nil error acknowledges the
// message; a NonRetryable-classified error also acknowledges (poison, drop);
// any other error leaves the message for redelivery.
type Handler interface {
	Handle(ctx context.Context, env envelope.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env envelope.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env envelope.Envelope) error { return f(ctx, env) }

// Config tunes the polling loop. Zero values fall back to the spec's
// defaults.
type Config struct {
	QueueURL string

	// BatchSize is the max number of messages fetched per long-poll round.
	BatchSize int32
	// WaitTimeSeconds is the SQS long-poll duration. Default 20.
	WaitTimeSeconds int32
	// VisibilityTimeoutSeconds is the queue's configured per-message
	// visibility window. Default 30.
	VisibilityTimeoutSeconds int32
	// MaxVisibilityExtensions bounds how many times a slow handler's
	// visibility is extended before the runtime gives up extending (the
	// message is still left in-flight; it simply stops being renewed).
	// Default 12, matching the spec's "12x original" ceiling.
	MaxVisibilityExtensions int
	// Concurrency bounds how many handler invocations run at once.
	// Default 1.
	Concurrency int
	// DrainTimeout bounds how long Run waits for in-flight handlers to
	// finish after ctx is cancelled. Default 30s.
	DrainTimeout time.Duration

	// ClassifyByPattern enables case-insensitive substring matching
	// against {404, does not exist, NoSuchKey, invalid, not found} to
	// classify a handler error as NonRetryable even without the explicit
	// errs.NonRetryable kind (§4.7).
	ClassifyByPattern bool
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.WaitTimeSeconds <= 0 {
		c.WaitTimeSeconds = 20
	}
	if c.VisibilityTimeoutSeconds <= 0 {
		c.VisibilityTimeoutSeconds = 30
	}
	if c.MaxVisibilityExtensions <= 0 {
		c.MaxVisibilityExtensions = 12
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
	return c
}

// SQSAPI is the subset of *sqs.Client the Runner depends on, narrowed for
// testability.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, opts ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Runner drives the poll/dispatch/ack loop for one handler.
type Runner struct {
	client  SQSAPI
	cfg     Config
	handler Handler
	log     zerolog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(client SQSAPI, cfg Config, handler Handler, log zerolog.Logger) *Runner {
	return &Runner{client: client, cfg: cfg.withDefaults(), handler: handler, log: log.With().Str("component", "queue.Runner").Logger()}
}

// Run polls until ctx is cancelled, then drains in-flight handlers up to
// DrainTimeout before returning. It never acks a message whose handler was
// cancelled mid-flight.
func (r *Runner) Run(ctx context.Context) error {
	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			r.drain(&wg)
			return nil
		default:
		}

		out, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(r.cfg.QueueURL),
			MaxNumberOfMessages: r.cfg.BatchSize,
			WaitTimeSeconds:     r.cfg.WaitTimeSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				r.drain(&wg)
				return nil
			}
			r.log.Error().Err(err).Msg("receive message failed")
			continue
		}

		for _, msg := range out.Messages {
			msg := msg
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				r.process(ctx, msg)
			}()
		}
	}
}

// drain waits for in-flight handlers, giving up after DrainTimeout.
func (r *Runner) drain(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.cfg.DrainTimeout):
		r.log.Warn().Dur("drainTimeout", r.cfg.DrainTimeout).Msg("drain timeout elapsed with handlers still in flight")
	}
}

func (r *Runner) process(ctx context.Context, msg types.Message) {
	env, err := envelope.Parse([]byte(aws.ToString(msg.Body)))
	if err != nil {
		r.log.Error().Err(err).Str("messageId", aws.ToString(msg.MessageId)).Msg("envelope parse failed; leaving message for redrive")
		return
	}

	done := make(chan struct{})
	extendCtx, cancelExtend := context.WithCancel(ctx)
	go r.extendVisibility(extendCtx, aws.ToString(msg.ReceiptHandle), done)

	handleErr := r.handler.Handle(ctx, env)
	close(done)
	cancelExtend()

	if handleErr == nil {
		r.ack(ctx, msg)
		return
	}

	if r.isNonRetryable(handleErr) {
		r.log.Error().Err(handleErr).Str("messageId", aws.ToString(msg.MessageId)).Msg("poison message, acknowledging")
		r.ack(ctx, msg)
		return
	}

	r.log.Warn().Err(handleErr).Str("messageId", aws.ToString(msg.MessageId)).Msg("handler failed, leaving for redelivery")
}

func (r *Runner) ack(ctx context.Context, msg types.Message) {
	_, err := r.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(r.cfg.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		r.log.Error().Err(err).Msg("ack failed")
	}
}

// extendVisibility renews the message's visibility timeout while the
// handler is still running, up to MaxVisibilityExtensions renewals.
func (r *Runner) extendVisibility(ctx context.Context, receiptHandle string, done <-chan struct{}) {
	interval := time.Duration(r.cfg.VisibilityTimeoutSeconds) * time.Second
	ticker := time.NewTicker(interval * 2 / 3)
	defer ticker.Stop()

	extensions := 0
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if extensions >= r.cfg.MaxVisibilityExtensions {
				return
			}
			_, err := r.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
				QueueUrl:          aws.String(r.cfg.QueueURL),
				ReceiptHandle:     aws.String(receiptHandle),
				VisibilityTimeout: r.cfg.VisibilityTimeoutSeconds,
			})
			if err != nil {
				r.log.Error().Err(err).Msg("extend visibility failed")
				return
			}
			extensions++
		}
	}
}

func (r *Runner) isNonRetryable(err error) bool {
	if errs.IsKind(err, errs.NonRetryable) {
		return true
	}
	if r.cfg.ClassifyByPattern && matchesNonRetryablePattern(err.Error()) {
		return true
	}
	return false
}
