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

// Package envelope parses the message envelope every queue/bus message
// carries: a fixed metadata block plus an opaque, typed payload. Parsing
// never panics; malformed input becomes a ParseError for the caller to
// classify (the queue package does not ack a message whose envelope fails
// to parse; it is left for its visibility to expire and be redriven).
package envelope

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fiapx/video-processor/errs"
)

// Metadata is the envelope's fixed header, present on every message
// regardless of payload shape.
type Metadata struct {
	MessageID     string    `json:"messageId"`
	CorrelationID string    `json:"correlationId"`
	TraceID       string    `json:"traceId"`
	SpanID        string    `json:"spanId"`
	Source        string    `json:"source"`
	EventType     string    `json:"eventType"`
	Version       string    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	RetryCount    int       `json:"retryCount"`
	MaxRetries    int       `json:"maxRetries"`
}

// Envelope pairs Metadata with a raw, not-yet-decoded payload. Callers
// decode Payload into their concrete type with Decode.
type Envelope struct {
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

// Parse validates and decodes raw into an Envelope. It enforces the
// envelope-level required fields (§3: correlationId and traceId are
// required strings, retryCount is non-negative); payload-shape validation
// is left to Decode, since payload schemas vary per event type.
func Parse(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, errs.Wrap(errs.ParseError, err, "decode envelope")
	}
	if strings.TrimSpace(e.Metadata.CorrelationID) == "" {
		return Envelope{}, errs.Newf(errs.ParseError, "envelope missing required correlationId")
	}
	if strings.TrimSpace(e.Metadata.TraceID) == "" {
		return Envelope{}, errs.Newf(errs.ParseError, "envelope missing required traceId")
	}
	if e.Metadata.RetryCount < 0 {
		return Envelope{}, errs.Newf(errs.ParseError, "envelope retryCount must be non-negative, got %d", e.Metadata.RetryCount)
	}
	return e, nil
}

// Decode unmarshals the envelope's payload into dst, which must be a
// pointer. A malformed payload is a ParseError, same as a malformed
// envelope.
func (e Envelope) Decode(dst any) error {
	if len(e.Payload) == 0 {
		return errs.Newf(errs.ParseError, "envelope has empty payload")
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return errs.Wrap(errs.ParseError, err, "decode envelope payload")
	}
	return nil
}

// New builds an Envelope ready to marshal for publishing. Timestamp
// defaults to now if zero.
func New(meta Metadata, payload any) (Envelope, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errs.Wrap(errs.Internal, err, "marshal envelope payload")
	}
	return Envelope{Metadata: meta, Payload: raw}, nil
}

// Marshal serializes the envelope to its wire form.
func (e Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "marshal envelope")
	}
	return b, nil
}
