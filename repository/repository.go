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

// Package repository declares the Video persistence contract. No ORM
// semantics are assumed; UpdateVideo must implement a conditional write
// keyed on (id, currentStatus) so the idempotent-receiver pattern in the
// reconcile package has something to build on. The driver behind this
// interface (Postgres, DynamoDB, whatever) is out of scope; only the
// in-memory implementation below exists in this repo, for tests and for
// running the pipeline without external infrastructure.
package repository

import (
	"context"
	"time"

	"github.com/fiapx/video-processor/video"
)

// UpdateResult distinguishes a successful write from a losing race against
// a concurrent conditional update.
type UpdateResult int

const (
	Updated UpdateResult = iota
	StaleUpdate
)

// Repository is the Video persistence contract (§4.3).
type Repository interface {
	CreateVideo(ctx context.Context, v *video.Video) error

	// FindByID returns (nil, nil) if no video exists with that id.
	FindByID(ctx context.Context, id string) (*video.Video, error)

	// FindByObjectKey returns (nil, nil) if no video exists with that key.
	FindByObjectKey(ctx context.Context, objectKey string) (*video.Video, error)

	// UpdateVideo persists v's top-level fields (status, storage,
	// timestamps — not parts) conditioned on the video's current
	// persisted status still being expectedStatus. If another writer
	// already moved the status past expectedStatus, UpdateVideo returns
	// (StaleUpdate, nil): this is a first-class outcome, not an error.
	UpdateVideo(ctx context.Context, v *video.Video, expectedStatus video.Status) (UpdateResult, error)

	// UpdateVideoPart persists a single part of v by PartNumber.
	UpdateVideoPart(ctx context.Context, v *video.Video, partNumber int) error

	// Ping reports whether the backing store is reachable, backing the
	// GET /health contract (the HTTP handler itself is out of scope).
	Ping(ctx context.Context) error

	// StaleVideos returns every video still in CREATED or UPLOADING whose
	// UpdatedAt is older than olderThan, for the janitor's stuck-upload
	// sweep.
	StaleVideos(ctx context.Context, olderThan time.Time) ([]*video.Video, error)
}
