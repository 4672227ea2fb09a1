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

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fiapx/video-processor/errs"
	"github.com/fiapx/video-processor/video"
)

// MemoryRepository is a goroutine-safe, process-local Repository. It exists
// so the coordinator and reconcile packages are runnable and testable
// without wiring a real datastore; it is not meant to survive a restart.
type MemoryRepository struct {
	mu         sync.Mutex
	byID       map[string]*video.Video
	byObjectID map[string]string // objectKey -> id
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*video.Video),
		byObjectID: make(map[string]string),
	}
}

func clone(v *video.Video) *video.Video {
	cp := *v
	cp.Parts = make([]video.Part, len(v.Parts))
	copy(cp.Parts, v.Parts)
	return &cp
}

func (r *MemoryRepository) CreateVideo(ctx context.Context, v *video.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[v.ID]; exists {
		return errs.Newf(errs.Validation, "video %s already exists", v.ID)
	}
	r.byID[v.ID] = clone(v)
	r.byObjectID[v.Storage.ObjectKey] = v.ID
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*video.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

func (r *MemoryRepository) FindByObjectKey(ctx context.Context, objectKey string) (*video.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byObjectID[objectKey]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

// UpdateVideo overwrites the stored video's top-level fields with v's,
// conditioned on the stored video's current status still equaling
// expectedStatus. Parts are left untouched here; use UpdateVideoPart for
// per-part writes.
func (r *MemoryRepository) UpdateVideo(ctx context.Context, v *video.Video, expectedStatus video.Status) (UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[v.ID]
	if !ok {
		return StaleUpdate, errs.Newf(errs.NotFound, "video %s not found", v.ID)
	}
	if cur.Status != expectedStatus {
		return StaleUpdate, nil
	}

	parts := cur.Parts
	next := clone(v)
	next.Parts = parts
	r.byID[v.ID] = next
	if next.Storage.ObjectKey != "" {
		r.byObjectID[next.Storage.ObjectKey] = next.ID
	}
	return Updated, nil
}

// UpdateVideoPart persists the single part of v identified by partNumber.
func (r *MemoryRepository) UpdateVideoPart(ctx context.Context, v *video.Video, partNumber int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[v.ID]
	if !ok {
		return errs.Newf(errs.NotFound, "video %s not found", v.ID)
	}
	for _, p := range v.Parts {
		if p.PartNumber != partNumber {
			continue
		}
		for i := range cur.Parts {
			if cur.Parts[i].PartNumber == partNumber {
				cur.Parts[i] = p
				cur.UpdatedAt = v.UpdatedAt
				return nil
			}
		}
		return errs.Newf(errs.NotFound, "part %d not found on stored video %s", partNumber, v.ID)
	}
	return errs.Newf(errs.NotFound, "part %d not found on supplied video %s", partNumber, v.ID)
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// StaleVideos scans for videos in CREATED or UPLOADING last updated before
// olderThan. The in-memory map has no secondary index, so this is a linear
// scan; a real datastore would back it with an index on (status, updatedAt).
func (r *MemoryRepository) StaleVideos(ctx context.Context, olderThan time.Time) ([]*video.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*video.Video
	for _, v := range r.byID {
		if (v.Status == video.Created || v.Status == video.Uploading) && v.UpdatedAt.Before(olderThan) {
			stale = append(stale, clone(v))
		}
	}
	return stale, nil
}
