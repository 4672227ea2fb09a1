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

// Package video holds the Video aggregate: the in-memory entity that owns
// status, parts, and storage metadata, and the only code allowed to mutate
// them. Use-cases in the coordinator package drive this aggregate; they
// never poke at a part's status directly.
package video

import (
	"sort"
	"strconv"
	"time"

	"github.com/fiapx/video-processor/errs"
)

// PartStatus is the per-part upload state.
type PartStatus string

const (
	PartPending   PartStatus = "pending"
	PartUploading PartStatus = "uploading"
	PartUploaded  PartStatus = "uploaded"
)

// Part is one slice of a multipart upload. Invariant: ETag non-empty
// implies Status == PartUploaded, and vice versa; enforced by the
// aggregate's mutators, never by callers.
type Part struct {
	PartNumber int
	SizeBytes  int64
	URL        string
	ETag       string
	Status     PartStatus
}

// Metadata is the caller-supplied descriptive data for a video, fixed at
// creation time.
type Metadata struct {
	TotalSizeBytes int64
	DurationMs     int64
	Filename       string
	Extension      string
}

// Storage is the object-store coordinates assigned to a video at creation.
type Storage struct {
	UploadID  string
	ObjectKey string
	Bucket    string
}

// Video is the aggregate root. Parts are exclusively owned by their video:
// they are never reassigned to another Video.
type Video struct {
	ID        string
	UserID    string
	Metadata  Metadata
	Status    Status
	Storage   Storage
	Parts     []Part
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New constructs a Video in the Created status with no parts. Parts are
// added via AddPart by the caller (coordinator.CreateVideo) immediately
// after construction, eagerly, per spec.
func New(id, userID string, meta Metadata, st Storage, now time.Time) *Video {
	return &Video{
		ID:        id,
		UserID:    userID,
		Metadata:  meta,
		Status:    Created,
		Storage:   st,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddPart appends a new empty part. Callers are responsible for adding
// parts in increasing PartNumber order; the aggregate does not re-sort on
// insert, only when reading back pending batches.
func (v *Video) AddPart(partNumber int, sizeBytes int64) {
	v.Parts = append(v.Parts, Part{
		PartNumber: partNumber,
		SizeBytes:  sizeBytes,
		Status:     PartPending,
	})
}

func (v *Video) partIndex(partNumber int) int {
	for i := range v.Parts {
		if v.Parts[i].PartNumber == partNumber {
			return i
		}
	}
	return -1
}

// AssignURLToPart records a presigned URL for partNumber. It fails if the
// video's status is terminal or the part does not exist.
func (v *Video) AssignURLToPart(partNumber int, url string, now time.Time) error {
	if IsTerminal(v.Status) {
		return errs.Newf(errs.InvalidStatusTransition, "cannot assign URL to part %d: video %s is in terminal status %s", partNumber, v.ID, v.Status)
	}
	i := v.partIndex(partNumber)
	if i < 0 {
		return errs.Newf(errs.NotFound, "part %d not found on video %s", partNumber, v.ID)
	}
	v.Parts[i].URL = url
	if v.Parts[i].Status == PartPending {
		v.Parts[i].Status = PartUploading
	}
	v.UpdatedAt = now
	return nil
}

// MarkPartAsUploaded records the client-reported ETag for partNumber.
// Re-marking with the same etag is a no-op; a different etag overwrites
// (the client re-uploaded the part). Idempotent by construction: calling
// this twice with the same arguments leaves the aggregate in the same
// state both times.
func (v *Video) MarkPartAsUploaded(partNumber int, etag string, now time.Time) error {
	i := v.partIndex(partNumber)
	if i < 0 {
		return errs.Newf(errs.NotFound, "part %d not found on video %s", partNumber, v.ID)
	}
	if v.Parts[i].Status == PartUploaded && v.Parts[i].ETag == etag {
		return nil
	}
	v.Parts[i].ETag = etag
	v.Parts[i].Status = PartUploaded
	v.UpdatedAt = now
	return nil
}

// PendingBatch is the result of GetPendingPartsBatch.
type PendingBatch struct {
	Batch          []Part
	NextPartNumber *int
}

// GetPendingPartsBatch returns up to n parts with an empty URL, ordered by
// PartNumber, plus the first pending part number strictly after the
// returned batch (nil if there is none).
func (v *Video) GetPendingPartsBatch(n int) PendingBatch {
	pending := make([]Part, 0, len(v.Parts))
	for _, p := range v.Parts {
		if p.URL == "" {
			pending = append(pending, p)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].PartNumber < pending[j].PartNumber })

	if n <= 0 || n > len(pending) {
		n = len(pending)
	}
	batch := pending[:n]
	var next *int
	if n < len(pending) {
		v := pending[n].PartNumber
		next = &v
	}
	return PendingBatch{Batch: batch, NextPartNumber: next}
}

// Progress summarizes how much of the upload is complete.
type Progress struct {
	TotalParts    int
	UploadedParts int
	Percentage    float64
}

// GetUploadProgress reports the fraction of parts uploaded so far.
func (v *Video) GetUploadProgress() Progress {
	total := len(v.Parts)
	uploaded := 0
	for _, p := range v.Parts {
		if p.Status == PartUploaded {
			uploaded++
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(uploaded) / float64(total) * 100
	}
	return Progress{TotalParts: total, UploadedParts: uploaded, Percentage: pct}
}

// IsFullyUploaded reports whether every part has been uploaded.
func (v *Video) IsFullyUploaded() bool {
	if len(v.Parts) == 0 {
		return false
	}
	for _, p := range v.Parts {
		if p.Status != PartUploaded {
			return false
		}
	}
	return true
}

// GetUploadedPartsEtags returns (partNumber, etag) pairs for every
// uploaded part, ordered by PartNumber, ready for CompleteMultipartUpload.
func (v *Video) GetUploadedPartsEtags() []PartETag {
	out := make([]PartETag, 0, len(v.Parts))
	for _, p := range v.Parts {
		if p.Status == PartUploaded {
			out = append(out, PartETag{PartNumber: p.PartNumber, ETag: p.ETag})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out
}

// PartETag is a (partNumber, etag) pair, the shape CompleteMultipartUpload
// expects.
type PartETag struct {
	PartNumber int
	ETag       string
}

// CanGenerateMoreUrls reports whether the video can still have URLs
// presigned for it.
func (v *Video) CanGenerateMoreUrls() bool {
	return v.Status == Created || v.Status == Uploading
}

// StartUploadingIfNeeded transitions Created -> Uploading. From Uploading
// it is a no-op success (tie-break); from anything else it fails.
func (v *Video) StartUploadingIfNeeded(now time.Time) error {
	switch v.Status {
	case Uploading:
		return nil
	case Created:
		v.Status = Uploading
		v.UpdatedAt = now
		return nil
	default:
		return errs.Newf(errs.InvalidStatusTransition, "cannot start uploading video %s from status %s", v.ID, v.Status)
	}
}

// CompleteUpload transitions Uploading -> Uploaded. It requires every part
// to be uploaded first.
func (v *Video) CompleteUpload(now time.Time) error {
	if v.Status != Uploading {
		return errs.Newf(errs.InvalidStatusTransition, "cannot complete upload for video %s from status %s", v.ID, v.Status)
	}
	if !v.IsFullyUploaded() {
		return errs.Newf(errs.Validation, "video %s has unuploaded parts", v.ID)
	}
	v.Status = Uploaded
	v.UpdatedAt = now
	return nil
}

// ReconcileAllPartsAsUploaded is used by the object-store webhook path: it
// forces every part to uploaded status, stamping a synthetic etag for any
// part that doesn't already have one (the webhook tells us the multipart
// upload completed on the store side, but per-part ETags may never have
// been reported to us over path A).
func (v *Video) ReconcileAllPartsAsUploaded(now time.Time) {
	for i := range v.Parts {
		if v.Parts[i].ETag == "" {
			v.Parts[i].ETag = syntheticEtag(v.ID, v.Parts[i].PartNumber)
		}
		v.Parts[i].Status = PartUploaded
	}
	v.UpdatedAt = now
}

func syntheticEtag(videoID string, partNumber int) string {
	return "webhook-" + videoID + "-" + strconv.Itoa(partNumber)
}

// Transition applies a raw (from-current, to) move through the state
// machine table, used by call sites (e.g. workers publishing SPLITTING,
// COMPLETED, FAILED) that don't have a dedicated named mutator above.
func (v *Video) Transition(to Status, now time.Time) error {
	if !CanTransition(v.Status, to) {
		return errs.Newf(errs.InvalidStatusTransition, "video %s cannot transition %s -> %s", v.ID, v.Status, to)
	}
	v.Status = to
	v.UpdatedAt = now
	return nil
}
