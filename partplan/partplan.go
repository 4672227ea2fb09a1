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

// Package partplan computes the multipart-upload shape for a video's byte
// size under object-store constraints. It is pure and stateless: the same
// totalBytes always yields the same Plan.
package partplan

import (
	"github.com/fiapx/video-processor/errs"
)

const (
	MiB = 1 << 20
	GiB = 1 << 30

	MinPartSize = 5 * MiB
	MaxPartSize = 5 * GiB
	MaxParts    = 10000

	// floor is the smallest part size the policy will ever choose for a
	// multipart upload; it trades a few extra parts for fewer presign
	// round-trips on medium-sized videos.
	floor = 32 * MiB

	// SmallVideoThreshold is the cutoff at or below which a video bypasses
	// multipart entirely and uploads as a single virtual part.
	SmallVideoThreshold = 5 * MiB

	// partsPerPlan is the divisor used to size parts so a plan never
	// exceeds MaxParts (it equals MaxParts); see Calculate.
	partsPerPlan = 10000
)

// Plan is the outcome of Calculate: how many parts a video's bytes are cut
// into and the size of each (non-final) part.
type Plan struct {
	PartSize      int64
	NumberOfParts int
}

// IsSmallVideo reports whether bytes is small enough to bypass multipart
// upload and be handled as a single virtual part.
func IsSmallVideo(totalBytes int64) bool {
	return totalBytes <= SmallVideoThreshold
}

// Calculate computes the part plan for totalBytes. It returns an error
// classified errs.PolicyViolation if no valid plan exists.
func Calculate(totalBytes int64) (Plan, error) {
	if totalBytes <= 0 {
		return Plan{}, errs.Newf(errs.Validation, "totalBytes must be positive, got %d", totalBytes)
	}
	if IsSmallVideo(totalBytes) {
		return Plan{PartSize: totalBytes, NumberOfParts: 1}, nil
	}

	partSize := ceilDiv(totalBytes, partsPerPlan)
	if partSize < floor {
		partSize = floor
	}
	if partSize < MinPartSize {
		// unreachable given the 32 MiB floor above; checked defensively
		// per spec ("never reachable... but checked defensively").
		return Plan{}, errs.Newf(errs.PolicyViolation, "TOO_SMALL_PART: computed part size %d below minimum %d", partSize, MinPartSize)
	}
	if partSize > MaxPartSize {
		return Plan{}, errs.Newf(errs.PolicyViolation, "TOO_LARGE_PART: computed part size %d exceeds maximum %d", partSize, MaxPartSize)
	}

	numberOfParts := int(ceilDiv(totalBytes, partSize))
	if numberOfParts > MaxParts {
		return Plan{}, errs.Newf(errs.PolicyViolation, "TOO_MANY_PARTS: computed %d parts exceeds maximum %d", numberOfParts, MaxParts)
	}

	return Plan{PartSize: partSize, NumberOfParts: numberOfParts}, nil
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
