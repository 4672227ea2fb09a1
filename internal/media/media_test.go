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

package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeRanges_25sVideo10sSegments(t *testing.T) {
	ranges := TimeRanges(25000, 10000)
	require := assert.New(t)
	require.Len(ranges, 3)
	require.Equal(TimeRange{StartSec: 0, EndSec: 10}, ranges[0])
	require.Equal(TimeRange{StartSec: 10, EndSec: 20}, ranges[1])
	require.Equal(TimeRange{StartSec: 20, EndSec: 25}, ranges[2])
}

func TestTimeRanges_60sVideo10sSegments(t *testing.T) {
	ranges := TimeRanges(60000, 10000)
	assert.Len(t, ranges, 6)
}

func TestTimeRanges_TotalCoverageAndContiguity(t *testing.T) {
	durationMs := int64(87340)
	segMs := int64(10000)
	ranges := TimeRanges(durationMs, segMs)

	var totalMs int64
	for i, r := range ranges {
		totalMs += int64((r.EndSec - r.StartSec) * 1000)
		if i > 0 {
			assert.InDelta(t, ranges[i-1].EndSec, r.StartSec, 0.001, "ranges must be contiguous")
		}
	}
	assert.InDelta(t, durationMs, totalMs, 1, "ranges must sum to total duration")
}

func TestTimeRanges_ZeroDuration(t *testing.T) {
	assert.Nil(t, TimeRanges(0, 10000))
}
