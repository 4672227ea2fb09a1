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

// Package media abstracts invocation of the external media tool (ffmpeg or
// equivalent). The tool binary itself is out of scope; this package only
// owns the Go-side interface and subprocess plumbing so workers can be
// tested against a fake Tool instead of shelling out.
package media

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/fiapx/video-processor/errs"
)

// TimeRange is one [startSec, endSec) slice of a source video.
type TimeRange struct {
	StartSec float64
	EndSec   float64
}

// Segmenter splits a source file into fixed-duration segments.
type Segmenter interface {
	// Segment writes segment_0001.<ext>, segment_0002.<ext>, ... into
	// outputDir, each segmentSeconds long (the final segment may be
	// shorter).
	Segment(ctx context.Context, sourcePath, outputDir string, segmentSeconds int) error
}

// FrameExtractor extracts frames from one segment within the given time
// range at the given rate.
type FrameExtractor interface {
	// ExtractFrames writes frame_0001.jpg, frame_0002.jpg, ... into
	// outputDir, sampled at fps within rng.
	ExtractFrames(ctx context.Context, sourcePath, outputDir string, rng TimeRange, fps float64) error
}

// CommandTool shells out to an external binary (ffmpeg-compatible CLI) for
// both segmenting and frame extraction. It implements both Segmenter and
// FrameExtractor.
type CommandTool struct {
	// BinaryPath is the executable to invoke, e.g. "ffmpeg".
	BinaryPath string
}

// NewCommandTool constructs a CommandTool. binaryPath defaults to "ffmpeg"
// if empty.
func NewCommandTool(binaryPath string) *CommandTool {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &CommandTool{BinaryPath: binaryPath}
}

func (t *CommandTool) Segment(ctx context.Context, sourcePath, outputDir string, segmentSeconds int) error {
	args := []string{
		"-i", sourcePath,
		"-c", "copy",
		"-map", "0",
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", segmentSeconds),
		"-segment_start_number", "1",
		"-reset_timestamps", "1",
		fmt.Sprintf("%s/segment_%%04d.mp4", outputDir),
	}
	return t.run(ctx, args)
}

func (t *CommandTool) ExtractFrames(ctx context.Context, sourcePath, outputDir string, rng TimeRange, fps float64) error {
	args := []string{
		"-ss", fmt.Sprintf("%.3f", rng.StartSec),
		"-to", fmt.Sprintf("%.3f", rng.EndSec),
		"-i", sourcePath,
		"-vf", fmt.Sprintf("fps=%.3f", fps),
		fmt.Sprintf("%s/frame_%%04d.jpg", outputDir),
	}
	return t.run(ctx, args)
}

func (t *CommandTool) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.BinaryPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.Wrap(errs.NonRetryable, err, "media tool failed: %s", string(out))
	}
	return nil
}

// TimeRanges computes the deterministic, contiguous, non-overlapping,
// sorted time ranges for a video of durationMs split into
// segmentDurationMs-long segments (§4.11).
func TimeRanges(durationMs, segmentDurationMs int64) []TimeRange {
	if durationMs <= 0 || segmentDurationMs <= 0 {
		return nil
	}
	n := (durationMs + segmentDurationMs - 1) / segmentDurationMs
	ranges := make([]TimeRange, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * segmentDurationMs
		end := (i + 1) * segmentDurationMs
		if end > durationMs {
			end = durationMs
		}
		ranges = append(ranges, TimeRange{
			StartSec: float64(start) / 1000,
			EndSec:   float64(end) / 1000,
		})
	}
	return ranges
}
