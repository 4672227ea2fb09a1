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

// Package storage builds and parses the canonical object-store path used
// throughout the pipeline: {bucket}/video/{videoId}/{context}/{resourceId}.
package storage

import "strings"

// Context is the fourth path segment, naming what kind of resource the
// fifth segment identifies.
type Context string

const (
	ContextFile   Context = "file"
	ContextParts  Context = "parts"
	ContextPrints Context = "prints"
)

func (c Context) valid() bool {
	switch c {
	case ContextFile, ContextParts, ContextPrints:
		return true
	default:
		return false
	}
}

// Path is a parsed storage path.
type Path struct {
	Bucket     string
	VideoID    string
	Context    Context
	ResourceID string
}

// FullPath renders the canonical bucket/video/{id}/{context}/{resource} form.
func (p Path) FullPath() string {
	return strings.Join([]string{p.Bucket, "video", p.VideoID, string(p.Context), p.ResourceID}, "/")
}

// VideoFile builds the path to the original uploaded video object.
func VideoFile(bucket, videoID, filename string) Path {
	return Path{Bucket: bucket, VideoID: videoID, Context: ContextFile, ResourceID: filename}
}

// VideoPart builds the path to an uploaded segment under the video's
// "parts" context.
func VideoPart(bucket, videoID, partID string) Path {
	return Path{Bucket: bucket, VideoID: videoID, Context: ContextParts, ResourceID: partID}
}

// VideoPrint builds the path to an extracted frame under the video's
// "prints" context.
func VideoPrint(bucket, videoID, printID string) Path {
	return Path{Bucket: bucket, VideoID: videoID, Context: ContextPrints, ResourceID: printID}
}

// Parse decomposes fullPath into its components. It requires at least five
// '/'-separated segments, a literal "video" in the second segment, and a
// recognized context in the fourth; anything else returns ok=false.
func Parse(fullPath string) (Path, bool) {
	segs := strings.SplitN(fullPath, "/", 5)
	if len(segs) < 5 {
		return Path{}, false
	}
	if segs[1] != "video" {
		return Path{}, false
	}
	ctx := Context(segs[3])
	if !ctx.valid() {
		return Path{}, false
	}
	return Path{
		Bucket:     segs[0],
		VideoID:    segs[2],
		Context:    ctx,
		ResourceID: segs[4],
	}, true
}

// ExtractVideoID parses fullPath and returns just the video ID, if any.
func ExtractVideoID(fullPath string) (string, bool) {
	p, ok := Parse(fullPath)
	if !ok {
		return "", false
	}
	return p.VideoID, true
}
