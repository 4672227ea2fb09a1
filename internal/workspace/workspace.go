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

// Package workspace implements the scoped-workspace guarded-acquisition
// pattern (§9 Design Notes): a per-video directory under /tmp that is
// guaranteed to be removed on every exit path from the handler that
// acquired it — success, error, or cancellation.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/fiapx/video-processor/errs"
)

// Workspace is a directory scoped to a single handler invocation.
type Workspace struct {
	Dir string
}

// Acquire creates a fresh directory under /tmp/{runtimeTag}/{videoId} and
// returns it along with a release function the caller must defer
// immediately. Calling release more than once is safe.
func Acquire(runtimeTag, videoID string) (*Workspace, func(), error) {
	dir := filepath.Join(os.TempDir(), runtimeTag, videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, func() {}, errs.Wrap(errs.Internal, err, "create workspace for video %s", videoID)
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		_ = os.RemoveAll(dir)
	}
	return &Workspace{Dir: dir}, release, nil
}

// Path joins elem onto the workspace directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Dir}, elem...)...)
}
