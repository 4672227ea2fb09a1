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

package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiapx/video-processor/mock"
)

func TestDownloadObject(t *testing.T) {
	srv := mock.New(testBucket, "us-east-1")
	defer srv.Close()
	srv.PutObject("video/v1/file/a.mp4", []byte("source video bytes"))

	store := New(newTestClient(t, srv), testBucket, "", "")
	dest := filepath.Join(t.TempDir(), "a.mp4")
	require.NoError(t, store.DownloadObject(context.Background(), "video/v1/file/a.mp4", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "source video bytes", string(content))
}

func TestUploadDir_FiltersByPattern(t *testing.T) {
	srv := mock.New(testBucket, "us-east-1")
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_0001.mp4"), []byte("seg1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_0002.mp4"), []byte("seg2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	store := New(newTestClient(t, srv), testBucket, "", "")
	keys, err := store.UploadDir(context.Background(), dir, "segment_*.mp4", "video/v1/parts")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	assert.True(t, srv.ObjectExists("video/v1/parts/segment_0001.mp4"))
	assert.True(t, srv.ObjectExists("video/v1/parts/segment_0002.mp4"))
	assert.False(t, srv.ObjectExists("video/v1/parts/notes.txt"))
}
