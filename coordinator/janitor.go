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

package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// JanitorConfig tunes the stuck-upload sweep.
type JanitorConfig struct {
	// MaxAge is how long a video may sit in CREATED/UPLOADING before the
	// janitor aborts its multipart upload. Default 24h.
	MaxAge time.Duration
}

func (c JanitorConfig) withDefaults() JanitorConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	return c
}

// Janitor aborts multipart uploads for videos that never completed (§5:
// "multipart uploads for never-completed videos MAY be aborted by a
// janitor (optional)"). It does not transition video status — an aborted
// upload simply never progresses past CREATED/UPLOADING, which is already a
// terminal-in-practice state for reporting purposes.
type Janitor struct {
	c   *Coordinator
	cfg JanitorConfig
	log zerolog.Logger
}

// NewJanitor constructs a Janitor bound to an existing Coordinator, reusing
// its repository, object store, and clock.
func NewJanitor(c *Coordinator, cfg JanitorConfig, log zerolog.Logger) *Janitor {
	return &Janitor{c: c, cfg: cfg.withDefaults(), log: log.With().Str("component", "coordinator.Janitor").Logger()}
}

// Sweep aborts every stuck upload older than cfg.MaxAge and returns how many
// it processed. A failure to abort one upload is logged and does not stop
// the sweep of the rest.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.c.now().Add(-j.cfg.MaxAge)
	stale, err := j.c.repo.StaleVideos(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, v := range stale {
		if err := j.c.store.AbortMultipart(ctx, v.Storage.ObjectKey, v.Storage.UploadID); err != nil {
			j.log.Error().Err(err).Str("videoId", v.ID).Msg("abort multipart upload failed")
			continue
		}
		j.log.Info().Str("videoId", v.ID).Str("status", string(v.Status)).Msg("aborted stuck multipart upload")
		swept++
	}
	return swept, nil
}

// Run calls Sweep every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.log.Error().Err(err).Msg("janitor sweep failed")
			}
		}
	}
}
