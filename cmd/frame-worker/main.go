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

// Command frame-worker runs the Frame Worker (§4.11): it long-polls the
// queue for "Video Status Changed: SPLITTING" events, extracts frames from
// every segment, and publishes COMPLETED or FAILED.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fiapx/video-processor/eventbus"
	"github.com/fiapx/video-processor/internal/appconfig"
	"github.com/fiapx/video-processor/internal/media"
	"github.com/fiapx/video-processor/objectstore"
	"github.com/fiapx/video-processor/queue"
	"github.com/fiapx/video-processor/repository"
	"github.com/fiapx/video-processor/workers/frame"
)

func main() {
	var ffmpegPath string

	root := &cobra.Command{
		Use:   "frame-worker",
		Short: "Extracts frames from split segments and publishes COMPLETED",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), ffmpegPath)
		},
	}
	root.Flags().StringVar(&ffmpegPath, "ffmpeg-path", "ffmpeg", "path to the media tool binary")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, ffmpegPath string) error {
	env, err := appconfig.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := env.Logger()

	repo := repository.NewMemoryRepository()
	// Segments were written by the split worker into the output bucket's
	// "parts" context; frames are written back into the same bucket's
	// "prints" context, so one Store serves both roles.
	store := objectstore.New(env.S3, env.OutputBucket, env.Endpoint, env.PublicEndpoint)
	bus := eventbus.New(env.EventBridge, env.EventBusName)

	w := frame.New(repo, store, store, media.NewCommandTool(ffmpegPath), bus, frame.Config{
		OutputBucket:      env.OutputBucket,
		SegmentDurationMs: int64(env.SegmentSeconds) * 1000,
		FrameInterval:     env.FrameInterval,
	}, log)

	runner := queue.NewRunner(env.SQS, queue.Config{QueueURL: env.QueueURL, ClassifyByPattern: true}, w, log)

	log.Info().Str("queue", env.QueueURL).Msg("frame-worker started")
	err = runner.Run(ctx)
	log.Info().Msg("frame-worker shut down")
	return err
}
