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

// Command split-worker runs the Split Worker (§4.10): it long-polls the
// queue for "Video Status Changed: UPLOADED" events, segments the source
// video, and publishes SPLITTING.
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
	"github.com/fiapx/video-processor/workers/split"
)

func main() {
	var ffmpegPath string
	var emitFailed bool

	root := &cobra.Command{
		Use:   "split-worker",
		Short: "Segments uploaded videos and publishes SPLITTING",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), ffmpegPath, emitFailed)
		},
	}
	root.Flags().StringVar(&ffmpegPath, "ffmpeg-path", "ffmpeg", "path to the media tool binary")
	root.Flags().BoolVar(&emitFailed, "emit-failed-on-nonretryable", true, "publish FAILED when a handler error is classified non-retryable")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, ffmpegPath string, emitFailed bool) error {
	env, err := appconfig.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := env.Logger()

	repo := repository.NewMemoryRepository()
	input := objectstore.New(env.S3, env.InputBucket, env.Endpoint, env.PublicEndpoint)
	output := objectstore.New(env.S3, env.OutputBucket, env.Endpoint, env.PublicEndpoint)
	bus := eventbus.New(env.EventBridge, env.EventBusName)

	w := split.New(repo, input, output, media.NewCommandTool(ffmpegPath), bus, split.Config{
		OutputBucket:             env.OutputBucket,
		SegmentDurationSeconds:   env.SegmentSeconds,
		EmitFailedOnNonRetryable: emitFailed,
	}, log)

	runner := queue.NewRunner(env.SQS, queue.Config{QueueURL: env.QueueURL, ClassifyByPattern: true}, w, log)

	log.Info().Str("queue", env.QueueURL).Msg("split-worker started")
	err = runner.Run(ctx)
	log.Info().Msg("split-worker shut down")
	return err
}
