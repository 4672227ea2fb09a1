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

// Command complete-consumer runs the Complete-Multipart Consumer (§4.13):
// the object-store webhook counterpart to the coordinator's HTTP
// complete-upload use-case, safe to run concurrently with it.
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
	"github.com/fiapx/video-processor/queue"
	"github.com/fiapx/video-processor/reconcile"
	"github.com/fiapx/video-processor/repository"
	"github.com/fiapx/video-processor/workers/completeupload"
)

func main() {
	root := &cobra.Command{
		Use:   "complete-consumer",
		Short: "Reconciles videos from the object store's own completion events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	env, err := appconfig.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := env.Logger()

	repo := repository.NewMemoryRepository()
	bus := eventbus.New(env.EventBridge, env.EventBusName)
	rec := reconcile.New(repo, bus, nil)

	w := completeupload.New(repo, rec, log)
	runner := queue.NewRunner(env.SQS, queue.Config{QueueURL: env.QueueURL, ClassifyByPattern: true}, w, log)

	log.Info().Str("queue", env.QueueURL).Msg("complete-consumer started")
	err = runner.Run(ctx)
	log.Info().Msg("complete-consumer shut down")
	return err
}
