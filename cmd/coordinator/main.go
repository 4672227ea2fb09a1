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

// Command coordinator runs the Upload Coordinator's background
// responsibility: the periodic stuck-upload janitor sweep. It runs no
// health check of its own. The HTTP surface that fronts create-video/generate-batch-of-
// urls/report-part-uploaded/complete-upload is described in spec §6 for
// context only and is not built here; those use-cases live in the
// coordinator package ready for a handler layer to call.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fiapx/video-processor/coordinator"
	"github.com/fiapx/video-processor/eventbus"
	"github.com/fiapx/video-processor/internal/appconfig"
	"github.com/fiapx/video-processor/objectstore"
	"github.com/fiapx/video-processor/reconcile"
	"github.com/fiapx/video-processor/repository"
)

func main() {
	var janitorInterval time.Duration
	var janitorMaxAge time.Duration

	root := &cobra.Command{
		Use:   "coordinator",
		Short: "Runs the upload coordinator's background sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), janitorInterval, janitorMaxAge)
		},
	}
	root.Flags().DurationVar(&janitorInterval, "janitor-interval", 10*time.Minute, "how often to sweep for stuck uploads")
	root.Flags().DurationVar(&janitorMaxAge, "janitor-max-age", 24*time.Hour, "how long an upload may sit unfinished before the janitor aborts it")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, janitorInterval, janitorMaxAge time.Duration) error {
	env, err := appconfig.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := env.Logger()

	// The datastore driver behind repository.Repository is out of scope;
	// the in-memory implementation keeps this binary runnable standalone.
	repo := repository.NewMemoryRepository()
	store := objectstore.New(env.S3, env.VideoBucket, env.Endpoint, env.PublicEndpoint)
	bus := eventbus.New(env.EventBridge, env.EventBusName)
	rec := reconcile.New(repo, bus, nil)

	c := coordinator.New(repo, store, rec, coordinator.Config{Bucket: env.VideoBucket}, nil, nil)
	j := coordinator.NewJanitor(c, coordinator.JanitorConfig{MaxAge: janitorMaxAge}, log)

	log.Info().Dur("interval", janitorInterval).Msg("coordinator started")
	j.Run(ctx, janitorInterval)
	log.Info().Msg("coordinator shut down")
	return nil
}
