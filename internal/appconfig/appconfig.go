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

// Package appconfig reads the environment (§6) once at process start and
// builds the AWS clients every cmd/ binary shares. Credential resolution is
// left entirely to the SDK's default chain (AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY are read by aws-sdk-go-v2/config, never by this
// package directly). AWS_REGION is read here and handed to the SDK as its
// region; AWS_ENDPOINT/AWS_PUBLIC_ENDPOINT are also owned by this package,
// since pointing the SDK at a non-AWS
// endpoint (a local object-store simulator) is a deployment concern, not a
// credential one.
package appconfig

import (
	"context"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
)

// Env holds the raw environment values named in spec §6, plus the AWS
// clients built from them.
type Env struct {
	Region         string
	Endpoint       string
	PublicEndpoint string
	InputBucket    string
	OutputBucket   string
	VideoBucket    string
	QueueURL       string
	EventBusName   string
	SegmentSeconds int
	FrameInterval  float64
	LogLevel       string
	NodeEnv        string

	S3          *s3.Client
	SQS         *sqs.Client
	EventBridge *eventbridge.Client
}

// Load reads the process environment and constructs AWS clients.
func Load(ctx context.Context) (*Env, error) {
	e := &Env{
		Region:         os.Getenv("AWS_REGION"),
		Endpoint:       os.Getenv("AWS_ENDPOINT"),
		PublicEndpoint: os.Getenv("AWS_PUBLIC_ENDPOINT"),
		InputBucket:    os.Getenv("S3_INPUT_BUCKET"),
		OutputBucket:   os.Getenv("S3_OUTPUT_BUCKET"),
		VideoBucket:    os.Getenv("VIDEO_BUCKET"),
		QueueURL:       os.Getenv("SQS_QUEUE_URL"),
		EventBusName:   os.Getenv("EVENT_BUS_NAME"),
		SegmentSeconds: envInt("SEGMENT_DURATION", 10),
		FrameInterval:  envFloat("FRAME_INTERVAL", 1.0),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		NodeEnv:        envOr("NODE_ENV", "production"),
	}

	var opts []func(*awsconfig.LoadOptions) error
	if e.Region != "" {
		opts = append(opts, awsconfig.WithRegion(e.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	e.S3 = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if e.Endpoint != "" {
			o.BaseEndpoint = aws.String(e.Endpoint)
			o.UsePathStyle = true
		}
	})
	e.SQS = sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if e.Endpoint != "" {
			o.BaseEndpoint = aws.String(e.Endpoint)
		}
	})
	e.EventBridge = eventbridge.NewFromConfig(cfg, func(o *eventbridge.Options) {
		if e.Endpoint != "" {
			o.BaseEndpoint = aws.String(e.Endpoint)
		}
	})
	return e, nil
}

// Logger builds the single process-wide zerolog.Logger, level-gated by
// LogLevel, threaded explicitly into every constructor from main() — never
// read back out of a global.
func (e *Env) Logger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(e.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("env", e.NodeEnv).Logger()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
