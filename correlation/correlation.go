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

// Package correlation carries ambient correlation/trace identifiers across
// async boundaries. It is deliberately built on context.Context rather than
// any global or goroutine-local store: Go's context already survives
// arbitrary suspension points (network I/O, subprocess waits) and gives
// each logical task — each request, each queue message handler — its own
// isolated value chain for free. There is no package-level mutable state.
package correlation

import "context"

// Values are the ambient identifiers threaded through a logical task.
type Values struct {
	CorrelationID string
	TraceID       string
	SpanID        string
}

type ctxKey struct{}

// Run executes fn with v installed in ctx, returning whatever fn returns.
// Concurrent calls to Run, even with goroutines spawned from within fn,
// each observe only the Values they were started with: context.Context
// values are immutable and copied by reference into each derived context,
// never shared mutable state.
func Run[T any](ctx context.Context, v Values, fn func(ctx context.Context) (T, error)) (T, error) {
	return fn(context.WithValue(ctx, ctxKey{}, v))
}

// From reads the ambient Values out of ctx. The second return is false if
// ctx was never wrapped by Run.
func From(ctx context.Context) (Values, bool) {
	v, ok := ctx.Value(ctxKey{}).(Values)
	return v, ok
}

// WithValues installs v into ctx directly, for callers (e.g. HTTP
// middleware reading x-correlation-id/traceparent on ingress) that don't
// fit the fn-scoped Run shape.
func WithValues(ctx context.Context, v Values) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}
