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
)

// HealthStatus is the result of a HealthCheck call, shaped to back the
// GET /health contract of §6 (the HTTP handler itself remains out of scope).
type HealthStatus struct {
	Healthy   bool
	Timestamp time.Time
	Database  string // "ok" or the error message
}

// HealthCheck pings the repository and reports the result. It never
// returns an error itself — an unreachable datastore is reported in the
// result, not propagated, since callers need the full status payload
// regardless of outcome.
func (c *Coordinator) HealthCheck(ctx context.Context) HealthStatus {
	now := c.now()
	if err := c.repo.Ping(ctx); err != nil {
		return HealthStatus{Healthy: false, Timestamp: now, Database: err.Error()}
	}
	return HealthStatus{Healthy: true, Timestamp: now, Database: "ok"}
}
