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

package queue

import "strings"

// nonRetryablePatterns are matched case-insensitively against a handler
// error's message when a worker opts into pattern-based classification
// (§4.7) instead of (or in addition to) the explicit errs.NonRetryable tag.
var nonRetryablePatterns = []string{
	"404",
	"does not exist",
	"nosuchkey",
	"invalid",
	"not found",
}

func matchesNonRetryablePattern(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range nonRetryablePatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
