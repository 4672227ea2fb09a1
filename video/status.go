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

package video

// Status is the video's lifecycle state. It only ever moves forward along
// the declared edges, or into the terminal Failed state.
type Status string

const (
	Created   Status = "CREATED"
	Uploading Status = "UPLOADING"
	Uploaded  Status = "UPLOADED"
	Splitting Status = "SPLITTING"
	Printing  Status = "PRINTING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
)

// transitions is the static table of allowed (from, to) edges. It is the
// single source of truth for the state machine; no code outside this file
// inspects raw status strings to decide what's legal.
var transitions = map[Status]map[Status]bool{
	Created:   {Uploading: true},
	Uploading: {Uploaded: true},
	Uploaded:  {Splitting: true},
	Splitting: {Printing: true, Failed: true},
	Printing:  {Completed: true, Failed: true},
	Completed: {},
	Failed:    {},
}

// CanTransition reports whether (from, to) is an allowed edge.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// order ranks statuses along the forward path for "at or beyond" checks
// used by the idempotent receivers (§4.6, §4.13). Failed is not part of
// the forward path and is handled separately.
var order = map[Status]int{
	Created:   0,
	Uploading: 1,
	Uploaded:  2,
	Splitting: 3,
	Printing:  4,
	Completed: 5,
}

// AtOrBeyond reports whether s is the target status or further along the
// forward path than target. Failed is considered beyond everything since
// it is a terminal outcome that should never be revisited by reconcile
// logic.
func AtOrBeyond(s, target Status) bool {
	if s == Failed {
		return true
	}
	so, sok := order[s]
	to, tok := order[target]
	if !sok || !tok {
		return false
	}
	return so >= to
}
