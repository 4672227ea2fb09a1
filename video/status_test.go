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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{Created, Uploading, Uploaded, Splitting, Printing, Completed, Failed}

func TestCanTransition_OnlyDeclaredEdgesSucceed(t *testing.T) {
	allowed := map[[2]Status]bool{
		{Created, Uploading}:   true,
		{Uploading, Uploaded}:  true,
		{Uploaded, Splitting}:  true,
		{Splitting, Printing}:  true,
		{Splitting, Failed}:    true,
		{Printing, Completed}:  true,
		{Printing, Failed}:     true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]Status{from, to}]
			got := CanTransition(from, to)
			assert.Equal(t, want, got, "transition(%s,%s)", from, to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(Completed))
	assert.True(t, IsTerminal(Failed))
	assert.False(t, IsTerminal(Created))
	assert.False(t, IsTerminal(Splitting))
}

func TestAtOrBeyond(t *testing.T) {
	assert.True(t, AtOrBeyond(Uploaded, Uploaded))
	assert.True(t, AtOrBeyond(Splitting, Uploaded))
	assert.False(t, AtOrBeyond(Created, Uploaded))
	assert.True(t, AtOrBeyond(Failed, Uploaded))
}
