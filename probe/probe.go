// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package probe implements the two data-probe queue actions (spec.md §6)
// and a buffered default Writer used where the real WAV-writing
// collaborator is out of scope.
package probe

import (
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/switchmatrix"
)

// StartRequest describes a ProbingStart action (spec.md §6).
type StartRequest struct {
	Name            string
	DurationSeconds float64
	IsInject        bool
	NumChannels     int
	StartIndex      int
	SampleRate      int
	DataFormat      region.Format
}

// NewStartAction builds the switchmatrix.ProbeAction a caller enqueues on a
// Job to begin tapping it, bound to writer.
func NewStartAction(writer switchmatrix.ProbeWriter) switchmatrix.ProbeAction {
	return switchmatrix.ProbeAction{Start: true, Writer: writer}
}

// NewStopAction builds the switchmatrix.ProbeAction that ends a running tap.
func NewStopAction() switchmatrix.ProbeAction {
	return switchmatrix.ProbeAction{Start: false}
}
