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

// Package volumecmd decodes the volume/loudness module command property bag
// (spec.md §6): an integer selector plus named typed entries, validated the
// way the filter engine validates set_channel_filter.
package volumecmd

import "github.com/audioxbar/xbarcore/xbarerr"

// Selector is the recognized volume/loudness command kind (spec.md §6).
type Selector int

const (
	SetVolume Selector = iota
	SetMuteState
	SetLoudness
	SetSdvTable
	GetSdvTable
	SetSpeed
	SetSpeedControlledVolume
	SetLoudnessTable
	GetLoudnessTable
	SetLoudnessFilter
	GetLoudnessFilter
	SetModuleState
)

func (s Selector) String() string {
	switch s {
	case SetVolume:
		return "SetVolume"
	case SetMuteState:
		return "SetMuteState"
	case SetLoudness:
		return "SetLoudness"
	case SetSdvTable:
		return "SetSdvTable"
	case GetSdvTable:
		return "GetSdvTable"
	case SetSpeed:
		return "SetSpeed"
	case SetSpeedControlledVolume:
		return "SetSpeedControlledVolume"
	case SetLoudnessTable:
		return "SetLoudnessTable"
	case GetLoudnessTable:
		return "GetLoudnessTable"
	case SetLoudnessFilter:
		return "SetLoudnessFilter"
	case GetLoudnessFilter:
		return "GetLoudnessFilter"
	case SetModuleState:
		return "SetModuleState"
	default:
		return "Unknown"
	}
}

const (
	minRampMillis = 1
	maxRampMillis = 10000
)

// Command is the property bag a collaborator hands the volume/loudness
// module: an integer selector plus named typed entries (spec.md §6).
type Command struct {
	Selector  Selector
	Pin       string
	Value     float64
	Values    []float64
	RampMs    int
	ModuleOn  bool
	FilterIdx int
}

// pinValidator reports whether name is a known pin on this module instance.
// Decode takes it as a parameter rather than a package-level registry so
// tests (and real deployments with different pin sets) can supply their own.
type pinValidator func(name string) bool

// Decode validates cmd against spec.md §6's rules — known pin name, ramp
// time in [1ms, 10000ms] where a ramp applies — and returns InvalidParam
// (folded into a Failed result, matching spec.md §7) if either check fails.
func Decode(cmd Command, validPin pinValidator) error {
	if cmd.Pin == "" || (validPin != nil && !validPin(cmd.Pin)) {
		return xbarerr.New(xbarerr.Failed, "volumecmd: unknown pin %q", cmd.Pin)
	}
	switch cmd.Selector {
	case SetVolume, SetLoudness, SetSpeedControlledVolume:
		if cmd.RampMs != 0 && (cmd.RampMs < minRampMillis || cmd.RampMs > maxRampMillis) {
			return xbarerr.New(xbarerr.Failed, "volumecmd: ramp time %dms out of range", cmd.RampMs)
		}
	case SetSdvTable, SetLoudnessTable:
		if len(cmd.Values) == 0 {
			return xbarerr.New(xbarerr.Failed, "volumecmd: empty table for %v", cmd.Selector)
		}
	case SetLoudnessFilter:
		if cmd.FilterIdx < 0 {
			return xbarerr.New(xbarerr.Failed, "volumecmd: negative filter index")
		}
	case GetSdvTable, GetLoudnessTable, GetLoudnessFilter, SetMuteState, SetSpeed, SetModuleState:
		// no additional payload constraints beyond the pin check above.
	default:
		return xbarerr.New(xbarerr.Failed, "volumecmd: unrecognized selector %v", cmd.Selector)
	}
	return nil
}
