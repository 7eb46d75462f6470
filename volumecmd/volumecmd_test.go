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

package volumecmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func knownPins(name string) bool {
	return name == "speaker_fl" || name == "speaker_fr"
}

func TestDecodeRejectsUnknownPin(t *testing.T) {
	err := Decode(Command{Selector: SetVolume, Pin: "woofer"}, knownPins)
	assert.Error(t, err)
}

func TestDecodeRejectsRampOutOfRange(t *testing.T) {
	err := Decode(Command{Selector: SetVolume, Pin: "speaker_fl", RampMs: 20000}, knownPins)
	assert.Error(t, err)

	err = Decode(Command{Selector: SetVolume, Pin: "speaker_fl", RampMs: 0}, knownPins)
	assert.NoError(t, err, "zero ramp means immediate, not a validation failure")
}

func TestDecodeAcceptsValidSetVolume(t *testing.T) {
	err := Decode(Command{Selector: SetVolume, Pin: "speaker_fl", Value: -6, RampMs: 100}, knownPins)
	assert.NoError(t, err)
}

func TestDecodeRejectsEmptyTable(t *testing.T) {
	err := Decode(Command{Selector: SetSdvTable, Pin: "speaker_fl"}, knownPins)
	assert.Error(t, err)
}

func TestDecodeAcceptsGetSelectorsWithoutPayload(t *testing.T) {
	err := Decode(Command{Selector: GetSdvTable, Pin: "speaker_fr"}, knownPins)
	assert.NoError(t, err)
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "SetVolume", SetVolume.String())
	assert.Equal(t, "SetModuleState", SetModuleState.String())
}
