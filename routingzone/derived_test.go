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

package routingzone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedZoneRunnerTicksAtMultiple(t *testing.T) {
	sink := newFakeSink(t, 1, 16, 4, false)
	derivedZone := NewDerivedZone(2, 16, sink, nil)
	require.NoError(t, derivedZone.Prepare())
	derivedZone.Activate()

	r := NewDerivedZoneRunner(derivedZone, 2, false)

	r.tick()
	assert.Equal(t, uint64(0), derivedZone.Stats().FramesWritten, "should not fire before the multiple is reached")

	r.tick()
	assert.Equal(t, uint64(1), derivedZone.Stats().UnderrunCount+boolToUint64(derivedZone.Stats().FramesWritten > 0), "should fire once the multiple is reached")
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func TestDerivedZoneRunnerGoroutineModeWakesAndStops(t *testing.T) {
	sink := newFakeSink(t, 1, 16, 4, false)
	derivedZone := NewDerivedZone(3, 16, sink, nil)
	require.NoError(t, derivedZone.Prepare())
	derivedZone.Activate()

	r := NewDerivedZoneRunner(derivedZone, 1, true)
	defer r.Stop()

	r.tick()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if derivedZone.Stats().FramesWritten > 0 || derivedZone.Stats().UnderrunCount > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, derivedZone.Stats().FramesWritten > 0 || derivedZone.Stats().UnderrunCount > 0)
}
