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

package smartx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audioxbar/xbarcore/audioport"
	"github.com/audioxbar/xbarcore/config"
	"github.com/audioxbar/xbarcore/events"
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/routingzone"
)

func buildSnapshot(t *testing.T, name string, port *audioport.Port) *config.Snapshot {
	t.Helper()
	b := config.NewBuilder()
	_, err := b.AddPort(name, port)
	require.NoError(t, err)
	return b.Build()
}

func TestGetRingBufferResolvesAttachedBuffer(t *testing.T) {
	port := audioport.New("client_out", 1, audioport.Output, 2, 0)
	rb, err := ringbuffer.NewReal(region.FormatInt16, 2, 192, 4)
	require.NoError(t, err)
	port.SetRingBuffer(rb)

	sys := NewSystem(buildSnapshot(t, "client_out", port))
	got, err := sys.GetRingBuffer("client_out")
	require.NoError(t, err)
	assert.Same(t, rb, got)
}

func TestGetRingBufferRejectsUnknownPort(t *testing.T) {
	port := audioport.New("client_out", 1, audioport.Output, 2, 0)
	sys := NewSystem(buildSnapshot(t, "client_out", port))
	_, err := sys.GetRingBuffer("nonexistent")
	assert.Error(t, err)
}

func TestGetRingBufferRejectsUnattachedPort(t *testing.T) {
	port := audioport.New("client_out", 1, audioport.Output, 2, 0)
	sys := NewSystem(buildSnapshot(t, "client_out", port))
	_, err := sys.GetRingBuffer("client_out")
	assert.Error(t, err)
}

func TestEnableEventQueueDeliversPostedEvents(t *testing.T) {
	port := audioport.New("p", 1, audioport.Output, 2, 0)
	sys := NewSystem(buildSnapshot(t, "p", port))

	var mu sync.Mutex
	var got events.Event
	var wg sync.WaitGroup
	wg.Add(1)
	sys.EnableEventQueue(func(ev events.Event) {
		mu.Lock()
		got = ev
		mu.Unlock()
		wg.Done()
	})

	sys.PostEvent(events.Event{Kind: events.ConnectionEstablished, SourceID: 1, SinkID: 2})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events.ConnectionEstablished, got.Kind)
}

func TestClientSinkGetNextEventTypeThroughSystem(t *testing.T) {
	port := audioport.New("client_in", 1, audioport.Input, 2, 0)
	sys := NewSystem(buildSnapshot(t, "client_in", port))

	rb, err := ringbuffer.NewReal(region.FormatInt16, 2, 192, 4)
	require.NoError(t, err)
	sink := NewClientSink(rb, 768)
	require.NoError(t, sys.RegisterClientSink("client_in", sink))

	ev, err := sys.GetNextEventType("client_in")
	require.NoError(t, err)
	assert.Equal(t, routingzone.NoEvent, ev)

	sink.PushEvent(routingzone.Start)
	ev, err = sys.GetNextEventType("client_in")
	require.NoError(t, err)
	assert.Equal(t, routingzone.Start, ev)
}

func TestGetNextEventTypeRejectsUnregisteredPort(t *testing.T) {
	port := audioport.New("p", 1, audioport.Output, 2, 0)
	sys := NewSystem(buildSnapshot(t, "p", port))
	_, err := sys.GetNextEventType("p")
	assert.Error(t, err)
}

func TestNextZoneStatsCyclesRoundRobin(t *testing.T) {
	port := audioport.New("p", 1, audioport.Output, 2, 0)
	sys := NewSystem(buildSnapshot(t, "p", port))

	_, ok := sys.NextZoneStats()
	assert.False(t, ok, "no zones registered yet")

	rbA, err := ringbuffer.NewReal(region.FormatInt16, 2, 192, 4)
	require.NoError(t, err)
	rbB, err := ringbuffer.NewReal(region.FormatInt16, 2, 192, 4)
	require.NoError(t, err)
	sinkA := NewClientSink(rbA, 768)
	sinkB := NewClientSink(rbB, 768)
	zoneA := routingzone.NewBaseZone(1, 192, sinkA, nil, nil)
	zoneB := routingzone.NewBaseZone(2, 192, sinkB, nil, nil)
	sys.AddZone(zoneA)
	sys.AddZone(zoneB)

	// More calls than registered zones: must wrap around cleanly rather
	// than running out after the first pass.
	for i := 0; i < 5; i++ {
		_, ok := sys.NextZoneStats()
		require.True(t, ok)
	}
}
