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

	"github.com/audioxbar/xbarcore/config"
	"github.com/audioxbar/xbarcore/events"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/audioxbar/xbarcore/routingzone"
	"github.com/audioxbar/xbarcore/xbarerr"
)

// System is the assembled engine a deployment builds once per config
// snapshot: the routing zones it runs, the in-process clients attached to
// its ports, and the event dispatcher backing enable_event_queue. It is the
// one place spec.md §2's four collaborating subsystems (config,
// switch matrix, routing zone, events) meet behind a single client-facing
// surface (spec.md §6).
type System struct {
	mu sync.RWMutex

	snapshot    *config.Snapshot
	zones       map[uint64]*routingzone.Zone
	clientSinks map[string]*ClientSink

	dispatcher *events.Dispatcher

	// pollOrder cycles every registered zone ID in a fixed round, so a
	// supervisor goroutine sampling Stats() off the real-time path never
	// biases toward whichever zone happens to sort first in a map
	// iteration. Rebuilt on every AddZone.
	pollOrder *zonePoll
}

// zonePoll is a fixed round of zone IDs, walked one step per NextZoneStats
// call and wrapping back to the first entry after the last.
type zonePoll struct {
	ids    []uint64
	cursor int
}

func newZonePoll(ids []uint64) *zonePoll {
	if len(ids) == 0 {
		return nil
	}
	return &zonePoll{ids: ids}
}

// next returns the zone ID at the current position and advances the cursor.
func (p *zonePoll) next() uint64 {
	id := p.ids[p.cursor]
	p.cursor++
	if p.cursor >= len(p.ids) {
		p.cursor = 0
	}
	return id
}

// NewSystem assembles a System around a built config snapshot. snapshot is
// immutable once built (spec.md §6), so System only ever reads from it.
func NewSystem(snapshot *config.Snapshot) *System {
	return &System{
		snapshot:    snapshot,
		zones:       make(map[uint64]*routingzone.Zone),
		clientSinks: make(map[string]*ClientSink),
		dispatcher:  events.NewDispatcher("smartx"),
	}
}

// AddZone registers a routing zone the System manages.
func (s *System) AddZone(zone *routingzone.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone.ID()] = zone
	s.rebuildPollOrderLocked()
}

func (s *System) rebuildPollOrderLocked() {
	ids := make([]uint64, 0, len(s.zones))
	for id := range s.zones {
		ids = append(ids, id)
	}
	s.pollOrder = newZonePoll(ids)
}

// NextZoneStats returns the next zone's Stats snapshot in round-robin
// order, cycling back to the first zone after the last. Returns false if no
// zone is registered.
func (s *System) NextZoneStats() (routingzone.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollOrder == nil {
		return routingzone.Stats{}, false
	}
	zone, ok := s.zones[s.pollOrder.next()]
	if !ok {
		return routingzone.Stats{}, false
	}
	return zone.Stats(), true
}

// Zone looks up a previously registered routing zone by ID.
func (s *System) Zone(id uint64) (*routingzone.Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[id]
	return z, ok
}

// RegisterClientSink associates an in-process client's ClientSink with a
// config-known port name, so later GetNextEventType(portName) calls can
// find it.
func (s *System) RegisterClientSink(portName string, sink *ClientSink) error {
	if _, ok := s.snapshot.PortByName(portName); !ok {
		return xbarerr.New(xbarerr.InvalidParam, "smartx: unknown port %q", portName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientSinks[portName] = sink
	return nil
}

// GetRingBuffer implements spec.md §6's get_ring_buffer: resolves portName
// through the config snapshot and returns the ring buffer currently
// attached to it.
func (s *System) GetRingBuffer(portName string) (ringbuffer.RingBuffer, error) {
	entry, ok := s.snapshot.PortByName(portName)
	if !ok {
		return nil, xbarerr.New(xbarerr.InvalidParam, "smartx: unknown port %q", portName)
	}
	rb := entry.Port.RingBuffer()
	if rb == nil {
		return nil, errNoRingBuffer
	}
	return rb, nil
}

// EnableEventQueue implements spec.md §6's enable_event_queue: subscribes h
// to every future topology event (ConnectionEstablished, ConnectionRemoved,
// SourceDeleted, UnrecoverableSinkDeviceError).
func (s *System) EnableEventQueue(h events.Handler) {
	s.dispatcher.Subscribe(h)
}

// PostEvent publishes a topology event to every subscriber registered via
// EnableEventQueue. Collaborators that detect a topology change and have no
// Dispatcher of their own call this. switchmatrix.Matrix and its
// BufferTasks are not among them: they post to the Dispatcher passed to
// NewMatrix, which is separate from System's.
func (s *System) PostEvent(ev events.Event) {
	s.dispatcher.Post(ev)
}

// GetNextEventType implements spec.md §6's get_next_event_type for an
// in-process client registered via RegisterClientSink.
func (s *System) GetNextEventType(portName string) (routingzone.SinkEvent, error) {
	s.mu.RLock()
	sink, ok := s.clientSinks[portName]
	s.mu.RUnlock()
	if !ok {
		return routingzone.NoEvent, xbarerr.New(xbarerr.InvalidParam, "smartx: %q has no registered client sink", portName)
	}
	return sink.GetNextEventType(), nil
}
