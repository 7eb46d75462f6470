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

// Package config models the non-real-time setup API (spec.md §6): the core
// is handed a finished object graph — sinks, sources, routing links — by a
// collaborator. Builder assembles that graph by human-readable ID; Snapshot
// is the read-only registry the real-time side looks entries up from.
package config

import (
	"hash/fnv"

	"github.com/audioxbar/xbarcore/audioport"
	"github.com/audioxbar/xbarcore/xbarerr"
)

// PortEntry is one named audio port registered at setup.
type PortEntry struct {
	ID   uint64
	Port *audioport.Port
}

// DeviceEntry is one named source/sink device registered at setup.
type DeviceEntry struct {
	ID     uint64
	Handle interface{}
}

// PipelineEntry is one named per-sink DSP pipeline registered at setup.
type PipelineEntry struct {
	ID       uint64
	Pipeline interface{}
}

// Builder accumulates named entries during setup. It is not safe for
// concurrent use; the collaborator building the topology owns it alone.
type Builder struct {
	ports     map[string]PortEntry
	devices   map[string]DeviceEntry
	pipelines map[string]PipelineEntry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		ports:     make(map[string]PortEntry),
		devices:   make(map[string]DeviceEntry),
		pipelines: make(map[string]PipelineEntry),
	}
}

// internID derives a stable ID for name by hashing it (64-bit FNV-1a).
// Collisions across distinct names are vanishingly unlikely and are not
// detected; Build would silently merge two colliding names' entries.
func internID(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// AddPort registers a port under name, returning the ID assigned to it.
func (b *Builder) AddPort(name string, port *audioport.Port) (uint64, error) {
	if name == "" || port == nil {
		return 0, xbarerr.New(xbarerr.InvalidParam, "config: empty port name or nil port")
	}
	if _, exists := b.ports[name]; exists {
		return 0, xbarerr.New(xbarerr.InvalidParam, "config: duplicate port name %q", name)
	}
	id := internID(name)
	b.ports[name] = PortEntry{ID: id, Port: port}
	return id, nil
}

// AddDevice registers a source or sink device handle under name.
func (b *Builder) AddDevice(name string, handle interface{}) (uint64, error) {
	if name == "" || handle == nil {
		return 0, xbarerr.New(xbarerr.InvalidParam, "config: empty device name or nil handle")
	}
	if _, exists := b.devices[name]; exists {
		return 0, xbarerr.New(xbarerr.InvalidParam, "config: duplicate device name %q", name)
	}
	id := internID(name)
	b.devices[name] = DeviceEntry{ID: id, Handle: handle}
	return id, nil
}

// AddPipeline registers a per-sink DSP pipeline under name.
func (b *Builder) AddPipeline(name string, pipeline interface{}) (uint64, error) {
	if name == "" || pipeline == nil {
		return 0, xbarerr.New(xbarerr.InvalidParam, "config: empty pipeline name or nil pipeline")
	}
	if _, exists := b.pipelines[name]; exists {
		return 0, xbarerr.New(xbarerr.InvalidParam, "config: duplicate pipeline name %q", name)
	}
	id := internID(name)
	b.pipelines[name] = PipelineEntry{ID: id, Pipeline: pipeline}
	return id, nil
}

// Build freezes the accumulated entries into a read-only Snapshot. The
// Builder can keep being used afterward; Build takes a fresh copy each time.
func (b *Builder) Build() *Snapshot {
	portsByID := make(map[uint64]PortEntry, len(b.ports))
	for _, e := range b.ports {
		portsByID[e.ID] = e
	}

	devicesByID := make(map[uint64]DeviceEntry, len(b.devices))
	for _, e := range b.devices {
		devicesByID[e.ID] = e
	}

	pipelinesByID := make(map[uint64]PipelineEntry, len(b.pipelines))
	for _, e := range b.pipelines {
		pipelinesByID[e.ID] = e
	}

	return &Snapshot{
		portsByID:     portsByID,
		devicesByID:   devicesByID,
		pipelinesByID: pipelinesByID,
	}
}

// Snapshot is the read-only registry produced by Builder.Build. A name's ID
// is internID(name), a pure function of the name alone (see AddPort et al.),
// so a lookup by name needs no separate name->ID index: it recomputes the ID
// and looks that up directly in the by-ID map built once at Build.
type Snapshot struct {
	portsByID     map[uint64]PortEntry
	devicesByID   map[uint64]DeviceEntry
	pipelinesByID map[uint64]PipelineEntry
}

// PortByName resolves a port's human ID and handle, if registered.
func (s *Snapshot) PortByName(name string) (PortEntry, bool) {
	return s.PortByID(internID(name))
}

// PortByID resolves a port by its interned ID.
func (s *Snapshot) PortByID(id uint64) (PortEntry, bool) {
	e, ok := s.portsByID[id]
	return e, ok
}

// DeviceByName resolves a device handle by name.
func (s *Snapshot) DeviceByName(name string) (DeviceEntry, bool) {
	e, ok := s.devicesByID[internID(name)]
	return e, ok
}

// PipelineByName resolves a pipeline handle by name.
func (s *Snapshot) PipelineByName(name string) (PipelineEntry, bool) {
	e, ok := s.pipelinesByID[internID(name)]
	return e, ok
}

// PortCount, DeviceCount, PipelineCount report the registry's size; useful
// for setup-time sanity checks and diagnostics dumps.
func (s *Snapshot) PortCount() int     { return len(s.portsByID) }
func (s *Snapshot) DeviceCount() int   { return len(s.devicesByID) }
func (s *Snapshot) PipelineCount() int { return len(s.pipelinesByID) }
