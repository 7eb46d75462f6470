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

// Package events implements the event provider spec.md §6 requires: async
// delivery of topology-change notifications off the real-time thread, on a
// small pooled-goroutine dispatcher so a slow or blocked subscriber never
// stalls a buffer task's do_jobs call.
package events

import (
	"context"

	"github.com/audioxbar/xbarcore/xbarlog"
)

// Kind enumerates the four event types spec.md §6 names.
type Kind int

const (
	ConnectionEstablished Kind = iota
	ConnectionRemoved
	SourceDeleted
	UnrecoverableSinkDeviceError
)

func (k Kind) String() string {
	switch k {
	case ConnectionEstablished:
		return "connection_established"
	case ConnectionRemoved:
		return "connection_removed"
	case SourceDeleted:
		return "source_deleted"
	case UnrecoverableSinkDeviceError:
		return "unrecoverable_sink_device_error"
	default:
		return "unknown"
	}
}

// Event is one notification handed to subscribers. SourceID/SinkID are the
// config-level IDs of the ports or devices involved; SinkID is zero for
// SourceDeleted.
type Event struct {
	Kind    Kind
	SourceID uint64
	SinkID   uint64
	Detail   string
}

// Handler receives delivered events. It must not block for long: it runs on
// a pooled goroutine shared with other subscribers' deliveries.
type Handler func(Event)

// Dispatcher fans out Events to its subscribers on background goroutines,
// so the caller posting an event (a buffer task's do_jobs, or the ALSA
// handler's xrun path) never waits on a subscriber.
type Dispatcher struct {
	pool *dispatchPool

	mu   chanMutex
	subs []Handler
}

// chanMutex is a trivial spinlock-free mutex built on a buffered channel,
// matching the lock-free-queue idiom this codebase favors for anything a
// real-time caller might touch; Post below never blocks on it for longer
// than it takes to append a slice entry.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	c := make(chanMutex, 1)
	c <- struct{}{}
	return c
}

func (m chanMutex) lock()   { <-m }
func (m chanMutex) unlock() { m <- struct{}{} }

// NewDispatcher creates a Dispatcher with its own worker pool, named for
// diagnostics.
func NewDispatcher(name string) *Dispatcher {
	d := &Dispatcher{
		pool: newDispatchPool(name, 8, 256, 0),
		mu:   newChanMutex(),
	}
	d.pool.SetPanicHandler(func(_ context.Context, r interface{}) {
		xbarlog.Default.Errorf("events: subscriber panicked: %v", r)
	})
	return d
}

// Subscribe registers h to receive all future events. Not safe to call
// concurrently with Post from the same goroutine that also removes the
// subscriber; this codebase has no Unsubscribe because topology teardown
// replaces the whole Dispatcher.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.lock()
	d.subs = append(d.subs, h)
	d.mu.unlock()
}

// Post delivers ev to every subscriber asynchronously. Safe to call from the
// real-time thread: it only enqueues work on the pool, never runs a handler
// inline.
func (d *Dispatcher) Post(ev Event) {
	d.mu.lock()
	subs := make([]Handler, len(d.subs))
	copy(subs, d.subs)
	d.mu.unlock()

	for _, h := range subs {
		h := h
		d.pool.Go(func() { h(ev) })
	}
}
