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

package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostDeliversToAllSubscribers(t *testing.T) {
	d := NewDispatcher("test-dispatcher")

	var mu sync.Mutex
	var received []Event
	var wg sync.WaitGroup
	wg.Add(2)

	for i := 0; i < 2; i++ {
		d.Subscribe(func(ev Event) {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
			wg.Done()
		})
	}

	d.Post(Event{Kind: ConnectionEstablished, SourceID: 1, SinkID: 2})

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, ConnectionEstablished, received[0].Kind)
}

func TestPostWithNoSubscribersDoesNotBlock(t *testing.T) {
	d := NewDispatcher("test-dispatcher-empty")
	d.Post(Event{Kind: SourceDeleted, SourceID: 42})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "connection_established", ConnectionEstablished.String())
	assert.Equal(t, "unrecoverable_sink_device_error", UnrecoverableSinkDeviceError.String())
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for subscribers")
	}
}
