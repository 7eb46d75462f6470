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
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/audioxbar/xbarcore/xbarlog"
)

// dispatchPool is the background worker pool a Dispatcher hands deliveries
// to, so Post never blocks its caller on a slow or panicking subscriber.
// Idle workers above maxIdle exit immediately once their queue drains;
// workers at or under maxIdle stick around until workerMaxAge elapses,
// woken periodically by a noop tick so an idle pool still notices its age.
type dispatchPool struct {
	name string

	workers int32
	maxIdle int32
	maxage  int64 // milliseconds

	panicHandler func(ctx context.Context, r interface{})

	tasks     chan dispatchTask
	unixMilli int64
}

type dispatchTask struct {
	ctx context.Context
	f   func()
}

// newDispatchPool creates a pool with maxIdle idle workers kept alive for
// workerMaxAge, queuing up to taskChanBuffer pending deliveries before Go
// falls back to an unpooled goroutine.
func newDispatchPool(name string, maxIdle, taskChanBuffer int, workerMaxAge time.Duration) *dispatchPool {
	return &dispatchPool{
		name:    name,
		tasks:   make(chan dispatchTask, taskChanBuffer),
		maxage:  workerMaxAge.Milliseconds(),
		maxIdle: int32(maxIdle),
	}
}

// SetPanicHandler sets the func invoked, with the Post-time context, when a
// subscriber's Handler panics. By default the panic is logged via xbarlog.
func (p *dispatchPool) SetPanicHandler(f func(ctx context.Context, r interface{})) {
	p.panicHandler = f
}

// Go runs f on a pooled goroutine, spinning up a fresh worker if every
// existing one is busy and falling back to an unpooled goroutine if the
// task queue itself is full.
func (p *dispatchPool) Go(f func()) {
	select {
	case p.tasks <- dispatchTask{ctx: context.Background(), f: f}:
	default:
		go p.runTask(context.Background(), f)
		return
	}
	if len(p.tasks) == 0 {
		return
	}
	go p.runWorker()
}

func (p *dispatchPool) runTask(ctx context.Context, f func()) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(ctx, r)
			} else {
				xbarlog.Default.Errorf("events: panic in pool %s: %v: %s", p.name, r, debug.Stack())
			}
		}
	}()
	f()
}

func (p *dispatchPool) currentWorkers() int {
	return int(atomic.LoadInt32(&p.workers))
}

func (p *dispatchPool) runWorker() {
	id := atomic.AddInt32(&p.workers, 1)
	defer atomic.AddInt32(&p.workers, -1)

	if id > p.maxIdle {
		for {
			select {
			case t := <-p.tasks:
				p.runTask(t.ctx, t.f)
			default:
				return
			}
		}
	}

	createdAt := time.Now().UnixMilli()
	for t := range p.tasks {
		p.runTask(t.ctx, t.f)

		now := atomic.LoadInt64(&p.unixMilli)
		if now == 0 {
			now = time.Now().UnixMilli()
			if atomic.CompareAndSwapInt64(&p.unixMilli, 0, now) {
				go p.runTicker()
			}
		}
		if now-createdAt > p.maxage {
			return
		}
	}
}

// noopDispatchTask wakes an idle worker so runWorker's age check runs even
// when no real delivery is pending.
var noopDispatchTask = dispatchTask{f: func() {}}

func (p *dispatchPool) runTicker() {
	defer atomic.StoreInt64(&p.unixMilli, 0)

	d := time.Duration(p.maxage) * time.Millisecond / 100
	if d < time.Millisecond {
		d = time.Millisecond
	}

	t := time.NewTicker(d)
	defer t.Stop()

	for now := range t.C {
		if p.currentWorkers() == 0 {
			return
		}
		atomic.StoreInt64(&p.unixMilli, now.UnixMilli())
		p.tasks <- noopDispatchTask
	}
}
