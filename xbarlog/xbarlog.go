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

// Package xbarlog is the injectable logger used across the core, in the
// same minimal spirit as events' dispatchPool's default log.Printf-based
// panic handler: a small interface, a stdlib-backed default, and nothing
// more elaborate unless a caller overrides it.
package xbarlog

import (
	"log"
	"sync"
	"time"
)

// Logger is the interface every component in this repo logs through.
type Logger interface {
	Printf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type stdLogger struct{}

func (stdLogger) Printf(format string, args ...interface{}) { log.Printf(format, args...) }
func (stdLogger) Errorf(format string, args ...interface{}) { log.Printf("ERROR: "+format, args...) }

// Default is the package-wide logger, overridable the way
// dispatchPool.SetPanicHandler overrides the default panic handler.
var Default Logger = stdLogger{}

// SetDefault overrides the package-wide logger.
func SetDefault(l Logger) {
	if l == nil {
		l = stdLogger{}
	}
	Default = l
}

// Throttle rate-limits a log call to at most once per interval, the way
// spec.md §4.3/§4.5/§4.8 require "throttled log once per second" for
// locked-job, remove_connections-timeout, and sink-timeout conditions.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottle returns a Throttle allowing one fire per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether enough time has passed since the last Allow==true
// call to log again.
func (t *Throttle) Allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
