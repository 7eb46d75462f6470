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

package switchmatrix

import (
	"sync"

	"github.com/audioxbar/xbarcore/events"
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
)

// SourceState is the underrun/playing state a BufferTask tracks for its
// source (spec.md §3 BufferTask).
type SourceState int

const (
	Underrun SourceState = iota
	Playing
)

type jobAction struct {
	kind      jobActionKind
	sourceID  uint64
	sinkID    uint64
	job       *Job
}

type jobActionKind int

const (
	actionAdd jobActionKind = iota
	actionDelete
	actionDeleteAllSourceJobs
)

type probeActionEntry struct {
	sinkID uint64
	action ProbeAction
}

// Source is the narrow surface BufferTask needs from the ring buffer it
// drains (spec.md §4.4): availability, begin/end access, and period size
// for the underrun/playing transition thresholds.
type Source interface {
	UpdateAvailable(dir ringbuffer.Direction) (int, error)
	BeginAccess(dir ringbuffer.Direction, wantFrames int) (region.Area, int, error)
	EndAccess(dir ringbuffer.Direction, offsetFrames, framesDone int) error
	PeriodSize() int
}

// BufferTask groups every Job reading from one source ring buffer (spec.md
// §3/§4.4): a job set, a job-action queue applied between periods, and the
// source's underrun/playing state.
type BufferTask struct {
	sourceID uint64
	source   Source
	dispatch *events.Dispatcher

	mu   sync.Mutex
	jobs map[uint64]*Job // keyed by sink ID

	jobActions   chan jobAction
	probeActions chan probeActionEntry

	state   SourceState
	isDummy bool

	retireSignal chan struct{} // closed once the job set goes empty, for remove_connections
}

// NewBufferTask constructs a task draining source, publishing topology
// events through dispatch.
func NewBufferTask(sourceID uint64, source Source, dispatch *events.Dispatcher) *BufferTask {
	return &BufferTask{
		sourceID:     sourceID,
		source:       source,
		dispatch:     dispatch,
		jobs:         make(map[uint64]*Job),
		jobActions:   make(chan jobAction, 32),
		probeActions: make(chan probeActionEntry, 8),
		state:        Underrun,
	}
}

// QueueAddJob schedules job to start running against sinkID's sink on the
// next do_jobs call.
func (t *BufferTask) QueueAddJob(sinkID uint64, job *Job) {
	t.jobActions <- jobAction{kind: actionAdd, sinkID: sinkID, job: job}
}

// QueueDeleteJob schedules sinkID's job for removal.
func (t *BufferTask) QueueDeleteJob(sinkID uint64) {
	t.jobActions <- jobAction{kind: actionDelete, sinkID: sinkID}
}

// QueueDeleteAllSourceJobs schedules every job on this task for removal
// (spec.md §4.4: "delete_all_source_jobs").
func (t *BufferTask) QueueDeleteAllSourceJobs() {
	t.jobActions <- jobAction{kind: actionDeleteAllSourceJobs}
}

// QueueProbeAction schedules a probe start/stop for sinkID's job.
func (t *BufferTask) QueueProbeAction(sinkID uint64, a ProbeAction) {
	t.probeActions <- probeActionEntry{sinkID: sinkID, action: a}
}

func (t *BufferTask) applyJobActions() {
	for {
		select {
		case a := <-t.jobActions:
			t.mu.Lock()
			switch a.kind {
			case actionAdd:
				t.jobs[a.sinkID] = a.job
				t.dispatch.Post(events.Event{Kind: events.ConnectionEstablished, SourceID: t.sourceID, SinkID: a.sinkID})
			case actionDelete:
				if _, ok := t.jobs[a.sinkID]; ok {
					delete(t.jobs, a.sinkID)
					t.dispatch.Post(events.Event{Kind: events.ConnectionRemoved, SourceID: t.sourceID, SinkID: a.sinkID})
				}
			case actionDeleteAllSourceJobs:
				for sinkID := range t.jobs {
					delete(t.jobs, sinkID)
					t.dispatch.Post(events.Event{Kind: events.ConnectionRemoved, SourceID: t.sourceID, SinkID: sinkID})
				}
			}
			empty := len(t.jobs) == 0
			t.mu.Unlock()
			if empty && t.retireSignal != nil {
				select {
				case <-t.retireSignal:
				default:
					close(t.retireSignal)
				}
			}
		default:
			return
		}
	}
}

func (t *BufferTask) applyProbeActions() {
	for {
		select {
		case p := <-t.probeActions:
			t.mu.Lock()
			job, ok := t.jobs[p.sinkID]
			t.mu.Unlock()
			if ok {
				job.QueueProbeAction(p.action)
			}
		default:
			return
		}
	}
}

// JobCount reports how many jobs are currently live, used by SwitchMatrix
// to decide whether a task can be retired.
func (t *BufferTask) JobCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// DoJobs runs one do_jobs cycle (spec.md §4.4).
func (t *BufferTask) DoJobs() (noJobs bool, err error) {
	t.applyJobActions()
	t.applyProbeActions()

	t.mu.Lock()
	n := len(t.jobs)
	t.mu.Unlock()
	if n == 0 {
		return true, nil
	}

	for {
		avail, aerr := t.source.UpdateAvailable(ringbuffer.Read)
		if aerr != nil {
			return false, aerr
		}
		if avail == 0 {
			if t.state == Playing {
				t.state = Underrun
				t.lockAllJobs()
			}
			return false, nil
		}
		if avail >= t.source.PeriodSize() && t.state == Underrun {
			t.state = Playing
		}

		area, off, aerr := t.source.BeginAccess(ringbuffer.Read, avail)
		if aerr != nil {
			return false, aerr
		}
		if area.Frames() == 0 {
			return false, nil
		}

		minConsumed := -1
		stillToProcess := 0
		t.mu.Lock()
		for _, job := range t.jobs {
			consumed, remainder, jerr := job.Execute(area, area.Frames())
			if jerr != nil {
				continue
			}
			if minConsumed == -1 || consumed < minConsumed {
				minConsumed = consumed
			}
			if remainder > stillToProcess {
				stillToProcess = remainder
			}
		}
		t.mu.Unlock()
		if minConsumed < 0 {
			minConsumed = 0
		}

		if err := t.source.EndAccess(ringbuffer.Read, off, minConsumed); err != nil {
			return false, err
		}
		if stillToProcess == 0 {
			break
		}
	}
	return false, nil
}

func (t *BufferTask) lockAllJobs() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		j.Lock()
	}
}

// DoDummy advances the read pointer without dispatching to jobs (spec.md
// §4.4: "used for grouped sources that must not build backlog").
func (t *BufferTask) DoDummy() error {
	avail, err := t.source.UpdateAvailable(ringbuffer.Read)
	if err != nil || avail == 0 {
		return err
	}
	area, off, err := t.source.BeginAccess(ringbuffer.Read, avail)
	if err != nil {
		return err
	}
	return t.source.EndAccess(ringbuffer.Read, off, area.Frames())
}
