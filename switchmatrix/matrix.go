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
	"time"

	"github.com/audioxbar/xbarcore/audioport"
	"github.com/audioxbar/xbarcore/events"
	"github.com/audioxbar/xbarcore/xbarerr"
	"github.com/audioxbar/xbarcore/xbarlog"
)

// retireTimeout is the 150ms bound spec.md §4.5 gives remove_connections
// before it gives up waiting on the real-time thread.
const retireTimeout = 150 * time.Millisecond

type matrixAction struct {
	kind     matrixActionKind
	sourceID uint64
	sinkID   uint64
	source   Source
	sink     Sink
	srcPort  *audioport.Port
	sinkPort *audioport.Port
	dummy    bool
	probe    ProbeAction
}

type matrixActionKind int

const (
	matrixActionAdd matrixActionKind = iota
	matrixActionDelete
)

// Matrix owns the buffer-task set for one clock domain (spec.md §3/§4.5).
type Matrix struct {
	dispatch *events.Dispatcher

	mu    sync.Mutex
	tasks map[uint64]*BufferTask // keyed by source ring buffer / source port ID

	// pendingJobs holds Jobs built by Connect, keyed by sink port ID, until
	// Trigger processes the matching add action and hands them to the
	// right BufferTask.
	pendingJobs map[uint64]*Job

	actions chan matrixAction
}

// NewMatrix creates an empty switch matrix posting topology events through
// dispatch.
func NewMatrix(dispatch *events.Dispatcher) *Matrix {
	return &Matrix{
		dispatch: dispatch,
		tasks:    make(map[uint64]*BufferTask),
		actions:  make(chan matrixAction, 64),
	}
}

// taskFor returns the buffer task for sourceID, creating one over source if
// it doesn't exist yet (spec.md §4.5: "creates or reuses a buffer task").
func (m *Matrix) taskFor(sourceID uint64, source Source) *BufferTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[sourceID]
	if !ok {
		t = NewBufferTask(sourceID, source, m.dispatch)
		m.tasks[sourceID] = t
	}
	return t
}

// Connect validates the two ports, computes the per-connection destination
// period size, and posts an add-job entry (spec.md §4.5). The destination
// period is basePeriodSize × sinkRate / srcRate; Connect returns
// InvalidParam when that is not a whole number of frames.
func (m *Matrix) Connect(srcPort, sinkPort *audioport.Port, source Source, sink Sink, basePeriodSize int) error {
	srcInfo, err := srcPort.GetCopyInformation()
	if err != nil {
		return err
	}
	sinkInfo, err := sinkPort.GetCopyInformation()
	if err != nil {
		return err
	}
	if srcInfo.SampleRate <= 0 || sinkInfo.SampleRate <= 0 {
		return xbarerr.New(xbarerr.InvalidParam, "switchmatrix: connect requires nonzero sample rates")
	}

	destPeriod := basePeriodSize * sinkInfo.SampleRate / srcInfo.SampleRate
	if destPeriod*srcInfo.SampleRate != basePeriodSize*sinkInfo.SampleRate {
		return xbarerr.New(xbarerr.InvalidParam, "switchmatrix: destination period size is not an integer for rates %d/%d", srcInfo.SampleRate, sinkInfo.SampleRate)
	}

	if err := srcPort.StoreConnection(m); err != nil {
		return err
	}
	if err := sinkPort.StoreConnection(m); err != nil {
		srcPort.ForgetConnection()
		return err
	}

	job := NewJob(sink, srcInfo.SampleRate, sinkInfo.SampleRate, srcInfo.Format, sinkInfo.Format)
	m.actions <- matrixAction{
		kind:     matrixActionAdd,
		sourceID: srcPort.ID(),
		sinkID:   sinkPort.ID(),
		source:   source,
		sink:     sink,
		srcPort:  srcPort,
		sinkPort: sinkPort,
	}
	// The job itself isn't carried on the action (BufferTask.QueueAddJob
	// needs a concrete task, created lazily in Trigger), so stash it where
	// Trigger can find it.
	m.mu.Lock()
	if m.pendingJobs == nil {
		m.pendingJobs = make(map[uint64]*Job)
	}
	m.pendingJobs[sinkPort.ID()] = job
	m.mu.Unlock()
	return nil
}

// Disconnect posts a delete-job entry, symmetric to Connect (spec.md §4.5).
func (m *Matrix) Disconnect(srcPort, sinkPort *audioport.Port) {
	m.actions <- matrixAction{kind: matrixActionDelete, sourceID: srcPort.ID(), sinkID: sinkPort.ID()}
	srcPort.ForgetConnection()
	sinkPort.ForgetConnection()
}

// DummyConnect creates a buffer task that only drains source without
// producing to any sink (spec.md §4.5: "a dummy connection").
func (m *Matrix) DummyConnect(sourceID uint64, source Source) {
	t := m.taskFor(sourceID, source)
	t.isDummy = true
}

// Probe schedules a probe start/stop for the job feeding sinkID from
// sourceID.
func (m *Matrix) Probe(sourceID, sinkID uint64, a ProbeAction) {
	m.mu.Lock()
	t, ok := m.tasks[sourceID]
	m.mu.Unlock()
	if ok {
		t.QueueProbeAction(sinkID, a)
	}
}

// Trigger drains the action queue and runs do_jobs/do_dummy on every live
// task (spec.md §4.5). Called once per base period from the routing-zone
// worker.
func (m *Matrix) Trigger() error {
	for {
		select {
		case a := <-m.actions:
			m.applyAction(a)
		default:
			goto run
		}
	}
run:
	m.mu.Lock()
	tasks := make([]*BufferTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		var err error
		if t.isDummy {
			err = t.DoDummy()
		} else {
			_, err = t.DoJobs()
		}
		if err != nil {
			xbarlog.Default.Errorf("switchmatrix: task for source %d failed: %v", t.sourceID, err)
		}
	}
	return nil
}

func (m *Matrix) applyAction(a matrixAction) {
	switch a.kind {
	case matrixActionAdd:
		t := m.taskFor(a.sourceID, a.source)
		m.mu.Lock()
		job := m.pendingJobs[a.sinkID]
		delete(m.pendingJobs, a.sinkID)
		m.mu.Unlock()
		if job != nil {
			t.QueueAddJob(a.sinkID, job)
		}
	case matrixActionDelete:
		m.mu.Lock()
		t, ok := m.tasks[a.sourceID]
		m.mu.Unlock()
		if ok {
			t.QueueDeleteJob(a.sinkID)
		}
	}
}

// LockAllJobs forces every live job across every task into the locked
// state, used by a routing-zone worker resynchronizing after a sink Stop
// event (spec.md §4.8 step 2).
func (m *Matrix) LockAllJobs() {
	m.mu.Lock()
	tasks := make([]*BufferTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()
	for _, t := range tasks {
		t.lockAllJobs()
	}
}

// UnlockAllJobs unlocks every live job across every task, used when a
// base-zone tick observes mDerivedZoneCallCount == 0 (spec.md §4.8:
// "Activation of pending derived zones"). It calls Unlock(true) on each
// job; the state of each job's sink routing zone is not checked.
func (m *Matrix) UnlockAllJobs() {
	m.mu.Lock()
	tasks := make([]*BufferTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()
	for _, t := range tasks {
		t.mu.Lock()
		for _, j := range t.jobs {
			j.Unlock(true)
		}
		t.mu.Unlock()
	}
}

// RemoveConnections schedules every job on sourceID's task for deletion and
// waits up to 150ms for the real-time thread to confirm retirement (spec.md
// §4.5); on timeout it logs and returns without blocking forever.
func (m *Matrix) RemoveConnections(sourceID uint64) {
	m.mu.Lock()
	t, ok := m.tasks[sourceID]
	m.mu.Unlock()
	if !ok {
		return
	}
	t.mu.Lock()
	if t.retireSignal == nil {
		t.retireSignal = make(chan struct{})
	}
	signal := t.retireSignal
	t.mu.Unlock()

	t.QueueDeleteAllSourceJobs()

	select {
	case <-signal:
	case <-time.After(retireTimeout):
		xbarlog.Default.Errorf("switchmatrix: remove_connections for source %d timed out after %s", sourceID, retireTimeout)
	}
}
