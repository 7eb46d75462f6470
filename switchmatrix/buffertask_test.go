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
	"testing"

	"github.com/audioxbar/xbarcore/events"
	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferTaskNoJobsReturnsTrue(t *testing.T) {
	src, err := ringbuffer.NewReal(region.FormatInt16, 2, 32, 4)
	require.NoError(t, err)
	defer src.Close()

	task := NewBufferTask(1, src, events.NewDispatcher("t1"))
	noJobs, err := task.DoJobs()
	require.NoError(t, err)
	assert.True(t, noJobs)
}

func TestBufferTaskRunsJobAfterAdd(t *testing.T) {
	src, err := ringbuffer.NewReal(region.FormatInt16, 2, 32, 4)
	require.NoError(t, err)
	defer src.Close()
	sink, err := ringbuffer.NewReal(region.FormatInt16, 2, 32, 4)
	require.NoError(t, err)
	defer sink.Close()

	task := NewBufferTask(1, src, events.NewDispatcher("t2"))
	job := NewJob(sink, 48000, 48000, region.FormatInt16, region.FormatInt16)
	job.Unlock(true)
	task.QueueAddJob(2, job)

	area, off, err := src.BeginAccess(ringbuffer.Write, 32)
	require.NoError(t, err)
	require.NoError(t, src.EndAccess(ringbuffer.Write, off, area.Frames()))

	noJobs, err := task.DoJobs()
	require.NoError(t, err)
	assert.False(t, noJobs)
	assert.Equal(t, 1, task.JobCount())

	avail, _ := sink.UpdateAvailable(ringbuffer.Read)
	assert.Equal(t, 32, avail)
}

func TestBufferTaskUnderrunLocksJobs(t *testing.T) {
	src, err := ringbuffer.NewReal(region.FormatInt16, 1, 16, 4)
	require.NoError(t, err)
	defer src.Close()
	sink, err := ringbuffer.NewReal(region.FormatInt16, 1, 16, 4)
	require.NoError(t, err)
	defer sink.Close()

	task := NewBufferTask(1, src, events.NewDispatcher("t3"))
	job := NewJob(sink, 48000, 48000, region.FormatInt16, region.FormatInt16)
	job.Unlock(true)
	task.QueueAddJob(2, job)

	// First cycle with data: transitions to playing.
	area, off, err := src.BeginAccess(ringbuffer.Write, 16)
	require.NoError(t, err)
	require.NoError(t, src.EndAccess(ringbuffer.Write, off, area.Frames()))
	_, err = task.DoJobs()
	require.NoError(t, err)
	assert.Equal(t, Playing, task.state)

	// Second cycle with nothing available: underrun, job gets locked.
	_, err = task.DoJobs()
	require.NoError(t, err)
	assert.Equal(t, Underrun, task.state)
	assert.True(t, job.Locked())
}

func TestBufferTaskDeleteAllSourceJobsSignalsRetire(t *testing.T) {
	src, err := ringbuffer.NewReal(region.FormatInt16, 1, 16, 4)
	require.NoError(t, err)
	defer src.Close()
	sink, err := ringbuffer.NewReal(region.FormatInt16, 1, 16, 4)
	require.NoError(t, err)
	defer sink.Close()

	task := NewBufferTask(1, src, events.NewDispatcher("t4"))
	job := NewJob(sink, 48000, 48000, region.FormatInt16, region.FormatInt16)
	task.QueueAddJob(2, job)
	_, err = task.DoJobs()
	require.NoError(t, err)
	require.Equal(t, 1, task.JobCount())

	task.retireSignal = make(chan struct{})
	task.QueueDeleteAllSourceJobs()
	_, err = task.DoJobs()
	require.NoError(t, err)

	select {
	case <-task.retireSignal:
	default:
		t.Fatal("expected retireSignal to be closed once jobs drained to zero")
	}
	assert.Equal(t, 0, task.JobCount())
}

func TestDoDummyAdvancesWithoutJobs(t *testing.T) {
	src, err := ringbuffer.NewReal(region.FormatInt16, 1, 16, 4)
	require.NoError(t, err)
	defer src.Close()

	task := NewBufferTask(1, src, events.NewDispatcher("t5"))
	area, off, err := src.BeginAccess(ringbuffer.Write, 16)
	require.NoError(t, err)
	require.NoError(t, src.EndAccess(ringbuffer.Write, off, area.Frames()))

	require.NoError(t, task.DoDummy())
	avail, _ := src.UpdateAvailable(ringbuffer.Read)
	assert.Equal(t, 0, avail)
}
