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

package alsahandler

import (
	"time"

	"github.com/audioxbar/xbarcore/internal/region"
	"github.com/audioxbar/xbarcore/ringbuffer"
)

// feedLoop adapts between the device's mirror buffer and the ASRC buffer
// until Close stops it (spec.md §4.9: "a worker thread that adapts between
// the device's mirror buffer and the ASRC buffer").
func (h *Handler) feedLoop() {
	defer close(h.feederDone)
	for {
		select {
		case <-h.feederStop:
			return
		default:
		}
		var moved int
		var err error
		if h.dir == ringbuffer.Read {
			moved, err = h.feedCaptureOnce()
		} else {
			moved, err = h.feedPlaybackOnce()
		}
		if err != nil {
			h.feederErr.Store(err)
		}
		if moved == 0 {
			select {
			case <-h.feederStop:
				return
			case <-time.After(feederIdleSleep):
			}
		}
	}
}

// feedCaptureOnce moves as many frames as it can from the device mirror
// into the ASRC buffer, never consuming more from the device than the ASRC
// buffer has room for.
func (h *Handler) feedCaptureOnce() (int, error) {
	avail, err := h.mirror.UpdateAvailable(ringbuffer.Read)
	if err != nil {
		return 0, err
	}
	if avail <= 0 {
		return 0, nil
	}
	room, err := h.asrc.UpdateAvailable(ringbuffer.Write)
	if err != nil {
		return 0, err
	}
	want := avail
	if room < want {
		want = room
	}
	if want <= 0 {
		return 0, nil
	}

	srcArea, srcOff, err := h.mirror.BeginAccess(ringbuffer.Read, want)
	if err != nil {
		return 0, err
	}
	got := srcArea.Frames()
	if got == 0 {
		_ = h.mirror.EndAccess(ringbuffer.Read, srcOff, 0)
		return 0, nil
	}

	dstArea, dstOff, err := h.asrc.BeginAccess(ringbuffer.Write, got)
	if err != nil {
		_ = h.mirror.EndAccess(ringbuffer.Read, srcOff, 0)
		return 0, err
	}
	n := copyFrames(dstArea, srcArea)

	if err := h.asrc.EndAccess(ringbuffer.Write, dstOff, n); err != nil {
		return 0, err
	}
	if err := h.mirror.EndAccess(ringbuffer.Read, srcOff, n); err != nil {
		return 0, err
	}
	return n, nil
}

// feedPlaybackOnce moves as many frames as it can from the ASRC buffer into
// the device mirror, never writing more to the device than it currently
// accepts.
func (h *Handler) feedPlaybackOnce() (int, error) {
	avail, err := h.asrc.UpdateAvailable(ringbuffer.Read)
	if err != nil {
		return 0, err
	}
	if avail <= 0 {
		return 0, nil
	}
	room, err := h.mirror.UpdateAvailable(ringbuffer.Write)
	if err != nil {
		return 0, err
	}
	want := avail
	if room < want {
		want = room
	}
	if want <= 0 {
		return 0, nil
	}

	srcArea, srcOff, err := h.asrc.BeginAccess(ringbuffer.Read, want)
	if err != nil {
		return 0, err
	}
	got := srcArea.Frames()
	if got == 0 {
		_ = h.asrc.EndAccess(ringbuffer.Read, srcOff, 0)
		return 0, nil
	}

	dstArea, dstOff, err := h.mirror.BeginAccess(ringbuffer.Write, got)
	if err != nil {
		_ = h.asrc.EndAccess(ringbuffer.Read, srcOff, 0)
		return 0, err
	}
	n := copyFrames(dstArea, srcArea)

	if err := h.mirror.EndAccess(ringbuffer.Write, dstOff, n); err != nil {
		return 0, err
	}
	if err := h.asrc.EndAccess(ringbuffer.Read, srcOff, n); err != nil {
		return 0, err
	}
	return n, nil
}

// copyFrames copies the smaller of dst's and src's frame counts, byte for
// byte — both sides share format and channel count by construction, so no
// per-sample decode/encode is needed here (contrast routingzone's
// copyIntoSink, which decodes and re-encodes to cross format boundaries).
func copyFrames(dst, src region.Area) int {
	n := dst.Frames()
	if src.Frames() < n {
		n = src.Frames()
	}
	if n == 0 {
		return 0
	}
	copy(dst.Data[:n*dst.FrameStride], src.Data[:n*src.FrameStride])
	return n
}
