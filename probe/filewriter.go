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

package probe

import (
	"io"

	"github.com/audioxbar/xbarcore/bufiox"
	"github.com/audioxbar/xbarcore/internal/region"
)

// FileWriter is a buffered switchmatrix.ProbeWriter that serializes PCM
// frames as raw little-endian samples to an underlying io.Writer. It is the
// one concrete Writer this repo ships; a real deployment supplies its own
// WAV-writing collaborator (spec.md §1 "specified only by the interface the
// core requires from it").
type FileWriter struct {
	w        *bufiox.DefaultWriter
	channels int
}

// NewFileWriter wraps dst with a buffered writer sized like bufiox's own
// default reader/writer buffering.
func NewFileWriter(dst io.Writer, channels int) *FileWriter {
	return &FileWriter{w: bufiox.NewDefaultWriter(dst), channels: channels}
}

// WriteFrames implements switchmatrix.ProbeWriter.
func (f *FileWriter) WriteFrames(area region.Area, frames int) error {
	bytesPerSample := area.Format.BytesPerSample()
	n := frames * f.channels * bytesPerSample
	buf, err := f.w.Malloc(n)
	if err != nil {
		return err
	}
	off := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < f.channels; ch++ {
			v := region.Decode(area.Format, area.Sample(i, ch+area.FirstChannel))
			off += region.Encode(area.Format, buf[off:], v)
		}
	}
	return nil
}

// Close flushes any buffered frames.
func (f *FileWriter) Close() error {
	return f.w.Flush()
}
