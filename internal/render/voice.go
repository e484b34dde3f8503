/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package render

import (
	"math"
	"sync"

	"github.com/soundbench/soundbench/internal/engine"
)

// voice renders one buffer through its own gain stage. It follows the
// engine's single-use contract: one Start, at most one effective Stop, and
// a stop scheduled before the start cancels the start outright.
type voice struct {
	buf  *engine.Buffer
	gain *param
	rate int

	mu       sync.Mutex
	startAt  float64
	stopAt   float64
	offset   float64
	pos      int // frame cursor within the buffer
	running  bool
	finished bool
	detached bool
	loopS    int
	loopE    int
}

func newVoice(buf *engine.Buffer, rate int) *voice {
	return &voice{
		buf:     buf,
		gain:    newParam(1),
		rate:    rate,
		startAt: -1,
		stopAt:  -1,
		loopE:   buf.Frames(),
	}
}

func (v *voice) Start(at, offset float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.startAt >= 0 {
		return // single use
	}
	v.startAt = at
	v.offset = offset
}

func (v *voice) Stop(at float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.finished {
		return // already torn down by an earlier fade; swallowed
	}
	if v.stopAt < 0 || at < v.stopAt {
		v.stopAt = at
	}
}

func (v *voice) Detach() {
	v.mu.Lock()
	v.detached = true
	v.mu.Unlock()
}

func (v *voice) SetLoop(start, end float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := int(math.Round(start * float64(v.rate)))
	e := int(math.Round(end * float64(v.rate)))
	if s < 0 {
		s = 0
	}
	if e > v.buf.Frames() {
		e = v.buf.Frames()
	}
	if e <= s {
		return
	}
	v.loopS, v.loopE = s, e
}

func (v *voice) Gain() engine.Param { return v.gain }

// done reports whether the voice can be pruned from the graph.
func (v *voice) done() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.detached || v.finished
}

// render mixes the voice's contribution for nf frames starting at absolute
// frame base into dst (interleaved, channels wide).
func (v *voice) render(dst []float32, base int64, nf, channels int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.detached || v.finished || v.startAt < 0 {
		return
	}

	frames := v.buf.Frames()
	if frames == 0 {
		return
	}

	for f := 0; f < nf; f++ {
		t := float64(base+int64(f)) / float64(v.rate)

		if v.stopAt >= 0 && t >= v.stopAt {
			v.finished = true
			return
		}
		if t < v.startAt {
			continue
		}
		if !v.running {
			v.running = true
			// Account for any lag between the scheduled start and the
			// first rendered frame.
			v.pos = int(math.Round((v.offset + (t - v.startAt)) * float64(v.rate)))
		}
		if v.pos >= v.loopE && v.loopE > v.loopS {
			v.pos = v.loopS + (v.pos-v.loopS)%(v.loopE-v.loopS)
		}
		if v.pos >= frames {
			v.finished = true
			return
		}

		g := float32(v.gain.tick(t))
		for c := 0; c < channels; c++ {
			src := c
			if src >= len(v.buf.Channels) {
				src = len(v.buf.Channels) - 1
			}
			dst[f*channels+c] += v.buf.Channels[src][v.pos] * g
		}
		v.pos++
	}
}
