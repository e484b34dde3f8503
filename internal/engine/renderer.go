/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine implements the comparison playback engine: a set of
// equal-length decoded tracks of which exactly one is audible at a time,
// with gapless switching, a repeating loop region, gapless seeking and a
// continuously advancing playhead. All real audio work is delegated to a
// Renderer, which the engine drives purely through lookahead-scheduled
// starts, stops and gain ramps.
package engine

// Buffer holds one decoded track: non-interleaved float32 samples in
// [-1, 1], one slice per channel, all channels of equal length. Buffers are
// immutable once handed to the engine.
type Buffer struct {
	Channels [][]float32
	Rate     int
}

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.Rate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Rate)
}

// Renderer is the engine's view of the real-time rendering clock and audio
// graph. Implementations own the output device; the engine never blocks on
// them. Scheduled times are in seconds on the renderer's own clock.
//
// The intended graph is voice -> voice gain -> duck -> master -> output.
type Renderer interface {
	// Now returns the current render clock time in seconds. It is
	// monotonically increasing while the renderer is running.
	Now() float64

	// Running reports whether the clock is advancing. A renderer may start
	// suspended (output device warm-up); commands issued before it runs
	// must still be accepted.
	Running() bool

	// OnReady invokes fn once the clock is running. fn is always called on
	// a separate goroutine, never synchronously from OnReady, so callers
	// may register while holding their own locks. If the clock is already
	// running fn is scheduled immediately.
	OnReady(fn func())

	// NewVoice wires a new playback unit for buf into the output path,
	// silent and unstarted. Voices are single-use: started at most once.
	NewVoice(buf *Buffer) Voice

	// DuckGain is the always-present gain stage used by the ducking switch
	// strategy. It sits between the voices and the master stage.
	DuckGain() Param

	// MasterGain is the outermost volume stage.
	MasterGain() Param
}

// Voice is a startable, stoppable playback unit. Start is issued exactly
// once per voice; a stopped voice is never restarted. Stop on a voice that
// already ended, or that never started, is a no-op (the pending start is
// cancelled). Detach removes the voice from the graph; a detached voice is
// silent regardless of its schedule.
type Voice interface {
	Start(at, offset float64)
	Stop(at float64)
	Detach()
	SetLoop(start, end float64)
	Gain() Param
}

// Param is a schedulable automation parameter (a gain stage). LinearRampTo
// ramps from the value of the previous scheduled event to the target,
// reaching it at the given time. CancelAfter drops scheduled events at or
// after the given time, freezing the parameter at its value there.
type Param interface {
	Value() float64
	SetValueAt(v, at float64)
	LinearRampTo(v, at float64)
	CancelAfter(at float64)
}
