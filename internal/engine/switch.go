/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"fmt"

	"github.com/soundbench/soundbench/internal/telemetry"
)

// SwitchMode selects the track-switch strategy.
type SwitchMode int

const (
	// SwitchInstant starts the incoming voice and stops the outgoing one
	// at the identical lookahead timestamp, so the renderer applies both
	// in the same quantum.
	SwitchInstant SwitchMode = iota
	// SwitchCrossfade blends the two voices with complementary linear
	// ramps anchored at the same future timestamp.
	SwitchCrossfade
	// SwitchDucking dips the shared duck stage to silence, swaps the
	// voices at the trough and ramps back up.
	SwitchDucking
)

func (m SwitchMode) String() string {
	switch m {
	case SwitchCrossfade:
		return "crossfade"
	case SwitchDucking:
		return "ducking"
	default:
		return "instant"
	}
}

// ParseSwitchMode maps a mode name to its SwitchMode.
func ParseSwitchMode(s string) (SwitchMode, error) {
	switch s {
	case "instant":
		return SwitchInstant, nil
	case "crossfade":
		return SwitchCrossfade, nil
	case "ducking":
		return SwitchDucking, nil
	}
	return SwitchInstant, fmt.Errorf("unknown switch mode %q", s)
}

// SetSwitchMode changes the switch strategy unless a caller has locked it.
func (e *Engine) SetSwitchMode(m SwitchMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.modeLocked || m == e.mode {
		return
	}
	e.mode = m
	e.bus.Publish(EventMode, Payload{"mode": m.String(), "locked": false})
}

// ForceSwitchMode sets the switch strategy and locks it against further
// SetSwitchMode calls, for tests that mandate a particular transition.
// The lock holds until UnlockSwitchMode.
func (e *Engine) ForceSwitchMode(m SwitchMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
	e.modeLocked = true
	e.bus.Publish(EventMode, Payload{"mode": m.String(), "locked": true})
}

// UnlockSwitchMode releases a ForceSwitchMode lock. The strategy itself is
// kept; only its mutability changes.
func (e *Engine) UnlockSwitchMode() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.modeLocked {
		return
	}
	e.modeLocked = false
	e.bus.Publish(EventMode, Payload{"mode": e.mode.String(), "locked": false})
}

// Mode returns the active switch strategy.
func (e *Engine) Mode() SwitchMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SelectTrack makes track i the audible one. Selecting the current track is
// a switch no-op, but any selection starts playback when nothing is
// playing. While playing, the active strategy moves playback across without
// a pop, click or gap; a request landing inside a still-running transition
// is dropped, never stacked.
func (e *Engine) SelectTrack(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i < 0 || i >= len(e.tracks) {
		return
	}
	if i == e.selected {
		if e.state != StatePlaying {
			e.playLocked()
		}
		return
	}

	now := e.r.Now()
	if e.state == StatePlaying && e.active != nil && e.transitionInFlightLocked(now) {
		e.log.Debug().Int("track", i).Msg("switch dropped, transition in flight")
		return
	}

	e.selected = i
	e.bus.Publish(EventTrack, Payload{"track": i})

	if e.state != StatePlaying {
		e.playLocked()
		return
	}
	if e.active == nil {
		// Optimistic play is still waiting on the clock; the deferred
		// start picks up the new selection by itself.
		return
	}

	next := e.takeReadyLocked(i)
	switch e.mode {
	case SwitchCrossfade:
		e.switchCrossfadeLocked(next, now)
	case SwitchDucking:
		e.switchDuckingLocked(next, now)
	default:
		e.switchInstantLocked(next, now)
	}
	telemetry.SwitchesTotal.WithLabelValues(e.mode.String()).Inc()
	e.log.Debug().Int("track", i).Str("mode", e.mode.String()).Msg("switched track")
}

// switchInstantLocked schedules the incoming start and the outgoing stop at
// one shared future timestamp. Detachment of the outgoing voice is deferred
// to a later task so it cannot share a quantum with the start/stop pair.
func (e *Engine) switchInstantLocked(next *node, now float64) {
	at := now + e.cfg.Lookahead
	off := e.wrapLocked(e.playOffset + (at - e.anchor))

	g := next.voice.Gain()
	g.SetValueAt(1, at)
	next.voice.Start(at, off)
	next.started = true

	old := e.active
	old.voice.Stop(at)

	e.active = next
	e.playOffset = off
	e.anchor = at
	e.beginTransitionLocked(old, at, false)
}

// switchCrossfadeLocked ramps the outgoing voice 1->0 and the incoming
// voice 0->1 over the configured duration, both anchored at the same future
// timestamp. The incoming offset is the position the engine will occupy at
// that timestamp, so the new voice starts already synchronized. The old
// voice is torn down only after the full fade.
func (e *Engine) switchCrossfadeLocked(next *node, now float64) {
	at := now + e.cfg.Lookahead
	d := e.cfg.Crossfade
	off := e.wrapLocked(e.playOffset + (at - e.anchor))

	ng := next.voice.Gain()
	ng.SetValueAt(0, at)
	ng.LinearRampTo(1, at+d)
	next.voice.Start(at, off)
	next.started = true

	old := e.active
	og := old.voice.Gain()
	og.SetValueAt(1, at)
	og.LinearRampTo(0, at+d)
	old.voice.Stop(at + d)

	e.active = next
	e.playOffset = off
	e.anchor = at
	e.beginTransitionLocked(old, at+d, false)
}

// switchDuckingLocked dips the always-present duck stage to zero over the
// configured duration, performs an atomic voice swap at the trough and
// ramps back to unity, masking the switch in near-silence instead of
// blending the signals.
func (e *Engine) switchDuckingLocked(next *node, now float64) {
	at := now + e.cfg.Lookahead
	d := e.cfg.Duck
	trough := at + d
	off := e.wrapLocked(e.playOffset + (trough - e.anchor))

	duck := e.r.DuckGain()
	duck.CancelAfter(now)
	duck.SetValueAt(1, at)
	duck.LinearRampTo(0, trough)
	duck.LinearRampTo(1, trough+d)

	g := next.voice.Gain()
	g.SetValueAt(1, trough)
	next.voice.Start(trough, off)
	next.started = true

	old := e.active
	old.voice.Stop(trough)

	e.active = next
	e.playOffset = off
	e.anchor = trough
	e.beginTransitionLocked(old, trough+d, true)
}
