/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

// SetLoopRegion replaces the repeating sub-region. Malformed regions
// (start < 0, end <= start, end past the track) are rejected without
// touching any state. Loop bounds on active and pooled voices always
// follow the region; what happens to the playhead depends on transport:
// stopped and paused clamp the offset into the new bounds, while a playing
// engine whose computed position still falls inside the new region only
// re-anchors its arithmetic, leaving the voices untouched so an in-bounds
// boundary drag stays inaudible. A position stranded outside the region is
// brought to the new start with a fade swap.
func (e *Engine) SetLoopRegion(start, end float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if start < 0 || end <= start {
		return
	}
	if len(e.tracks) > 0 && end > e.tracks[0].Duration() {
		return
	}
	if start == e.loopStart && end == e.loopEnd {
		return
	}

	now := e.r.Now()
	playing := e.state == StatePlaying && !e.pendingPlay && e.active != nil

	// Position under the old bounds, before they move.
	var pos float64
	if playing {
		pos = e.wrapLocked(e.playOffset + (now - e.anchor))
	}

	e.loopStart, e.loopEnd = start, end
	if e.active != nil {
		e.active.voice.SetLoop(start, end)
	}
	for _, n := range e.ready {
		if n != nil {
			n.voice.SetLoop(start, end)
		}
	}

	switch {
	case playing:
		if pos >= start && pos < end {
			e.playOffset = pos
			e.anchor = now
		} else if !e.transitionInFlightLocked(now) {
			e.swapToLocked(start, now)
		} else {
			// A fade is still running; land on the new start without
			// stacking another one.
			e.playOffset = start
			e.anchor = now
		}
	case e.state == StatePaused || e.pendingPlay:
		if e.playOffset < start || e.playOffset >= end {
			e.playOffset = start
		}
	default:
		e.playOffset = start
	}

	e.bus.Publish(EventLoop, Payload{"start": start, "end": end})
}

// Seek moves the playhead to t, clamped into the loop region. While playing
// the move is a gapless overlapped swap: the incoming voice is already
// ramping up at the target before the outgoing one finishes its ramp down,
// so there is never a window that is both silent and stopped, nor one where
// both voices are fully audible. While paused only the offset moves; while
// stopped the engine additionally parks in paused, since seeking expresses
// intent to resume from that exact point rather than the loop start.
func (e *Engine) Seek(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tracks) == 0 || e.selected < 0 {
		return
	}
	t = clamp(t, e.loopStart, e.loopEnd)

	switch e.state {
	case StatePaused:
		e.playOffset = t
	case StateStopped:
		e.playOffset = t
		e.setStateLocked(StatePaused)
	case StatePlaying:
		if e.pendingPlay || e.active == nil {
			e.playOffset = t
			e.anchor = e.r.Now()
			return
		}
		now := e.r.Now()
		if e.transitionInFlightLocked(now) {
			e.log.Debug().Float64("t", t).Msg("seek dropped, transition in flight")
			return
		}
		e.swapToLocked(t, now)
	}
}

// swapToLocked restarts playback of the selected track at target using a
// short overlapped fade, the same atomic-future-timestamp technique as a
// crossfade switch but within one track.
func (e *Engine) swapToLocked(target, now float64) {
	at := now + e.cfg.Lookahead
	d := e.cfg.SeekFade

	next := e.takeReadyLocked(e.selected)
	ng := next.voice.Gain()
	ng.SetValueAt(0, at)
	ng.LinearRampTo(1, at+d)
	next.voice.Start(at, target)
	next.started = true

	old := e.active
	og := old.voice.Gain()
	og.SetValueAt(1, at)
	og.LinearRampTo(0, at+d)
	old.voice.Stop(at + d)

	e.active = next
	e.playOffset = target
	e.anchor = at
	e.beginTransitionLocked(old, at+d, false)
}
