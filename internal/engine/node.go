/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

// node pairs a renderer voice with the track it plays. Voices are
// single-use, so a node is consumed by its one Start and replaced by a
// fresh node afterwards.
type node struct {
	voice   Voice
	track   int
	started bool
}

// newNodeLocked wires an unstarted voice for the track, carrying the
// current loop bounds. Caller holds e.mu.
func (e *Engine) newNodeLocked(track int) *node {
	v := e.r.NewVoice(e.tracks[track])
	v.SetLoop(e.loopStart, e.loopEnd)
	return &node{voice: v, track: track}
}

// takeReadyLocked hands out the pre-wired node for the track, building one
// on the spot if the pool slot is empty. The slot is left empty; it is
// refilled when the transition that consumed it settles.
func (e *Engine) takeReadyLocked(track int) *node {
	if n := e.ready[track]; n != nil {
		e.ready[track] = nil
		return n
	}
	return e.newNodeLocked(track)
}

// refillReadyLocked rebuilds the pool slot for a track whose node was
// consumed or torn down.
func (e *Engine) refillReadyLocked(track int) {
	if track < 0 || track >= len(e.tracks) {
		return
	}
	if e.ready[track] == nil {
		e.ready[track] = e.newNodeLocked(track)
	}
}

// dropReadyLocked detaches and forgets all pooled nodes.
func (e *Engine) dropReadyLocked() {
	for i, n := range e.ready {
		if n != nil {
			n.voice.Detach()
			e.ready[i] = nil
		}
	}
}
