/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package render

import (
	"sort"
	"sync"
)

type automationEvent struct {
	at   float64
	v    float64
	ramp bool
}

// param is a sample-accurate automation parameter. The render loop drives
// it with monotonically increasing timestamps via tick; control-side
// mutations rewind the cursor and the next tick replays the (small) event
// list from the top.
type param struct {
	mu       sync.Mutex
	initial  float64
	initialT float64
	events   []automationEvent

	idx   int
	last  float64
	lastT float64
	cur   float64
}

func newParam(initial float64) *param {
	return &param{initial: initial, last: initial, cur: initial}
}

// Value returns the most recently rendered value.
func (p *param) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

func (p *param) SetValueAt(v, at float64) {
	p.insert(automationEvent{at: at, v: v})
}

func (p *param) LinearRampTo(v, at float64) {
	p.insert(automationEvent{at: at, v: v, ramp: true})
}

func (p *param) insert(ev automationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	sort.SliceStable(p.events, func(i, j int) bool { return p.events[i].at < p.events[j].at })
	p.rewindLocked()
}

func (p *param) CancelAfter(at float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.events[:0]
	for _, ev := range p.events {
		if ev.at < at {
			kept = append(kept, ev)
		}
	}
	p.events = kept
	p.rewindLocked()
}

func (p *param) rewindLocked() {
	p.idx = 0
	p.last = p.initial
	p.lastT = p.initialT
}

// tick evaluates the parameter at render time t and advances the cursor.
func (p *param) tick(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.idx < len(p.events) && p.events[p.idx].at <= t {
		p.last = p.events[p.idx].v
		p.lastT = p.events[p.idx].at
		p.idx++
	}

	v := p.last
	if p.idx < len(p.events) {
		next := p.events[p.idx]
		if next.ramp && next.at > p.lastT && t > p.lastT {
			v += (next.v - v) * (t - p.lastT) / (next.at - p.lastT)
		}
	}

	// Consumed events never matter again; fold them into the baseline so
	// long-lived stages (duck, master) do not grow without bound.
	if p.idx > 64 {
		p.events = append([]automationEvent(nil), p.events[p.idx:]...)
		p.initial = p.last
		p.initialT = p.lastT
		p.idx = 0
	}

	p.cur = v
	return v
}
