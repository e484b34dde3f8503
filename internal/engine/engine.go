/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soundbench/soundbench/internal/telemetry"
)

// TransportState is the playback lifecycle phase.
type TransportState int

const (
	StateStopped TransportState = iota
	StatePlaying
	StatePaused
)

func (s TransportState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// detachDelay separates graph detachment of a spent voice from the render
// quantum that executed its stop, so the two can never be reordered within
// one processing block.
const detachDelay = 0.05

// Config holds the engine's transition timings, in seconds of render clock
// time.
type Config struct {
	// Lookahead is how far ahead of the clock paired events are scheduled
	// so they land in the same render quantum.
	Lookahead float64
	// Crossfade is the linear blend duration for crossfade switches.
	Crossfade float64
	// Duck is the half duration of a ducking switch: ramp down over Duck,
	// swap at the trough, ramp back up over Duck.
	Duck float64
	// SeekFade is the overlap window used by in-play seeks and by loop
	// moves that strand the playhead outside the new region.
	SeekFade float64
	// StopFade is the click-suppression ramp applied before any voice is
	// silenced by pause or stop.
	StopFade float64
}

// DefaultConfig returns the stock transition timings.
func DefaultConfig() Config {
	return Config{
		Lookahead: 0.005,
		Crossfade: 0.035,
		Duck:      0.040,
		SeekFade:  0.025,
		StopFade:  0.015,
	}
}

// VolumeStore receives volume changes for persistence. Implementations are
// expected to debounce; the engine calls Save on every change.
type VolumeStore interface {
	Save(v float64)
}

// transition tracks one in-flight switch or seek so that it can settle
// (detach the outgoing voice, refill the ready pool) or be cancelled by a
// pause/stop before its fade completes.
type transition struct {
	old   *node
	timer *time.Timer
	until float64
	duck  bool
}

// Engine owns the whole playback state. All mutation goes through its
// methods; queries are computed from clock arithmetic, never polled from
// the renderer.
type Engine struct {
	mu  sync.Mutex
	r   Renderer
	cfg Config
	log zerolog.Logger
	bus *Bus

	store VolumeStore

	tracks []*Buffer

	state      TransportState
	selected   int
	playOffset float64
	anchor     float64
	loopStart  float64
	loopEnd    float64
	volume     float64
	mode       SwitchMode
	modeLocked bool

	active *node
	ready  []*node
	trans  *transition

	// pendingPlay marks an optimistic play issued while the render clock
	// was still suspended; the voice start runs from the OnReady callback.
	pendingPlay bool

	// gen invalidates deferred callbacks that outlive a track load.
	gen int
}

// New creates an engine on the given renderer. store may be nil.
func New(r Renderer, cfg Config, store VolumeStore, logger zerolog.Logger) (*Engine, error) {
	if r == nil {
		return nil, errors.New("engine: nil renderer")
	}
	return &Engine{
		r:        r,
		cfg:      cfg,
		log:      logger.With().Str("component", "engine").Logger(),
		bus:      NewBus(),
		store:    store,
		selected: -1,
		volume:   1.0,
		mode:     SwitchInstant,
	}, nil
}

// Bus returns the engine's event bus for subscribers.
func (e *Engine) Bus() *Bus { return e.bus }

// Subscribe registers for one event type. See Bus.
func (e *Engine) Subscribe(t EventType) Subscriber { return e.bus.Subscribe(t) }

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(t EventType, s Subscriber) { e.bus.Unsubscribe(t, s) }

// LoadTracks replaces the loaded track set. All buffers must share one
// sample rate and length. Any active or pooled voices are torn down, the
// loop region is clamped into the new duration and transport resets to
// stopped with no selection.
func (e *Engine) LoadTracks(bufs []*Buffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(bufs) == 0 {
		return errors.New("engine: no tracks")
	}
	rate := bufs[0].Rate
	frames := bufs[0].Frames()
	for _, b := range bufs {
		if b == nil || b.Rate != rate || b.Frames() != frames {
			return errors.New("engine: tracks differ in rate or length")
		}
	}

	e.gen++
	now := e.r.Now()
	e.cancelTransitionLocked(now)
	if e.active != nil {
		e.silenceLocked(e.active, now)
		e.active = nil
	}
	e.dropReadyLocked()
	e.pendingPlay = false

	e.tracks = bufs
	e.selected = -1
	dur := bufs[0].Duration()

	// Carry the previous loop region across iterations where it still
	// fits; otherwise reseed to the whole track.
	if e.loopEnd <= e.loopStart || e.loopEnd > dur {
		e.loopStart, e.loopEnd = 0, dur
	}
	e.playOffset = e.loopStart
	e.anchor = now

	e.ready = make([]*node, len(bufs))
	for i := range bufs {
		e.ready[i] = e.newNodeLocked(i)
	}

	e.setStateLocked(StateStopped)
	e.bus.Publish(EventTracks, Payload{"count": len(bufs), "duration": dur})
	e.bus.Publish(EventLoop, Payload{"start": e.loopStart, "end": e.loopEnd})
	e.log.Debug().Int("tracks", len(bufs)).Float64("duration", dur).Msg("tracks loaded")
	return nil
}

// Play starts playback of the selected track. Resuming from paused picks up
// at the captured offset, otherwise playback begins at the loop start. A
// no-op while already playing or before any selection. If the render clock
// is still suspended the engine reports playing immediately and starts the
// voice once the clock comes up.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playLocked()
}

func (e *Engine) playLocked() {
	if e.state == StatePlaying || e.selected < 0 || len(e.tracks) == 0 {
		return
	}
	from := e.loopStart
	if e.state == StatePaused {
		from = e.playOffset
	}
	e.setStateLocked(StatePlaying)

	if !e.r.Running() {
		e.pendingPlay = true
		e.playOffset = from
		e.anchor = e.r.Now()
		gen := e.gen
		e.r.OnReady(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if gen != e.gen || !e.pendingPlay || e.state != StatePlaying {
				return
			}
			e.pendingPlay = false
			// Start from the live offset, not the one captured at Play
			// time: a seek or loop move while the clock was warming up
			// has already updated it.
			e.startActiveLocked(e.playOffset)
			e.log.Debug().Float64("from", e.playOffset).Msg("deferred start after clock ready")
		})
		return
	}
	e.startActiveLocked(from)
}

// startActiveLocked starts a fresh voice for the selected track and anchors
// the playhead arithmetic to the moment of start.
func (e *Engine) startActiveLocked(from float64) {
	n := e.takeReadyLocked(e.selected)
	now := e.r.Now()
	g := n.voice.Gain()
	g.CancelAfter(now)
	g.SetValueAt(1, now)
	n.voice.Start(now, from)
	n.started = true
	e.active = n
	e.playOffset = from
	e.anchor = now
}

// Pause captures the computed position before anything is silenced, so the
// paused offset is exact regardless of the stop fade, then tears the active
// voice down.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePlaying {
		return
	}
	now := e.r.Now()
	pos := e.playOffset
	if !e.pendingPlay {
		pos = e.wrapLocked(e.playOffset + (now - e.anchor))
	}
	e.pendingPlay = false
	e.cancelTransitionLocked(now)
	if e.active != nil {
		e.silenceLocked(e.active, now)
		e.active = nil
	}
	e.playOffset = pos
	e.setStateLocked(StatePaused)
}

// Stop silences playback and rewinds the playhead to the loop start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateStopped {
		return
	}
	now := e.r.Now()
	e.pendingPlay = false
	e.cancelTransitionLocked(now)
	if e.active != nil {
		e.silenceLocked(e.active, now)
		e.active = nil
	}
	e.playOffset = e.loopStart
	e.setStateLocked(StateStopped)
}

// silenceLocked fades a voice out over the stop-fade window, schedules its
// stop at the end of the fade and defers graph detachment past it. The
// voice's pool slot is refilled immediately.
func (e *Engine) silenceLocked(n *node, now float64) {
	g := n.voice.Gain()
	g.CancelAfter(now)
	g.SetValueAt(g.Value(), now)
	g.LinearRampTo(0, now+e.cfg.StopFade)
	n.voice.Stop(now + e.cfg.StopFade)

	v := n.voice
	time.AfterFunc(secs(e.cfg.StopFade+detachDelay), v.Detach)
	e.refillReadyLocked(n.track)
}

// cancelTransitionLocked aborts an in-flight switch/seek: the outgoing
// voice is stopped and detached at once and the duck stage, if it was
// ramping, snaps back to unity before any new fade can be scheduled.
func (e *Engine) cancelTransitionLocked(now float64) {
	tr := e.trans
	if tr == nil {
		return
	}
	e.trans = nil
	tr.timer.Stop()
	if tr.old != nil {
		g := tr.old.voice.Gain()
		g.CancelAfter(now)
		tr.old.voice.Stop(now)
		tr.old.voice.Detach()
		e.refillReadyLocked(tr.old.track)
	}
	if tr.duck {
		d := e.r.DuckGain()
		d.CancelAfter(now)
		d.SetValueAt(1, now)
	}
}

// beginTransitionLocked registers an in-flight transition ending at until.
// When it settles the outgoing voice is detached and its track's ready
// slot refilled.
func (e *Engine) beginTransitionLocked(old *node, until float64, duck bool) {
	tr := &transition{old: old, until: until, duck: duck}
	gen := e.gen
	remaining := until - e.r.Now()
	telemetry.TransitionSeconds.Observe(remaining)
	delay := secs(remaining + detachDelay)
	tr.timer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.trans != tr || gen != e.gen {
			return
		}
		e.trans = nil
		if tr.old != nil {
			tr.old.voice.Detach()
			e.refillReadyLocked(tr.old.track)
		}
	})
	e.trans = tr
}

// transitionInFlightLocked reports whether a switch/seek fade is still
// pending; new switch/seek requests are dropped rather than stacked.
func (e *Engine) transitionInFlightLocked(now float64) bool {
	return e.trans != nil && now < e.trans.until
}

// CurrentTime returns the playhead position in seconds: the loop start when
// stopped, the captured offset when paused, and clock arithmetic wrapped
// into the loop region while playing.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateStopped:
		return e.loopStart
	case StatePaused:
		return e.playOffset
	}
	if e.pendingPlay {
		return e.playOffset
	}
	return e.wrapLocked(e.playOffset + (e.r.Now() - e.anchor))
}

// wrapLocked folds a raw playhead sum into [loopStart, loopEnd), mirroring
// the renderer's own loop without polling it. A degenerate span pins the
// position instead of dividing by zero.
func (e *Engine) wrapLocked(pos float64) float64 {
	span := e.loopEnd - e.loopStart
	if span <= 0 {
		return e.playOffset
	}
	if pos >= e.loopEnd {
		pos = e.loopStart + math.Mod(pos-e.loopStart, span)
	}
	if pos < e.loopStart {
		pos = e.loopStart
	}
	return pos
}

// SetVolume sets the master volume in [0, 1], independent of any transition
// gain, and hands the value to the persistence store.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v = clamp(v, 0, 1)
	if v == e.volume {
		return
	}
	e.volume = v
	now := e.r.Now()
	m := e.r.MasterGain()
	m.CancelAfter(now)
	m.SetValueAt(m.Value(), now)
	// Short ramp to keep fast slider drags free of zipper noise.
	m.LinearRampTo(v, now+0.01)
	e.bus.Publish(EventVolume, Payload{"volume": v})
	if e.store != nil {
		e.store.Save(v)
	}
}

// Volume returns the master volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// State returns the transport state.
func (e *Engine) State() TransportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SelectedTrack returns the selected track index, or -1 before the first
// selection.
func (e *Engine) SelectedTrack() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// LoopRegion returns the active loop bounds.
func (e *Engine) LoopRegion() (start, end float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loopStart, e.loopEnd
}

// TrackCount returns the number of loaded tracks.
func (e *Engine) TrackCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tracks)
}

func (e *Engine) setStateLocked(s TransportState) {
	if e.state == s {
		return
	}
	e.state = s
	e.bus.Publish(EventTransport, Payload{"state": s.String()})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
