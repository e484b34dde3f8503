package engine

import (
	"sort"
	"sync"
)

// stubRenderer is a scripted render clock: tests advance it by hand and
// inspect every scheduled start, stop and ramp.
type stubRenderer struct {
	mu      sync.Mutex
	now     float64
	running bool
	readyFn []func()
	voices  []*stubVoice
	duck    *stubParam
	master  *stubParam
}

func newStubRenderer() *stubRenderer {
	r := &stubRenderer{running: true}
	r.duck = &stubParam{r: r, initial: 1}
	r.master = &stubParam{r: r, initial: 1}
	return r
}

func (r *stubRenderer) Now() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

func (r *stubRenderer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *stubRenderer) OnReady(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		go fn()
		return
	}
	r.readyFn = append(r.readyFn, fn)
}

func (r *stubRenderer) NewVoice(buf *Buffer) Voice {
	v := &stubVoice{r: r, buf: buf, startAt: -1, stopAt: -1}
	v.gain = &stubParam{r: r, initial: 1}
	r.mu.Lock()
	r.voices = append(r.voices, v)
	r.mu.Unlock()
	return v
}

func (r *stubRenderer) DuckGain() Param   { return r.duck }
func (r *stubRenderer) MasterGain() Param { return r.master }

func (r *stubRenderer) advance(d float64) {
	r.mu.Lock()
	r.now += d
	r.mu.Unlock()
}

// makeReady flips the clock to running and fires deferred callbacks.
// Tests call it without holding any engine lock, so synchronous delivery
// is fine here.
func (r *stubRenderer) makeReady() {
	r.mu.Lock()
	r.running = true
	fns := r.readyFn
	r.readyFn = nil
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// startedVoices returns voices whose Start was issued, in creation order.
func (r *stubRenderer) startedVoices() []*stubVoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*stubVoice
	for _, v := range r.voices {
		if v.startAt >= 0 {
			out = append(out, v)
		}
	}
	return out
}

// audibleAt counts voices that are playing and have nonzero gain at clock
// time t, including the duck stage.
func (r *stubRenderer) audibleAt(t float64) int {
	r.mu.Lock()
	voices := append([]*stubVoice(nil), r.voices...)
	r.mu.Unlock()
	if r.duck.valueAt(t) == 0 {
		return 0
	}
	n := 0
	for _, v := range voices {
		if v.playingAt(t) && v.gain.valueAt(t) > 0 {
			n++
		}
	}
	return n
}

type stubVoice struct {
	r        *stubRenderer
	buf      *Buffer
	gain     *stubParam
	startAt  float64
	startOff float64
	stopAt   float64
	loopS    float64
	loopE    float64
	detached bool
	starts   int
}

func (v *stubVoice) Start(at, offset float64) {
	v.r.mu.Lock()
	defer v.r.mu.Unlock()
	v.starts++
	v.startAt = at
	v.startOff = offset
}

func (v *stubVoice) Stop(at float64) {
	v.r.mu.Lock()
	defer v.r.mu.Unlock()
	if v.stopAt < 0 || at < v.stopAt {
		v.stopAt = at
	}
}

func (v *stubVoice) Detach() {
	v.r.mu.Lock()
	defer v.r.mu.Unlock()
	v.detached = true
}

func (v *stubVoice) SetLoop(start, end float64) {
	v.r.mu.Lock()
	defer v.r.mu.Unlock()
	v.loopS, v.loopE = start, end
}

func (v *stubVoice) Gain() Param { return v.gain }

func (v *stubVoice) playingAt(t float64) bool {
	if v.detached || v.startAt < 0 || t < v.startAt {
		return false
	}
	return v.stopAt < 0 || t < v.stopAt
}

type paramEvent struct {
	at   float64
	v    float64
	ramp bool
}

// stubParam records automation events and evaluates them the way a render
// clock would: set events jump, ramp events interpolate linearly from the
// previous event.
type stubParam struct {
	r       *stubRenderer
	initial float64
	mu      sync.Mutex
	events  []paramEvent
}

func (p *stubParam) Value() float64 { return p.valueAt(p.r.Now()) }

func (p *stubParam) SetValueAt(v, at float64) { p.add(paramEvent{at: at, v: v}) }

func (p *stubParam) LinearRampTo(v, at float64) { p.add(paramEvent{at: at, v: v, ramp: true}) }

func (p *stubParam) add(ev paramEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	sort.SliceStable(p.events, func(i, j int) bool { return p.events[i].at < p.events[j].at })
}

func (p *stubParam) CancelAfter(at float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.events[:0]
	for _, ev := range p.events {
		if ev.at < at {
			kept = append(kept, ev)
		}
	}
	p.events = kept
}

func (p *stubParam) valueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.initial
	lastT := 0.0
	for _, ev := range p.events {
		if ev.at <= t {
			v = ev.v
			lastT = ev.at
			continue
		}
		if ev.ramp && ev.at > lastT {
			v += (ev.v - v) * (t - lastT) / (ev.at - lastT)
		}
		break
	}
	return v
}

// recordingStore captures volume saves handed to the persistence layer.
type recordingStore struct {
	mu    sync.Mutex
	saves []float64
}

func (s *recordingStore) Save(v float64) {
	s.mu.Lock()
	s.saves = append(s.saves, v)
	s.mu.Unlock()
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingStore) last() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return -1
	}
	return s.saves[len(s.saves)-1]
}
