/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package render implements the engine's Renderer on a real output device.
// The oto player pulls interleaved float32 frames through Read; everything
// the engine schedules (voice starts/stops, gain automation) is applied at
// sample resolution inside that pull loop, which is what makes a batch of
// events at one timestamp land in a single processing quantum.
package render

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/soundbench/soundbench/internal/engine"
)

// Config selects the output format.
type Config struct {
	SampleRate int
	Channels   int
}

// Renderer drives an oto output device and owns the audio graph:
// voice -> voice gain -> duck -> master -> device.
type Renderer struct {
	log      zerolog.Logger
	rate     int
	channels int

	mu     sync.Mutex
	voices []*voice

	duck   *param
	master *param

	frames atomic.Int64
	ready  atomic.Bool

	readyMu  sync.Mutex
	readyFns []func()

	ctx    *oto.Context
	player *oto.Player

	scratch []float32
}

// New opens the output device. The device may come up asynchronously;
// Running reports false and scheduled work is deferred until the context
// signals ready.
func New(cfg Config, logger zerolog.Logger) (*Renderer, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}

	r := &Renderer{
		log:      logger.With().Str("component", "render").Logger(),
		rate:     cfg.SampleRate,
		channels: cfg.Channels,
		duck:     newParam(1),
		master:   newParam(1),
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio context: %w", err)
	}
	r.ctx = ctx
	r.player = ctx.NewPlayer(r)
	r.player.Play()

	go func() {
		<-ready
		r.markReady()
	}()

	return r, nil
}

func (r *Renderer) markReady() {
	r.ready.Store(true)
	r.readyMu.Lock()
	fns := r.readyFns
	r.readyFns = nil
	r.readyMu.Unlock()
	r.log.Debug().Int("rate", r.rate).Msg("render clock running")
	for _, fn := range fns {
		go fn()
	}
}

// Now returns the render clock time in seconds of rendered output.
func (r *Renderer) Now() float64 {
	return float64(r.frames.Load()) / float64(r.rate)
}

// Running reports whether the output device has come up.
func (r *Renderer) Running() bool { return r.ready.Load() }

// OnReady calls fn, on its own goroutine, once the device is running.
func (r *Renderer) OnReady(fn func()) {
	r.readyMu.Lock()
	if r.ready.Load() {
		r.readyMu.Unlock()
		go fn()
		return
	}
	r.readyFns = append(r.readyFns, fn)
	r.readyMu.Unlock()
}

// NewVoice wires an unstarted voice for buf into the graph.
func (r *Renderer) NewVoice(buf *engine.Buffer) engine.Voice {
	v := newVoice(buf, r.rate)
	r.mu.Lock()
	r.voices = append(r.voices, v)
	r.mu.Unlock()
	return v
}

// DuckGain is the stage shared by all voices, used for duck switches.
func (r *Renderer) DuckGain() engine.Param { return r.duck }

// MasterGain is the outermost volume stage.
func (r *Renderer) MasterGain() engine.Param { return r.master }

// SampleRate returns the output rate.
func (r *Renderer) SampleRate() int { return r.rate }

// Close stops the output device.
func (r *Renderer) Close() error {
	if r.player != nil {
		return r.player.Close()
	}
	return nil
}

// Read is the oto pull callback: mix all live voices, apply the duck and
// master stages per frame, clamp and encode. Never blocks.
func (r *Renderer) Read(p []byte) (int, error) {
	bytesPerFrame := 4 * r.channels
	nf := len(p) / bytesPerFrame
	if nf == 0 {
		return 0, nil
	}
	samples := nf * r.channels

	if len(r.scratch) < samples {
		r.scratch = make([]float32, samples)
	}
	mix := r.scratch[:samples]
	for i := range mix {
		mix[i] = 0
	}

	base := r.frames.Load()

	r.mu.Lock()
	live := r.voices[:0]
	for _, v := range r.voices {
		if !v.done() {
			live = append(live, v)
		}
	}
	r.voices = live
	voices := append([]*voice(nil), live...)
	r.mu.Unlock()

	for _, v := range voices {
		v.render(mix, base, nf, r.channels)
	}

	for f := 0; f < nf; f++ {
		t := float64(base+int64(f)) / float64(r.rate)
		g := float32(r.duck.tick(t) * r.master.tick(t))
		for c := 0; c < r.channels; c++ {
			s := mix[f*r.channels+c] * g
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			binary.LittleEndian.PutUint32(p[(f*r.channels+c)*4:], math.Float32bits(s))
		}
	}

	r.frames.Add(int64(nf))
	return nf * bytesPerFrame, nil
}
