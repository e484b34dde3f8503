/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media decodes audio files into engine buffers. A comparison set
// is loaded as a unit so the equal-rate, equal-duration assumption the
// engine makes can be enforced in one place.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soundbench/soundbench/internal/engine"
	"github.com/soundbench/soundbench/internal/telemetry"
)

// Service resolves and decodes files under a media root.
type Service struct {
	root string
	log  zerolog.Logger
}

// NewService creates a media service rooted at root.
func NewService(root string, logger zerolog.Logger) *Service {
	return &Service{
		root: root,
		log:  logger.With().Str("component", "media").Logger(),
	}
}

// Resolve maps a plan-relative path onto the media root, refusing paths
// that escape it.
func (s *Service) Resolve(rel string) (string, error) {
	p := filepath.Join(s.root, filepath.Clean("/"+rel))
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) && abs != rootAbs {
		return "", fmt.Errorf("path %q escapes media root", rel)
	}
	return abs, nil
}

// LoadSet decodes the given files into one comparison set. All tracks must
// share a sample rate; lengths are trimmed to the shortest track when the
// spread is small (encoder padding), rejected otherwise.
func (s *Service) LoadSet(paths []string) ([]*engine.Buffer, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("empty track set")
	}

	bufs := make([]*engine.Buffer, 0, len(paths))
	for _, rel := range paths {
		p, err := s.Resolve(rel)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		b, err := DecodeFile(p)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", rel, err)
		}
		telemetry.DecodeSeconds.Observe(time.Since(start).Seconds())
		s.log.Debug().Str("file", rel).Int("rate", b.Rate).
			Float64("duration", b.Duration()).Msg("decoded track")
		bufs = append(bufs, b)
	}

	if err := alignSet(bufs); err != nil {
		return nil, err
	}
	return bufs, nil
}

// alignSet enforces the engine's shared rate/duration assumption, trimming
// away up to 100ms of encoder padding.
func alignSet(bufs []*engine.Buffer) error {
	rate := bufs[0].Rate
	minF, maxF := bufs[0].Frames(), bufs[0].Frames()
	for _, b := range bufs[1:] {
		if b.Rate != rate {
			return fmt.Errorf("sample rate mismatch: %d vs %d", b.Rate, rate)
		}
		if f := b.Frames(); f < minF {
			minF = f
		} else if f > maxF {
			maxF = f
		}
	}
	if maxF-minF > rate/10 {
		return fmt.Errorf("track lengths differ by %.2fs, tracks must be equal duration",
			float64(maxF-minF)/float64(rate))
	}
	for _, b := range bufs {
		for c := range b.Channels {
			b.Channels[c] = b.Channels[c][:minF]
		}
	}
	return nil
}

// DecodeFile decodes one file by extension.
func DecodeFile(path string) (*engine.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".mp3", ".ogg", ".oga":
	default:
		return nil, fmt.Errorf("unsupported format %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	default:
		return decodeVorbis(f)
	}
}

// deinterleave splits interleaved samples into per-channel slices.
func deinterleave(samples []float32, channels int) [][]float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			out[c][f] = samples[f*channels+c]
		}
	}
	return out
}
