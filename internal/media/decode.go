/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/soundbench/soundbench/internal/engine"
)

func decodeWAV(r io.ReadSeeker) (*engine.Buffer, error) {
	d := wav.NewDecoder(r)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("wav: missing format")
	}

	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	return &engine.Buffer{
		Channels: deinterleave(samples, buf.Format.NumChannels),
		Rate:     buf.Format.SampleRate,
	}, nil
}

func decodeMP3(r io.Reader) (*engine.Buffer, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("read mp3: %w", err)
	}

	// go-mp3 emits 16-bit little-endian stereo.
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		samples[i] = float32(v) / 32768.0
	}

	return &engine.Buffer{
		Channels: deinterleave(samples, 2),
		Rate:     d.SampleRate(),
	}, nil
}

func decodeVorbis(r io.Reader) (*engine.Buffer, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode vorbis: %w", err)
	}

	return &engine.Buffer{
		Channels: deinterleave(data, format.Channels),
		Rate:     format.SampleRate,
	}, nil
}
