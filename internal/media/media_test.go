package media

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// writeTestWAV writes a 16-bit stereo PCM file whose left channel is a
// constant and right channel a different constant.
func writeTestWAV(t *testing.T, path string, frames, rate int, left, right int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		data[2*i] = left
		data[2*i+1] = right
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, path, 441, 44100, 16384, -8192)

	b, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Rate != 44100 {
		t.Fatalf("rate %d, want 44100", b.Rate)
	}
	if len(b.Channels) != 2 || b.Frames() != 441 {
		t.Fatalf("shape %dx%d, want 2x441", len(b.Channels), b.Frames())
	}
	if got := float64(b.Channels[0][0]); math.Abs(got-0.5) > 1e-3 {
		t.Fatalf("left sample %v, want 0.5", got)
	}
	if got := float64(b.Channels[1][0]); math.Abs(got+0.25) > 1e-3 {
		t.Fatalf("right sample %v, want -0.25", got)
	}
}

func TestLoadSetTrimsPaddingAndRejectsMismatch(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "a.wav"), 44100, 44100, 1000, 1000)
	writeTestWAV(t, filepath.Join(dir, "b.wav"), 44100+100, 44100, 2000, 2000)
	writeTestWAV(t, filepath.Join(dir, "long.wav"), 88200, 44100, 3000, 3000)

	svc := NewService(dir, zerolog.Nop())

	bufs, err := svc.LoadSet([]string{"a.wav", "b.wav"})
	if err != nil {
		t.Fatalf("load set: %v", err)
	}
	if bufs[0].Frames() != 44100 || bufs[1].Frames() != 44100 {
		t.Fatalf("not trimmed to shortest: %d, %d", bufs[0].Frames(), bufs[1].Frames())
	}

	if _, err := svc.LoadSet([]string{"a.wav", "long.wav"}); err == nil {
		t.Fatal("expected duration mismatch error")
	}
}

func TestResolveKeepsPathsUnderRoot(t *testing.T) {
	root := t.TempDir()
	svc := NewService(root, zerolog.Nop())
	p, err := svc.Resolve("../../etc/passwd")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	rootAbs, _ := filepath.Abs(root)
	if !filepath.IsAbs(p) || !strings.HasPrefix(p, rootAbs) {
		t.Fatalf("resolved path %q escapes root %q", p, rootAbs)
	}
}

func TestDeinterleave(t *testing.T) {
	out := deinterleave([]float32{1, 2, 3, 4, 5, 6}, 2)
	if len(out) != 2 || len(out[0]) != 3 {
		t.Fatalf("shape %dx%d, want 2x3", len(out), len(out[0]))
	}
	if out[0][1] != 3 || out[1][2] != 6 {
		t.Fatalf("wrong placement: %v", out)
	}
}

func TestLoadSetEmptyAndUnknownFormat(t *testing.T) {
	svc := NewService(t.TempDir(), zerolog.Nop())
	if _, err := svc.LoadSet(nil); err == nil {
		t.Fatal("expected error for empty set")
	}
	if _, err := DecodeFile("x.flac"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
