package session

import (
	"os"
	"path/filepath"
	"testing"
)

const samplePlan = `
name: codec-shootout
description: lossy codec transparency
comparisons:
  - name: opus-128
    track_a: reference.wav
    track_b: opus128.ogg
    switch_mode: instant
    trials: 10
  - name: mp3-320
    track_a: reference.wav
    track_b: mp3320.mp3
`

func writePlan(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestLoadPlanAppliesDefaults(t *testing.T) {
	path := writePlan(t, t.TempDir(), "codec.yaml", samplePlan)

	p, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "codec-shootout" || len(p.Comparisons) != 2 {
		t.Fatalf("plan %q with %d comparisons", p.Name, len(p.Comparisons))
	}
	if p.Comparisons[0].Trials != 10 {
		t.Fatalf("explicit trials %d, want 10", p.Comparisons[0].Trials)
	}
	if p.Comparisons[1].Trials != DefaultTrials {
		t.Fatalf("default trials %d, want %d", p.Comparisons[1].Trials, DefaultTrials)
	}

	c, err := p.Comparison("mp3-320")
	if err != nil || c.TrackB != "mp3320.mp3" {
		t.Fatalf("lookup: %v, %+v", err, c)
	}
	if _, err := p.Comparison("missing"); err == nil {
		t.Fatal("expected error for unknown comparison")
	}
}

func TestLoadPlanRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"noname.yaml":  "comparisons:\n  - name: x\n    track_a: a.wav\n    track_b: b.wav\n",
		"empty.yaml":   "name: empty\ncomparisons: []\n",
		"notrack.yaml": "name: p\ncomparisons:\n  - name: x\n    track_a: a.wav\n",
		"badmode.yaml": "name: p\ncomparisons:\n  - name: x\n    track_a: a.wav\n    track_b: b.wav\n    switch_mode: fade\n",
		"dup.yaml": "name: p\ncomparisons:\n" +
			"  - {name: x, track_a: a.wav, track_b: b.wav}\n" +
			"  - {name: x, track_a: a.wav, track_b: b.wav}\n",
	}
	for name, body := range cases {
		path := writePlan(t, dir, name, body)
		if _, err := LoadPlan(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadPlansScansDirectory(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "b.yaml", "name: beta\ncomparisons:\n  - {name: x, track_a: a.wav, track_b: b.wav}\n")
	writePlan(t, dir, "a.yml", "name: alpha\ncomparisons:\n  - {name: x, track_a: a.wav, track_b: b.wav}\n")
	writePlan(t, dir, "notes.txt", "not a plan")

	plans, err := LoadPlans(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(plans) != 2 || plans[0].Name != "alpha" || plans[1].Name != "beta" {
		t.Fatalf("plans: %+v", plans)
	}
}
