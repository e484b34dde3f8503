package engine

import "testing"

func TestSetLoopRegionRejectsMalformed(t *testing.T) {
	e, _ := newTestEngine(t, mkBuf(10))
	e.SetLoopRegion(2, 8)
	e.SelectTrack(0)
	e.Stop()
	e.Seek(5) // parks paused at 5

	for _, bad := range [][2]float64{{5, 5}, {6, 3}, {-1, 4}, {2, 11}} {
		e.SetLoopRegion(bad[0], bad[1])
		if s, en := e.LoopRegion(); s != 2 || en != 8 {
			t.Fatalf("region mutated to [%v,%v) by (%v,%v)", s, en, bad[0], bad[1])
		}
		if got := e.CurrentTime(); got != 5 {
			t.Fatalf("offset mutated to %v by (%v,%v)", got, bad[0], bad[1])
		}
	}
}

func TestSetLoopRegionUnchangedIsNoop(t *testing.T) {
	e, r := newTestEngine(t, mkBuf(10))
	e.SetLoopRegion(2, 8)
	e.SelectTrack(0)
	r.advance(1)
	anchor := e.anchor

	e.SetLoopRegion(2, 8)

	if e.anchor != anchor {
		t.Fatal("identical region re-anchored the playhead")
	}
}

func TestLoopMoveInBoundsReanchorsSilently(t *testing.T) {
	e, r := newTestEngine(t, mkBuf(10))
	e.SelectTrack(0)
	r.advance(4) // position 4

	e.SetLoopRegion(2, 8)

	// Position 4 is inside the new region: no new voice, no stop, just
	// updated bounds on the running one.
	started := r.startedVoices()
	if len(started) != 1 {
		t.Fatalf("in-bounds loop move started a voice, total %d", len(started))
	}
	if started[0].stopAt >= 0 {
		t.Fatal("in-bounds loop move stopped the running voice")
	}
	if started[0].loopS != 2 || started[0].loopE != 8 {
		t.Fatalf("voice loop bounds not updated: [%v,%v)", started[0].loopS, started[0].loopE)
	}
	if got := e.CurrentTime(); !approx(got, 4) {
		t.Fatalf("position moved to %v, expected 4", got)
	}
	r.advance(1)
	if got := e.CurrentTime(); !approx(got, 5) {
		t.Fatalf("position %v after advance, expected 5", got)
	}
}

func TestLoopMoveOutOfBoundsSwapsToNewStart(t *testing.T) {
	e, r := newTestEngine(t, mkBuf(10))
	e.SelectTrack(0)
	r.advance(1) // position 1, below the new region

	e.SetLoopRegion(4, 8)

	started := r.startedVoices()
	if len(started) != 2 {
		t.Fatalf("expected a swap voice, got %d started", len(started))
	}
	if !approx(started[1].startOff, 4) {
		t.Fatalf("swap started at %v, expected new loop start 4", started[1].startOff)
	}
	// Overlapped fade: the outgoing voice stops only after the fade.
	if !approx(started[0].stopAt, started[1].startAt+e.cfg.SeekFade) {
		t.Fatalf("old stop %v, expected %v", started[0].stopAt, started[1].startAt+e.cfg.SeekFade)
	}
}

func TestLoopClampWhilePaused(t *testing.T) {
	e, r := newTestEngine(t, mkBuf(10))
	e.SelectTrack(0)
	r.advance(1)
	e.Pause() // offset 1

	e.SetLoopRegion(3, 9)

	if got := e.CurrentTime(); got != 3 {
		t.Fatalf("paused offset %v, expected clamp to 3", got)
	}
}

func TestSeekRoundTripWhilePaused(t *testing.T) {
	e, r := newTestEngine(t, mkBuf(10))
	e.SetLoopRegion(2, 8)
	e.SelectTrack(0)
	r.advance(1)
	e.Pause()

	e.Seek(6.25)
	if got := e.CurrentTime(); got != 6.25 {
		t.Fatalf("round trip gave %v, expected 6.25", got)
	}

	// Clamping: outside the loop region lands on its edge.
	e.Seek(9.5)
	if got := e.CurrentTime(); got != 8 {
		t.Fatalf("expected clamp to 8, got %v", got)
	}
	e.Seek(0.5)
	if got := e.CurrentTime(); got != 2 {
		t.Fatalf("expected clamp to 2, got %v", got)
	}
}

func TestSeekWhileStoppedPausesAtTarget(t *testing.T) {
	e, _ := newTestEngine(t, mkBuf(10))
	e.SelectTrack(0)
	e.Stop()

	e.Seek(3)

	if e.State() != StatePaused {
		t.Fatalf("expected paused after stopped seek, got %s", e.State())
	}
	if got := e.CurrentTime(); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestSeekWhilePlayingOverlapsOldAndNew(t *testing.T) {
	e, r := newTestEngine(t, mkBuf(10))
	e.SelectTrack(0)
	r.advance(1)

	now := r.Now()
	e.Seek(7)

	started := r.startedVoices()
	if len(started) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(started))
	}
	oldV, newV := started[0], started[1]
	at := now + e.cfg.Lookahead

	if !approx(newV.startAt, at) || !approx(newV.startOff, 7) {
		t.Fatalf("new voice start %v@%v, expected %v@7", newV.startOff, newV.startAt, at)
	}
	// New starts strictly before old stops; never both silent and stopped.
	if oldV.stopAt <= newV.startAt {
		t.Fatalf("old stopped at %v before new start %v", oldV.stopAt, newV.startAt)
	}
	// And never both fully audible: mid-window the gains are complementary.
	mid := at + e.cfg.SeekFade/2
	sum := oldV.gain.valueAt(mid) + newV.gain.valueAt(mid)
	if sum > 1+1e-9 {
		t.Fatalf("gain sum %v mid-seek, expected <= 1", sum)
	}

	r.advance(e.cfg.Lookahead)
	if got := e.CurrentTime(); !approx(got, 7) {
		t.Fatalf("position %v after seek, expected 7", got)
	}
}

func TestDegenerateLoopPinsPosition(t *testing.T) {
	e, r := newTestEngine(t, mkBuf(10))
	e.SelectTrack(0)
	r.advance(1)

	// Should not occur through the public surface; force it to verify the
	// division guard.
	e.mu.Lock()
	e.loopStart, e.loopEnd = 4, 4
	e.playOffset = 4
	e.mu.Unlock()

	r.advance(5)
	if got := e.CurrentTime(); got != 4 {
		t.Fatalf("degenerate loop gave %v, expected pinned 4", got)
	}
}
