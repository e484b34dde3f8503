package prefs

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memStore struct {
	mu     sync.Mutex
	writes []string
}

func (m *memStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, value)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *memStore) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return ""
	}
	return m.writes[len(m.writes)-1]
}

func TestDebounceCoalescesBurst(t *testing.T) {
	ms := &memStore{}
	d := NewDebouncedVolume(ms, 20*time.Millisecond, zerolog.Nop())

	// A burst of drag events must collapse into one write with the
	// final value.
	d.Save(0.2)
	d.Save(0.4)
	d.Save(0.6)

	time.Sleep(60 * time.Millisecond)
	if got := ms.count(); got != 1 {
		t.Fatalf("got %d writes, want 1", got)
	}
	if got := ms.last(); got != "0.6000" {
		t.Fatalf("wrote %q, want last value 0.6000", got)
	}
}

func TestDebounceSeparateBurstsWriteSeparately(t *testing.T) {
	ms := &memStore{}
	d := NewDebouncedVolume(ms, 10*time.Millisecond, zerolog.Nop())

	d.Save(0.3)
	time.Sleep(40 * time.Millisecond)
	d.Save(0.9)
	time.Sleep(40 * time.Millisecond)

	if got := ms.count(); got != 2 {
		t.Fatalf("got %d writes, want 2", got)
	}
	if got := ms.last(); got != "0.9000" {
		t.Fatalf("last write %q, want 0.9000", got)
	}
}

func TestFlushWritesPendingImmediately(t *testing.T) {
	ms := &memStore{}
	d := NewDebouncedVolume(ms, time.Hour, zerolog.Nop())

	d.Save(0.5)
	d.Flush()

	if got := ms.count(); got != 1 {
		t.Fatalf("got %d writes after flush, want 1", got)
	}

	// Flush with nothing pending is a no-op.
	d.Flush()
	if got := ms.count(); got != 1 {
		t.Fatalf("idle flush wrote: %d writes", got)
	}
}
