package engine

import (
	"sync"
	"testing"
	"time"
)

func drain(s Subscriber) []Payload {
	var out []Payload
	for {
		select {
		case p := <-s:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestBusPublishFanOut(t *testing.T) {
	b := NewBus()
	a := b.Subscribe(EventTransport)
	c := b.Subscribe(EventTransport)
	other := b.Subscribe(EventVolume)

	b.Publish(EventTransport, Payload{"state": "playing"})

	for _, sub := range []Subscriber{a, c} {
		got := drain(sub)
		if len(got) != 1 || got[0]["state"] != "playing" {
			t.Fatalf("unexpected delivery: %v", got)
		}
	}
	if got := drain(other); len(got) != 0 {
		t.Fatalf("volume subscriber received transport event: %v", got)
	}
}

func TestBusSubscribeDuringNotification(t *testing.T) {
	b := NewBus()
	first := b.Subscribe(EventLoop)

	// A consumer that reacts to a notification by changing the
	// subscriber set must not deadlock or corrupt delivery.
	done := make(chan struct{})
	go func() {
		<-first
		b.Subscribe(EventLoop)
		b.Unsubscribe(EventLoop, first)
		close(done)
	}()

	b.Publish(EventLoop, Payload{"start": 0.0, "end": 1.0})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber mutation during notification deadlocked")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(EventTrack)
	b.Unsubscribe(EventTrack, s)
	if _, ok := <-s; ok {
		t.Fatal("expected closed channel")
	}
	// Double unsubscribe must be harmless.
	b.Unsubscribe(EventTrack, s)
}

func TestBusPublishSurvivesUnsubscribeChurn(t *testing.T) {
	b := NewBus()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			b.Publish(EventTransport, Payload{"state": "playing"})
		}
	}()

	// A disconnecting consumer closes its channel from its own goroutine.
	// If a close could interleave with an in-flight send, the publisher
	// would panic here.
	for i := 0; i < 1000; i++ {
		s := b.Subscribe(EventTransport)
		b.Unsubscribe(EventTransport, s)
	}
	close(stop)
	wg.Wait()
}

func TestBusSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(EventVolume)
	for i := 0; i < 50; i++ {
		b.Publish(EventVolume, Payload{"volume": float64(i)})
	}
	if got := len(drain(s)); got == 0 || got > 50 {
		t.Fatalf("unexpected buffered count %d", got)
	}
}

func TestEngineEventsOnStateChanges(t *testing.T) {
	e, _ := newTestEngine(t, mkBuf(10), mkBuf(10))
	transport := e.Subscribe(EventTransport)
	track := e.Subscribe(EventTrack)
	loop := e.Subscribe(EventLoop)

	e.SelectTrack(1)
	e.SetLoopRegion(1, 9)
	e.Stop()

	if got := drain(track); len(got) != 1 || got[0]["track"] != 1 {
		t.Fatalf("track events: %v", got)
	}
	states := drain(transport)
	if len(states) != 2 || states[0]["state"] != "playing" || states[1]["state"] != "stopped" {
		t.Fatalf("transport events: %v", states)
	}
	if got := drain(loop); len(got) != 1 || got[0]["start"] != 1.0 {
		t.Fatalf("loop events: %v", got)
	}
}
