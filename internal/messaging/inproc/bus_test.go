package inproc

import (
	"errors"
	"testing"

	"outbreak/internal/domain"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	bus := New(4)
	a, err := bus.Register("file")
	if err != nil {
		t.Fatalf("register file: %v", err)
	}
	b, err := bus.Register("recorder")
	if err != nil {
		t.Fatalf("register recorder: %v", err)
	}
	if _, err := bus.Register("file"); !errors.Is(err, ErrSubscriberExists) {
		t.Fatalf("err=%v want=%v", err, ErrSubscriberExists)
	}

	bus.Publish(domain.Event{Seq: 1, Kind: domain.EventGameStart})
	for name, ch := range map[string]<-chan domain.Event{"file": a, "recorder": b} {
		select {
		case ev := <-ch:
			if ev.Seq != 1 {
				t.Fatalf("%s: seq=%d want=1", name, ev.Seq)
			}
		default:
			t.Fatalf("%s: event not delivered", name)
		}
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := New(2)
	ch, err := bus.Register("slow")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 1; i <= 5; i++ {
		bus.Publish(domain.Event{Seq: uint64(i)})
	}
	if got := bus.Dropped(); got != 3 {
		t.Fatalf("dropped=%d want=3", got)
	}
	if ev := <-ch; ev.Seq != 1 {
		t.Fatalf("first seq=%d want=1", ev.Seq)
	}
}

func TestCloseClosesSubscriberChannels(t *testing.T) {
	bus := New(1)
	ch, err := bus.Register("console")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	bus.Publish(domain.Event{Seq: 1})
	bus.Unregister("console")
}
