package omron

import (
	"testing"
	"time"
)

func TestBroadcasterNewSubscriberGetsRetainedLatest(t *testing.T) {
	b := newBroadcaster[int](4)
	b.publish(42)

	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	select {
	case v := <-ch:
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for retained value")
	}
}

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := newBroadcaster[string](4)
	ch1, unsub1 := b.subscribe()
	ch2, unsub2 := b.subscribe()
	defer unsub1()
	defer unsub2()

	b.publish("hello")

	for _, ch := range []<-chan string{ch1, ch2} {
		select {
		case v := <-ch:
			if v != "hello" {
				t.Fatalf("got %q, want hello", v)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestBroadcasterOldestWinsUnderBackpressure(t *testing.T) {
	b := newBroadcaster[int](1)
	ch, unsub := b.subscribe()
	defer unsub()

	b.publish(1)
	b.publish(2)
	b.publish(3)

	select {
	case v := <-ch:
		if v != 3 {
			t.Fatalf("got %d, want the most recent value 3", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestBroadcasterCloseClosesSubscriberChannels(t *testing.T) {
	b := newBroadcaster[int](1)
	ch, _ := b.subscribe()
	b.close()

	_, open := <-ch
	if open {
		t.Fatal("expected subscriber channel to be closed")
	}
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	b := newBroadcaster[int](1)
	ch, unsubscribe := b.subscribe()
	unsubscribe()

	b.publish(1)

	_, open := <-ch
	if open {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}
