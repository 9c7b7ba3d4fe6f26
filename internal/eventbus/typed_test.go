package eventbus

import (
	"sync"
	"testing"
)

type progress struct {
	Phase string
	Cost  float64
}

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[progress]()
	ch := bus.Subscribe()
	bus.Publish(progress{Phase: "greedy", Cost: 1.5})
	v := <-ch
	if v.Phase != "greedy" || v.Cost != 1.5 {
		t.Fatalf("unexpected event %+v", v)
	}
	bus.Unsubscribe(ch)
	if bus.Subscribers() != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("expected subscription on closed bus to be closed")
	}
	bus.Publish(1)
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTyped[int](WithBuffer(1))
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	bus.Publish(3)
	if got := bus.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped got %d", got)
	}
	if v := <-ch; v != 1 {
		t.Fatalf("expected first event kept, got %d", v)
	}
}

func TestTypedBusSubscribeFunc(t *testing.T) {
	bus := NewTyped[int]()
	var (
		mu  sync.Mutex
		got []int
	)
	cancel, done := bus.SubscribeFunc(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	bus.Publish(1)
	bus.Publish(2)
	cancel()
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected events %v", got)
	}
}
