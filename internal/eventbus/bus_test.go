package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	bus := New(nil)
	var count int32
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		bus.Subscribe("thread.t1", SubscriberFunc(func(ctx context.Context, e Event) error {
			atomic.AddInt32(&count, 1)
			wg.Done()
			return nil
		}))
	}

	bus.Publish(context.Background(), New(TypeThreadMessage, "thread.t1", nil))

	waitWithTimeout(t, &wg, time.Second)
	if got := atomic.LoadInt32(&count); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
}

func TestPublish_IsolatesFailingSubscriber(t *testing.T) {
	bus := New(nil)
	var ok int32
	bus.Subscribe("t", SubscriberFunc(func(ctx context.Context, e Event) error {
		return errors.New("boom")
	}))
	bus.Subscribe("t", SubscriberFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&ok, 1)
		return nil
	}))

	bus.Publish(context.Background(), New(TypeError, "t", nil))

	if atomic.LoadInt32(&ok) != 1 {
		t.Fatalf("healthy subscriber should still have run")
	}
}

func TestPublish_NoSubscribersIsNoop(t *testing.T) {
	bus := New(nil)
	bus.Publish(context.Background(), New(TypeSystemStatus, "nobody-listens", nil))
}

func TestUnsubscribe_RemovesTopicWhenEmpty(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe("t", SubscriberFunc(func(ctx context.Context, e Event) error { return nil }))
	if bus.SubscriberCount("t") != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	sub.Unsubscribe()
	if bus.SubscriberCount("t") != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe")
	}
	sub.Unsubscribe()
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for subscribers")
	}
}
