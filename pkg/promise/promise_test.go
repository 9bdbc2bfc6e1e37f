package promise

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestResolveOnce(t *testing.T) {
	p := New[int]()
	if !p.Resolve(42) {
		t.Fatal("first Resolve must win")
	}
	if p.Resolve(43) {
		t.Fatal("second Resolve must be a no-op")
	}
	if p.Reject(errors.New("late")) {
		t.Fatal("Reject after Resolve must be a no-op")
	}
	v, err := p.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != 42 {
		t.Fatalf("Await: got %d, want 42", v)
	}
	if p.Err() != nil {
		t.Fatalf("Err after Resolve: %v", p.Err())
	}
}

func TestRejectNilNormalized(t *testing.T) {
	p := New[string]()
	p.Reject(nil)
	_, err := p.Await(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("want ErrRejected, got %v", err)
	}
}

func TestManyWaiters(t *testing.T) {
	p := New[string]()
	const waiters = 16

	var wg sync.WaitGroup
	results := make([]string, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := p.Await(context.Background())
			if err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			results[i] = v
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	p.Resolve("done")
	wg.Wait()

	for i, v := range results {
		if v != "done" {
			t.Fatalf("waiter %d observed %q", i, v)
		}
	}
}

func TestLateWaiter(t *testing.T) {
	p := New[int]()
	p.Resolve(7)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := p.Await(ctx)
	if err != nil || v != 7 {
		t.Fatalf("late waiter: v=%d err=%v", v, err)
	}
	if !p.Settled() {
		t.Fatal("Settled must report true after Resolve")
	}
}

func TestAwaitContextCanceled(t *testing.T) {
	p := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if p.Settled() {
		t.Fatal("canceled Await must not settle the promise")
	}
}

func TestConcurrentSettle(t *testing.T) {
	p := New[int]()
	var wins int32
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok := false
			if i%2 == 0 {
				ok = p.Resolve(i)
			} else {
				ok = p.Reject(errors.New("x"))
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("exactly one settlement must win, got %d", wins)
	}
}
