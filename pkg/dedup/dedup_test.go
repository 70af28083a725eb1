package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFilter_Allow(t *testing.T) {
	f := New(50 * time.Millisecond)

	if !f.Allow("Time to stretch!") {
		t.Fatal("first event should be allowed")
	}
	if f.Allow("Time to stretch!") {
		t.Error("repeat within the window should be suppressed")
	}
	if !f.Allow("Time to walk!") {
		t.Error("a different key should be allowed")
	}

	time.Sleep(80 * time.Millisecond)
	if !f.Allow("Time to stretch!") {
		t.Error("event after the window should be allowed again")
	}
}

func TestFilter_Forget(t *testing.T) {
	f := New(time.Hour)
	f.Allow("k")
	f.Forget("k")
	if !f.Allow("k") {
		t.Error("forgotten key should be allowed")
	}
	if f.Window() != time.Hour {
		t.Errorf("Window() = %v", f.Window())
	}
}

func TestFilter_ConcurrentSingleWinner(t *testing.T) {
	f := New(time.Hour)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Allow("same") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := allowed.Load(); n != 1 {
		t.Errorf("%d goroutines allowed, want exactly 1", n)
	}
}
