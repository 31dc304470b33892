package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetOrFetchWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock))
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "v1", nil
	}

	v, hit, err := c.GetOrFetch(ctx, "k", time.Minute, fetch)
	if err != nil || v != "v1" || hit {
		t.Fatalf("first call = (%q, %v, %v), want (v1, false, nil)", v, hit, err)
	}

	for _, step := range []time.Duration{time.Second, 30 * time.Second, 28 * time.Second} {
		clock.Advance(step)
		v, hit, err = c.GetOrFetch(ctx, "k", time.Minute, fetch)
		if err != nil || v != "v1" || !hit {
			t.Fatalf("call after %v = (%q, %v, %v), want cached v1", step, v, hit, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
}

func TestGetOrFetchAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New[int](WithClock(clock))
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	if _, _, err := c.GetOrFetch(ctx, "k", time.Minute, fetch); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)

	if _, ok := c.Peek("k"); ok {
		t.Fatal("entry should be expired exactly at TTL")
	}
	v, hit, err := c.GetOrFetch(ctx, "k", time.Minute, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if hit || v != 2 {
		t.Errorf("got (%d, %v), want refetched value 2", v, hit)
	}
}

func TestSingleFlightOnExpiredKey(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock))
	c.Set("k", "stale", time.Second)
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "fresh", nil
	}

	const readers = 50
	var wg sync.WaitGroup
	var started sync.WaitGroup
	results := make([]string, readers)
	errs := make([]error, readers)
	started.Add(readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], _, errs[i] = c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch called %d times, want exactly 1", got)
	}
	for i := range results {
		if errs[i] != nil || results[i] != "fresh" {
			t.Errorf("reader %d got (%q, %v)", i, results[i], errs[i])
		}
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	c := New[string]()
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := c.GetOrFetch(ctx, "k", time.Minute, func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, ok := c.Peek("k"); ok {
		t.Fatal("failed fetch must not store an entry")
	}

	v, hit, err := c.GetOrFetch(ctx, "k", time.Minute, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || hit || v != "ok" {
		t.Errorf("retry = (%q, %v, %v), want fresh ok", v, hit, err)
	}
	if s := c.Stats(); s.Failures != 1 || s.Fetches != 2 {
		t.Errorf("stats = %+v, want 1 failure and 2 fetches", s)
	}
}

func TestFailureSharedByWaiters(t *testing.T) {
	c := New[string]()
	release := make(chan struct{})
	boom := errors.New("upstream down")
	fetch := func(context.Context) (string, error) {
		<-release
		return "", boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("waiter %d err = %v, want boom", i, err)
		}
	}
}

func TestWaiterCancellation(t *testing.T) {
	c := New[string]()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.GetOrFetch(ctx, "k", time.Minute, func(context.Context) (string, error) {
		<-release
		return "late", nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestSetOverwritesAndSweep(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock))

	c.Set("a", "1", time.Second)
	c.Set("b", "1", time.Hour)
	clock.Advance(2 * time.Second)

	// A write always replaces the prior entry, expired or not.
	c.Set("a", "2", time.Minute)
	if v, ok := c.Peek("a"); !ok || v != "2" {
		t.Fatalf("Peek(a) = (%q, %v), want 2", v, ok)
	}

	c.Set("c", "x", time.Second)
	clock.Advance(2 * time.Second)
	if n := c.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d entries, want 1", n)
	}
	s := c.Stats()
	if s.Entries != 2 || s.Live != 2 || s.Expired != 0 {
		t.Errorf("stats after sweep = %+v", s)
	}

	c.Delete("a")
	if _, ok := c.Peek("a"); ok {
		t.Error("deleted key still present")
	}
	c.Purge()
	if s := c.Stats(); s.Entries != 0 {
		t.Errorf("entries after purge = %d", s.Entries)
	}
}

func TestNilInterfaceValue(t *testing.T) {
	c := New[fmt.Stringer]()
	fetch := func(context.Context) (fmt.Stringer, error) { return nil, nil }

	v, hit, err := c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	if err != nil || hit || v != nil {
		t.Fatalf("GetOrFetch() = %v, %v, %v; want nil, false, nil", v, hit, err)
	}
	v, hit, err = c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	if err != nil || !hit || v != nil {
		t.Errorf("second GetOrFetch() = %v, %v, %v; want nil, true, nil", v, hit, err)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		ns    string
		parts []string
		want  string
	}{
		{"provider", []string{"hashicorp", "aws"}, "provider:hashicorp/aws"},
		{"versions", []string{"module", "a/b/c"}, "versions:module/a/b/c"},
		{"docs", nil, "docs:"},
	}
	for _, tt := range tests {
		if got := Key(tt.ns, tt.parts...); got != tt.want {
			t.Errorf("Key(%q, %v) = %q, want %q", tt.ns, tt.parts, got, tt.want)
		}
	}
}

func TestWaiterSurvivesLeaderCancellation(t *testing.T) {
	c := New[string]()
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
			return "ok", nil
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrFetch(leaderCtx, "k", time.Minute, fetch)
		leaderErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	followerDone := make(chan struct{})
	var got string
	var followerErr error
	go func() {
		defer close(followerDone)
		got, _, followerErr = c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader err = %v, want canceled", err)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-followerDone

	if followerErr != nil || got != "ok" {
		t.Fatalf("follower = (%q, %v), want ok", got, followerErr)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("fetch called %d times, want 2", n)
	}
}
