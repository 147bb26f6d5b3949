package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeMatcher struct {
	calls      int
	staleCalls int
	n          int
	err        error
}

func (f *fakeMatcher) SweepExpired(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

func (f *fakeMatcher) SweepStaleMatching(context.Context) (int, error) {
	f.staleCalls++
	return f.n, f.err
}

type fakeAuctioneer struct {
	calls int
	n     int
	err   error
}

func (f *fakeAuctioneer) CloseDue(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

func TestSweep_RunsBothPasses(t *testing.T) {
	t.Parallel()

	m := &fakeMatcher{n: 2}
	a := &fakeAuctioneer{n: 1}
	s := New(m, a, time.Minute, nil)

	s.Sweep(context.Background())

	if m.calls != 1 || m.staleCalls != 1 || a.calls != 1 {
		t.Fatalf("calls: expired=%d stale=%d auction=%d, want 1/1/1", m.calls, m.staleCalls, a.calls)
	}
}

func TestSweep_MatcherErrorDoesNotSkipAuction(t *testing.T) {
	t.Parallel()

	m := &fakeMatcher{err: errors.New("db down")}
	a := &fakeAuctioneer{}
	s := New(m, a, time.Minute, nil)

	s.Sweep(context.Background())

	if a.calls != 1 {
		t.Fatalf("auctioneer calls = %d, want 1", a.calls)
	}
}

func TestSweep_NilDependenciesTolerated(t *testing.T) {
	t.Parallel()

	s := New(nil, nil, time.Minute, nil)
	s.Sweep(context.Background())
}

func TestNew_DefaultsInterval(t *testing.T) {
	t.Parallel()

	s := New(nil, nil, 0, nil)
	if s.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", s.interval)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := New(&fakeMatcher{}, &fakeAuctioneer{}, 5*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
