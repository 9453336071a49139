package usecase

import (
	"context"
	"testing"
	"time"
)

func TestFinalSignalFireReleasesWaiter(t *testing.T) {
	t.Parallel()

	s := newFinalSignal()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Fire()
		s.Fire()
	}()

	if got := s.Wait(context.Background(), 5*time.Second, nil); got != waitFired {
		t.Fatalf("expected fired, got %v", got)
	}
	if !s.Fired() {
		t.Fatalf("expected signal to stay fired until reset")
	}

	s.Reset()
	if s.Fired() {
		t.Fatalf("expected reset to re-arm the signal")
	}
	if got := s.Wait(context.Background(), 10*time.Millisecond, nil); got != waitTimedOut {
		t.Fatalf("expected timeout after reset, got %v", got)
	}
}

func TestFinalSignalAbort(t *testing.T) {
	t.Parallel()

	s := newFinalSignal()
	abort := make(chan struct{})
	close(abort)
	if got := s.Wait(context.Background(), 5*time.Second, abort); got != waitAborted {
		t.Fatalf("expected aborted, got %v", got)
	}

	s.Fire()
	if got := s.Wait(context.Background(), 5*time.Second, abort); got != waitFired {
		t.Fatalf("a fired signal wins over abort, got %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := newFinalSignal().Wait(ctx, 5*time.Second, nil); got != waitAborted {
		t.Fatalf("expected aborted on cancelled context, got %v", got)
	}
}
