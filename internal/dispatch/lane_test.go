package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestLaneLockReleaseDropsLane(t *testing.T) {
	l := newLaneLock()
	release, err := l.acquire(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if l.size() != 1 {
		t.Fatalf("size = %d, want 1", l.size())
	}
	release()
	if l.size() != 0 {
		t.Errorf("size after release = %d, want 0", l.size())
	}
}

func TestLaneLockWaitHonorsContext(t *testing.T) {
	l := newLaneLock()
	release, err := l.acquire(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.acquire(ctx, "a"); err == nil {
		t.Fatal("expected timeout while lane is held")
	}

	other, err := l.acquire(context.Background(), "b")
	if err != nil {
		t.Fatalf("different key blocked: %v", err)
	}
	other()
	release()

	if l.size() != 0 {
		t.Errorf("size = %d, want 0", l.size())
	}
}

func TestLaneLockHandsOver(t *testing.T) {
	l := newLaneLock()
	release, _ := l.acquire(context.Background(), "a")

	got := make(chan struct{})
	go func() {
		r, err := l.acquire(context.Background(), "a")
		if err == nil {
			r()
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("second acquire should wait")
	case <-time.After(10 * time.Millisecond):
	}
	release()
	<-got
}
