package syncx

import (
	"sync"
	"testing"
)

func TestGateSingleHolder(t *testing.T) {
	var g Gate

	if !g.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if g.TryAcquire() {
		t.Fatal("second acquire should fail while held")
	}
	if !g.Busy() {
		t.Error("Busy should report true while held")
	}

	g.Release()
	if g.Busy() {
		t.Error("Busy should report false after release")
	}
	if !g.TryAcquire() {
		t.Error("acquire should succeed after release")
	}
}

func TestGateConcurrent(t *testing.T) {
	var g Gate
	var wg sync.WaitGroup
	var wins int64
	winners := make(chan struct{}, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	for range winners {
		wins++
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
}
