package queue

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_BasicPushDrain(t *testing.T) {
	q := New[int](10, 0)

	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	items := q.Drain(0)
	if len(items) != 5 {
		t.Fatalf("Drain(0) returned %d items, want 5", len(items))
	}
	for i, val := range items {
		if val != i {
			t.Errorf("items[%d] = %d, want %d", i, val, i)
		}
	}

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if q.Drain(0) != nil {
		t.Error("Drain on empty queue should return nil")
	}
}

func TestQueue_GrowAt70Percent(t *testing.T) {
	q := New[int](10, 0)

	// Push 7 items (70% of 10)
	for i := 0; i < 7; i++ {
		q.Push(i)
	}

	stats := q.Stats()
	if stats.Capacity <= 10 {
		t.Errorf("Capacity = %d, expected growth after 70%% fill", stats.Capacity)
	}
	if stats.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", stats.Resizes)
	}

	items := q.Drain(0)
	for i := 0; i < 7; i++ {
		if items[i] != i {
			t.Errorf("items[%d] = %d, want %d", i, items[i], i)
		}
	}
}

func TestQueue_GrowWhileWrapped(t *testing.T) {
	q := New[int](4, 0)

	// Advance head so the ring wraps on the next pushes.
	q.Push(0)
	q.Push(1)
	q.Drain(2)

	for i := 2; i < 100; i++ {
		q.Push(i)
	}

	items := q.Drain(0)
	if len(items) != 98 {
		t.Fatalf("Drain returned %d items, want 98", len(items))
	}
	for i, val := range items {
		if val != i+2 {
			t.Fatalf("items[%d] = %d, want %d", i, val, i+2)
		}
	}
	if q.Stats().Resizes < 3 {
		t.Errorf("Resizes = %d, expected at least 3", q.Stats().Resizes)
	}
}

func TestQueue_LimitDropsOldest(t *testing.T) {
	q := New[int](2, 8)

	for i := 0; i < 20; i++ {
		q.Push(i)
	}

	stats := q.Stats()
	if stats.Capacity != 8 {
		t.Errorf("Capacity = %d, want limit 8", stats.Capacity)
	}
	if stats.Count != 8 {
		t.Errorf("Count = %d, want 8", stats.Count)
	}
	if stats.Dropped != 12 {
		t.Errorf("Dropped = %d, want 12", stats.Dropped)
	}

	items := q.Drain(0)
	for i, val := range items {
		if val != i+12 {
			t.Errorf("items[%d] = %d, want %d", i, val, i+12)
		}
	}
}

func TestQueue_InitialCapacityCappedByLimit(t *testing.T) {
	q := New[int](100, 4)
	if q.Cap() != 4 {
		t.Errorf("Cap() = %d, want 4", q.Cap())
	}
}

func TestQueue_DrainMax(t *testing.T) {
	q := New[int](10, 0)
	for i := 0; i < 10; i++ {
		q.Push(i)
	}

	items := q.Drain(5)
	if len(items) != 5 {
		t.Errorf("Drain(5) returned %d items, want 5", len(items))
	}
	for i, val := range items {
		if val != i {
			t.Errorf("items[%d] = %d, want %d", i, val, i)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Len() after drain = %d, want 5", q.Len())
	}

	stats := q.Stats()
	if stats.Pushed != 10 || stats.Popped != 5 {
		t.Errorf("Pushed/Popped = %d/%d, want 10/5", stats.Pushed, stats.Popped)
	}
}

func TestQueue_Close(t *testing.T) {
	q := New[int](10, 0)
	q.Push(1)
	q.Push(2)
	q.Close()

	if q.Push(3) {
		t.Error("Push should return false after Close")
	}

	items := q.Drain(0)
	if len(items) != 2 || items[0] != 1 || items[1] != 2 {
		t.Errorf("Drain after Close = %v, want [1 2]", items)
	}
}

func TestQueue_ReadySignal(t *testing.T) {
	q := New[int](10, 0)

	select {
	case <-q.Ready():
		t.Fatal("Ready signalled before any push")
	default:
	}

	q.Push(1)
	q.Push(2)

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready not signalled after push")
	}

	// Two pushes coalesce into one signal.
	select {
	case <-q.Ready():
		t.Error("Ready signalled twice")
	default:
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int](4, 0)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	if q.Len() != 2000 {
		t.Errorf("Len() = %d, want 2000", q.Len())
	}
}
