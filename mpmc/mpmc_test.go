package mpmc

import (
	"sort"
	"sync"
	"testing"
)

func TestPushPopOrderSingleThreaded(t *testing.T) {
	q := New[int](8)
	for i := 0; i < 8; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed unexpectedly", i)
		}
	}
	if q.Push(99) {
		t.Fatal("push into full ring must fail")
	}
	for i := 0; i < 8; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got (%d, %v)", i, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("pop from empty ring must fail")
	}
}

func TestNewPanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two capacity")
		}
	}()
	New[int](17)
}

// TestConcurrentProducersAndConsumers drives many goroutines on both ends
// simultaneously and checks that every pushed value is popped exactly once.
func TestConcurrentProducersAndConsumers(t *testing.T) {
	q := New[int](64)
	const producers = 8
	const perProducer = 2000
	const consumers = 4
	total := producers * perProducer

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Push(base*perProducer + i) {
					// ring momentarily full; retry
				}
			}
		}(p)
	}

	results := make(chan int, total)
	var cwg sync.WaitGroup
	cwg.Add(consumers)
	done := make(chan struct{})
	for c := 0; c < consumers; c++ {
		go func() {
			defer cwg.Done()
			for {
				if v, ok := q.Pop(); ok {
					results <- v
					continue
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()

	got := make([]int, 0, total)
	for len(got) < total {
		got = append(got, <-results)
	}
	close(done)
	cwg.Wait()

	sort.Ints(got)
	for i, v := range got {
		if v != i {
			t.Fatalf("missing or duplicate value at position %d: %d", i, v)
		}
	}
}
