package routing

import (
	"errors"
	"sync"
	"testing"
)

func TestMutationQueueDispatchSerializesAndReturnsError(t *testing.T) {
	q := newMutationQueue(4)
	q.Start()
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Dispatch(func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	if len(order) != 5 {
		t.Fatalf("expected 5 dispatched mutations, got %d", len(order))
	}
	mu.Unlock()

	wantErr := errors.New("boom")
	if err := q.Dispatch(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected dispatch to propagate the mutation's own error, got %v", err)
	}
}

func TestMutationQueueDispatchAfterCloseErrors(t *testing.T) {
	q := newMutationQueue(4)
	q.Start()
	q.Close()

	if err := q.Dispatch(func() error { return nil }); err == nil {
		t.Fatal("expected dispatching to a closed queue to error")
	}
}
