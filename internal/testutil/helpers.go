package testutil

import (
	"sync"
	"testing"
)

// RunConcurrent executes fn n times in parallel and waits for all of them.
// Panics are reported as test failures rather than crashing the binary.
func RunConcurrent(t *testing.T, n int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("worker %d panicked: %v", i, r)
				}
			}()

			fn(i)
		}()
	}

	wg.Wait()
}
