// Package utils holds small helpers shared by the other packages.
package utils

import (
	"runtime"
	"sync"
)

// MultiThread runs 'f' for every integer in [start, end), spread over one goroutine per
// available CPU. It returns once every call has finished.
//
// It is meant for read-only or index-disjoint work, such as reducing per-parameter statistics;
// 'f' must be safe to call concurrently for different indexes.
//
// 'opsPerThread' is the number of indexes each goroutine handles before requesting another set.
// If the range is smaller than that, 'f' is simply run sequentially.
func MultiThread(start, end int, f func(int), opsPerThread int) {
	if opsPerThread < 1 {
		opsPerThread = 1
	}

	if end-start <= opsPerThread {
		for i := start; i < end; i++ {
			f(i)
		}

		return
	}

	numThreads := runtime.GOMAXPROCS(0)
	index := start
	var indexMux sync.Mutex

	var wg sync.WaitGroup

	wg.Add(numThreads)
	for thread := 0; thread < numThreads; thread++ {
		go func() {
			defer wg.Done()

			for {
				indexMux.Lock()
				if index >= end {
					indexMux.Unlock()
					return
				}

				i := index
				index += opsPerThread
				indexMux.Unlock()

				e := i + opsPerThread
				if e > end {
					e = end
				}

				for ; i < e; i++ {
					f(i)
				}
			}
		}()
	}

	wg.Wait()
}
