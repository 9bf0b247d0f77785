package tensor

import (
	"runtime"
	"sync"
)

// parallelMinWork is the multiply-add count below which MatMul stays on the
// calling goroutine.
const parallelMinWork = 1 << 18

// gemmWorkers computes the number of row ranges a product is split into.
func gemmWorkers(rows, work int) int {
	if work < parallelMinWork {
		return 1
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > rows {
		workers = rows
	}
	return max(workers, 1)
}

// gemmRows computes rows [rs, re) of dst = a @ b. dst rows must be zeroed.
func gemmRows(dst, a, b Mat, rs, re int) {
	for i := rs; i < re; i++ {
		out := dst.Row(i)
		for k, av := range a.Row(i) {
			if av == 0 {
				continue
			}
			for j, bv := range b.Row(k) {
				out[j] += av * bv
			}
		}
	}
}

// gemmPar splits the output rows into contiguous ranges, one goroutine per
// range.
func gemmPar(dst, a, b Mat, workers int) {
	if workers <= 1 {
		gemmRows(dst, a, b, 0, dst.R)
		return
	}
	chunk := (dst.R + workers - 1) / workers
	var wg sync.WaitGroup
	for rs := 0; rs < dst.R; rs += chunk {
		re := min(rs+chunk, dst.R)
		wg.Add(1)
		go func() {
			defer wg.Done()
			gemmRows(dst, a, b, rs, re)
		}()
	}
	wg.Wait()
}
