package main

import (
	"runtime"
	"sync/atomic"
)

// runtimeStats is process memory and scheduler state, read on demand.
type runtimeStats struct {
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapPeakBytes  uint64 `json:"heap_peak_bytes"`
	HeapObjects    uint64 `json:"heap_objects"`
	SysBytes       uint64 `json:"sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
	Goroutines     int    `json:"goroutines"`
}

// heapPeak is the largest HeapAlloc seen by any read. The runtime keeps no
// peak of its own, so it only moves when metrics are scraped.
var heapPeak atomic.Uint64

func readRuntimeStats() runtimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	for {
		peak := heapPeak.Load()
		if ms.HeapAlloc <= peak || heapPeak.CompareAndSwap(peak, ms.HeapAlloc) {
			break
		}
	}
	return runtimeStats{
		HeapAllocBytes: ms.HeapAlloc,
		HeapPeakBytes:  heapPeak.Load(),
		HeapObjects:    ms.HeapObjects,
		SysBytes:       ms.Sys,
		NumGC:          ms.NumGC,
		Goroutines:     runtime.NumGoroutine(),
	}
}
