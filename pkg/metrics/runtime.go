package metrics

import (
	"runtime"
	"time"
)

// CollectRuntime samples scheduler and memory statistics into gauges. Call
// it from a ticker; each call overwrites the previous sample.
func (r *Registry) CollectRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	r.Gauge("go_goroutines", "Number of live goroutines.").Set(int64(runtime.NumGoroutine()))
	r.Gauge("go_heap_alloc_bytes", "Bytes of allocated heap objects.").Set(int64(ms.HeapAlloc))
	r.Gauge("go_heap_objects", "Number of allocated heap objects.").Set(int64(ms.HeapObjects))
	r.Gauge("go_gc_cycles_total", "Completed GC cycles.").Set(int64(ms.NumGC))
}

// StartRuntimeCollector samples runtime stats every interval until the
// returned stop function is called.
func (r *Registry) StartRuntimeCollector(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		r.CollectRuntime()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				r.CollectRuntime()
			}
		}
	}()
	return func() { close(done) }
}
