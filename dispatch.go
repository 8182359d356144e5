package spanz

import "sync"

// The process-wide installed collector. Reads vastly outnumber writes,
// so the registry is guarded by an RWMutex; installation is rare and
// pays the cost of refreshing every callsite's cached interest.
var dispatch struct {
	mu        sync.RWMutex
	collector Collector
}

// Install makes c the process-wide collector and refreshes the cached
// interest of every registered callsite against it. Installing nil
// restores the inert NoopCollector.
func Install(c Collector) {
	if c == nil {
		c = NoopCollector{}
	}
	dispatch.mu.Lock()
	dispatch.collector = c
	dispatch.mu.Unlock()

	reregisterCallsites()
}

// Dispatch returns the currently installed collector. It never returns
// nil; with nothing installed the NoopCollector is returned.
func Dispatch() Collector {
	dispatch.mu.RLock()
	c := dispatch.collector
	dispatch.mu.RUnlock()
	if c == nil {
		return NoopCollector{}
	}
	return c
}

// Enabled asks the installed collector whether the callsite described
// by meta should be captured.
func Enabled(meta *Metadata) bool {
	return Dispatch().Enabled(meta)
}
