package ingest

import "sync/atomic"

// RunLock is a non-blocking lock that keeps ingestion runs from
// overlapping. A run that cannot acquire it is skipped, not queued.
type RunLock struct {
	state atomic.Int32 // 0 = idle, 1 = running
}

// TryAcquire takes the lock if no run is in progress
func (l *RunLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release ends the current run. Only the holder may call it.
func (l *RunLock) Release() {
	l.state.Store(0)
}
