package progress

import "sync/atomic"

// RequestCounter counts storage API requests across all workers.
// The counting client increments it on every call; each worker drains
// it after finishing a key and forwards the value to the reporter.
type RequestCounter struct {
	n atomic.Int64
}

// Add records delta additional requests.
func (c *RequestCounter) Add(delta int64) {
	c.n.Add(delta)
}

// Drain returns the current count and resets it to zero.
func (c *RequestCounter) Drain() int64 {
	return c.n.Swap(0)
}
