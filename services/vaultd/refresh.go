package vaultd

import (
	"sync"
	"time"
)

// Coordinator is the shared refresh signal. A confirmed submission calls
// TriggerRefresh; after the settlement delay every subscriber is told to
// resync, so independent readers converge on post-confirmation state without
// wiring their own polling. Calls landing inside the delay window coalesce
// into a single generation bump, which keeps rapid consecutive confirmations
// from causing a refresh storm.
type Coordinator struct {
	delay   time.Duration
	metrics *Metrics

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
	subs  []chan uint64
}

// NewCoordinator constructs a coordinator with the given settlement delay.
func NewCoordinator(delay time.Duration, metrics *Metrics) *Coordinator {
	if delay <= 0 {
		delay = defaultSettleDelay
	}
	return &Coordinator{delay: delay, metrics: metrics}
}

// TriggerRefresh schedules a generation bump after the settlement delay.
// Repeated calls within the window are absorbed by the pending timer.
func (c *Coordinator) TriggerRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.delay, c.fire)
}

func (c *Coordinator) fire() {
	c.mu.Lock()
	c.timer = nil
	c.gen++
	gen := c.gen
	subs := make([]chan uint64, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	c.metrics.SetRefreshGeneration(gen)
	for _, sub := range subs {
		// Capacity-one channels: an unconsumed older signal is replaced so
		// slow subscribers observe only the newest generation.
		select {
		case sub <- gen:
		default:
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- gen:
			default:
			}
		}
	}
}

// Generation returns the current refresh generation. It only ever increases.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Subscribe registers a coalescing signal channel that receives each new
// generation value.
func (c *Coordinator) Subscribe() <-chan uint64 {
	ch := make(chan uint64, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}
