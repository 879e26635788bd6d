package queue

import (
	"time"

	"github.com/theredstring/redstring-sub011/pkg/metrics"
)

// Start begins the background lease-expiry sweep: every interval, each
// queue's inflight leases are checked and any past LeaseExpiresAt are
// returned to the head of their partition with Attempts incremented, or
// dead-lettered once Attempts reaches maxAttempts (spec.md §4.2 "Lease
// expiry").
func (m *Manager) Start(interval time.Duration) {
	m.wg.Add(1)
	go m.sweepLoop(interval)
}

// Stop halts the sweep goroutine and waits for it to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Manager) sweepLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	m.mu.RLock()
	names := make([]string, 0, len(m.queues))
	states := make([]*queueState, 0, len(m.queues))
	for name, q := range m.queues {
		names = append(names, name)
		states = append(states, q)
	}
	m.mu.RUnlock()

	now := time.Now()
	for i, q := range states {
		name := names[i]

		q.mu.Lock()
		var expired []*Item
		for _, item := range q.inflight {
			if item.LeaseExpiresAt.Before(now) {
				expired = append(expired, item)
			}
		}
		var deadLettered []Item
		for _, item := range expired {
			delete(q.inflight, item.LeaseID)
			item.Attempts++
			item.LeaseID = ""
			item.LeaseExpiresAt = time.Time{}

			if item.Attempts >= m.maxAttempts {
				item.Status = StatusDead
				deadLettered = append(deadLettered, *item)
				continue
			}
			item.Status = StatusQueued
			q.order = append([]string{item.ID}, q.order...)
		}
		if len(expired) > 0 {
			metrics.QueueDepth.WithLabelValues(name).Set(float64(depthLocked(q)))
			metrics.QueueInflight.WithLabelValues(name).Set(float64(len(q.inflight)))
			if len(deadLettered) > 0 {
				metrics.QueueTotal.WithLabelValues(name, "dead").Add(float64(len(deadLettered)))
			}
		}
		q.mu.Unlock()

		if m.onDead != nil {
			for _, item := range deadLettered {
				m.onDead(name, item)
			}
		}
	}
}
