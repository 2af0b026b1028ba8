package stream

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Metrics holds ingestion counters. All counters are atomic; the read loop
// and the periodic reporter touch them concurrently.
type Metrics struct {
	FramesReceived int64
	Notifications  int64
	EventsDecoded  int64
	Dispatches     int64
	Disconnects    int64
	startTime      time.Time
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordFrame records one inbound text frame.
func (m *Metrics) RecordFrame() {
	atomic.AddInt64(&m.FramesReceived, 1)
}

// RecordNotification records one transaction notification.
func (m *Metrics) RecordNotification() {
	atomic.AddInt64(&m.Notifications, 1)
}

// RecordEvent records one decoded creation event.
func (m *Metrics) RecordEvent() {
	atomic.AddInt64(&m.EventsDecoded, 1)
}

// RecordDispatch records one buy handed to the trade action.
func (m *Metrics) RecordDispatch() {
	atomic.AddInt64(&m.Dispatches, 1)
}

// RecordDisconnect records one connection loss.
func (m *Metrics) RecordDisconnect() {
	atomic.AddInt64(&m.Disconnects, 1)
}

// Uptime returns the time since the metrics were created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// LogMetrics logs current counters in a human-readable format.
func (m *Metrics) LogMetrics() {
	logrus.WithFields(logrus.Fields{
		"frames":        atomic.LoadInt64(&m.FramesReceived),
		"notifications": atomic.LoadInt64(&m.Notifications),
		"events":        atomic.LoadInt64(&m.EventsDecoded),
		"dispatches":    atomic.LoadInt64(&m.Dispatches),
		"disconnects":   atomic.LoadInt64(&m.Disconnects),
		"uptime":        m.Uptime().Truncate(time.Second),
	}).Info("📊 Ingestion metrics")
}

// Report logs the counters on a fixed interval until done closes.
func (m *Metrics) Report(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.LogMetrics()
		}
	}
}
