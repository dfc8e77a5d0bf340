// Package timing measures per-request phase durations on the server
// side: time spent reading/assembling the request, dispatching to the
// router/handler, and writing the response. The phase-timer shape (a
// Start/End pair per phase, a final GetMetrics snapshot) carries over
// from a client-side DNS/TCP/TLS/TTFB timer; the phases themselves are
// server phases instead.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures one request's phase durations.
type Metrics struct {
	ReadTime      time.Duration `json:"read_time"`
	DispatchTime  time.Duration `json:"dispatch_time"`
	WriteTime     time.Duration `json:"write_time"`
	TotalTime     time.Duration `json:"total_time"`
}

// Timer measures the phases of a single request's lifetime within
// pkg/conn.Connection.
type Timer struct {
	start        time.Time
	readStart    time.Time
	readEnd      time.Time
	dispatchStart time.Time
	dispatchEnd   time.Time
	writeStart   time.Time
	writeEnd     time.Time
}

// NewTimer starts a new per-request timing session.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) StartRead()     { t.readStart = time.Now() }
func (t *Timer) EndRead()       { t.readEnd = time.Now() }
func (t *Timer) StartDispatch() { t.dispatchStart = time.Now() }
func (t *Timer) EndDispatch()   { t.dispatchEnd = time.Now() }
func (t *Timer) StartWrite()    { t.writeStart = time.Now() }
func (t *Timer) EndWrite()      { t.writeEnd = time.Now() }

// GetMetrics returns the calculated phase durations.
func (t *Timer) GetMetrics() Metrics {
	m := Metrics{TotalTime: time.Since(t.start)}
	if !t.readStart.IsZero() && !t.readEnd.IsZero() {
		m.ReadTime = t.readEnd.Sub(t.readStart)
	}
	if !t.dispatchStart.IsZero() && !t.dispatchEnd.IsZero() {
		m.DispatchTime = t.dispatchEnd.Sub(t.dispatchStart)
	}
	if !t.writeStart.IsZero() && !t.writeEnd.IsZero() {
		m.WriteTime = t.writeEnd.Sub(t.writeStart)
	}
	return m
}

// String renders a one-line summary suitable for a debug log line.
func (m Metrics) String() string {
	return fmt.Sprintf("read=%v dispatch=%v write=%v total=%v", m.ReadTime, m.DispatchTime, m.WriteTime, m.TotalTime)
}
