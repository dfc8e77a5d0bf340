// Package stats holds the process-wide, atomically-updated counters of
// spec.md §3 "Statistics". It is its own package so both pkg/conn and
// pkg/server can depend on it without an import cycle.
package stats

import (
	"sync/atomic"
	"time"
)

// Stats is safe for concurrent use; every field is updated via
// sync/atomic, matching spec.md §5 "Server statistics: atomic counters;
// no ordering requirement beyond eventual visibility."
type Stats struct {
	TotalRequests     atomic.Int64
	ActiveConnections atomic.Int64
	TotalConnections  atomic.Int64
	BytesSent         atomic.Int64
	BytesReceived     atomic.Int64
	ActiveWebSockets  atomic.Int64
	TotalWebSockets   atomic.Int64
	MessagesReceived  atomic.Int64
	StartTime         time.Time
}

// New returns a Stats with StartTime set to now.
func New() *Stats {
	return &Stats{StartTime: time.Now()}
}

// Snapshot is a point-in-time copy, convenient for a /stats handler.
type Snapshot struct {
	TotalRequests     int64
	ActiveConnections int64
	TotalConnections  int64
	BytesSent         int64
	BytesReceived     int64
	ActiveWebSockets  int64
	TotalWebSockets   int64
	MessagesReceived  int64
	UptimeSeconds     float64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:     s.TotalRequests.Load(),
		ActiveConnections: s.ActiveConnections.Load(),
		TotalConnections:  s.TotalConnections.Load(),
		BytesSent:         s.BytesSent.Load(),
		BytesReceived:     s.BytesReceived.Load(),
		ActiveWebSockets:  s.ActiveWebSockets.Load(),
		TotalWebSockets:   s.TotalWebSockets.Load(),
		MessagesReceived:  s.MessagesReceived.Load(),
		UptimeSeconds:     time.Since(s.StartTime).Seconds(),
	}
}
