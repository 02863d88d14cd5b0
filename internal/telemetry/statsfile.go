package telemetry

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// StatsFile appends one row per flush to a per-host stats file:
// "timestamp bytes_in bytes_out wire_in wire_out".
type StatsFile struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// OpenStatsFile opens (creating/appending) the stats file at path.
func OpenStatsFile(path string) (*StatsFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &StatsFile{w: f}, nil
}

// Flush writes one row for snap at timestamp now.
func (s *StatsFile) Flush(now time.Time, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.w, "%d %d %d %d %d\n",
		now.Unix(), snap.BytesIn, snap.BytesOut, snap.WireBytesIn, snap.WireBytesOut)
	return err
}

// Close closes the underlying file.
func (s *StatsFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}
