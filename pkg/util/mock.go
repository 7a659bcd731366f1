package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI satisfies api.WriteAPI without a server. Points are kept in
// memory so tests can inspect what would have been written.
type MockWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
}

// WriteRecord writes asynchronously line protocol record into bucket.
func (m *MockWriteAPI) WriteRecord(line string) {}

// WritePoint writes asynchronously Point into bucket.
func (m *MockWriteAPI) WritePoint(point *write.Point) {
	m.mu.Lock()
	m.points = append(m.points, point)
	m.mu.Unlock()
}

// Flush forces all pending writes from the buffer to be sent
func (m *MockWriteAPI) Flush() {}

// Flushes all pending writes and stop async processes. After this the Write client cannot be used
func (m *MockWriteAPI) Close() {}

// Errors returns a channel for reading errors which occurs during async writes.
func (m *MockWriteAPI) Errors() <-chan error { return nil }

// PointNames lists the measurement of every point written so far.
func (m *MockWriteAPI) PointNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.points))
	for _, p := range m.points {
		names = append(names, p.Name())
	}
	return names
}
