// Package clientmetrics keeps per-connection wire statistics for one HTTP/2
// session.
package clientmetrics

import (
	"net"
	"sync"
	"time"
)

// ConnMetrics tracks frames and bytes moved over a single connection.
type ConnMetrics struct {
	mu          sync.Mutex
	connectTime time.Time
	framesSent  int64
	framesRecv  int64
	bytesSent   int64
	bytesRecv   int64
	recvByType  map[string]int64
}

// New creates a new ConnMetrics instance.
func New() *ConnMetrics {
	return &ConnMetrics{recvByType: make(map[string]int64)}
}

// MarkConnected records the connection time.
func (m *ConnMetrics) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Now()
}

// FrameSent counts one outbound frame.
func (m *ConnMetrics) FrameSent() {
	m.mu.Lock()
	m.framesSent++
	m.mu.Unlock()
}

// FrameReceived counts one inbound frame of the given type (e.g. "SETTINGS").
func (m *ConnMetrics) FrameReceived(frameType string) {
	m.mu.Lock()
	m.framesRecv++
	m.recvByType[frameType]++
	m.mu.Unlock()
}

func (m *ConnMetrics) addBytesSent(n int) {
	m.mu.Lock()
	m.bytesSent += int64(n)
	m.mu.Unlock()
}

func (m *ConnMetrics) addBytesReceived(n int) {
	m.mu.Lock()
	m.bytesRecv += int64(n)
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of ConnMetrics.
type Snapshot struct {
	ConnectionDuration time.Duration
	FramesSent         int64
	FramesReceived     int64
	BytesSent          int64
	BytesReceived      int64
	ReceivedByType     map[string]int64
}

// Snapshot returns a consistent snapshot of all metrics.
func (m *ConnMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := time.Duration(0)
	if !m.connectTime.IsZero() {
		duration = time.Since(m.connectTime)
	}
	byType := make(map[string]int64, len(m.recvByType))
	for k, v := range m.recvByType {
		byType[k] = v
	}

	return Snapshot{
		ConnectionDuration: duration,
		FramesSent:         m.framesSent,
		FramesReceived:     m.framesRecv,
		BytesSent:          m.bytesSent,
		BytesReceived:      m.bytesRecv,
		ReceivedByType:     byType,
	}
}

// WrapConn returns a net.Conn that counts bytes read and written into m.
func WrapConn(conn net.Conn, m *ConnMetrics) net.Conn {
	return &countingConn{Conn: conn, metrics: m}
}

type countingConn struct {
	net.Conn
	metrics *ConnMetrics
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.metrics.addBytesReceived(n)
	}
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.metrics.addBytesSent(n)
	}
	return n, err
}
