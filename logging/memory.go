package logging

import (
	"io"
	"sync"
)

// memoryLogs keeps the most recent log lines in a ring, it is used as a
// zapcore.WriteSyncer behind the /logs endpoint
type memoryLogs struct {
	mu    sync.Mutex
	lines [][]byte
	next  int
	count int
}

func newMemoryLogs(size int) *memoryLogs {
	return &memoryLogs{lines: make([][]byte, size)}
}

// Write stores a copy of p, zap reuses its buffers
func (m *memoryLogs) Write(p []byte) (int, error) {
	line := append([]byte(nil), p...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[m.next] = line
	m.next = (m.next + 1) % len(m.lines)
	if m.count < len(m.lines) {
		m.count++
	}
	return len(p), nil
}

func (m *memoryLogs) Sync() error {
	return nil
}

// Export writes the retained lines oldest first, or newest first if reverse
// is set
func (m *memoryLogs) Export(w io.Writer, reverse bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldest := (m.next - m.count + len(m.lines)) % len(m.lines)
	for i := 0; i < m.count; i++ {
		n := i
		if reverse {
			n = m.count - 1 - i
		}
		if _, err := w.Write(m.lines[(oldest+n)%len(m.lines)]); err != nil {
			return err
		}
	}
	return nil
}
