package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLogsKeepMostRecentLines(t *testing.T) {
	lines := []string{"pin created", "album loading", "album populated"}
	data := []struct {
		name     string
		size     int
		reverse  bool
		expected []string
	}{
		{"fits", 10, false, lines},
		{"fits newest first", 10, true, []string{"album populated", "album loading", "pin created"}},
		{"wrapped", 2, false, []string{"album loading", "album populated"}},
		{"wrapped newest first", 2, true, []string{"album populated", "album loading"}},
		{"exact", 3, false, lines},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			m := newMemoryLogs(d.size)
			for _, l := range lines {
				_, err := m.Write([]byte(l))
				require.NoError(t, err)
			}
			var c collector
			require.NoError(t, m.Export(&c, d.reverse))
			assert.Equal(t, d.expected, []string(c))
		})
	}
}

func TestMemoryLogsCopyWrittenBytes(t *testing.T) {
	m := newMemoryLogs(4)
	buf := []byte("first")
	m.Write(buf)
	copy(buf, "XXXXX")

	var c collector
	require.NoError(t, m.Export(&c, false))
	assert.Equal(t, []string{"first"}, []string(c))
}

func TestEmptyMemoryLogsExportNothing(t *testing.T) {
	var c collector
	require.NoError(t, newMemoryLogs(3).Export(&c, true))
	assert.Empty(t, c)
}

type collector []string

func (c *collector) Write(data []byte) (int, error) {
	*c = append(*c, string(data))
	return len(data), nil
}
