package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_FiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Output: &buf, MinLevel: WARN, NoColor: true})
	require.NoError(t, err)

	l.Info("CART", "hidden")
	l.Warn("cart", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  [CART      ] shown")
}

func TestLogger_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir, Service: "test", Output: &bytes.Buffer{}, NoColor: true})
	require.NoError(t, err)

	l.Error("STORE", "disk full")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()

	var found bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry LogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if entry.Category == "STORE" {
			found = true
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, "disk full", entry.Message)
		}
	}
	assert.True(t, found, "store entry should be in the JSON log")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestLogger_DomainHelpersTagCategories(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Output: &buf, NoColor: true})
	require.NoError(t, err)

	l.LogStore("OPEN", "sqlite", ":memory:")
	l.LogCart("SET", "ticketCart:abc", "event 1 ticket 10 -> 2")

	out := buf.String()
	assert.Contains(t, out, "[STORE     ] [OPEN] sqlite - :memory:")
	assert.Contains(t, out, "[CART      ] [SET] ticketCart:abc - event 1 ticket 10 -> 2")
}
