// pkg/audit/audit_test.go
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEvictsOldestFirst(t *testing.T) {
	s := NewStore(3)
	for i := 1; i <= 5; i++ {
		s.Append(Event{Message: fmt.Sprintf("E%d", i)})
	}
	got := s.List(10)
	require.Len(t, got, 3)
	assert.Equal(t, "E5", got[0].Message)
	assert.Equal(t, "E4", got[1].Message)
	assert.Equal(t, "E3", got[2].Message)
}

func TestStoreListRespectsLimit(t *testing.T) {
	s := NewStore(10)
	for i := 1; i <= 5; i++ {
		s.Append(Event{Message: fmt.Sprintf("E%d", i)})
	}
	got := s.List(2)
	require.Len(t, got, 2)
	assert.Equal(t, "E5", got[0].Message)
	assert.Equal(t, "E4", got[1].Message)
}

func TestStoreSnapshotUnaffectedByLaterAppends(t *testing.T) {
	s := NewStore(10)
	s.Append(Event{Message: "E1"})
	snap := s.List(10)
	s.Append(Event{Message: "E2"})
	require.Len(t, snap, 1)
	assert.Equal(t, "E1", snap[0].Message)
}

func TestStoreConcurrentAppendAndList(t *testing.T) {
	s := NewStore(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append(Event{Message: fmt.Sprintf("g%d-%d", g, i)})
				_ = s.List(10)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestLoggerShapesEvent(t *testing.T) {
	store := NewStore(10)
	l := New(store, &bytes.Buffer{})

	l.Info("graph_request_succeeded", Fields{
		"tenant_id":      "contoso",
		"correlation_id": "corr-1",
		"status":         200,
	})

	events := store.List(1)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "graph_request_succeeded", e.Message)
	assert.Equal(t, "contoso", e.TenantID)
	assert.Equal(t, "corr-1", e.CorrelationID)
	assert.Equal(t, 200, e.Extra["status"])
	assert.NotContains(t, e.Extra, "tenant_id")
	assert.NotEmpty(t, e.Timestamp)
}

func TestLoggerEmitsJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(NewStore(10), &buf)

	l.Warn("graph_throttled", Fields{
		"tenant_id":   "contoso",
		"retry_after": 2.0,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "graph_throttled", line["message"])
	assert.Equal(t, "contoso", line["tenant_id"])
	assert.Equal(t, 2.0, line["retry_after"])
	assert.NotEmpty(t, line["timestamp"])
}

func TestLoggerLevels(t *testing.T) {
	store := NewStore(10)
	l := New(store, &bytes.Buffer{})
	l.Info("a", nil)
	l.Warn("b", nil)
	l.Error("c", nil)

	events := store.List(3)
	require.Len(t, events, 3)
	assert.Equal(t, "ERROR", events[0].Level)
	assert.Equal(t, "WARN", events[1].Level)
	assert.Equal(t, "INFO", events[2].Level)
}
