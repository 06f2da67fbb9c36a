package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendboard/internal/feed"
)

func newTestClient(t *testing.T, queueSize int) (*Client, *feed.Memory) {
	t.Helper()
	q := feed.NewMemory(queueSize)
	c := New(Config{
		Host:     "localhost",
		Port:     1883,
		Topic:    "attendance/student",
		ClientID: "test-client",
	}, q)
	c.now = func() time.Time { return time.Date(2026, 3, 7, 14, 30, 5, 0, time.UTC) }
	return c, q
}

func drain(t *testing.T, q *feed.Memory) []feed.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := q.Consume(ctx)
	require.NoError(t, err)

	var out []feed.Event
	for {
		select {
		case evt := <-events:
			out = append(out, evt)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

func TestIngestDecodesAndStamps(t *testing.T) {
	c, q := newTestClient(t, 8)

	c.Ingest([]byte(`{"name":"Alice","time":"08:00:00","date":"07-March-2026"}`))

	events := drain(t, q)
	require.Len(t, events, 1)
	assert.Equal(t, "Alice", events[0]["name"])
	assert.Equal(t, "2026-03-07 14:30:05", events[0][feed.ReceivedAtKey])
}

func TestIngestDropsMalformedAndContinues(t *testing.T) {
	c, q := newTestClient(t, 8)

	c.Ingest([]byte("garbage"))
	c.Ingest([]byte(`{"name":"Bob","time":"08:01:00","date":"07-March-2026"}`))

	events := drain(t, q)
	require.Len(t, events, 1)
	assert.Equal(t, "Bob", events[0]["name"])
}

func TestIngestKeepsDeviceTimestamp(t *testing.T) {
	c, q := newTestClient(t, 8)

	c.Ingest([]byte(`{"name":"Alice","received_at":"2026-01-01 00:00:00"}`))

	events := drain(t, q)
	require.Len(t, events, 1)
	assert.Equal(t, "2026-01-01 00:00:00", events[0][feed.ReceivedAtKey])
}

func TestStateTransitions(t *testing.T) {
	c, _ := newTestClient(t, 8)

	assert.Equal(t, Disconnected, c.State())

	c.setConnected()
	assert.Equal(t, Connected, c.State())
	assert.Empty(t, c.LastError())

	c.setDisconnected("connection lost")
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, "connection lost", c.LastError())
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}
