package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	evt, err := Decode([]byte(`{"name":"Alice","time":"08:00:00","date":"01-March-2026","badge":42}`))
	require.NoError(t, err)
	assert.Equal(t, "Alice", evt["name"])
	assert.Equal(t, "08:00:00", evt["time"])
	assert.Equal(t, "42", evt["badge"])
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`["array","payload"]`))
	assert.Error(t, err)
}

func TestStampReceived(t *testing.T) {
	now := time.Date(2026, 3, 7, 14, 30, 5, 0, time.UTC)

	evt := Event{"name": "Alice"}
	evt.StampReceived(now)
	assert.Equal(t, "2026-03-07 14:30:05", evt[ReceivedAtKey])

	// An existing timestamp is never overwritten.
	evt = Event{"name": "Alice", ReceivedAtKey: "2026-01-01 00:00:00"}
	evt.StampReceived(now)
	assert.Equal(t, "2026-01-01 00:00:00", evt[ReceivedAtKey])
}

func TestEventGet(t *testing.T) {
	evt := Event{"name": "Alice", "time": ""}
	assert.Equal(t, "Alice", evt.Get("name", "unknown"))
	assert.Equal(t, "n/a", evt.Get("time", "n/a"))
	assert.Equal(t, "n/a", evt.Get("date", "n/a"))
}
