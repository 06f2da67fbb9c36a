package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReceivedAtKey is stamped onto events that arrive without a timestamp.
const ReceivedAtKey = "received_at"

// ReceivedAtLayout matches the wall-clock format published by check-in devices.
const ReceivedAtLayout = "2006-01-02 15:04:05"

// Event is one decoded check-in message. Payloads are free-form JSON
// objects; expected keys are name, time and date.
type Event map[string]string

// Decode parses a JSON payload into an Event. Non-string values are
// formatted rather than rejected so a device sending a numeric field does
// not lose the whole message.
func Decode(payload []byte) (Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	evt := make(Event, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			evt[k] = val
		default:
			evt[k] = fmt.Sprintf("%v", val)
		}
	}
	return evt, nil
}

// StampReceived sets the receipt timestamp when the payload lacks one.
func (e Event) StampReceived(now time.Time) {
	if _, ok := e[ReceivedAtKey]; !ok {
		e[ReceivedAtKey] = now.Format(ReceivedAtLayout)
	}
}

// Get returns the value for key or fallback when absent.
func (e Event) Get(key, fallback string) string {
	if v, ok := e[key]; ok && v != "" {
		return v
	}
	return fallback
}
