package domain

import (
	"encoding/json"
)

// NotificationPayload is the wire payload pushed to subscribed devices.
// It is built per send and never persisted.
type NotificationPayload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Data  PayloadData `json:"data"`
}

// PayloadData rides inside the payload and drives click routing and
// notification deduplication on the client.
type PayloadData struct {
	URL     string `json:"url"`
	EventID string `json:"eventId"`
}

// Encode marshals the payload for the push transport.
func (p NotificationPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}
