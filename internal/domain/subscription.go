package domain

import (
	"time"
)

// Subscription is one registered browser push endpoint. The endpoint URL is
// the natural key: re-registering the same endpoint overwrites keys, owner
// and location instead of creating a second row.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLocation reports whether the subscription can be matched by a radius
// query. Rows without coordinates are never selected for delivery.
func (s Subscription) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// SubscriptionKeys carries the client-generated encryption keys delivered
// alongside the endpoint on registration.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}
