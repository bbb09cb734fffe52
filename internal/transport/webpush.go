// Package transport sends encrypted payloads to browser push services.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/gamewake/gamewake/internal/domain"
	"github.com/gamewake/gamewake/internal/vapid"
)

// ErrNotConfigured is returned when no VAPID identity is available. The
// dispatcher classifies it as a transient failure so a later send succeeds
// once keys are configured, without touching stored subscriptions.
var ErrNotConfigured = errors.New("push transport: no signing identity configured")

// StatusError reports a non-2xx response from the push service. The fanout
// classifier inspects the code to tell dead endpoints from transient
// trouble.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service responded %d", e.Code)
}

// Sender delivers one payload to one subscription endpoint.
type Sender interface {
	Send(ctx context.Context, sub domain.Subscription, payload []byte) error
}

// WebPush is the production Sender over the Web Push protocol, signing
// requests with the process VAPID identity.
type WebPush struct {
	keys *vapid.Manager
	ttl  int
}

// NewWebPush creates a transport that signs with identities from keys.
// ttlSeconds is how long the push service may hold an undelivered message.
func NewWebPush(keys *vapid.Manager, ttlSeconds int) *WebPush {
	return &WebPush{keys: keys, ttl: ttlSeconds}
}

// Send pushes payload to the subscription's endpoint. The context bounds
// the whole exchange; a deadline exceeded surfaces as an ordinary error and
// classifies transient.
func (t *WebPush) Send(ctx context.Context, sub domain.Subscription, payload []byte) error {
	id, ok := t.keys.Identity()
	if !ok {
		return ErrNotConfigured
	}

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		Subscriber:      id.Subscriber,
		VAPIDPublicKey:  id.PublicKey,
		VAPIDPrivateKey: id.PrivateKey,
		TTL:             t.ttl,
	})
	if err != nil {
		return fmt.Errorf("sending push: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// GoneStatus reports whether err carries a push-service status that means
// the endpoint no longer exists.
func GoneStatus(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusGone || se.Code == http.StatusNotFound
	}
	return false
}
