// Package vapid holds the application's VAPID signing identity used to
// authenticate push-service requests.
package vapid

import (
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Identity is a VAPID key pair plus the contact address sent to the push
// service. Immutable once constructed.
type Identity struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

// Manager lazily constructs the process-wide signing identity on first use.
// An unconfigured identity (either key empty) is a valid degraded state:
// Identity and PublicKey report absence instead of failing.
type Manager struct {
	load func() (publicKey, privateKey, subscriber string)

	once sync.Once
	id   *Identity
}

// NewManager returns a manager that builds the identity from load on first
// access. Concurrent first calls observe a single construction.
func NewManager(load func() (publicKey, privateKey, subscriber string)) *Manager {
	return &Manager{load: load}
}

// NewStaticManager returns a manager over fixed key material.
func NewStaticManager(publicKey, privateKey, subscriber string) *Manager {
	return NewManager(func() (string, string, string) {
		return publicKey, privateKey, subscriber
	})
}

// Identity returns the signing identity, or ok=false when no identity is
// configured.
func (m *Manager) Identity() (*Identity, bool) {
	m.once.Do(func() {
		pub, priv, sub := m.load()
		if pub == "" || priv == "" {
			return
		}
		m.id = &Identity{PublicKey: pub, PrivateKey: priv, Subscriber: sub}
	})
	if m.id == nil {
		return nil, false
	}
	return m.id, true
}

// PublicKey returns the public half of the identity for client-side
// registration, or ok=false when absent.
func (m *Manager) PublicKey() (string, bool) {
	id, ok := m.Identity()
	if !ok {
		return "", false
	}
	return id.PublicKey, true
}

// GenerateKeys creates a fresh VAPID key pair. Used at startup in dev mode
// when no keys are configured.
func GenerateKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
