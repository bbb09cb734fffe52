package transport

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamewake/gamewake/internal/domain"
	"github.com/gamewake/gamewake/internal/vapid"
)

// testSubscription builds a subscription with a valid browser-side key
// pair so the payload encryption succeeds.
func testSubscription(t *testing.T, endpoint string) domain.Subscription {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatal(err)
	}

	return domain.Subscription{
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func testManager(t *testing.T) *vapid.Manager {
	t.Helper()
	priv, pub, err := vapid.GenerateKeys()
	if err != nil {
		t.Fatal(err)
	}
	return vapid.NewStaticManager(pub, priv, "mailto:test@example.com")
}

func TestSend_Success(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender := NewWebPush(testManager(t), 60)
	sub := testSubscription(t, server.URL)

	if err := sender.Send(context.Background(), sub, []byte(`{"title":"t"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth == "" {
		t.Error("push request must carry a VAPID authorization header")
	}
}

func TestSend_StatusErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
		gone bool
	}{
		{"gone endpoint", http.StatusGone, true},
		{"missing endpoint", http.StatusNotFound, true},
		{"push service overloaded", http.StatusTooManyRequests, false},
		{"push service error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			sender := NewWebPush(testManager(t), 60)
			err := sender.Send(context.Background(), testSubscription(t, server.URL), []byte("payload"))
			if err == nil {
				t.Fatal("expected an error")
			}

			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.code {
				t.Fatalf("error = %v, want status %d", err, tt.code)
			}
			if GoneStatus(err) != tt.gone {
				t.Errorf("GoneStatus = %v, want %v", GoneStatus(err), tt.gone)
			}
		})
	}
}

func TestSend_NoIdentityConfigured(t *testing.T) {
	sender := NewWebPush(vapid.NewStaticManager("", "", ""), 60)

	err := sender.Send(context.Background(), testSubscription(t, "https://push.example.com/x"), []byte("payload"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSend_ContextDeadline(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sender := NewWebPush(testManager(t), 60)
	err := sender.Send(ctx, testSubscription(t, server.URL), []byte("payload"))
	if err == nil {
		t.Fatal("expected a deadline error")
	}
	if GoneStatus(err) {
		t.Error("a timeout must not look like a dead endpoint")
	}
}

func TestGoneStatus_PlainError(t *testing.T) {
	if GoneStatus(errors.New("connection refused")) {
		t.Error("a transport error carries no status and must not read as gone")
	}
}
