// Package swclient models the background notification controller that runs
// in each subscriber's browser: the state machine that turns a delivered
// push payload into a displayed, clickable alert. The browser-provided
// registries (notification display, window clients) are injected as
// interfaces; web/static/sw.js is the JavaScript rendition shipped to real
// browsers.
package swclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gamewake/gamewake/internal/domain"
)

// State is the controller lifecycle phase.
type State int

const (
	// StateInstalling is the initial phase, before the install event has
	// been handled.
	StateInstalling State = iota
	// StateActivating follows a completed install: the controller is
	// eligible but has not yet claimed the open application contexts.
	StateActivating
	// StateActive is the steady state in which push and click events are
	// serviced.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateActivating:
		return "activating"
	default:
		return "active"
	}
}

const (
	// DefaultTitle is rendered when a push payload cannot be parsed.
	DefaultTitle = "Workout Now!"
	// DefaultBody is rendered when a parsed payload carries no body text.
	DefaultBody = "Something is happening nearby"
	// DefaultTag deduplicates notifications whose payload carries no
	// event id.
	DefaultTag = "gamewake-event"
	// FallbackRoute is opened when a clicked notification carries no URL.
	FallbackRoute = "/"
)

// vibrationPattern is the buzz-pause-buzz pattern attached to every
// rendered notification, in milliseconds.
var vibrationPattern = []int{100, 50, 100}

// NotificationOptions mirrors the options the browser's showNotification
// call accepts, reduced to the fields this controller sets.
type NotificationOptions struct {
	Body               string
	Vibrate            []int
	Data               domain.PayloadData
	Tag                string
	Renotify           bool
	RequireInteraction bool
}

// Host is the slice of the service-worker global scope the controller
// drives during installation.
type Host interface {
	// SkipWaiting promotes this controller immediately instead of waiting
	// for every existing context to close.
	SkipWaiting(ctx context.Context) error
	// ClaimClients takes control of all currently open application
	// contexts so no stale controller serves subsequent requests.
	ClaimClients(ctx context.Context) error
}

// NotificationRegistry displays notifications.
type NotificationRegistry interface {
	ShowNotification(ctx context.Context, title string, opts NotificationOptions) error
}

// WindowClient is one open application window.
type WindowClient interface {
	URL() string
	Focus(ctx context.Context) error
}

// WindowRegistry enumerates and opens application windows. MatchAll
// includes windows not currently controlled by this controller.
type WindowRegistry interface {
	MatchAll(ctx context.Context) ([]WindowClient, error)
	OpenWindow(ctx context.Context, url string) (WindowClient, error)
}

// Notification is a displayed notification, as seen from its click event.
type Notification interface {
	Close()
}

// ClickEvent describes a user click on a displayed notification.
type ClickEvent struct {
	ExtendableEvent
	// Action is the notification action button that was clicked, empty
	// for a click on the notification body.
	Action string
	// Data is the payload data attached when the notification was shown.
	Data domain.PayloadData
	// Notification is the clicked notification itself.
	Notification Notification
}

// PushEvent carries one delivered payload.
type PushEvent struct {
	ExtendableEvent
	// Data is the raw delivered payload, usually JSON.
	Data []byte
}

// InstallEvent and ActivateEvent are bare lifecycle completion tokens.
type InstallEvent struct{ ExtendableEvent }
type ActivateEvent struct{ ExtendableEvent }

// Controller is the client notification state machine. Lifecycle handlers
// may overlap (two pushes, a click during a push); the current state is the
// only shared mutable field and is guarded by a mutex.
type Controller struct {
	host          Host
	notifications NotificationRegistry
	windows       WindowRegistry
	origin        *url.URL
	logger        *slog.Logger

	mu    sync.Mutex
	state State
}

// NewController creates a controller in StateInstalling. origin is the
// application origin click URLs resolve against.
func NewController(host Host, notifications NotificationRegistry, windows WindowRegistry, origin *url.URL, logger *slog.Logger) *Controller {
	return &Controller{
		host:          host,
		notifications: notifications,
		windows:       windows,
		origin:        origin,
		logger:        logger,
		state:         StateInstalling,
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("controller is %s, expected %s", c.state, from)
	}
	c.state = to
	return nil
}

// HandleInstall performs immediate takeover so a freshly installed
// controller does not wait for existing contexts to close.
func (c *Controller) HandleInstall(ctx context.Context, evt *InstallEvent) error {
	if err := c.transition(StateInstalling, StateActivating); err != nil {
		return err
	}

	evt.WaitUntil(func() error {
		return c.host.SkipWaiting(ctx)
	})
	return nil
}

// HandleActivate claims every open application context, then moves to
// StateActive.
func (c *Controller) HandleActivate(ctx context.Context, evt *ActivateEvent) error {
	c.mu.Lock()
	if c.state != StateActivating {
		defer c.mu.Unlock()
		return fmt.Errorf("controller is %s, expected activating", c.state)
	}
	c.mu.Unlock()

	evt.WaitUntil(func() error {
		if err := c.host.ClaimClients(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		c.state = StateActive
		c.mu.Unlock()
		return nil
	})
	return nil
}

// HandlePush renders the delivered payload as a notification. A payload
// that fails to parse is never dropped: it falls back to a default title
// with the raw text as body. The display call extends the event.
func (c *Controller) HandlePush(ctx context.Context, evt *PushEvent) error {
	if s := c.State(); s != StateActive {
		return fmt.Errorf("push received while %s", s)
	}

	title, opts := c.buildNotification(evt.Data)

	evt.WaitUntil(func() error {
		if err := c.notifications.ShowNotification(ctx, title, opts); err != nil {
			c.logger.Error("failed to display notification", "error", err)
			return err
		}
		return nil
	})
	return nil
}

// buildNotification normalizes structured and raw payloads into one
// rendering path.
func (c *Controller) buildNotification(data []byte) (string, NotificationOptions) {
	var payload domain.NotificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn("push payload is not JSON, using fallback content", "error", err)
		payload = domain.NotificationPayload{
			Title: DefaultTitle,
			Body:  string(data),
		}
	}

	if payload.Title == "" {
		payload.Title = DefaultTitle
	}
	if payload.Body == "" {
		payload.Body = DefaultBody
	}

	tag := DefaultTag
	if payload.Data.EventID != "" {
		// Same event, same tag: a repeat delivery replaces the earlier
		// notification instead of stacking.
		tag = payload.Data.EventID
	}

	return payload.Title, NotificationOptions{
		Body:               payload.Body,
		Vibrate:            vibrationPattern,
		Data:               payload.Data,
		Tag:                tag,
		Renotify:           true,
		RequireInteraction: true,
	}
}

// HandleNotificationClick closes the clicked notification and routes the
// user to the event page: an already-open window showing the target URL is
// focused, otherwise a new window opens. The enumeration and routing extend
// the event. Routing errors are logged, not retried; the notification stays
// closed.
func (c *Controller) HandleNotificationClick(ctx context.Context, evt *ClickEvent) error {
	if s := c.State(); s != StateActive {
		return fmt.Errorf("notification click received while %s", s)
	}

	evt.Notification.Close()

	if evt.Action == "close" {
		return nil
	}

	target := evt.Data.URL
	if target == "" {
		target = FallbackRoute
	}

	ref, err := url.Parse(target)
	if err != nil {
		c.logger.Error("notification carried an unparseable URL", "error", err, "url", target)
		ref = &url.URL{Path: FallbackRoute}
	}
	resolved := c.origin.ResolveReference(ref).String()

	evt.WaitUntil(func() error {
		if err := c.routeClick(ctx, resolved); err != nil {
			c.logger.Error("failed to route notification click", "error", err, "url", resolved)
			return err
		}
		return nil
	})
	return nil
}

func (c *Controller) routeClick(ctx context.Context, target string) error {
	clients, err := c.windows.MatchAll(ctx)
	if err != nil {
		return fmt.Errorf("enumerating windows: %w", err)
	}

	for _, client := range clients {
		if client.URL() == target {
			return client.Focus(ctx)
		}
	}

	if _, err := c.windows.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("opening window: %w", err)
	}
	return nil
}
