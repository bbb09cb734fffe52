package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gamewake/gamewake/internal/domain"
	"github.com/gamewake/gamewake/internal/feed"
	"github.com/gamewake/gamewake/internal/geo"
	"github.com/gamewake/gamewake/internal/metrics"
	"github.com/gamewake/gamewake/internal/transport"
)

// ErrInvalidRequest marks dispatch requests rejected before any candidate
// enumeration: bad coordinates or a non-positive radius. A caller error,
// never fatal to the process.
var ErrInvalidRequest = errors.New("invalid dispatch request")

// SubscriptionSource is the slice of the store the dispatcher needs:
// radius selection and cleanup of endpoints the push service declared dead.
type SubscriptionSource interface {
	SubscriptionsWithinRadius(ctx context.Context, lat, lon, radiusKm float64, excludeUserID string) ([]domain.Subscription, error)
	RemoveByEndpoint(ctx context.Context, endpoint string) error
	CountSubscriptions(ctx context.Context) (int, error)
}

// DeliveryLimiter gates individual delivery attempts. A denied attempt
// counts as a transient failure.
type DeliveryLimiter interface {
	Allow(ctx context.Context, endpoint string) bool
}

// Request describes one fanout: where the event is, how far to reach, whom
// to skip, and what to say.
type Request struct {
	Latitude      float64
	Longitude     float64
	RadiusKm      float64
	ExcludeUserID string
	Payload       domain.NotificationPayload
}

// Dispatcher fans one payload out to every subscription within radius,
// concurrently and with per-attempt timeouts, classifying each outcome.
type Dispatcher struct {
	subs     SubscriptionSource
	sender   transport.Sender
	classify Classifier
	limiter  DeliveryLimiter
	hub      *feed.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger

	workers int
	timeout time.Duration
}

// Option configures optional dispatcher collaborators.
type Option func(*Dispatcher)

// WithLimiter attaches a per-endpoint delivery rate limiter.
func WithLimiter(l DeliveryLimiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithFeed attaches a hub that receives per-delivery outcome events.
func WithFeed(h *feed.Hub) Option {
	return func(d *Dispatcher) { d.hub = h }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a dispatcher with a bounded delivery width and a
// per-attempt timeout.
func NewDispatcher(subs SubscriptionSource, sender transport.Sender, classify Classifier, workers int, timeout time.Duration, logger *slog.Logger, opts ...Option) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		subs:     subs,
		sender:   sender,
		classify: classify,
		logger:   logger,
		workers:  workers,
		timeout:  timeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch selects every subscription within the request radius, excluding
// the requesting user, and delivers the payload to each concurrently.
// Individual delivery failures never fail the call; only an invalid request
// or a store enumeration failure does. Sent + Failed always equals Total.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (domain.DispatchResult, error) {
	if err := geo.ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		return domain.DispatchResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := geo.ValidateRadius(req.RadiusKm); err != nil {
		return domain.DispatchResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	candidates, err := d.subs.SubscriptionsWithinRadius(ctx, req.Latitude, req.Longitude, req.RadiusKm, req.ExcludeUserID)
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("enumerating candidates: %w", err)
	}

	dispatchID := uuid.NewString()
	if d.metrics != nil {
		d.metrics.Dispatches.Inc()
	}

	payload, err := req.Payload.Encode()
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("encoding payload: %w", err)
	}

	var sent, failed atomic.Int64

	jobs := make(chan domain.Subscription)
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				if d.deliverOne(ctx, dispatchID, req.Payload.Data.EventID, sub, payload) {
					sent.Add(1)
				} else {
					failed.Add(1)
				}
			}
		}()
	}

	for _, sub := range candidates {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	result := domain.DispatchResult{
		Sent:   int(sent.Load()),
		Failed: int(failed.Load()),
		Total:  len(candidates),
	}

	d.logger.Info("fanout complete",
		"dispatch_id", dispatchID,
		"event_id", req.Payload.Data.EventID,
		"sent", result.Sent,
		"failed", result.Failed,
		"total", result.Total,
	)

	d.refreshSubscriptionGauge(ctx)

	return result, nil
}

// deliverOne attempts a single delivery and returns true on success. A
// permanent failure additionally removes the subscription so dead endpoints
// do not accumulate.
func (d *Dispatcher) deliverOne(ctx context.Context, dispatchID, eventID string, sub domain.Subscription, payload []byte) bool {
	start := time.Now()

	var err error
	if d.limiter != nil && !d.limiter.Allow(ctx, sub.Endpoint) {
		err = fmt.Errorf("delivery rate limited")
	} else {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err = d.sender.Send(attemptCtx, sub, payload)
		cancel()
	}

	outcome := d.classify(err)
	elapsed := time.Since(start)

	switch outcome {
	case OutcomeSuccess:
		d.logger.Debug("delivery sent",
			"dispatch_id", dispatchID,
			"endpoint", feed.TruncateEndpoint(sub.Endpoint),
			"response_time_ms", elapsed.Milliseconds(),
		)

	case OutcomePermanentFailure:
		// Self-healing: the push service says this endpoint is gone.
		// RemoveByEndpoint is idempotent, so concurrent attempts racing on
		// the same dead endpoint are harmless.
		if rmErr := d.subs.RemoveByEndpoint(ctx, sub.Endpoint); rmErr != nil {
			d.logger.Error("failed to remove dead subscription",
				"error", rmErr,
				"endpoint", feed.TruncateEndpoint(sub.Endpoint),
			)
		}
		d.logger.Warn("endpoint gone, subscription removed",
			"dispatch_id", dispatchID,
			"endpoint", feed.TruncateEndpoint(sub.Endpoint),
			"error", err,
		)

	default:
		d.logger.Warn("delivery failed",
			"dispatch_id", dispatchID,
			"endpoint", feed.TruncateEndpoint(sub.Endpoint),
			"error", err,
			"response_time_ms", elapsed.Milliseconds(),
		)
	}

	if d.metrics != nil {
		d.metrics.Deliveries.WithLabelValues(outcome.String()).Inc()
		d.metrics.DeliveryDuration.Observe(elapsed.Seconds())
	}
	if d.hub != nil {
		d.hub.Broadcast(feed.DeliveryEvent{
			DispatchID: dispatchID,
			EventID:    eventID,
			Endpoint:   feed.TruncateEndpoint(sub.Endpoint),
			Outcome:    outcome.String(),
			DurationMs: elapsed.Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}

	return outcome == OutcomeSuccess
}

func (d *Dispatcher) refreshSubscriptionGauge(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	n, err := d.subs.CountSubscriptions(ctx)
	if err != nil {
		d.logger.Debug("failed to refresh subscription gauge", "error", err)
		return
	}
	d.metrics.Subscriptions.Set(float64(n))
}
