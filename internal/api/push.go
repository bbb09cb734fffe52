package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gamewake/gamewake/internal/domain"
	"github.com/gamewake/gamewake/internal/engine"
	"github.com/gamewake/gamewake/internal/vapid"
)

// SubscriptionStore is the slice of the store the push handlers need.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, userID string, sub domain.Subscription) (*domain.Subscription, error)
	RemoveSubscription(ctx context.Context, userID, endpoint string) error
}

// Dispatcher runs one proximity fanout.
type Dispatcher interface {
	Dispatch(ctx context.Context, req engine.Request) (domain.DispatchResult, error)
}

// SendGuard suppresses duplicate sends for the same event id. Release
// undoes a FirstSend claim whose dispatch never ran.
type SendGuard interface {
	FirstSend(ctx context.Context, eventID string) bool
	Release(ctx context.Context, eventID string)
}

// PushHandler serves subscription registration and proximity send requests.
type PushHandler struct {
	store         SubscriptionStore
	dispatcher    Dispatcher
	keys          *vapid.Manager
	guard         SendGuard
	defaultRadius float64
	logger        *slog.Logger
}

func NewPushHandler(store SubscriptionStore, dispatcher Dispatcher, keys *vapid.Manager, guard SendGuard, defaultRadius float64, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		store:         store,
		dispatcher:    dispatcher,
		keys:          keys,
		guard:         guard,
		defaultRadius: defaultRadius,
		logger:        logger,
	}
}

type subscribeRequest struct {
	Subscription *struct {
		Endpoint string                   `json:"endpoint"`
		Keys     *domain.SubscriptionKeys `json:"keys"`
	} `json:"subscription"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Subscribe upserts the caller's push subscription. Re-registering the same
// endpoint is idempotent.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Subscription == nil {
		respondError(w, http.StatusBadRequest, "subscription is required")
		return
	}
	if req.Subscription.Endpoint == "" {
		respondError(w, http.StatusBadRequest, "subscription endpoint is required")
		return
	}
	if req.Subscription.Keys == nil || req.Subscription.Keys.P256dh == "" || req.Subscription.Keys.Auth == "" {
		respondError(w, http.StatusBadRequest, "subscription keys are required")
		return
	}

	userID := UserID(r.Context())
	_, err := h.store.SaveSubscription(r.Context(), userID, domain.Subscription{
		UserID:    userID,
		Endpoint:  req.Subscription.Endpoint,
		P256dh:    req.Subscription.Keys.P256dh,
		Auth:      req.Subscription.Keys.Auth,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		h.logger.Error("failed to save subscription", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe removes the caller's subscription for one endpoint. Removing
// an endpoint that was never registered still succeeds.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Endpoint == "" {
		respondError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	userID := UserID(r.Context())
	if err := h.store.RemoveSubscription(r.Context(), userID, req.Endpoint); err != nil {
		h.logger.Error("failed to remove subscription", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// VAPIDPublicKey returns the public signing key clients register with. An
// unconfigured identity is a 500 here and only here; registration and
// removal never need the key.
func (h *PushHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keys.PublicKey()
	if !ok {
		respondError(w, http.StatusInternalServerError, "push notifications are not configured")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}

type sendRequest struct {
	EventID       string   `json:"eventId"`
	EventTitle    string   `json:"eventTitle"`
	EventLocation string   `json:"eventLocation"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	RadiusKm      *float64 `json:"radiusKm,omitempty"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
}

// Send fans the event notification out to every subscriber within radius
// of the event, excluding the sender.
func (h *PushHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	radius := h.defaultRadius
	if req.RadiusKm != nil {
		radius = *req.RadiusKm
	}

	userID := UserID(r.Context())

	if h.guard != nil && !h.guard.FirstSend(r.Context(), req.EventID) {
		respondJSON(w, http.StatusOK, sendResponse{
			Success: true,
			Message: "duplicate send suppressed",
		})
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), engine.Request{
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		RadiusKm:      radius,
		ExcludeUserID: userID,
		Payload:       buildPayload(req),
	})
	if err != nil {
		// Nothing was delivered, so give the event id back: the client's
		// retry must not be swallowed as a duplicate.
		if h.guard != nil {
			h.guard.Release(r.Context(), req.EventID)
		}
		if errors.Is(err, engine.ErrInvalidRequest) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("dispatch failed", "error", err, "event_id", req.EventID)
		respondError(w, http.StatusInternalServerError, "failed to send notifications")
		return
	}

	respondJSON(w, http.StatusOK, sendResponse{
		Success: true,
		Message: fmt.Sprintf("notified %d of %d nearby subscribers", result.Sent, result.Total),
		Sent:    result.Sent,
		Failed:  result.Failed,
		Total:   result.Total,
	})
}

// buildPayload shapes the wire payload the service worker renders. The body
// puts what and where first; the data block drives click routing and
// per-event notification deduplication.
func buildPayload(req sendRequest) domain.NotificationPayload {
	body := req.EventTitle
	if req.EventLocation != "" {
		body = fmt.Sprintf("%s - %s", req.EventTitle, req.EventLocation)
	}

	// No event id means no event page; send clicks to the root instead
	// of a dangling /events/ path.
	url := "/"
	if req.EventID != "" {
		url = "/events/" + req.EventID
	}

	return domain.NotificationPayload{
		Title: "Workout Now!",
		Body:  body,
		Data: domain.PayloadData{
			URL:     url,
			EventID: req.EventID,
		},
	}
}
