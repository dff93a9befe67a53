package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifyhub/pkg/dispatch"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
	"github.com/dmitrymomot/notifyhub/pkg/preference"
	"github.com/dmitrymomot/notifyhub/pkg/presence"
	"github.com/dmitrymomot/notifyhub/pkg/pushsub"
)

// api is the thin HTTP surface over the delivery engine. Producers create
// notifications with the shared API key; end users act on their own data
// with the same bearer token the live socket accepts.
type api struct {
	apiKey        string
	auth          presence.Authenticator
	orchestrator  *dispatch.Orchestrator
	notifications *notification.Service
	preferences   *preference.Service
	push          *pushsub.Manager
	vapidKey      string
	logger        *slog.Logger
}

type userIDKey struct{}

func (a *api) routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.With(a.requireAPIKey).Post("/notifications", a.createNotification)

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)
			r.Get("/notifications", a.listNotifications)
			r.Post("/notifications/read-all", a.markAllRead)
			r.Post("/notifications/{id}/read", a.markRead)
			r.Get("/preferences", a.getPreferences)
			r.Patch("/preferences", a.updatePreferences)
			r.Post("/push/subscriptions", a.registerPush)
			r.Delete("/push/subscriptions/{id}", a.unregisterPush)
		})

		r.Get("/push/vapid-public-key", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"public_key": a.vapidKey})
		})
	})
}

func (a *api) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if a.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody("invalid api key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *api) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.auth.Authenticate(r.Context(), presence.TokenFromRequest(r))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

func userFrom(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

type createNotificationRequest struct {
	Recipient string                 `json:"recipient"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]any         `json:"data"`
	Channels  []notification.Channel `json:"channels"`
}

type createNotificationResponse struct {
	Notification notification.Notification `json:"notification"`
	Channels     []dispatch.ChannelResult  `json:"channels"`
}

func (a *api) createNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	if req.Recipient == "" || req.Type == "" || req.Title == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("recipient, type and title are required"))
		return
	}

	n, results, err := a.orchestrator.Dispatch(r.Context(), dispatch.Request{
		Recipient: req.Recipient,
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		Channels:  req.Channels,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if results == nil {
		results = []dispatch.ChannelResult{}
	}
	writeJSON(w, http.StatusCreated, createNotificationResponse{Notification: n, Channels: results})
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	filter := notification.Filter{
		Category: notification.Category(q.Get("category")),
		Type:     q.Get("type"),
	}
	if s := q.Get("status"); s != "" {
		filter.Statuses = []notification.Status{notification.Status(s)}
	}

	res, err := a.notifications.List(r.Context(), userFrom(r), filter, notification.Page{Limit: limit, Offset: max(offset, 0)})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) markRead(w http.ResponseWriter, r *http.Request) {
	if err := a.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), userFrom(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.notifications.MarkAllRead(r.Context(), userFrom(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (a *api) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := a.preferences.Get(r.Context(), userFrom(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	p, err := a.preferences.Update(r.Context(), userFrom(r), raw)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type registerPushRequest struct {
	Endpoint   string       `json:"endpoint"`
	Keys       pushsub.Keys `json:"keys"`
	DeviceInfo string       `json:"device_info"`
}

func (a *api) registerPush(w http.ResponseWriter, r *http.Request) {
	var req registerPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	sub, err := a.push.Register(r.Context(), pushsub.RegisterParams{
		UserID:     userFrom(r),
		Endpoint:   req.Endpoint,
		Keys:       req.Keys,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (a *api) unregisterPush(w http.ResponseWriter, r *http.Request) {
	ok, err := a.push.Unregister(r.Context(), userFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody(pushsub.ErrSubscriptionNotFound.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notification.ErrNotFound),
		errors.Is(err, notification.ErrRecipientNotFound),
		errors.Is(err, pushsub.ErrSubscriptionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, notification.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, pushsub.ErrMissingEndpoint),
		errors.Is(err, pushsub.ErrInvalidEndpoint),
		errors.Is(err, pushsub.ErrMissingKeys):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		a.logger.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
