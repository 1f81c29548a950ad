package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zignal/zignalapi/internal/pagination"
	"github.com/zignal/zignalapi/internal/repository"
)

func (h *handlers) listSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pagination.FromQuery(q)
	items, total, err := h.Repos.Signals.List(r.Context(), repository.SignalFilter{
		Pair:   strings.TrimSpace(q.Get("pair")),
		Action: strings.ToUpper(strings.TrimSpace(q.Get("action"))),
		Search: q.Get("search"),
	}, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, total, page)
}

func (h *handlers) listTrades(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	page := pagination.FromQuery(q)
	items, total, err := h.Repos.Trades.List(r.Context(), repository.TradeFilter{
		ProfileID: profileID,
		Pair:      strings.TrimSpace(q.Get("pair")),
		Side:      strings.ToUpper(strings.TrimSpace(q.Get("side"))),
		Search:    q.Get("search"),
	}, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, total, page)
}

func (h *handlers) listNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pagination.FromQuery(q)
	items, total, err := h.Repos.News.List(r.Context(), q.Get("search"), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, total, page)
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	page := pagination.FromQuery(q)
	items, total, err := h.Repos.Notifications.List(r.Context(), profileID, q.Get("unread") == "true", page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, total, page)
}

func (h *handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.Repos.Notifications.MarkRead(r.Context(), profileID, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, nil, "Notification marked as read")
}

func (h *handlers) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.Repos.Notifications.MarkAllRead(r.Context(), profileID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, map[string]any{"updated": updated}, "All notifications marked as read")
}
