package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/exports", h.CreateExport)
		r.Get("/exports", h.ListExports)
		r.Route("/exports/{exportId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetExport(w, r, chi.URLParam(r, "exportId"))
			})
			r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
				h.GetHistory(w, r, chi.URLParam(r, "exportId"))
			})
			r.Get("/step", func(w http.ResponseWriter, r *http.Request) {
				h.GetStep(w, r, chi.URLParam(r, "exportId"))
			})
			r.Get("/requirements", func(w http.ResponseWriter, r *http.Request) {
				h.GetRequirements(w, r, chi.URLParam(r, "exportId"))
			})
			r.Get("/checklist", func(w http.ResponseWriter, r *http.Request) {
				h.GetChecklist(w, r, chi.URLParam(r, "exportId"))
			})
			r.Post("/actions", func(w http.ResponseWriter, r *http.Request) {
				h.PerformAction(w, r, chi.URLParam(r, "exportId"))
			})
		})

		r.Route("/users/{userId}/notifications", func(r chi.Router) {
			user := func(r *http.Request) string { return chi.URLParam(r, "userId") }
			r.Get("/", func(w http.ResponseWriter, r *http.Request) { h.ListNotifications(w, r, user(r)) })
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) { h.ClearNotifications(w, r, user(r)) })
			r.Get("/unread", func(w http.ResponseWriter, r *http.Request) { h.UnreadNotifications(w, r, user(r)) })
			r.Post("/read-all", func(w http.ResponseWriter, r *http.Request) { h.MarkAllNotificationsRead(w, r, user(r)) })
			r.Get("/stats", func(w http.ResponseWriter, r *http.Request) { h.NotificationStats(w, r, user(r)) })
			r.Get("/preferences", func(w http.ResponseWriter, r *http.Request) { h.GetPreferences(w, r, user(r)) })
			r.Put("/preferences", func(w http.ResponseWriter, r *http.Request) { h.UpdatePreferences(w, r, user(r)) })
			r.Post("/{notificationId}/read", func(w http.ResponseWriter, r *http.Request) {
				h.MarkNotificationRead(w, r, user(r), chi.URLParam(r, "notificationId"))
			})
			r.Delete("/{notificationId}", func(w http.ResponseWriter, r *http.Request) {
				h.DeleteNotification(w, r, user(r), chi.URLParam(r, "notificationId"))
			})
		})

		r.Get("/forwarding/dead-letters", h.ListDeadLetters)
		r.Post("/forwarding/dead-letters/{handoffId}/replay", func(w http.ResponseWriter, r *http.Request) {
			h.ReplayDeadLetter(w, r, chi.URLParam(r, "handoffId"))
		})

		r.Post("/intake", h.ReceiveHandoff)
		r.Get("/intake", h.ListIntake)
	})

	return r
}
