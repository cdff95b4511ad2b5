package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"serotonyl.ru/rewards-engine/internal/api/middleware"
)

// NewRouter собирает маршруты /api/v1 и /healthz.
// limiter ограничивает выполнения заданий и попытки входа.
func NewRouter(h *Handler, limiter *middleware.RateLimiter) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recovery, middleware.RequestID, middleware.Logger)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	user := v1.NewRoute().Subrouter()
	user.Use(middleware.RequireUser)
	user.Handle("/activities/complete", limiter.Middleware(http.HandlerFunc(h.Complete))).Methods(http.MethodPost)
	user.HandleFunc("/rewards/preview", h.Preview).Methods(http.MethodPost)
	user.HandleFunc("/leaderboards/user-ranking", h.UserRanking).Methods(http.MethodGet)

	v1.HandleFunc("/leaderboards/stats", h.Stats).Methods(http.MethodGet)
	v1.HandleFunc("/leaderboards/{window}", h.Leaderboard).Methods(http.MethodGet)

	v1.Handle("/admin/login", limiter.Middleware(http.HandlerFunc(h.Login))).Methods(http.MethodPost)

	adm := v1.PathPrefix("/admin").Subrouter()
	adm.Use(middleware.AdminAuth(h.admins))
	adm.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	adm.HandleFunc("/leaderboards/refresh", h.Refresh).Methods(http.MethodPost)
	adm.HandleFunc("/leaderboards/reset-weekly", h.ResetWeekly).Methods(http.MethodPost)
	adm.HandleFunc("/leaderboards/reset-monthly", h.ResetMonthly).Methods(http.MethodPost)
	adm.HandleFunc("/leaderboards/cleanup", h.Cleanup).Methods(http.MethodPost)
	adm.HandleFunc("/jobs/start", h.StartJobs).Methods(http.MethodPost)
	adm.HandleFunc("/jobs/stop", h.StopJobs).Methods(http.MethodPost)
	adm.HandleFunc("/jobs/status", h.JobsStatus).Methods(http.MethodGet)
	adm.HandleFunc("/settings/reload", h.ReloadSettings).Methods(http.MethodPost)

	return r
}
