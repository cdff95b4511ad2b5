// Package api — HTTP-поверхность движка наград: выполнение заданий,
// рейтинги и админские операции над кэшем и планировщиком.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/api/middleware"
	"serotonyl.ru/rewards-engine/internal/api/response"
	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/features/activity"
	"serotonyl.ru/rewards-engine/internal/features/admin"
	"serotonyl.ru/rewards-engine/internal/features/leaderboard"
	"serotonyl.ru/rewards-engine/internal/jobs"
)

const maxBodyBytes = 1 << 20

// Activities — конвейер выполнения заданий.
type Activities interface {
	Complete(ctx context.Context, req activity.CompleteRequest) (*activity.RewardResponse, error)
	Preview(ctx context.Context, req activity.CompleteRequest) (*activity.RewardResponse, error)
}

// Rankings — запросы рейтинга.
type Rankings interface {
	Rankings(ctx context.Context, q leaderboard.Query) (*leaderboard.Ranking, error)
	UserRanking(ctx context.Context, userID int64) (*leaderboard.UserRanking, error)
	Stats(ctx context.Context) (*leaderboard.Stats, error)
}

// Jobs — управление планировщиком и ручное обслуживание кэша.
type Jobs interface {
	Start(ctx context.Context) error
	Stop() error
	Status(ctx context.Context) jobs.Status
	ForceRefresh(ctx context.Context, w leaderboard.Window) (int64, error)
	ResetWeekly(ctx context.Context) error
	ResetMonthly(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// Admins — вход в админку.
type Admins interface {
	middleware.Authenticator
	Login(ctx context.Context, userID int64, password string) (*admin.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// SettingsReloader перечитывает system_settings.
type SettingsReloader interface {
	Reload(ctx context.Context) error
}

// Handler объединяет обработчики всех маршрутов.
type Handler struct {
	activities Activities
	rankings   Rankings
	jobs       Jobs
	admins     Admins
	settings   SettingsReloader
}

// NewHandler создаёт обработчики.
func NewHandler(activities Activities, rankings Rankings, jobs Jobs, admins Admins, settings SettingsReloader) *Handler {
	return &Handler{
		activities: activities,
		rankings:   rankings,
		jobs:       jobs,
		admins:     admins,
		settings:   settings,
	}
}

// --- Выполнение заданий ---

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCompletion(w, r)
	if !ok {
		return
	}
	resp, err := h.activities.Complete(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, resp)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCompletion(w, r)
	if !ok {
		return
	}
	resp, err := h.activities.Preview(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, resp)
}

func decodeCompletion(w http.ResponseWriter, r *http.Request) (activity.CompleteRequest, bool) {
	var req activity.CompleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "некорректное тело запроса")
		return req, false
	}
	req.UserID, _ = middleware.UserIDFrom(r.Context())
	req.RemoteAddr = r.RemoteAddr
	return req, true
}

// --- Рейтинги ---

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	window, err := leaderboard.ParseWindow(mux.Vars(r)["window"])
	if err != nil {
		response.FromError(w, err)
		return
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		response.FromError(w, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		response.FromError(w, err)
		return
	}

	ranking, err := h.rankings.Rankings(r.Context(), leaderboard.Query{
		Window:           window,
		Limit:            limit,
		Offset:           offset,
		RequestingUserID: optionalUserID(r),
	})
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, ranking)
}

func (h *Handler) UserRanking(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())
	ranking, err := h.rankings.UserRanking(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, ranking)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rankings.Stats(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, stats)
}

// intParam читает необязательный целый параметр запроса (0, если его нет).
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", name, raw, common.ErrInvalidPagination)
	}
	return n, nil
}

// optionalUserID — пользователь для пометки «это вы» в публичном рейтинге.
func optionalUserID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.Header.Get(middleware.HeaderUserID), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// --- Админка ---

type loginRequest struct {
	UserID   int64  `json:"user_id"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.UserID <= 0 {
		response.Error(w, http.StatusBadRequest, "нужны user_id и password")
		return
	}
	res, err := h.admins.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, res)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		response.FromError(w, common.ErrSessionExpired)
		return
	}
	if err := h.admins.Logout(r.Context(), session.SessionToken); err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, "сессия закрыта", nil)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	window := leaderboard.Window(r.URL.Query().Get("window"))
	n, err := h.jobs.ForceRefresh(r.Context(), window)
	if err != nil {
		response.FromError(w, err)
		return
	}
	h.audit(r, "refresh")
	response.Message(w, "кэш рейтинга пересобран", map[string]int64{"entries": n})
}

func (h *Handler) ResetWeekly(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.ResetWeekly(r.Context()); err != nil {
		response.FromError(w, err)
		return
	}
	h.audit(r, "reset_weekly")
	response.Message(w, "недельный рейтинг закрыт", nil)
}

func (h *Handler) ResetMonthly(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.ResetMonthly(r.Context()); err != nil {
		response.FromError(w, err)
		return
	}
	h.audit(r, "reset_monthly")
	response.Message(w, "месячный рейтинг закрыт", nil)
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Cleanup(r.Context()); err != nil {
		response.FromError(w, err)
		return
	}
	h.audit(r, "cleanup")
	response.Message(w, "старые недели удалены", nil)
}

func (h *Handler) StartJobs(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Start(r.Context()); err != nil {
		response.FromError(w, err)
		return
	}
	h.audit(r, "jobs_start")
	response.Message(w, "планировщик запущен", h.jobs.Status(r.Context()))
}

func (h *Handler) StopJobs(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Stop(); err != nil {
		response.FromError(w, err)
		return
	}
	h.audit(r, "jobs_stop")
	response.Message(w, "планировщик остановлен", nil)
}

func (h *Handler) JobsStatus(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.jobs.Status(r.Context()))
}

func (h *Handler) ReloadSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Reload(r.Context()); err != nil {
		response.FromError(w, err)
		return
	}
	h.audit(r, "settings_reload")
	response.Message(w, "настройки перечитаны", nil)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) audit(r *http.Request, action string) {
	entry := log.WithFields(log.Fields{
		"action":     action,
		"request_id": middleware.RequestIDFrom(r.Context()),
	})
	if s, ok := middleware.SessionFrom(r.Context()); ok {
		entry = entry.WithField("admin_id", s.UserID)
	}
	entry.Info("Админское действие выполнено")
}
