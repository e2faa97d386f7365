package adminapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fircargo/cargotrack/internal/cache/rediscache"
	"github.com/fircargo/cargotrack/internal/models"
	"github.com/fircargo/cargotrack/internal/services/directory"
	"github.com/fircargo/cargotrack/internal/services/registry"
	"github.com/fircargo/cargotrack/internal/storage/pgregistry"
)

// Service — операции реестра, которые выставляются персоналу. Вызывающий
// уже авторизован выше по стеку, API аутентификацией не занимается.
type Service interface {
	ApplyStatus(ctx context.Context, entries []models.BulkEntry, status string) (models.BulkSummary, error)
	AssignOwner(ctx context.Context, codes []string, internalID int64) (models.AssignSummary, error)
	CheckOrRegister(ctx context.Context, code string, chatID int64) (string, error)
	GetCode(ctx context.Context, code string) (*models.TrackCode, error)
	DeleteCodes(ctx context.Context, codes []string) (int64, error)
	PurgeByStatus(ctx context.Context, status string) (int64, error)
	UnbindCode(ctx context.Context, code string) error
	ListAll(ctx context.Context) ([]*models.TrackCode, error)
	ListByOwner(ctx context.Context, chatID int64) ([]*models.TrackCode, error)
}

// Users — справочник клиентов: персонал заводит клиентов здесь, короткие
// FS-ID из ответов потом используются в массовых операциях.
type Users interface {
	CreateUser(ctx context.Context, chatID int64, name string, username, phone *string) (*models.User, error)
	GetUserByInternalID(ctx context.Context, id int64) (*models.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type AdminAPI struct {
	svc      Service
	users    Users
	validate *validator.Validate

	limiter   RateLimiter
	rateLimit int64
}

func New(svc Service, users Users, limiter RateLimiter, rateLimitPerMinute int64) *AdminAPI {
	return &AdminAPI{
		svc:       svc,
		users:     users,
		validate:  validator.New(),
		limiter:   limiter,
		rateLimit: rateLimitPerMinute,
	}
}

func (a *AdminAPI) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.rateLimitBulk)
			r.Post("/codes/bulk-status", a.handleBulkStatus)
			r.Post("/codes/bulk-assign", a.handleBulkAssign)
			r.Post("/codes/bulk-delete", a.handleBulkDelete)
			r.Delete("/codes/status/{status}", a.handlePurgeStatus)
		})

		r.Post("/codes/check", a.handleCheck)
		r.Get("/codes", a.handleListAll)
		r.Get("/codes/{code}", a.handleGetCode)
		r.Delete("/codes/{code}/owner", a.handleUnbind)
		r.Get("/owners/{chatID}/codes", a.handleListByOwner)

		r.Post("/users", a.handleCreateUser)
		r.Get("/users", a.handleListUsers)
		r.Get("/users/{internalID}", a.handleGetUser)
		r.Get("/users/by-chat/{chatID}", a.handleGetUserByChat)
	})

	return r
}

type bulkEntryPayload struct {
	Code       string `json:"code" validate:"required"`
	InternalID *int64 `json:"internal_id"`
}

type bulkStatusRequest struct {
	Status  string             `json:"status" validate:"required"`
	Text    string             `json:"text"`
	Entries []bulkEntryPayload `json:"entries" validate:"dive"`
}

type bulkStatusResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

func (a *AdminAPI) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if !a.decode(w, r, &req) {
		return
	}

	// Пачка приходит либо сырым текстом (вставка/файл из чата), либо уже
	// разобранными записями; можно и смешивать.
	entries := registry.ParseOwnedEntries(req.Text)
	for _, e := range req.Entries {
		entries = append(entries, models.BulkEntry{Code: e.Code, InternalID: e.InternalID})
	}
	if len(entries) == 0 {
		writeError(w, http.StatusBadRequest, "no track codes supplied")
		return
	}

	sum, err := a.svc.ApplyStatus(r.Context(), entries, req.Status)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkStatusResponse{Created: sum.Created, Updated: sum.Updated, Total: sum.Total})
}

type bulkAssignRequest struct {
	InternalID string   `json:"internal_id" validate:"required"`
	Codes      []string `json:"codes"`
	Text       string   `json:"text"`
}

type bulkAssignResponse struct {
	Assigned int `json:"assigned"`
	Created  int `json:"created"`
}

func (a *AdminAPI) handleBulkAssign(w http.ResponseWriter, r *http.Request) {
	var req bulkAssignRequest
	if !a.decode(w, r, &req) {
		return
	}

	internalID, err := registry.ParseInternalID(req.InternalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad internal_id, expected FSxxxx or a number")
		return
	}

	codes := append(registry.ParseCodes(req.Text), req.Codes...)
	if len(codes) == 0 {
		writeError(w, http.StatusBadRequest, "no track codes supplied")
		return
	}

	sum, err := a.svc.AssignOwner(r.Context(), codes, internalID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkAssignResponse{Assigned: sum.Assigned, Created: sum.Created})
}

type bulkDeleteRequest struct {
	Codes []string `json:"codes" validate:"required,min=1"`
}

type deletedResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

func (a *AdminAPI) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !a.decode(w, r, &req) {
		return
	}

	n, err := a.svc.DeleteCodes(r.Context(), req.Codes)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{DeletedCount: n})
}

func (a *AdminAPI) handlePurgeStatus(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.PurgeByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{DeletedCount: n})
}

type checkRequest struct {
	Code   string `json:"code" validate:"required"`
	ChatID int64  `json:"chat_id" validate:"required"`
}

type checkResponse struct {
	Status string `json:"status"`
}

func (a *AdminAPI) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !a.decode(w, r, &req) {
		return
	}

	status, err := a.svc.CheckOrRegister(r.Context(), req.Code, req.ChatID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Status: status})
}

func (a *AdminAPI) handleGetCode(w http.ResponseWriter, r *http.Request) {
	t, err := a.svc.GetCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(t))
}

func (a *AdminAPI) handleUnbind(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.UnbindCode(r.Context(), chi.URLParam(r, "code")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	Items []trackCodePayload `json:"items"`
}

func (a *AdminAPI) handleListAll(w http.ResponseWriter, r *http.Request) {
	ts, err := a.svc.ListAll(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(ts))
}

func (a *AdminAPI) handleListByOwner(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad chat id")
		return
	}

	ts, err := a.svc.ListByOwner(r.Context(), chatID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(ts))
}

type createUserRequest struct {
	ChatID   int64   `json:"chat_id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
}

type userPayload struct {
	InternalID string    `json:"internal_id"`
	ChatID     int64     `json:"chat_id"`
	Name       string    `json:"name"`
	Username   *string   `json:"username,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserPayload(u *models.User) userPayload {
	return userPayload{
		InternalID: models.FormatInternalID(u.ID),
		ChatID:     u.ChatID,
		Name:       u.Name,
		Username:   u.Username,
		Phone:      u.Phone,
		CreatedAt:  u.CreatedAt,
	}
}

func (a *AdminAPI) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !a.decode(w, r, &req) {
		return
	}

	u, err := a.users.CreateUser(r.Context(), req.ChatID, req.Name, req.Username, req.Phone)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserPayload(u))
}

func (a *AdminAPI) handleListUsers(w http.ResponseWriter, r *http.Request) {
	us, err := a.users.ListUsers(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	items := make([]userPayload, 0, len(us))
	for _, u := range us {
		items = append(items, toUserPayload(u))
	}
	writeJSON(w, http.StatusOK, map[string][]userPayload{"items": items})
}

func (a *AdminAPI) handleGetUser(w http.ResponseWriter, r *http.Request) {
	// Принимает и "FS0042", и голый номер.
	id, err := registry.ParseInternalID(chi.URLParam(r, "internalID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad internal id")
		return
	}

	u, err := a.users.GetUserByInternalID(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(u))
}

func (a *AdminAPI) handleGetUserByChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad chat id")
		return
	}

	u, err := a.users.GetUserByChatID(r.Context(), chatID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(u))
}

type trackCodePayload struct {
	ID          uint64    `json:"id"`
	Code        string    `json:"code"`
	Status      string    `json:"status"`
	Owned       bool      `json:"owned"`
	OwnerChatID *int64    `json:"owner_chat_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPayload(t *models.TrackCode) trackCodePayload {
	return trackCodePayload{
		ID:          t.ID,
		Code:        t.Code,
		Status:      t.Status,
		Owned:       t.Owned(),
		OwnerChatID: t.OwnerChatID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toListResponse(ts []*models.TrackCode) listResponse {
	items := make([]trackCodePayload, 0, len(ts))
	for _, t := range ts {
		items = append(items, toPayload(t))
	}
	return listResponse{Items: items}
}

func (a *AdminAPI) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad json body")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (a *AdminAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pgregistry.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.WithField("path", r.URL.Path).Errorf("admin api: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// rateLimitBulk держит частоту массовых операций в рамках: пачки дорогие,
// их шторм не должен выедать пул соединений базы.
func (a *AdminAPI) rateLimitBulk(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter == nil || a.rateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ok, _, err := a.limiter.Allow(r.Context(), rediscache.BulkOpKey(host), a.rateLimit, time.Minute)
		if err != nil {
			// Лимитер best-effort: редис лёг — пропускаем, а не блокируем штаб.
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeError(w, http.StatusTooManyRequests, "too many bulk operations, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
