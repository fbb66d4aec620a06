// Package api: HTTP-поверхность сервиса сделок на chi.
// server.go собирает маршруты, аутентификацию и общие хелперы ответа.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/api/middleware"
	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/admin"
	"serotonyl.ru/deal-desk/internal/features/credits"
	"serotonyl.ru/deal-desk/internal/features/deals"
	"serotonyl.ru/deal-desk/internal/features/unlock"
	"serotonyl.ru/deal-desk/internal/features/workspace"
	"serotonyl.ru/deal-desk/internal/notify"
)

// DealService: движок сделок.
type DealService interface {
	Create(ctx context.Context, postID, unlockerID, authorID int64) (*deals.Deal, error)
	ListForParty(ctx context.Context, userID int64, role, status string) ([]*deals.Deal, error)
	GetForParty(ctx context.Context, userID, id int64) (*deals.Deal, error)
	Transition(ctx context.Context, userID, id int64, target, notes string) (*deals.TransitionResult, error)
	Stats(ctx context.Context, userID int64) (*deals.Stats, error)
	ResolveForPost(ctx context.Context, ownerID, postID int64, toggle string) (*deals.ToggleResult, error)
	AdminOverride(ctx context.Context, adminID, id int64, target, notes string) (*deals.Deal, error)
	ForceClose(ctx context.Context, adminID, id int64, reason string) (*deals.Deal, error)
	AdminList(ctx context.Context, status, search string, page, limit int) (*deals.Page, error)
	AdminGet(ctx context.Context, id int64) (*deals.Deal, error)
	Analytics(ctx context.Context) (*deals.Analytics, error)
}

// UnlockService: разблокировка постов.
type UnlockService interface {
	Unlock(ctx context.Context, userID, postID int64) (*unlock.Result, error)
}

// CreditService: кредитный леджер.
type CreditService interface {
	Balances(ctx context.Context, userID int64) (credits.Balances, error)
	History(ctx context.Context, userID int64, limit int) ([]*credits.HistoryEntry, error)
	TopUp(ctx context.Context, userID int64, g credits.Grant) (credits.Balances, error)
}

// WorkspaceService: история сделок и значки.
type WorkspaceService interface {
	Summary(ctx context.Context, userID int64) (*workspace.Summary, error)
}

// UserService: профиль пользователя.
type UserService interface {
	LinkTelegram(ctx context.Context, userID, chatID int64) error
}

// Inbox: внутренний ящик уведомлений.
type Inbox interface {
	Recent(ctx context.Context, userID int64, limit int) ([]*notify.Stored, error)
}

// AdminAuth: вход и проверка сессий администратора.
type AdminAuth interface {
	Login(ctx context.Context, userID int64, token string) (*admin.Session, error)
	Authorize(ctx context.Context, userID int64, token string) error
	Logout(ctx context.Context, userID int64) error
}

// Deps: зависимости HTTP-слоя. Inbox и Users могут быть nil.
type Deps struct {
	Deals     DealService
	Unlock    UnlockService
	Credits   CreditService
	Workspace WorkspaceService
	Users     UserService
	Inbox     Inbox
	Admin     AdminAuth
}

// Options: параметры сервера.
type Options struct {
	RequestTimeout time.Duration
	Limiter        middleware.Limiter // nil: без ограничения
	Metrics        bool               // Отдавать /metrics
}

// Server: HTTP API сервиса сделок.
type Server struct {
	deps Deps
	opts Options
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{deps: deps, opts: opts}
}

// Handler возвращает chi-роутер со всеми маршрутами.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover)
	r.Use(middleware.Logger)
	r.Use(chimw.Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		if s.opts.Limiter != nil {
			r.Use(middleware.RateLimit(s.opts.Limiter, rateKey))
		}

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", s.handleListDeals)
			r.Get("/stats", s.handleDealStats)
			r.Get("/{id}", s.handleGetDeal)
			r.Put("/{id}/status", s.handleUpdateStatus)
		})

		r.Route("/posts/{id}", func(r chi.Router) {
			r.Post("/unlock", s.handleUnlock)
			r.Put("/deal-toggle", s.handleDealToggle)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/credits", s.handleMyCredits)
			r.Get("/workspace", s.handleMyWorkspace)
			r.Get("/notifications", s.handleMyNotifications)
			if s.deps.Users != nil {
				r.Put("/telegram", s.handleLinkTelegram)
			}
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleAdminLogin)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/logout", s.handleAdminLogout)
				r.Get("/deals", s.handleAdminListDeals)
				r.Get("/deals/{id}", s.handleAdminGetDeal)
				r.Put("/deals/{id}/status", s.handleAdminUpdateStatus)
				r.Delete("/deals/{id}", s.handleAdminForceClose)
				r.Get("/analytics/deals", s.handleAdminAnalytics)
			})
		})

		r.Route("/internal", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/deals", s.handleInternalCreateDeal)
			r.Post("/credits/topup", s.handleInternalTopUp)
		})
	})

	return r
}

type ctxKey int

const userIDKey ctxKey = iota

// authenticate читает X-User-ID, который проставляет шлюз авторизации.
func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, common.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

func rateKey(r *http.Request) string {
	if id := userID(r); id > 0 {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + r.RemoteAddr
}

// requireAdmin пропускает только владельца действующей админ-сессии (Authorization: Bearer <token>).
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if err := s.deps.Admin.Authorize(r.Context(), userID(r), strings.TrimSpace(token)); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.Wrapf(common.ErrMissingField, "некорректный id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.Wrapf(common.ErrMissingField, "некорректное тело запроса: %v", err)
	}
	return nil
}

// writeJSON отправляет JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Не удалось записать ответ")
	}
}

// statusFor переводит категорию ошибки в HTTP-код.
func statusFor(err error) int {
	if errors.Is(err, common.ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	switch common.KindOf(err) {
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindAuthorization:
		return http.StatusForbidden
	case common.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает ошибкой. Текст внутренних ошибок наружу не отдаётся.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Внутренняя ошибка обработчика")
		msg = "внутренняя ошибка сервера"
	}
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
