// service.go содержит единую точка входа для всех путей смены статуса
// (участник, админ, владелец поста, планировщик). Все они проходят через apply,
// поэтому история, проекция поста, кредиты и счётчики считаются одинаково.
package deals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/deal-desk/internal/cache"
	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
	"serotonyl.ru/deal-desk/internal/features/posts"
	"serotonyl.ru/deal-desk/internal/features/users"
	"serotonyl.ru/deal-desk/internal/features/workspace"
	"serotonyl.ru/deal-desk/internal/metrics"
	"serotonyl.ru/deal-desk/internal/notify"
)

// Store: хранилище сделок.
type Store interface {
	Create(ctx context.Context, d *Deal) (*Deal, error)
	Get(ctx context.Context, id int64) (*Deal, error)
	ListForParty(ctx context.Context, f PartyFilter) ([]*Deal, error)
	ListAdmin(ctx context.Context, f AdminFilter) ([]*Deal, int, error)
	OpenForPost(ctx context.Context, postID int64) ([]*Deal, error)
	ActiveOpen(ctx context.Context) ([]*Deal, error)
	Confirm(ctx context.Context, id int64, from, resolution Status, role Role, at time.Time) (Confirmation, error)
	ApplyTransition(ctx context.Context, id int64, from Status, ch Change) (*Deal, error)
	MarkReminded(ctx context.Context, id int64, at time.Time) error
	Analytics(ctx context.Context, since time.Time) (*AnalyticsRaw, error)
}

// PostStore: поля поста, которые обновляет движок.
type PostStore interface {
	Get(ctx context.Context, postID int64) (*posts.Post, error)
	SetDealStatus(ctx context.Context, postID int64, status posts.DealStatus) error
	SetToggle(ctx context.Context, postID int64, toggle posts.Toggle, result posts.Result) error
}

// Ledger: кредитный леджер.
type Ledger interface {
	Adjust(ctx context.Context, userID int64, adj credits.Adjustment, description string, related *int64) (int64, error)
}

// History: история сделок пользователя и значки.
type History interface {
	RecordOutcome(ctx context.Context, userID, postID, dealID int64, result workspace.Result) (workspace.Workspace, error)
}

// UserDirectory: пользователи.
type UserDirectory interface {
	Get(ctx context.Context, userID int64) (*users.User, error)
	RecordPenalty(ctx context.Context, userID int64) error
}

// Settings: параметры движка.
type Settings struct {
	LifetimeDays     int   // Срок жизни сделки до автозакрытия
	AutoClosePenalty int64 // Штраф каждой стороне при автозакрытии
	SweepConcurrency int   // Сколько сделок обход обрабатывает параллельно
}

// Deps: зависимости сервиса.
type Deps struct {
	Store    Store
	Posts    PostStore
	Ledger   Ledger
	History  History
	Users    UserDirectory
	Notifier notify.Notifier
	Cache    cache.Invalidator
	Clock    common.Clock
}

// Service: движок сделок.
type Service struct {
	store    Store
	posts    PostStore
	ledger   Ledger
	history  History
	users    UserDirectory
	notifier notify.Notifier
	cache    cache.Invalidator
	clock    common.Clock
	cfg      Settings
}

func NewService(d Deps, cfg Settings) *Service {
	if d.Clock == nil {
		d.Clock = common.SystemClock{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if cfg.LifetimeDays <= 0 {
		cfg.LifetimeDays = 90
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 1
	}
	return &Service{
		store:    d.Store,
		posts:    d.Posts,
		ledger:   d.Ledger,
		history:  d.History,
		users:    d.Users,
		notifier: d.Notifier,
		cache:    d.Cache,
		clock:    d.Clock,
		cfg:      cfg,
	}
}

// NewDealID: отображаемый идентификатор вида DEAL-1A2B3C4D.
func NewDealID() string {
	return "DEAL-" + strings.ToUpper(uuid.NewString()[:8])
}

// Create создаёт сделку после разблокировки поста.
func (s *Service) Create(ctx context.Context, postID, unlockerID, authorID int64) (*Deal, error) {
	unlocker, err := s.users.Get(ctx, unlockerID)
	if err != nil {
		return nil, err
	}
	author, err := s.users.Get(ctx, authorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	deadline := now.Add(time.Duration(s.cfg.LifetimeDays) * common.Day)
	by := unlockerID
	d := &Deal{
		DealID:         NewDealID(),
		PostID:         postID,
		UnlockerID:     unlockerID,
		AuthorID:       authorID,
		MaskedContacts: MaskContacts(unlocker, author, postID),
		Status:         StatusContacted,
		StatusHistory: []HistoryEntry{{
			Status:    StatusContacted,
			UpdatedBy: &by,
			UpdatedAt: now,
			Notes:     "Сделка создана при разблокировке поста",
			Initiator: InitiatorParticipant,
		}},
		ExpiresAt:   deadline,
		AutoCloseAt: deadline,
		IsActive:    true,
		CreatedAt:   now,
	}

	created, err := s.store.Create(ctx, d)
	if err != nil {
		return nil, err
	}

	metrics.DealsCreated.Inc()
	s.project(ctx, created.PostID, created.Status)
	s.invalidate(ctx, created)
	log.WithFields(log.Fields{
		"deal_id":  created.DealID,
		"post_id":  postID,
		"unlocker": unlockerID,
		"author":   authorID,
	}).Info("Сделка создана")
	return created, nil
}

// ListForParty возвращает активные сделки пользователя. role: "", unlocker или author; status опционален.
func (s *Service) ListForParty(ctx context.Context, userID int64, role, status string) ([]*Deal, error) {
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	f := PartyFilter{UserID: userID, Role: r, ActiveOnly: true}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = &st
	}
	return s.store.ListForParty(ctx, f)
}

// GetForParty возвращает сделку, только если пользователь её участник и сделка активна.
func (s *Service) GetForParty(ctx context.Context, userID, id int64) (*Deal, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, common.ErrDealNotFound
	}
	if _, ok := d.RoleOf(userID); !ok {
		return nil, common.ErrDealNotFound
	}
	return d, nil
}

// TransitionResult: ответ на смену статуса участником.
type TransitionResult struct {
	Deal    *Deal  `json:"deal"`
	Waiting bool   `json:"waitingForConfirmation"`
	Message string `json:"message"`
}

// Transition: смена статуса участником сделки.
// Success/Fail требуют подтверждения обеих сторон: пока второй стороны нет,
// статус не меняется и история не пополняется.
func (s *Service) Transition(ctx context.Context, userID, id int64, target, notes string) (*TransitionResult, error) {
	to, err := ParseStatus(target)
	if err != nil {
		return nil, err
	}
	d, err := s.GetForParty(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(d.Status, to); err != nil {
		return nil, err
	}

	role, _ := d.RoleOf(userID)
	now := s.clock.Now()
	actor := userID
	entry := HistoryEntry{
		Status:    to,
		UpdatedBy: &actor,
		UpdatedAt: now,
		Notes:     notes,
		Initiator: InitiatorParticipant,
	}

	if to.IsResolution() {
		conf, err := s.store.Confirm(ctx, d.ID, d.Status, to, role, now)
		if err != nil {
			return nil, err
		}
		if to == StatusSuccess {
			d.Confirmations.Success = conf
		} else {
			d.Confirmations.Fail = conf
		}

		if !conf.Both() {
			other := role.Other()
			metrics.DealConfirmationsPending.WithLabelValues(strings.ToLower(string(to))).Inc()
			s.notify(ctx, d.Party(other), notify.Notification{
				Type:  notify.TypeConfirmationAsk,
				Title: "Подтвердите итог сделки",
				Message: fmt.Sprintf("Вторая сторона отметила сделку %s как «%s». Подтвердите итог, чтобы завершить сделку.",
					d.DealID, to),
				Data:     map[string]any{"dealId": d.DealID, "id": d.ID, "status": string(to)},
				Priority: notify.PriorityHigh,
			})
			return &TransitionResult{
				Deal:    d,
				Waiting: true,
				Message: "Ваше подтверждение записано. Ожидаем подтверждения от " + other.Title(),
			}, nil
		}
	}

	updated, err := s.apply(ctx, d, to, entry, applyOpts{})
	if errors.Is(err, common.ErrStaleDeal) && to.IsResolution() {
		// Обе стороны подтвердили одновременно: переход уже применил второй запрос
		fresh, gerr := s.store.Get(ctx, d.ID)
		if gerr == nil && fresh.Status == to {
			return &TransitionResult{Deal: fresh, Message: "Статус сделки обновлён"}, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Deal: updated, Message: "Статус сделки обновлён"}, nil
}

// AdminOverride меняет статус от имени администратора. Граф проверяется,
// участие и взаимное подтверждение: нет.
func (s *Service) AdminOverride(ctx context.Context, adminID, id int64, target, notes string) (*Deal, error) {
	to, err := ParseStatus(target)
	if err != nil {
		return nil, err
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(d.Status, to); err != nil {
		return nil, err
	}
	if notes == "" {
		notes = "Статус изменён администратором"
	}
	return s.apply(ctx, d, to, HistoryEntry{
		Status:          to,
		UpdatedBy:       &adminID,
		UpdatedAt:       s.clock.Now(),
		Notes:           notes,
		IsAdminOverride: true,
		Initiator:       InitiatorAdmin,
	}, applyOpts{})
}

// ForceClose закрывает сделку из любого статуса, кроме Closed.
func (s *Service) ForceClose(ctx context.Context, adminID, id int64, reason string) (*Deal, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusClosed {
		return nil, common.ErrDealAlreadyClosed
	}
	if reason == "" {
		reason = "Принудительно закрыта администратором"
	}
	return s.apply(ctx, d, StatusClosed, HistoryEntry{
		Status:          StatusClosed,
		UpdatedBy:       &adminID,
		UpdatedAt:       s.clock.Now(),
		Notes:           reason,
		IsAdminOverride: true,
		Initiator:       InitiatorAdmin,
	}, applyOpts{})
}

// ToggleResult: итог переключателя владельца поста.
type ToggleResult struct {
	Post     *posts.Post `json:"post"`
	Resolved []*Deal     `json:"resolvedDeals"`
	Skipped  int         `json:"skipped"`
}

// ResolveForPost: владелец поста выставляет итог (Pending/Success/Fail).
// Success/Fail сразу переводят все открытые сделки поста в этот статус.
func (s *Service) ResolveForPost(ctx context.Context, ownerID, postID int64, toggle string) (*ToggleResult, error) {
	t, err := posts.ParseToggle(toggle)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != ownerID {
		return nil, common.ErrNotPostOwner
	}

	result := posts.ResultFor(t)
	if err := s.posts.SetToggle(ctx, postID, t, result); err != nil {
		return nil, err
	}
	p.DealToggleStatus, p.DealResult = t, result
	out := &ToggleResult{Post: p}
	if t == posts.TogglePending {
		return out, nil
	}

	to := StatusSuccess
	if t == posts.ToggleFail {
		to = StatusFail
	}
	open, err := s.store.OpenForPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	for _, d := range open {
		updated, err := s.apply(ctx, d, to, HistoryEntry{
			Status:    to,
			UpdatedBy: &ownerID,
			UpdatedAt: s.clock.Now(),
			Notes:     "Итог выставлен владельцем поста",
			Initiator: InitiatorPostOwner,
		}, applyOpts{})
		if err != nil {
			out.Skipped++
			log.WithFields(log.Fields{"deal_id": d.DealID, "post_id": postID}).
				WithError(err).Warn("Не удалось закрыть сделку по переключателю поста")
			continue
		}
		out.Resolved = append(out.Resolved, updated)
	}
	return out, nil
}

type applyOpts struct {
	chronic bool
	extra   credits.Adjustment // Дополнительная корректировка (штраф автозакрытия)
}

// apply реализует переход: условная запись в хранилище, затем побочные эффекты.
// Побочные эффекты (проекция, кредиты, история пользователя, уведомления, кэш)
// не откатывают переход: их ошибки логируются.
func (s *Service) apply(ctx context.Context, d *Deal, to Status, entry HistoryEntry, opts applyOpts) (*Deal, error) {
	from := d.Status
	change := Change{
		To:               to,
		Entry:            entry,
		Adjustments:      d.CreditAdjustments,
		Deactivate:       to == StatusClosed,
		ChronicNonUpdate: opts.chronic,
	}
	if to.IsResolution() && from.IsOpen() {
		change.Adjustments = addAdjustments(change.Adjustments, TimingAdjustment(d.CreatedAt, entry.UpdatedAt))
	}
	change.Adjustments = addAdjustments(change.Adjustments, opts.extra)

	updated, err := s.store.ApplyTransition(ctx, d.ID, from, change)
	if err != nil {
		return nil, err
	}

	metrics.DealTransitions.WithLabelValues(string(from), string(to), string(entry.Initiator)).Inc()
	log.WithFields(log.Fields{
		"deal_id":   updated.DealID,
		"from":      from,
		"status":    to,
		"initiator": entry.Initiator,
	}).Info("Статус сделки изменён")

	s.project(ctx, updated.PostID, to)

	var settled credits.Adjustment
	if SettlesCredits(from, to) && !change.Adjustments.IsZero() {
		settled = change.Adjustments
		s.settle(ctx, updated, settled)
	}
	if to.IsResolution() {
		s.recordOutcome(ctx, updated, to)
	}
	if entry.Initiator != InitiatorScheduler {
		s.notifyTransition(ctx, updated, from, to, entry, settled)
	}
	s.invalidate(ctx, updated)
	return updated, nil
}

// settle применяет одинаковую корректировку к обеим сторонам; каждая сторона: отдельно.
func (s *Service) settle(ctx context.Context, d *Deal, adj credits.Adjustment) {
	desc := fmt.Sprintf("Сделка %s: %s", d.DealID, d.Status)
	for _, uid := range []int64{d.UnlockerID, d.AuthorID} {
		if _, err := s.ledger.Adjust(ctx, uid, adj, desc, &d.ID); err != nil {
			log.WithFields(log.Fields{
				"deal_id": d.DealID,
				"user_id": uid,
				"bonus":   adj.Bonus,
				"penalty": adj.Penalty,
			}).WithError(err).Error("Не удалось применить корректировку кредитов")
		}
	}
}

func (s *Service) recordOutcome(ctx context.Context, d *Deal, to Status) {
	result := workspace.ResultWon
	if to == StatusFail {
		result = workspace.ResultFailed
	}
	for _, uid := range []int64{d.UnlockerID, d.AuthorID} {
		if _, err := s.history.RecordOutcome(ctx, uid, d.PostID, d.ID, result); err != nil {
			log.WithFields(log.Fields{"deal_id": d.DealID, "user_id": uid}).
				WithError(err).Warn("Не удалось обновить историю сделок пользователя")
		}
	}
}

func (s *Service) notifyTransition(ctx context.Context, d *Deal, from, to Status, entry HistoryEntry, settled credits.Adjustment) {
	msg := fmt.Sprintf("Статус сделки %s изменён: %s → %s.", d.DealID, from, to)
	if entry.IsAdminOverride {
		msg += " Изменение внесено администратором."
	}
	if settled.Bonus > 0 {
		msg += " Начислено: " + common.FormatCredits(settled.Bonus) + "."
	}
	if settled.Penalty > 0 {
		msg += " Штраф: " + common.FormatCredits(settled.Penalty) + "."
	}

	n := notify.Notification{
		Type:     notify.TypeDealUpdate,
		Title:    "Статус сделки обновлён",
		Message:  msg,
		Data:     map[string]any{"dealId": d.DealID, "id": d.ID, "from": string(from), "status": string(to)},
		Priority: notify.PriorityMedium,
	}
	for _, uid := range []int64{d.UnlockerID, d.AuthorID} {
		if entry.UpdatedBy != nil && *entry.UpdatedBy == uid {
			continue
		}
		s.notify(ctx, uid, n)
	}
}

func (s *Service) project(ctx context.Context, postID int64, status Status) {
	if err := s.posts.SetDealStatus(ctx, postID, posts.ProjectDealStatus(string(status))); err != nil {
		log.WithField("post_id", postID).WithError(err).Warn("Не удалось обновить статус сделки на посте")
	}
}

func (s *Service) notify(ctx context.Context, userID int64, n notify.Notification) {
	if err := s.notifier.Notify(ctx, userID, n); err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Уведомление не доставлено")
	}
}

func (s *Service) invalidate(ctx context.Context, d *Deal) {
	cache.Safe(ctx, s.cache, cache.UserDealsKey(d.UnlockerID), cache.UserDealsKey(d.AuthorID), cache.PostKey(d.PostID))
}
