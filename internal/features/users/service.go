// Package users отвечает за чтение пользователей для других модулей.
package users

import (
	"context"

	"serotonyl.ru/deal-desk/internal/common"
)

// Store: то, что сервису нужно от хранилища.
type Store interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	IncrementPenalties(ctx context.Context, userID int64) error
	LinkTelegram(ctx context.Context, userID, chatID int64) error
}

// Service управляет пользователями.
type Service struct {
	repo Store
}

// NewService создаёт сервис пользователей.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Get возвращает пользователя или common.ErrUserNotFound.
func (s *Service) Get(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// RecordPenalty отмечает автозакрытие сделки в профиле пользователя (для аналитики).
func (s *Service) RecordPenalty(ctx context.Context, userID int64) error {
	return s.repo.IncrementPenalties(ctx, userID)
}

// LinkTelegram сохраняет чат Telegram пользователя.
func (s *Service) LinkTelegram(ctx context.Context, userID, chatID int64) error {
	if chatID == 0 {
		return common.Wrapf(common.ErrMissingField, "chat_id обязателен")
	}
	return s.repo.LinkTelegram(ctx, userID, chatID)
}
