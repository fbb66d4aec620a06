// Package admin: service.go содержит логику входа и проверки сессий.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/deal-desk/internal/common"
)

// Store: хранилище сессий и попыток входа.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	ActiveSession(ctx context.Context, userID int64, token string, now time.Time) (*Session, error)
	DeactivateSessions(ctx context.Context, userID int64) error
	Touch(ctx context.Context, sessionID int64, at time.Time) error
	LogAttempt(ctx context.Context, userID int64, success bool, at time.Time) error
	RecentFailures(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Service управляет доступом к админке.
type Service struct {
	repo      Store
	tokenHash string
	isAdmin   func(userID int64) bool
	clock     common.Clock
}

// NewService создаёт сервис. isAdmin: фильтр ADMIN_IDS (nil, любой владелец токена).
func NewService(repo Store, tokenHash string, isAdmin func(int64) bool, clock common.Clock) *Service {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return true }
	}
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Service{repo: repo, tokenHash: tokenHash, isAdmin: isAdmin, clock: clock}
}

// Login проверяет токен администратора с использованием Argon2id и открывает сессию.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(ctx context.Context, userID int64, token string) (*Session, error) {
	if !s.isAdmin(userID) {
		return nil, common.ErrNotAdmin
	}
	now := s.clock.Now()

	attempts, err := s.repo.RecentFailures(ctx, userID, now.Add(-LockoutWindow))
	if err != nil {
		return nil, err
	}
	if attempts >= MaxFailedAttempts {
		return nil, common.ErrTooManyAttempts
	}

	match := VerifyToken(token, s.tokenHash)
	if err := s.repo.LogAttempt(ctx, userID, match, now); err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный токен администратора")
		return nil, common.ErrWrongToken
	}

	session := &Session{
		UserID:          userID,
		Token:           generateSecureToken(),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(SessionTTL),
		IsActive:        true,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	log.WithField("user_id", userID).Info("Администратор вошёл в панель")
	return session, nil
}

// Authorize проверяет, что у пользователя есть действующая сессия с этим токеном.
func (s *Service) Authorize(ctx context.Context, userID int64, token string) error {
	if !s.isAdmin(userID) {
		return common.ErrNotAdmin
	}
	if token == "" {
		return common.ErrUnauthenticated
	}
	now := s.clock.Now()
	session, err := s.repo.ActiveSession(ctx, userID, token, now)
	if err != nil {
		return err
	}
	if err := s.repo.Touch(ctx, session.ID, now); err != nil {
		log.WithField("user_id", userID).WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return nil
}

// Logout завершает все сессии администратора.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.repo.DeactivateSessions(ctx, userID)
}

// --- Криптографические утилиты ---

// Параметры Argon2id для HashToken.
const (
	argonMemory      uint32 = 64 * 1024 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
	argonSaltLength         = 16
)

// HashToken считает Argon2id-хеш токена в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func HashToken(token string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(token), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyToken проверяет токен по хешу Argon2id.
func VerifyToken(token, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computed := argon2.IDKey([]byte(token), salt, iterations, memory, parallelism, uint32(len(expected)))

	// Сравниваем в постоянном времени
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
