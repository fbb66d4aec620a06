package users

import (
	"context"
	"errors"
	"testing"

	"serotonyl.ru/deal-desk/internal/common"
)

type memStore struct {
	users map[int64]*User
}

func (m *memStore) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) IncrementPenalties(_ context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return common.ErrUserNotFound
	}
	u.TotalPenalties++
	return nil
}

func (m *memStore) LinkTelegram(_ context.Context, id, chatID int64) error {
	u, ok := m.users[id]
	if !ok {
		return common.ErrUserNotFound
	}
	u.TelegramChatID = &chatID
	return nil
}

func TestService(t *testing.T) {
	store := &memStore{users: map[int64]*User{1: {ID: 1, Email: "a@b.c"}}}
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.RecordPenalty(ctx, 1); err != nil {
		t.Fatalf("record penalty: %v", err)
	}
	if store.users[1].TotalPenalties != 1 {
		t.Fatalf("penalties = %d", store.users[1].TotalPenalties)
	}
	if err := svc.LinkTelegram(ctx, 1, 0); !errors.Is(err, common.ErrMissingField) {
		t.Fatalf("zero chat id: got %v", err)
	}
	if err := svc.LinkTelegram(ctx, 1, 42); err != nil || *store.users[1].TelegramChatID != 42 {
		t.Fatalf("link telegram: %v", err)
	}
	if _, err := svc.Get(ctx, 2); !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("missing user: got %v", err)
	}
	if store.users[1].DisplayName() != "a@b.c" {
		t.Errorf("display name fallback = %q", store.users[1].DisplayName())
	}
}
