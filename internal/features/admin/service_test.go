package admin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/deal-desk/internal/common"
)

type memStore struct {
	mu       sync.Mutex
	sessions []*Session
	attempts []LoginAttempt
}

func (m *memStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = int64(len(m.sessions) + 1)
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memStore) ActiveSession(_ context.Context, userID int64, token string, now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.Token == token && s.IsActive && s.ExpiresAt.After(now) {
			return s, nil
		}
	}
	return nil, common.ErrUnauthenticated
}

func (m *memStore) DeactivateSessions(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (m *memStore) Touch(context.Context, int64, time.Time) error { return nil }

func (m *memStore) LogAttempt(_ context.Context, userID int64, success bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, LoginAttempt{UserID: userID, Success: success, AttemptTime: at})
	return nil
}

func (m *memStore) RecentFailures(_ context.Context, userID int64, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	hash, err := HashToken("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	c := &clock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	isAdmin := func(id int64) bool { return id == 7 || id == 8 }
	return NewService(&memStore{}, hash, isAdmin, c), c
}

func TestHashAndVerifyToken(t *testing.T) {
	hash, err := HashToken("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyToken("s3cret", hash) {
		t.Fatal("token must match its own hash")
	}
	if VerifyToken("S3cret", hash) || VerifyToken("s3cret", "plain") {
		t.Fatal("wrong token or malformed hash accepted")
	}
}

func TestLoginAndAuthorize(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, 1, "s3cret"); !errors.Is(err, common.ErrNotAdmin) {
		t.Fatalf("non-admin login: %v", err)
	}

	s, err := svc.Login(ctx, 7, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Authorize(ctx, 7, s.Token); err != nil {
		t.Fatalf("fresh session rejected: %v", err)
	}
	if err := svc.Authorize(ctx, 8, s.Token); !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("session of another admin accepted: %v", err)
	}

	c.t = c.t.Add(SessionTTL + time.Minute)
	if err := svc.Authorize(ctx, 7, s.Token); common.KindOf(err) != common.KindAuthorization {
		t.Fatalf("expired session: %v", err)
	}

	s, _ = svc.Login(ctx, 7, "s3cret")
	if err := svc.Logout(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if err := svc.Authorize(ctx, 7, s.Token); err == nil {
		t.Fatal("session survived logout")
	}
}

func TestLoginLockout(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	for range MaxFailedAttempts {
		if _, err := svc.Login(ctx, 7, "guess"); !errors.Is(err, common.ErrWrongToken) {
			t.Fatalf("wrong token: %v", err)
		}
	}
	if _, err := svc.Login(ctx, 7, "s3cret"); !errors.Is(err, common.ErrTooManyAttempts) {
		t.Fatalf("locked out admin let in: %v", err)
	}

	c.t = c.t.Add(LockoutWindow + time.Second)
	if _, err := svc.Login(ctx, 7, "s3cret"); err != nil {
		t.Fatalf("lockout must expire: %v", err)
	}
}
