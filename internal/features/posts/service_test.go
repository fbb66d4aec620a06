package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/notify"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type sent struct {
	userID int64
	n      notify.Notification
}

type recorder struct{ sent []sent }

func (r *recorder) Notify(_ context.Context, userID int64, n notify.Notification) error {
	r.sent = append(r.sent, sent{userID, n})
	return nil
}

// memStore повторяет фильтры SQL-запросов репозитория.
type memStore struct {
	posts map[int64]*Post
}

func (m *memStore) Get(_ context.Context, id int64) (*Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, common.ErrPostNotFound
	}
	return p, nil
}

func (m *memStore) ExpiringBetween(_ context.Context, from, to time.Time) ([]*Post, error) {
	var out []*Post
	for _, p := range m.posts {
		if p.IsActive && p.PostStatus == StatusActive && !p.ValidityReminderSent &&
			p.ExpiresAt != nil && !p.ExpiresAt.Before(from) && !p.ExpiresAt.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ExpiredBefore(_ context.Context, now time.Time) ([]*Post, error) {
	var out []*Post
	for _, p := range m.posts {
		if p.IsActive && !p.IsExpired && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) MarkReminded(_ context.Context, id int64) (bool, error) {
	p := m.posts[id]
	if p.ValidityReminderSent {
		return false, nil
	}
	p.ValidityReminderSent = true
	return true, nil
}

func (m *memStore) MarkExpired(_ context.Context, id int64) (bool, error) {
	p := m.posts[id]
	if p.IsExpired {
		return false, nil
	}
	p.IsExpired, p.IsActive, p.PostStatus = true, false, StatusExpired
	return true, nil
}

func at(t time.Time) *time.Time { return &t }

func TestRunValiditySweep(t *testing.T) {
	now := time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC)
	store := &memStore{posts: map[int64]*Post{
		1: {ID: 1, AuthorID: 10, Title: "Сталь", IsActive: true, PostStatus: StatusActive, ExpiresAt: at(now.Add(60 * time.Hour))},
		2: {ID: 2, AuthorID: 20, Title: "Лес", IsActive: true, PostStatus: StatusActive, ExpiresAt: at(now.Add(-time.Hour))},
		3: {ID: 3, AuthorID: 30, Title: "Далеко", IsActive: true, PostStatus: StatusActive, ExpiresAt: at(now.Add(10 * 24 * time.Hour))},
		4: {ID: 4, AuthorID: 40, Title: "Уже", IsActive: true, PostStatus: StatusActive, ValidityReminderSent: true, ExpiresAt: at(now.Add(50 * time.Hour))},
	}}
	rec := &recorder{}
	svc := NewService(store, rec, fixedClock{now})

	rep, err := svc.RunValiditySweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Reminded != 1 || rep.Expired != 1 || rep.Errors != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if !store.posts[1].ValidityReminderSent {
		t.Error("post 1 must be marked reminded")
	}
	p2 := store.posts[2]
	if !p2.IsExpired || p2.IsActive || p2.PostStatus != StatusExpired {
		t.Errorf("post 2 not expired: %+v", p2)
	}
	if len(rec.sent) != 2 {
		t.Fatalf("notifications = %d, want 2", len(rec.sent))
	}
	if rec.sent[0].userID != 10 || rec.sent[0].n.Data["daysRemaining"] != 3 {
		t.Errorf("unexpected reminder %+v", rec.sent[0])
	}

	// Повторный запуск ничего не делает
	rep, _ = svc.RunValiditySweep(context.Background())
	if rep.Reminded != 0 || rep.Expired != 0 {
		t.Fatalf("second run must be a no-op, got %+v", rep)
	}
}

func TestProjectDealStatus(t *testing.T) {
	cases := map[string]DealStatus{
		"Contacted": DealInProgress,
		"Ongoing":   DealInProgress,
		"Success":   DealCompleted,
		"Fail":      DealCompleted,
		"Closed":    DealCancelled,
		"":          DealAvailable,
	}
	for in, want := range cases {
		if got := ProjectDealStatus(in); got != want {
			t.Errorf("ProjectDealStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToggle(t *testing.T) {
	if _, err := ParseToggle("Done"); !errors.Is(err, common.ErrInvalidToggle) {
		t.Fatalf("got %v", err)
	}
	tg, err := ParseToggle("Success")
	if err != nil || ResultFor(tg) != ResultWon {
		t.Fatalf("toggle=%q err=%v", tg, err)
	}
	if ResultFor(ToggleFail) != ResultFailed || ResultFor(TogglePending) != ResultPending {
		t.Fatal("unexpected result mapping")
	}
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if DaysLeft(now.Add(49*time.Hour), now) != 3 {
		t.Error("49h must round up to 3 days")
	}
	if DaysLeft(now.Add(48*time.Hour), now) != 2 {
		t.Error("48h is exactly 2 days")
	}
	if DaysLeft(now.Add(-time.Hour), now) != 0 {
		t.Error("past deadline is 0 days")
	}
}
