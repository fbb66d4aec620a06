package unlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
	"serotonyl.ru/deal-desk/internal/features/deals"
	"serotonyl.ru/deal-desk/internal/features/posts"
	"serotonyl.ru/deal-desk/internal/notify"
)

// memStore повторяет транзакцию Repository.Unlock под одним мьютексом.
type memStore struct {
	mu       sync.Mutex
	posts    map[int64]*posts.Post
	balances map[int64]credits.Balances
	unlocked map[[2]int64]bool
	debits   int
}

func (m *memStore) Unlock(_ context.Context, userID, postID, cost int64, now time.Time) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return nil, common.ErrPostNotFound
	}
	if err := CheckTarget(p, userID); err != nil {
		return nil, err
	}
	key := [2]int64{postID, userID}
	if m.unlocked[key] {
		return nil, common.ErrAlreadyUnlocked
	}
	b := m.balances[userID]
	if err := credits.CheckDebit(b, credits.CreditUnlock, cost, now); err != nil {
		return nil, err
	}
	b.UnlockCredits -= cost
	m.balances[userID] = b
	m.unlocked[key] = true
	m.debits++
	return &Receipt{PostID: postID, PostTitle: p.Title, AuthorID: p.AuthorID, Remaining: b.UnlockCredits}, nil
}

type fakeDeals struct {
	mu      sync.Mutex
	created int
	fail    bool
}

func (f *fakeDeals) Create(_ context.Context, postID, unlockerID, authorID int64) (*deals.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("db down")
	}
	f.created++
	return &deals.Deal{DealID: "DEAL-TEST", PostID: postID, UnlockerID: unlockerID, AuthorID: authorID}, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	users []int64
}

func (c *countingNotifier) Notify(_ context.Context, userID int64, _ notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userID)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func setup(unlockCredits int64, expires *time.Time) (*Service, *memStore, *fakeDeals, *countingNotifier) {
	store := &memStore{
		posts: map[int64]*posts.Post{
			10: {ID: 10, AuthorID: 2, Title: "Трубы ПНД", IsActive: true},
			11: {ID: 11, AuthorID: 2, Title: "Снят", IsActive: false},
		},
		balances: map[int64]credits.Balances{
			1: {UnlockCredits: unlockCredits, SubscriptionExpiresAt: expires},
		},
		unlocked: map[[2]int64]bool{},
	}
	dc := &fakeDeals{}
	n := &countingNotifier{}
	return NewService(store, dc, n, nil, fixedClock{now}, 1), store, dc, n
}

func TestUnlock(t *testing.T) {
	svc, store, dc, n := setup(3, nil)

	res, err := svc.Unlock(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.RemainingUnlockCredits != 2 || res.DealID != "DEAL-TEST" {
		t.Errorf("result = %+v", res)
	}
	if dc.created != 1 || store.debits != 1 {
		t.Errorf("deals %d, debits %d", dc.created, store.debits)
	}
	if len(n.users) != 1 || n.users[0] != 2 {
		t.Errorf("author must be notified: %v", n.users)
	}

	if _, err := svc.Unlock(context.Background(), 1, 10); !errors.Is(err, common.ErrAlreadyUnlocked) {
		t.Fatalf("second unlock: %v", err)
	}
	if store.debits != 1 {
		t.Error("repeat unlock must not be charged")
	}
}

func TestUnlockRejections(t *testing.T) {
	expired := now.Add(-time.Hour)
	cases := []struct {
		name    string
		credits int64
		expires *time.Time
		user    int64
		post    int64
		want    error
	}{
		{"own post", 3, nil, 2, 10, common.ErrOwnPostUnlock},
		{"inactive post", 3, nil, 1, 11, common.ErrPostNotFound},
		{"missing post", 3, nil, 1, 99, common.ErrPostNotFound},
		{"no credits", 0, nil, 1, 10, common.ErrInsufficientCredits},
		{"expired subscription wins over balance", 0, &expired, 1, 10, common.ErrSubscriptionExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, dc, _ := setup(tc.credits, tc.expires)
			_, err := svc.Unlock(context.Background(), tc.user, tc.post)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if store.debits != 0 || dc.created != 0 {
				t.Error("rejected unlock must not charge or create a deal")
			}
		})
	}
}

func TestConcurrentUnlockChargesOnce(t *testing.T) {
	svc, store, dc, _ := setup(5, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		already int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Unlock(context.Background(), 1, 10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, common.ErrAlreadyUnlocked):
				already++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || already != 19 {
		t.Fatalf("ok=%d already=%d", ok, already)
	}
	if store.debits != 1 || dc.created != 1 || store.balances[1].UnlockCredits != 4 {
		t.Fatalf("debits=%d deals=%d balance=%d", store.debits, dc.created, store.balances[1].UnlockCredits)
	}
}

func TestDealFailureDoesNotUndoUnlock(t *testing.T) {
	svc, store, dc, _ := setup(1, nil)
	dc.fail = true

	res, err := svc.Unlock(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("unlock must succeed: %v", err)
	}
	if res.DealID != "" || store.debits != 1 {
		t.Errorf("result = %+v", res)
	}
}
