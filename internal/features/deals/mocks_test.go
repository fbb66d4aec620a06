package deals

import (
	"context"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
	"serotonyl.ru/deal-desk/internal/features/posts"
	"serotonyl.ru/deal-desk/internal/features/users"
	"serotonyl.ru/deal-desk/internal/features/workspace"
	"serotonyl.ru/deal-desk/internal/notify"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore: хранилище сделок в памяти с теми же условными обновлениями, что и SQL.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	deals  map[int64]*Deal
}

func newMemStore() *memStore {
	return &memStore{deals: map[int64]*Deal{}}
}

func clone(d *Deal) *Deal {
	c := *d
	c.StatusHistory = append([]HistoryEntry(nil), d.StatusHistory...)
	return &c
}

func (m *memStore) Create(_ context.Context, d *Deal) (*Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.deals {
		if existing.PostID == d.PostID && existing.UnlockerID == d.UnlockerID {
			return nil, common.ErrDealExists
		}
	}
	m.nextID++
	c := clone(d)
	c.ID = m.nextID
	c.UpdatedAt = c.CreatedAt
	m.deals[c.ID] = c
	return clone(c), nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return nil, common.ErrDealNotFound
	}
	return clone(d), nil
}

func (m *memStore) sorted(keep func(*Deal) bool) []*Deal {
	var out []*Deal
	for _, d := range m.deals {
		if keep(d) {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) ListForParty(_ context.Context, f PartyFilter) ([]*Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(d *Deal) bool {
		switch f.Role {
		case RoleUnlocker:
			if d.UnlockerID != f.UserID {
				return false
			}
		case RoleAuthor:
			if d.AuthorID != f.UserID {
				return false
			}
		default:
			if d.UnlockerID != f.UserID && d.AuthorID != f.UserID {
				return false
			}
		}
		if f.ActiveOnly && !d.IsActive {
			return false
		}
		return f.Status == nil || d.Status == *f.Status
	}), nil
}

func (m *memStore) ListAdmin(_ context.Context, f AdminFilter) ([]*Deal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(d *Deal) bool { return f.Status == nil || d.Status == *f.Status })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return all[f.Offset:end], total, nil
}

func (m *memStore) OpenForPost(_ context.Context, postID int64) ([]*Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(d *Deal) bool { return d.PostID == postID && d.IsActive && d.Status.IsOpen() }), nil
}

func (m *memStore) ActiveOpen(_ context.Context) ([]*Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(d *Deal) bool { return d.IsActive && d.Status.IsOpen() }), nil
}

func (m *memStore) Confirm(_ context.Context, id int64, from, resolution Status, role Role, at time.Time) (Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok || d.Status != from || !d.IsActive {
		return Confirmation{}, common.ErrStaleDeal
	}
	slot := &d.Confirmations.Success
	if resolution == StatusFail {
		slot = &d.Confirmations.Fail
	}
	if role == RoleUnlocker && slot.UnlockerAt == nil {
		slot.UnlockerAt = &at
	}
	if role == RoleAuthor && slot.AuthorAt == nil {
		slot.AuthorAt = &at
	}
	return *slot, nil
}

func (m *memStore) ApplyTransition(_ context.Context, id int64, from Status, ch Change) (*Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok || d.Status != from {
		return nil, common.ErrStaleDeal
	}
	d.Status = ch.To
	d.CreditAdjustments = ch.Adjustments
	if ch.Deactivate {
		d.IsActive = false
	}
	if ch.ChronicNonUpdate {
		d.ChronicNonUpdate = true
	}
	d.StatusHistory = append(d.StatusHistory, ch.Entry)
	d.UpdatedAt = ch.Entry.UpdatedAt
	return clone(d), nil
}

func (m *memStore) MarkReminded(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[id].LastReminderSent = &at
	return nil
}

func (m *memStore) Analytics(_ context.Context, _ time.Time) (*AnalyticsRaw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw := &AnalyticsRaw{StatusCounts: map[Status]int{}}
	for _, d := range m.deals {
		raw.StatusCounts[d.Status]++
		raw.Total++
		raw.TotalPenalties += d.CreditAdjustments.Penalty
		if d.ChronicNonUpdate {
			raw.Chronic++
		}
	}
	return raw, nil
}

type fakePosts struct {
	mu    sync.Mutex
	posts map[int64]*posts.Post
}

func (f *fakePosts) Get(_ context.Context, id int64) (*posts.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, common.ErrPostNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePosts) SetDealStatus(_ context.Context, id int64, s posts.DealStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return common.ErrPostNotFound
	}
	p.DealStatus = s
	return nil
}

func (f *fakePosts) SetToggle(_ context.Context, id int64, t posts.Toggle, r posts.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return common.ErrPostNotFound
	}
	p.DealToggleStatus, p.DealResult = t, r
	return nil
}

func (f *fakePosts) status(id int64) posts.DealStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[id].DealStatus
}

type ledgerCall struct {
	userID int64
	adj    credits.Adjustment
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	calls    []ledgerCall
}

func (l *fakeLedger) Adjust(_ context.Context, userID int64, adj credits.Adjustment, _ string, _ *int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{userID, adj})
	l.balances[userID] = adj.ApplyTo(l.balances[userID])
	return l.balances[userID], nil
}

func (l *fakeLedger) callsFor(userID int64) []credits.Adjustment {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []credits.Adjustment
	for _, c := range l.calls {
		if c.userID == userID {
			out = append(out, c.adj)
		}
	}
	return out
}

type outcome struct {
	userID, postID int64
	result         workspace.Result
}

type fakeHistory struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (h *fakeHistory) RecordOutcome(_ context.Context, userID, postID, _ int64, r workspace.Result) (workspace.Workspace, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, outcome{userID, postID, r})
	return workspace.Workspace{UserID: userID}, nil
}

type fakeUsers struct {
	mu        sync.Mutex
	users     map[int64]*users.User
	penalties map[int64]int
}

func (u *fakeUsers) Get(_ context.Context, id int64) (*users.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.users[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return usr, nil
}

func (u *fakeUsers) RecordPenalty(_ context.Context, id int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.penalties[id]++
	return nil
}

type sentNotification struct {
	userID int64
	n      notify.Notification
}

type recorder struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recorder) Notify(_ context.Context, userID int64, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{userID, n})
	return nil
}

func (r *recorder) ofType(t string) []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentNotification
	for _, s := range r.sent {
		if s.n.Type == t {
			out = append(out, s)
		}
	}
	return out
}

const (
	buyerID  int64 = 1
	authorID int64 = 2
	postID   int64 = 100
)

var t0 = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	svc     *Service
	store   *memStore
	posts   *fakePosts
	ledger  *fakeLedger
	history *fakeHistory
	users   *fakeUsers
	rec     *recorder
	clock   *testClock
}

func newEnv() *env {
	e := &env{
		store: newMemStore(),
		posts: &fakePosts{posts: map[int64]*posts.Post{
			postID: {ID: postID, AuthorID: authorID, Title: "Поставка арматуры", IsActive: true, DealStatus: posts.DealAvailable},
		}},
		ledger:  &fakeLedger{balances: map[int64]int64{buyerID: 10, authorID: 3}},
		history: &fakeHistory{},
		users: &fakeUsers{
			users: map[int64]*users.User{
				buyerID:  {ID: buyerID, Email: "buyer@corp.ru", Phone: "+79161234567"},
				authorID: {ID: authorID, Email: "seller@steel.ru", Phone: "123"},
			},
			penalties: map[int64]int{},
		},
		rec:   &recorder{},
		clock: &testClock{t: t0},
	}
	e.svc = NewService(Deps{
		Store:    e.store,
		Posts:    e.posts,
		Ledger:   e.ledger,
		History:  e.history,
		Users:    e.users,
		Notifier: e.rec,
		Clock:    e.clock,
	}, Settings{LifetimeDays: 90, AutoClosePenalty: 5, SweepConcurrency: 4})
	return e
}
