package deals

import (
	"testing"
	"time"
)

func TestReminderFor(t *testing.T) {
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return created.Add(time.Duration(n) * 24 * time.Hour) }
	ptr := func(t time.Time) *time.Time { return &t }

	cases := []struct {
		name  string
		now   time.Time
		last  *time.Time
		want  bool
		final bool
	}{
		{"day 1, never reminded", day(1).Add(time.Hour), nil, true, false},
		{"day 1, already reminded", day(1), ptr(day(0)), false, false},
		{"day 0", day(0).Add(time.Hour), nil, false, false},
		{"day 7, last on day 2", day(7), ptr(day(2)), false, false},
		{"day 7, last on day 0", day(7), ptr(day(0)), true, false},
		{"day 7, never reminded", day(7), nil, true, false},
		{"day 8", day(8), nil, false, false},
		{"day 30, last on day 7", day(30), ptr(day(7)), true, false},
		{"day 30, last on day 10", day(30), ptr(day(10)), false, false},
		{"day 85, last on day 30", day(85), ptr(day(30)), true, true},
		{"day 85, last on day 40", day(85), ptr(day(40)), false, false},
		{"day 89", day(89), nil, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, ok := ReminderFor(created, tc.last, tc.now)
			if ok != tc.want {
				t.Fatalf("ok = %v, want %v", ok, tc.want)
			}
			if ok && r.Final != tc.final {
				t.Errorf("final = %v, want %v", r.Final, tc.final)
			}
		})
	}
}

func TestReminderNotificationWording(t *testing.T) {
	d := &Deal{ID: 1, DealID: "DEAL-1"}
	n := reminderNotification(Reminder{Day: 85, Final: true}, RoleUnlocker, d, "Арматура", 5)
	if n.Priority != "urgent" {
		t.Errorf("final warning priority = %q", n.Priority)
	}
	if n.Title != "Напоминание о сделке (85 дней): последнее предупреждение" {
		t.Errorf("title = %q", n.Title)
	}
	n = reminderNotification(Reminder{Day: 7}, RoleAuthor, d, "Арматура", 83)
	if n.Priority != "medium" || n.Title != "Напоминание о сделке (7 дней)" {
		t.Errorf("regular reminder: %+v", n)
	}
}
