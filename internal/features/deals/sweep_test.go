package deals

import (
	"context"
	"testing"
	"time"

	"serotonyl.ru/deal-desk/internal/features/posts"
	"serotonyl.ru/deal-desk/internal/notify"
)

func TestSweepAutoClosesStaleDeals(t *testing.T) {
	e := newEnv()
	d := e.create(t)
	e.clock.Advance(90*24*time.Hour + time.Hour)

	rep, err := e.svc.RunLifecycleSweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Processed != 1 || rep.Closed != 1 || rep.Errors != 0 {
		t.Fatalf("report = %+v", rep)
	}

	got, _ := e.store.Get(context.Background(), d.ID)
	if got.Status != StatusClosed || got.IsActive || !got.ChronicNonUpdate {
		t.Fatalf("deal not auto-closed: %+v", got)
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if last.Initiator != InitiatorScheduler || last.UpdatedBy != nil {
		t.Errorf("history entry: %+v", last)
	}
	if got.CreditAdjustments.Penalty != 5 {
		t.Errorf("penalty = %d", got.CreditAdjustments.Penalty)
	}
	// Баланс не уходит в минус.
	if e.ledger.balances[authorID] != 0 || e.ledger.balances[buyerID] != 5 {
		t.Errorf("balances = %v", e.ledger.balances)
	}
	if e.users.penalties[buyerID] != 1 || e.users.penalties[authorID] != 1 {
		t.Errorf("penalty counters = %v", e.users.penalties)
	}
	if e.posts.status(postID) != posts.DealCancelled {
		t.Errorf("post status = %q", e.posts.status(postID))
	}
	closed := e.rec.ofType(notify.TypeDealAutoClosed)
	if len(closed) != 2 || closed[0].n.Priority != notify.PriorityUrgent {
		t.Fatalf("auto-close notifications: %+v", closed)
	}
	if len(e.rec.ofType(notify.TypeDealUpdate)) != 0 {
		t.Error("scheduler must not send the generic update notification")
	}

	rep, _ = e.svc.RunLifecycleSweep(context.Background())
	if rep.Processed != 0 {
		t.Errorf("closed deal swept again: %+v", rep)
	}
}

func TestSweepSendsReminders(t *testing.T) {
	e := newEnv()
	d := e.create(t)

	e.clock.Advance(24*time.Hour + time.Hour)
	rep, _ := e.svc.RunLifecycleSweep(context.Background())
	if rep.Reminded != 1 {
		t.Fatalf("day 1: %+v", rep)
	}
	rep, _ = e.svc.RunLifecycleSweep(context.Background())
	if rep.Reminded != 0 {
		t.Fatalf("day 1 reminder sent twice: %+v", rep)
	}

	e.clock.Advance(6 * 24 * time.Hour)
	rep, _ = e.svc.RunLifecycleSweep(context.Background())
	if rep.Reminded != 1 {
		t.Fatalf("day 7: %+v", rep)
	}
	got, _ := e.store.Get(context.Background(), d.ID)
	if got.LastReminderSent == nil || !got.LastReminderSent.Equal(e.clock.Now()) {
		t.Errorf("lastReminderSent = %v", got.LastReminderSent)
	}

	reminders := e.rec.ofType(notify.TypeDealReminder)
	if len(reminders) != 4 {
		t.Fatalf("each party gets each reminder: %d", len(reminders))
	}
	if got.Status != StatusContacted || len(e.ledger.calls) != 0 {
		t.Error("reminders must not change the deal or credits")
	}
}

func TestSweepFinalWarning(t *testing.T) {
	e := newEnv()
	e.create(t)
	e.clock.Advance(85*24*time.Hour + time.Hour)

	if rep, _ := e.svc.RunLifecycleSweep(context.Background()); rep.Reminded != 1 {
		t.Fatalf("%+v", rep)
	}
	for _, r := range e.rec.ofType(notify.TypeDealReminder) {
		if r.n.Priority != notify.PriorityUrgent {
			t.Errorf("final warning priority = %q", r.n.Priority)
		}
	}
}

func TestSweepSkipsResolvedDeals(t *testing.T) {
	e := newEnv()
	d := e.create(t)
	e.move(t, buyerID, d.ID, StatusOngoing)
	e.move(t, buyerID, d.ID, StatusSuccess)
	e.move(t, authorID, d.ID, StatusSuccess)
	e.clock.Advance(120 * 24 * time.Hour)

	rep, _ := e.svc.RunLifecycleSweep(context.Background())
	if rep.Processed != 0 {
		t.Fatalf("resolved deal swept: %+v", rep)
	}
}
