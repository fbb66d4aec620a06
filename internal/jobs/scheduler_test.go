package jobs

import (
	"context"
	"errors"
	"testing"

	"serotonyl.ru/deal-desk/internal/features/deals"
	"serotonyl.ru/deal-desk/internal/features/posts"
)

type countingSweeper struct {
	dealRuns, postRuns int
	err                error
}

func (c *countingSweeper) RunLifecycleSweep(context.Context) (deals.SweepReport, error) {
	c.dealRuns++
	return deals.SweepReport{}, c.err
}

func (c *countingSweeper) RunValiditySweep(context.Context) (posts.SweepReport, error) {
	c.postRuns++
	return posts.SweepReport{}, c.err
}

func TestStartRejectsBrokenSchedule(t *testing.T) {
	sw := &countingSweeper{}
	s := NewScheduler(sw, sw, Schedule{DealSweep: "every morning", PostSweep: "0 10 * * *"}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestStartAndRunNow(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	s := NewScheduler(sw, sw, Schedule{DealSweep: "0 9 * * *", PostSweep: "0 10 * * *"}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if n := len(s.cron.Entries()); n != 2 {
		t.Fatalf("entries = %d", n)
	}
	s.RunDealSweep(context.Background())
	s.RunPostSweep(context.Background())
	if sw.dealRuns != 1 || sw.postRuns != 1 {
		t.Fatalf("runs = %d/%d", sw.dealRuns, sw.postRuns)
	}
}
