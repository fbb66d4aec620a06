package deals

import (
	"errors"
	"strings"
	"testing"
	"time"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
)

func TestTransitionGraph(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusContacted, StatusOngoing}: true,
		{StatusContacted, StatusClosed}:  true,
		{StatusOngoing, StatusSuccess}:   true,
		{StatusOngoing, StatusFail}:      true,
		{StatusOngoing, StatusClosed}:    true,
		{StatusSuccess, StatusClosed}:    true,
		{StatusFail, StatusClosed}:       true,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	for _, from := range AllStatuses {
		if CanTransition(from, StatusContacted) {
			t.Errorf("%s → Contacted must be impossible", from)
		}
	}
}

func TestValidateTransitionNamesBothStatuses(t *testing.T) {
	err := ValidateTransition(StatusSuccess, StatusOngoing)
	if !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(err.Error(), "Success") || !strings.Contains(err.Error(), "Ongoing") {
		t.Errorf("message must name both statuses: %q", err.Error())
	}
	if common.KindOf(err) != common.KindValidation {
		t.Errorf("kind = %v", common.KindOf(err))
	}
}

func TestTimingAdjustment(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		elapsed time.Duration
		want    credits.Adjustment
	}{
		{"same day", 3 * time.Hour, credits.Adjustment{Bonus: 5}},
		{"exactly one day", 24 * time.Hour, credits.Adjustment{Bonus: 5}},
		{"just over a day", 24*time.Hour + time.Second, credits.Adjustment{Bonus: 3}},
		{"seven days", 7 * 24 * time.Hour, credits.Adjustment{Bonus: 3}},
		{"ten days", 10 * 24 * time.Hour, credits.Adjustment{Bonus: 1}},
		{"thirty days", 30 * 24 * time.Hour, credits.Adjustment{Bonus: 1}},
		{"over thirty days", 30*24*time.Hour + time.Hour, credits.Adjustment{Penalty: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TimingAdjustment(created, created.Add(tc.elapsed)); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSettlesCredits(t *testing.T) {
	if !SettlesCredits(StatusOngoing, StatusSuccess) || !SettlesCredits(StatusContacted, StatusClosed) {
		t.Error("open → terminal must settle")
	}
	if SettlesCredits(StatusSuccess, StatusClosed) || SettlesCredits(StatusContacted, StatusOngoing) {
		t.Error("settlement must happen only once, on leaving an open status")
	}
}
