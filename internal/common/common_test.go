package common

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPluralizeCredits(t *testing.T) {
	cases := map[int64]string{
		0:   "кредитов",
		1:   "кредит",
		2:   "кредита",
		5:   "кредитов",
		11:  "кредитов",
		21:  "кредит",
		22:  "кредита",
		112: "кредитов",
		-3:  "кредита",
	}
	for n, want := range cases {
		if got := PluralizeCredits(n); got != want {
			t.Errorf("PluralizeCredits(%d) = %q, want %q", n, got, want)
		}
	}
	if got := FormatDays(7); got != "7 дней" {
		t.Errorf("FormatDays(7) = %q", got)
	}
}

func TestWrapfKeepsSentinelAndKind(t *testing.T) {
	err := Wrapf(ErrInvalidTransition, "нельзя перейти из %s в %s", "Success", "Ongoing")
	wrapped := fmt.Errorf("transition: %w", err)

	if !errors.Is(wrapped, ErrInvalidTransition) {
		t.Fatal("expected errors.Is to match sentinel")
	}
	if KindOf(wrapped) != KindValidation {
		t.Fatalf("expected validation kind, got %s", KindOf(wrapped))
	}
	if err.Error() != "нельзя перейти из Success в Ongoing" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("plain errors must be internal")
	}
}

func TestWholeDaysBetween(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	if d := WholeDaysBetween(base, base.Add(47*time.Hour)); d != 1 {
		t.Errorf("expected 1 day, got %d", d)
	}
	if d := DaysBetween(base, base.Add(36*time.Hour)); d != 1.5 {
		t.Errorf("expected 1.5 days, got %v", d)
	}
	if Round2(1.23456) != 1.23 {
		t.Error("Round2 failed")
	}
}
