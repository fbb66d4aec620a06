package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DBMaxConns:           25,
		DBMinConns:           5,
		DealLifetimeDays:     90,
		DealAutoClosePenalty: 5,
		DealSweepCron:        "0 9 * * *",
		PostSweepCron:        "0 10 * * *",
		SweepConcurrency:     4,
		UnlockCost:           1,
		RateLimitRequests:    60,
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"min > max conns", func(c *Config) { c.DBMinConns = 30 }},
		{"zero lifetime", func(c *Config) { c.DealLifetimeDays = 0 }},
		{"negative penalty", func(c *Config) { c.DealAutoClosePenalty = -1 }},
		{"broken cron", func(c *Config) { c.DealSweepCron = "every day" }},
		{"zero concurrency", func(c *Config) { c.SweepConcurrency = 0 }},
		{"zero unlock cost", func(c *Config) { c.UnlockCost = 0 }},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseInt64CSV(t *testing.T) {
	ids, err := parseInt64CSV(" 1, 2 ,,3 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, err := parseInt64CSV("1,x"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestIsAdminAndLifetime(t *testing.T) {
	c := validConfig()
	if !c.IsAdmin(42) {
		t.Error("empty ADMIN_IDS must allow any token holder")
	}
	c.AdminIDs = []int64{7}
	if c.IsAdmin(42) || !c.IsAdmin(7) {
		t.Error("ADMIN_IDS filter not applied")
	}
	if c.DealLifetime() != 90*24*time.Hour {
		t.Errorf("unexpected lifetime %v", c.DealLifetime())
	}
}
