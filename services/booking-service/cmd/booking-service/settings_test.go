package main

import (
	"strings"
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/slotbook")
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.LockBackend != "postgres" || s.SoftLockTTL != 10*time.Minute || s.CancellationHorizon != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.MaxAdvance != 90*24*time.Hour || s.DefaultTimezone != "UTC" || s.InboxRetention != 7*24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestLoadSettingsCollectsErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("DEFAULT_TIMEZONE", "Mars/Base")
	_, err := loadSettings()
	if err == nil {
		t.Fatal("expected configuration errors")
	}
	for _, want := range []string{"DATABASE_URL", "REDIS_ADDR", "DEFAULT_TIMEZONE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}
