package test

import (
	"testing"
	"time"

	"pinbin/cfg"
)

func TestConfigDefaults(t *testing.T) {
	loadTestEnv()

	c, err := cfg.Load()
	if err != nil {
		t.Fatalf("cfg.Load() = %v", err)
	}
	if c.Port == "" {
		t.Error("port default missing")
	}
	if c.RecentPastesLimit <= 0 {
		t.Error("recent pastes limit must default to a positive value")
	}
	if c.MaxPasteSize <= 0 {
		t.Error("max paste size must default to a positive value")
	}
	if c.SessionCookieName == "" {
		t.Error("session cookie name default missing")
	}
	if c.SessionMaxAge < time.Minute {
		t.Error("session max age default too small")
	}
	if c.Argon2Memory < 8*1024 {
		t.Error("argon2 memory default below the hasher minimum")
	}
	if c.WALCheckpointEvery < time.Second {
		t.Error("wal checkpoint interval default too small")
	}
	if c.WALEscalatePages <= 0 {
		t.Error("wal escalation threshold must default to a positive value")
	}
}

func TestConfigValidate(t *testing.T) {
	loadTestEnv()

	c := createTestConfig()
	if err := cfg.Validate(c); err != nil {
		t.Errorf("test config should validate, got %v", err)
	}

	bad := createTestConfig()
	bad.Port = ""
	if err := cfg.Validate(bad); err == nil {
		t.Error("empty port should fail validation")
	}

	bad = createTestConfig()
	bad.MaxPasteSize = 0
	if err := cfg.Validate(bad); err == nil {
		t.Error("zero max paste size should fail validation")
	}
}
