package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("WorkerCount = %d, want 2", cfg.WorkerCount)
	}
	if cfg.TierDeeplyLovingMin != 75 {
		t.Errorf("TierDeeplyLovingMin = %v, want 75", cfg.TierDeeplyLovingMin)
	}
	if cfg.MinSurfaceGap != 4*time.Hour {
		t.Errorf("MinSurfaceGap = %v, want 4h", cfg.MinSurfaceGap)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	t.Setenv("TIER_DEEPLY_LOVING_MIN", "100")
	t.Setenv("CLASSIFIER_TIMEOUT", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.UseMemoryQueue {
		t.Error("UseMemoryQueue should be true")
	}
	// The sibling tuning raises the close_friend ceiling to 100.
	if cfg.TierDeeplyLovingMin != 100 {
		t.Errorf("TierDeeplyLovingMin = %v, want 100", cfg.TierDeeplyLovingMin)
	}
	if cfg.ClassifierTimeout != 2*time.Second {
		t.Errorf("ClassifierTimeout = %v, want 2s", cfg.ClassifierTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("TIER_FRIEND_MIN", "not-a-number")

	cfg := Load()

	if cfg.WorkerCount != 2 {
		t.Errorf("WorkerCount = %d, want default 2", cfg.WorkerCount)
	}
	if cfg.TierFriendMin != 10 {
		t.Errorf("TierFriendMin = %v, want default 10", cfg.TierFriendMin)
	}
}
