package ratelimit

import (
	"encoding/json"
	"testing"
	"time"

	internalsettings "github.com/Xcertik-Realist/X-name-change-bot/internal/settings"
)

func TestValidateSettingValue_MaxPerWindowMustBePositive(t *testing.T) {
	key := internalsettings.RateLimitMaxPerWindowKey
	for _, raw := range []string{`0`, `-1`, `"ten"`} {
		if err := ValidateSettingValue(key, json.RawMessage(raw)); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
	if err := ValidateSettingValue(key, json.RawMessage(`5`)); err != nil {
		t.Fatalf("expected 5 to be accepted, got %v", err)
	}
	if err := ValidateSettingValue(internalsettings.RateLimitRedisDBKey, json.RawMessage(`0`)); err != nil {
		t.Fatalf("expected redis db 0 to be accepted, got %v", err)
	}
}

func TestLoadSettingsConfig_IgnoresZeroMaxPerWindow(t *testing.T) {
	t.Cleanup(func() { internalsettings.StoreDBConfig(time.Time{}, nil) })

	internalsettings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		internalsettings.RateLimitMaxPerWindowKey:  json.RawMessage(`0`),
		internalsettings.RateLimitWindowSecondsKey: json.RawMessage(`60`),
	})
	cfg := LoadSettingsConfig()
	if cfg.MaxPerWindow != internalsettings.DefaultRateLimitMaxPerWindow {
		t.Fatalf("expected default max %d, got %d", internalsettings.DefaultRateLimitMaxPerWindow, cfg.MaxPerWindow)
	}
	if cfg.Window != time.Minute {
		t.Fatalf("expected window 1m, got %s", cfg.Window)
	}
}
