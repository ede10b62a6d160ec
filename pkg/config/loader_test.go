package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	if cfg.HTTP.Port != 46000 {
		t.Errorf("expected port 46000, got %d", cfg.HTTP.Port)
	}
	if cfg.Language.DefaultLanguage != "ar" {
		t.Errorf("expected default language ar, got %q", cfg.Language.DefaultLanguage)
	}
	if cfg.Language.DetectionThreshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %v", cfg.Language.DetectionThreshold)
	}
	if cfg.Interruption.TargetLatency != 200*time.Millisecond {
		t.Errorf("expected 200ms interruption target, got %v", cfg.Interruption.TargetLatency)
	}
	if cfg.Grounding.FuzzyThreshold != 0.85 || cfg.Grounding.Limit != 5 {
		t.Errorf("unexpected grounding defaults: %+v", cfg.Grounding)
	}
	if cfg.Cache.KeywordTTL != time.Hour {
		t.Errorf("expected keyword ttl 1h, got %v", cfg.Cache.KeywordTTL)
	}
}

func TestLoad_EnvAliases(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DEFAULT_LANGUAGE", "en")
	t.Setenv("LANGUAGE_DETECTION_THRESHOLD", "0.65")
	t.Setenv("INTERRUPTION_DETECTION_MS", "150")
	t.Setenv("CODE_SWITCHING_ENABLED", "false")
	t.Setenv("LLM_ENDPOINT", "http://llm:11434")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	if cfg.HTTP.Port != 8081 {
		t.Errorf("expected port 8081, got %d", cfg.HTTP.Port)
	}
	if cfg.Language.DefaultLanguage != "en" {
		t.Errorf("expected en, got %q", cfg.Language.DefaultLanguage)
	}
	if cfg.Language.DetectionThreshold != 0.65 {
		t.Errorf("expected 0.65, got %v", cfg.Language.DetectionThreshold)
	}
	if cfg.Language.CodeSwitchingEnabled {
		t.Error("expected code switching disabled")
	}
	if cfg.Interruption.TargetLatency != 150*time.Millisecond {
		t.Errorf("expected 150ms, got %v", cfg.Interruption.TargetLatency)
	}
	if cfg.Backends.LLM.Endpoint != "http://llm:11434" {
		t.Errorf("unexpected llm endpoint %q", cfg.Backends.LLM.Endpoint)
	}
}
