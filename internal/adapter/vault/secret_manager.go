package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/pkg/config"
)

// Secret keys read from the KV v2 entry
const (
	KeyDatabaseURL = "database_url"
	KeyRedisURL    = "redis_url"
	KeyJWTSecret   = "jwt_secret"
	KeyLLMAPIKey   = "llm_api_key"
)

type SecretManager struct {
	client *api.Client
	path   string
	log    *zap.Logger
}

func NewSecretManager(cfg config.VaultConfig, log *zap.Logger) (*SecretManager, error) {
	vcfg := api.DefaultConfig()
	vcfg.Address = cfg.Address

	client, err := api.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	path := cfg.SecretPath
	if path == "" {
		path = "secret/data/drivethru"
	}

	return &SecretManager{client: client, path: path, log: log}, nil
}

// Secrets reads the KV v2 entry and returns its string values
func (sm *SecretManager) Secrets(ctx context.Context) (map[string]string, error) {
	secret, err := sm.client.Logical().ReadWithContext(ctx, sm.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sm.path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at %s", sm.path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("secret at %s is not a kv v2 entry", sm.path)
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// Apply overlays secrets from vault onto cfg. Missing keys leave cfg as is.
func (sm *SecretManager) Apply(ctx context.Context, cfg *config.Config) error {
	secrets, err := sm.Secrets(ctx)
	if err != nil {
		return err
	}

	applied := 0
	set := func(key string, dst *string) {
		if v := secrets[key]; v != "" {
			*dst = v
			applied++
		}
	}
	set(KeyDatabaseURL, &cfg.Database.URL)
	set(KeyRedisURL, &cfg.Redis.URL)
	set(KeyJWTSecret, &cfg.Security.JWTSecret)
	set(KeyLLMAPIKey, &cfg.Backends.LLM.APIKey)

	sm.log.Info("Loaded secrets from vault", zap.String("path", sm.path), zap.Int("applied", applied))
	return nil
}
