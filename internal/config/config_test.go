package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("s3.bucket", "scrapbook-media")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
	if cfg.S3Region != defaultS3Region {
		t.Fatalf("unexpected region: %s", cfg.S3Region)
	}
	if cfg.EnrichmentEnabled() {
		t.Fatalf("enrichment must be off without provider keys")
	}
}

func TestLoadRequiresBucket(t *testing.T) {
	configViper := NewViper()

	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "s3.bucket") {
		t.Fatalf("expected s3.bucket error, got %v", err)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SCRAPBOOK_S3_BUCKET", "env-bucket")
	t.Setenv("SCRAPBOOK_HTTP_ADDRESS", "127.0.0.1:9999")
	t.Setenv("SCRAPBOOK_AI_ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("SCRAPBOOK_AI_OPENAI_API_KEY", "openai-key")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.S3Bucket != "env-bucket" || cfg.HTTPAddress != "127.0.0.1:9999" {
		t.Fatalf("environment bindings not applied: %+v", cfg)
	}
	if !cfg.EnrichmentEnabled() {
		t.Fatalf("enrichment must switch on with both provider keys")
	}
}
