package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AMQP_URL", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StorageBackend != "filesystem" {
		t.Fatalf("StorageBackend = %q, want filesystem", cfg.StorageBackend)
	}
	if cfg.AMQPURL != "" {
		t.Fatalf("AMQPURL = %q, want empty for in-process execution", cfg.AMQPURL)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("WorkerCount = %d, want 4", cfg.WorkerCount)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("DBMaxConns = %d, want 10", cfg.DBMaxConns)
	}
	if cfg.WebhookRetryInterval != 300*time.Second {
		t.Fatalf("WebhookRetryInterval = %v, want 5m", cfg.WebhookRetryInterval)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig() err = nil, want missing DATABASE_URL error")
	}
}

func TestLoadConfigRequiresMinioEndpoint(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("MINIO_ENDPOINT", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig() err = nil, want missing MINIO_ENDPOINT error")
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("MINIO_ENDPOINT", "minio.internal:9000")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("WORKER_COUNT", "16")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.MinioUseSSL {
		t.Fatalf("MinioUseSSL = false, want true")
	}
	if cfg.WorkerCount != 16 {
		t.Fatalf("WorkerCount = %d, want 16", cfg.WorkerCount)
	}
}
