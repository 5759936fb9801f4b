package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("DRAFT_TTL", "48h")
	t.Setenv("CLAMD_ADDR", "tcp://clamav:3310")
	t.Setenv("API_ALLOWED_ORIGINS", "http://localhost:5173,https://cv.example.com")
	t.Setenv("WORKER_CAPTURE_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Fatalf("api port default = %d", cfg.API.Port)
	}
	if cfg.Redis.Addr() != "localhost:6380" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr())
	}
	if cfg.Draft.TTL != 48*time.Hour {
		t.Fatalf("draft ttl = %s", cfg.Draft.TTL)
	}
	if cfg.MinIO.PublicEndpoint != "http://minio:9000" {
		t.Fatalf("public endpoint = %q", cfg.MinIO.PublicEndpoint)
	}
	if cfg.Clamd.Addr != "tcp://clamav:3310" {
		t.Fatalf("clamd addr = %q", cfg.Clamd.Addr)
	}
	if len(cfg.API.AllowedOrigins) != 2 || cfg.API.AllowedOrigins[1] != "https://cv.example.com" {
		t.Fatalf("allowed origins = %v", cfg.API.AllowedOrigins)
	}
	if cfg.Worker.MetricsPort != 9091 {
		t.Fatalf("worker metrics port = %d", cfg.Worker.MetricsPort)
	}
	if cfg.Worker.CaptureTimeout != 90*time.Second {
		t.Fatalf("capture timeout = %s", cfg.Worker.CaptureTimeout)
	}
}

func TestLoadRejectsZeroCaptureTimeout(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
	t.Setenv("WORKER_CAPTURE_TIMEOUT", "0s")
	if _, err := Load(); err == nil {
		t.Fatal("expected zero capture timeout to fail validation")
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing minio credentials to fail validation")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "cv", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=cv sslmode=disable"
	if got := d.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}
