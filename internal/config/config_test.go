package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DISPATCH_MODE", "")
	t.Setenv("ANALYSIS_TIMEOUT_SECONDS", "")
	t.Setenv("NLP_RETRY_MAX_ATTEMPTS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DispatchMode != DispatchInProcess {
		t.Fatalf("expected default dispatch mode inproc, got %q", cfg.DispatchMode)
	}
	if cfg.AnalysisTimeout() != 300*time.Second {
		t.Fatalf("expected default analysis timeout 300s, got %s", cfg.AnalysisTimeout())
	}
	if cfg.NLPResilience.RetryMaxAttempts != 3 {
		t.Fatalf("expected default retry attempts 3, got %d", cfg.NLPResilience.RetryMaxAttempts)
	}
	if cfg.NATSSubject != "analysis.requested" {
		t.Fatalf("expected default subject, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DISPATCH_MODE", "NATS")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("NLP_BREAKER_ENABLED", "false")
	t.Setenv("NLP_RETRY_INITIAL_BACKOFF_MS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DispatchMode != DispatchNATS {
		t.Fatalf("expected dispatch mode nats, got %q", cfg.DispatchMode)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Fatalf("expected worker concurrency 8, got %d", cfg.WorkerConcurrency)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.NLPResilience.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.NLPResilience.RetryInitialBackoff != 250*time.Millisecond {
		t.Fatalf("expected backoff 250ms, got %s", cfg.NLPResilience.RetryInitialBackoff)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUEUE_SIZE", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QueueSize != 100 {
		t.Fatalf("expected fallback queue size 100, got %d", cfg.QueueSize)
	}
}

func TestLoadRejectsUnknownDispatchMode(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DISPATCH_MODE", "kafka")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown dispatch mode")
	}
}

func TestLoadReadsConfigFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "nlp_url: http://nlp.internal:5000\nworker_concurrency: 12\nLOG_LEVEL: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("NLP_URL", "")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NLPURL != "http://nlp.internal:5000" {
		t.Fatalf("expected NLP URL from file, got %q", cfg.NLPURL)
	}
	if cfg.WorkerConcurrency != 12 {
		t.Fatalf("expected worker concurrency 12 from file, got %d", cfg.WorkerConcurrency)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env to win over file, got %q", cfg.LogLevel)
	}
}

func TestLoadFailsOnBrokenConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("a: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
