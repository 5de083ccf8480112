package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected
// default values. This serves as living documentation of the defaults;
// changing one should be intentional enough to update the test.
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	t.Run("default TorProxyAddress is 127.0.0.1:9050", func(t *testing.T) {
		if cfg.TorProxyAddress != "127.0.0.1:9050" {
			t.Errorf("expected TorProxyAddress to be '127.0.0.1:9050', got '%s'", cfg.TorProxyAddress)
		}
	})

	t.Run("default TorControlAddress is 127.0.0.1:9051", func(t *testing.T) {
		if cfg.TorControlAddress != "127.0.0.1:9051" {
			t.Errorf("expected TorControlAddress to be '127.0.0.1:9051', got '%s'", cfg.TorControlAddress)
		}
	})

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxDepth is 2", func(t *testing.T) {
		if cfg.MaxDepth != 2 {
			t.Errorf("expected MaxDepth to be 2, got %d", cfg.MaxDepth)
		}
	})

	t.Run("default MaxPages is 20", func(t *testing.T) {
		if cfg.MaxPages != 20 {
			t.Errorf("expected MaxPages to be 20, got %d", cfg.MaxPages)
		}
	})

	t.Run("default Delay is 7 seconds", func(t *testing.T) {
		if cfg.Delay != 7*time.Second {
			t.Errorf("expected Delay to be 7s, got %v", cfg.Delay)
		}
	})

	t.Run("default RetryCount is 3", func(t *testing.T) {
		if cfg.RetryCount != 3 {
			t.Errorf("expected RetryCount to be 3, got %d", cfg.RetryCount)
		}
	})

	t.Run("default BackoffFactor is 4.0", func(t *testing.T) {
		if cfg.BackoffFactor != 4.0 {
			t.Errorf("expected BackoffFactor to be 4.0, got %v", cfg.BackoffFactor)
		}
	})

	t.Run("default RenewInterval is 10", func(t *testing.T) {
		if cfg.RenewInterval != 10 {
			t.Errorf("expected RenewInterval to be 10, got %d", cfg.RenewInterval)
		}
	})

	t.Run("default Workers is 3", func(t *testing.T) {
		if cfg.Workers != 3 {
			t.Errorf("expected Workers to be 3, got %d", cfg.Workers)
		}
	})

	t.Run("default Blacklist is the account paths", func(t *testing.T) {
		expected := []string{"/register", "/login", "/signup", "/auth"}
		if len(cfg.Blacklist) != len(expected) {
			t.Fatalf("expected blacklist %v, got %v", expected, cfg.Blacklist)
		}
		for i, e := range expected {
			if cfg.Blacklist[i] != e {
				t.Errorf("blacklist[%d] = %q, expected %q", i, cfg.Blacklist[i], e)
			}
		}
	})

	t.Run("default UseExternalTor is false", func(t *testing.T) {
		if cfg.UseExternalTor {
			t.Error("expected UseExternalTor to be false")
		}
	})

	t.Run("default TorStartupTimeout is 3 minutes", func(t *testing.T) {
		if cfg.TorStartupTimeout != 3*time.Minute {
			t.Errorf("expected TorStartupTimeout to be 3m, got %v", cfg.TorStartupTimeout)
		}
	})

	t.Run("default MaxBodySize is 5MB", func(t *testing.T) {
		if cfg.MaxBodySize != 5*1024*1024 {
			t.Errorf("expected MaxBodySize to be 5MB, got %d", cfg.MaxBodySize)
		}
	})
}

// TestControlPasswordFromEnv verifies the control password is picked up
// from the environment.
func TestControlPasswordFromEnv(t *testing.T) {
	t.Setenv(ControlPasswordEnv, "hunter2")

	cfg := NewConfig()
	if cfg.TorControlPassword != "hunter2" {
		t.Errorf("expected control password from env, got %q", cfg.TorControlPassword)
	}
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case exercises one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	// validConfig returns a minimal valid configuration. Tests modify
	// specific fields to trigger individual validation rules.
	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seeds = []string{"http://exampleonionv3addressxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.onion/"}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("empty seeds returns ErrNoSeeds", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Seeds = nil

		if err := cfg.Validate(); !errors.Is(err, ErrNoSeeds) {
			t.Errorf("expected ErrNoSeeds, got %v", err)
		}
	})

	t.Run("negative depth returns ErrInvalidDepth", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxDepth = -1

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidDepth) {
			t.Errorf("expected ErrInvalidDepth, got %v", err)
		}
	})

	t.Run("zero depth is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxDepth = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error for depth 0, got %v", err)
		}
	})

	t.Run("zero max pages returns ErrInvalidMaxPages", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxPages = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxPages) {
			t.Errorf("expected ErrInvalidMaxPages, got %v", err)
		}
	})

	t.Run("negative delay returns ErrInvalidDelay", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Delay = -time.Second

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidDelay) {
			t.Errorf("expected ErrInvalidDelay, got %v", err)
		}
	})

	t.Run("zero timeout returns ErrInvalidTimeout", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Timeout = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("expected ErrInvalidTimeout, got %v", err)
		}
	})

	t.Run("zero retry count returns ErrInvalidRetryCount", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.RetryCount = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidRetryCount) {
			t.Errorf("expected ErrInvalidRetryCount, got %v", err)
		}
	})

	t.Run("zero backoff factor returns ErrInvalidBackoffFactor", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.BackoffFactor = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBackoffFactor) {
			t.Errorf("expected ErrInvalidBackoffFactor, got %v", err)
		}
	})

	t.Run("negative renew interval returns ErrInvalidRenewInterval", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.RenewInterval = -1

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidRenewInterval) {
			t.Errorf("expected ErrInvalidRenewInterval, got %v", err)
		}
	})

	t.Run("zero renew interval disables rotation and is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.RenewInterval = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error for renew interval 0, got %v", err)
		}
	})

	t.Run("zero workers returns ErrInvalidWorkers", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Workers = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidWorkers) {
			t.Errorf("expected ErrInvalidWorkers, got %v", err)
		}
	})

	t.Run("negative max body size returns ErrInvalidMaxBodySize", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxBodySize = -1

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxBodySize) {
			t.Errorf("expected ErrInvalidMaxBodySize, got %v", err)
		}
	})

	t.Run("resume without database returns ErrResumeWithoutDB", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Resume = true
		cfg.SaveToDB = false

		if err := cfg.Validate(); !errors.Is(err, ErrResumeWithoutDB) {
			t.Errorf("expected ErrResumeWithoutDB, got %v", err)
		}
	})

	t.Run("resume with database is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Resume = true
		cfg.SaveToDB = true

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestFileApplyTo tests overlaying a config file onto a Config.
func TestFileApplyTo(t *testing.T) {
	t.Parallel()

	intPtr := func(v int) *int { return &v }
	floatPtr := func(v float64) *float64 { return &v }
	boolPtr := func(v bool) *bool { return &v }

	t.Run("empty file leaves defaults untouched", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		(&File{}).ApplyTo(cfg)

		if cfg.MaxDepth != DefaultMaxDepth {
			t.Errorf("MaxDepth = %d, expected default %d", cfg.MaxDepth, DefaultMaxDepth)
		}
		if cfg.Delay != DefaultDelay {
			t.Errorf("Delay = %v, expected default %v", cfg.Delay, DefaultDelay)
		}
		if len(cfg.Blacklist) != len(DefaultBlacklist()) {
			t.Errorf("Blacklist = %v, expected defaults", cfg.Blacklist)
		}
	})

	t.Run("file seeds are appended", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Seeds = []string{"http://cli.onion/"}
		f := &File{Seeds: []string{"http://file.onion/"}}
		f.ApplyTo(cfg)

		if len(cfg.Seeds) != 2 {
			t.Fatalf("expected 2 seeds, got %v", cfg.Seeds)
		}
		if cfg.Seeds[1] != "http://file.onion/" {
			t.Errorf("expected file seed appended, got %v", cfg.Seeds)
		}
	})

	t.Run("file blacklist replaces defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		f := &File{Blacklist: []string{"/admin"}}
		f.ApplyTo(cfg)

		if len(cfg.Blacklist) != 1 || cfg.Blacklist[0] != "/admin" {
			t.Errorf("expected blacklist [/admin], got %v", cfg.Blacklist)
		}
	})

	t.Run("crawl settings overwrite when set", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		f := &File{
			Crawl: CrawlSettings{
				Depth:          intPtr(4),
				MaxPages:       intPtr(50),
				DelaySeconds:   floatPtr(1.5),
				TimeoutSeconds: floatPtr(60),
				RetryCount:     intPtr(5),
				BackoffFactor:  floatPtr(2.0),
				RenewInterval:  intPtr(25),
				Workers:        intPtr(8),
			},
		}
		f.ApplyTo(cfg)

		if cfg.MaxDepth != 4 {
			t.Errorf("MaxDepth = %d, expected 4", cfg.MaxDepth)
		}
		if cfg.MaxPages != 50 {
			t.Errorf("MaxPages = %d, expected 50", cfg.MaxPages)
		}
		if cfg.Delay != 1500*time.Millisecond {
			t.Errorf("Delay = %v, expected 1.5s", cfg.Delay)
		}
		if cfg.Timeout != time.Minute {
			t.Errorf("Timeout = %v, expected 1m", cfg.Timeout)
		}
		if cfg.RetryCount != 5 {
			t.Errorf("RetryCount = %d, expected 5", cfg.RetryCount)
		}
		if cfg.BackoffFactor != 2.0 {
			t.Errorf("BackoffFactor = %v, expected 2.0", cfg.BackoffFactor)
		}
		if cfg.RenewInterval != 25 {
			t.Errorf("RenewInterval = %d, expected 25", cfg.RenewInterval)
		}
		if cfg.Workers != 8 {
			t.Errorf("Workers = %d, expected 8", cfg.Workers)
		}
	})

	t.Run("tor settings overwrite when set", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		f := &File{
			Tor: TorSettings{
				ProxyAddress:   "127.0.0.1:9150",
				ControlAddress: "127.0.0.1:9151",
				External:       boolPtr(true),
			},
		}
		f.ApplyTo(cfg)

		if cfg.TorProxyAddress != "127.0.0.1:9150" {
			t.Errorf("TorProxyAddress = %q, expected 127.0.0.1:9150", cfg.TorProxyAddress)
		}
		if cfg.TorControlAddress != "127.0.0.1:9151" {
			t.Errorf("TorControlAddress = %q, expected 127.0.0.1:9151", cfg.TorControlAddress)
		}
		if !cfg.UseExternalTor {
			t.Error("expected UseExternalTor true")
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.onionharvest")
		if err == nil {
			t.Fatal("expected error for non-existent file")
		}
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ".onionharvest")

		content := `seeds:
  - "http://exampleonionv3addressxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.onion/"
blacklist:
  - "/admin"
  - "/login"
crawl:
  depth: 3
  maxPages: 40
  delaySeconds: 2.5
  workers: 5
tor:
  proxyAddress: "127.0.0.1:9150"
  external: true
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cf.Seeds) != 1 {
			t.Errorf("expected 1 seed, got %d", len(cf.Seeds))
		}
		if len(cf.Blacklist) != 2 {
			t.Errorf("expected 2 blacklist entries, got %d", len(cf.Blacklist))
		}
		if cf.Crawl.Depth == nil || *cf.Crawl.Depth != 3 {
			t.Errorf("expected depth 3, got %v", cf.Crawl.Depth)
		}
		if cf.Crawl.DelaySeconds == nil || *cf.Crawl.DelaySeconds != 2.5 {
			t.Errorf("expected delaySeconds 2.5, got %v", cf.Crawl.DelaySeconds)
		}
		if cf.Tor.ProxyAddress != "127.0.0.1:9150" {
			t.Errorf("expected proxy 127.0.0.1:9150, got %q", cf.Tor.ProxyAddress)
		}
		if cf.Tor.External == nil || !*cf.Tor.External {
			t.Error("expected external: true")
		}
		if cf.Crawl.RetryCount != nil {
			t.Error("expected unset retryCount to stay nil")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ".onionharvest")

		content := `invalid: yaml: content: [}`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "custom.yaml")

		if err := os.WriteFile(configPath, []byte("seeds: []"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		result := FindConfigFile(configPath)
		if result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		result := FindConfigFile("/nonexistent/path/config.yaml")
		if result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("returns empty when no config found", func(_ *testing.T) {
		result := FindConfigFile("")
		// This may or may not find a config depending on the system
		// Just ensure it doesn't panic
		_ = result
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	t.Run("XDGDataDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGDataDir()
		if dir == "" {
			t.Error("expected non-empty XDG data dir")
		}
	})

	t.Run("XDGConfigDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGConfigDir()
		if dir == "" {
			t.Error("expected non-empty XDG config dir")
		}
	})

	t.Run("XDGCacheDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGCacheDir()
		if dir == "" {
			t.Error("expected non-empty XDG cache dir")
		}
	})
}
