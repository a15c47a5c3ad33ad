package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// TestNewConfig documents the defaults; a failing case means a default changed.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected Timeout to be 5s, got %v", cfg.Timeout)
		}
	})

	t.Run("crawl is not recursive by default", func(t *testing.T) {
		t.Parallel()
		if cfg.Recursive {
			t.Error("expected Recursive to be false")
		}
		if cfg.Depth("example.com") != 0 {
			t.Errorf("expected depth 0, got %d", cfg.Depth("example.com"))
		}
	})

	t.Run("default CrawlDepth is 5", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDepth != 5 {
			t.Errorf("expected CrawlDepth to be 5, got %d", cfg.CrawlDepth)
		}
	})

	t.Run("default extensions are common image formats", func(t *testing.T) {
		t.Parallel()
		want := []string{"jpg", "jpeg", "png", "gif", "bmp"}
		if !slices.Equal(cfg.Extensions, want) {
			t.Errorf("expected %v, got %v", want, cfg.Extensions)
		}
	})

	t.Run("default output dir is ./data/", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "./data/" {
			t.Errorf("expected ./data/, got %q", cfg.OutputDir)
		}
	})

	t.Run("default error log is spider.log", func(t *testing.T) {
		t.Parallel()
		if cfg.ErrorLogPath != "spider.log" {
			t.Errorf("expected spider.log, got %q", cfg.ErrorLogPath)
		}
	})

	t.Run("default limits", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 4 || cfg.BatchSize != 1 || cfg.MaxRedirects != 10 || cfg.MaxPages != 0 {
			t.Errorf("unexpected limits: workers=%d batch=%d redirects=%d pages=%d",
				cfg.Concurrency, cfg.BatchSize, cfg.MaxRedirects, cfg.MaxPages)
		}
	})

	t.Run("extensions are not shared with the package default", func(t *testing.T) {
		t.Parallel()
		other := NewConfig()
		other.Extensions[0] = "tiff"
		if DefaultExtensions[0] != "jpg" {
			t.Error("expected DefaultExtensions to be unchanged")
		}
	})
}

// siteDepths returns a configuration file with the given default depth and
// depth for example.com.
func siteDepths(defaults, site int) *File {
	return &File{
		Defaults: SiteConfig{Depth: defaults},
		Sites:    map[string]SiteConfig{"example.com": {Depth: site}},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com"}
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "valid config", modify: func(*Config) {}, want: nil},
		{name: "multiple targets", modify: func(c *Config) { c.Targets = []string{"https://a.com", "https://b.com"} }, want: nil},
		{name: "recursive with default level", modify: func(c *Config) { c.Recursive = true }, want: nil},
		{name: "no targets", modify: func(c *Config) { c.Targets = nil }, want: ErrNoTarget},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "negative crawl timeout", modify: func(c *Config) { c.CrawlTimeout = -time.Second }, want: ErrInvalidCrawlTimeout},
		{name: "level 0 when recursive", modify: func(c *Config) { c.Recursive = true; c.CrawlDepth = 0 }, want: ErrInvalidDepth},
		{name: "level 101 when recursive", modify: func(c *Config) { c.Recursive = true; c.CrawlDepth = 101 }, want: ErrInvalidDepth},
		{name: "level 100 when recursive", modify: func(c *Config) { c.Recursive = true; c.CrawlDepth = 100 }, want: nil},
		{name: "level ignored without recursive", modify: func(c *Config) { c.CrawlDepth = 0 }, want: nil},
		{name: "empty extensions", modify: func(c *Config) { c.Extensions = []string{" ", "."} }, want: ErrNoExtensions},
		{name: "empty output dir", modify: func(c *Config) { c.OutputDir = "" }, want: ErrNoOutputDir},
		{name: "zero workers", modify: func(c *Config) { c.Concurrency = 0 }, want: ErrInvalidConcurrency},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, want: ErrInvalidBatchSize},
		{name: "negative redirects", modify: func(c *Config) { c.MaxRedirects = -1 }, want: ErrInvalidMaxRedirects},
		{name: "zero redirects", modify: func(c *Config) { c.MaxRedirects = 0 }, want: nil},
		{name: "negative max pages", modify: func(c *Config) { c.MaxPages = -1 }, want: ErrInvalidMaxPages},
		{name: "json and markdown", modify: func(c *Config) { c.JSONReport = true; c.MarkdownReport = true }, want: ErrConflictingReportFormats},
		{name: "json only", modify: func(c *Config) { c.JSONReport = true }, want: nil},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "negative download size", modify: func(c *Config) { c.MaxDownloadSize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "tor only", modify: func(c *Config) { c.UseTor = true }, want: nil},
		{name: "tor and proxy", modify: func(c *Config) { c.UseTor = true; c.ProxyAddress = "127.0.0.1:9050" }, want: ErrConflictingProxy},
		{name: "tor with zero startup timeout", modify: func(c *Config) { c.UseTor = true; c.TorStartupTimeout = 0 }, want: ErrInvalidTorStartupTimeout},
		{name: "startup timeout ignored without tor", modify: func(c *Config) { c.TorStartupTimeout = 0 }, want: nil},
		{name: "site depth above 100", modify: func(c *Config) { c.Recursive = true; c.SiteConfigs = siteDepths(0, 100000) }, want: ErrInvalidDepth},
		{name: "negative site depth", modify: func(c *Config) { c.SiteConfigs = siteDepths(0, -1) }, want: ErrInvalidDepth},
		{name: "default depth above 100", modify: func(c *Config) { c.Recursive = true; c.SiteConfigs = siteDepths(101, 0) }, want: ErrInvalidDepth},
		{name: "site depth 100", modify: func(c *Config) { c.Recursive = true; c.SiteConfigs = siteDepths(1, 100) }, want: nil},
		{name: "unset site depth", modify: func(c *Config) { c.Recursive = true; c.SiteConfigs = siteDepths(0, 0) }, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigSiteOverrides(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Recursive = true
	cfg.CrawlDepth = 3
	cfg.SiteConfigs = &File{
		Defaults: SiteConfig{UserAgent: "default-agent"},
		Sites: map[string]SiteConfig{
			"example.com": {Depth: 7, Extensions: []string{"svg"}, UserAgent: "site-agent"},
		},
	}

	if got := cfg.Depth("example.com"); got != 7 {
		t.Errorf("expected site depth 7, got %d", got)
	}
	if got := cfg.Depth("other.com"); got != 3 {
		t.Errorf("expected global depth 3, got %d", got)
	}
	if got := cfg.ExtensionsFor("example.com"); !slices.Equal(got, []string{"svg"}) {
		t.Errorf("expected [svg], got %v", got)
	}
	if got := cfg.ExtensionsFor("other.com"); !slices.Equal(got, DefaultExtensions) {
		t.Errorf("expected default extensions, got %v", got)
	}
	if got := cfg.UserAgentFor("example.com"); got != "site-agent" {
		t.Errorf("expected site-agent, got %q", got)
	}
	if got := cfg.UserAgentFor("other.com"); got != "default-agent" {
		t.Errorf("expected default-agent, got %q", got)
	}

	cfg.Recursive = false
	if got := cfg.Depth("example.com"); got != 0 {
		t.Errorf("expected depth 0 without recursive, got %d", got)
	}
}

func TestSplitExtensions(t *testing.T) {
	t.Parallel()

	got := SplitExtensions("jpg,PNG", " .gif ", "png", "")
	want := []string{"jpg", "png", "gif"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: 2, Cookie: "default_cookie=abc"},
			Sites:    map[string]SiteConfig{},
		}

		cfg := file.GetSiteConfig("unknown.example.com")
		if cfg.Depth != 2 {
			t.Errorf("expected depth 2, got %d", cfg.Depth)
		}
		if cfg.Cookie != "default_cookie=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("returns site-specific config", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: 2, Cookie: "default_cookie=abc"},
			Sites: map[string]SiteConfig{
				"example.com": {Depth: 10, Cookie: "session=xyz"},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth != 10 {
			t.Errorf("expected depth 10, got %d", cfg.Depth)
		}
		if cfg.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("merges headers without touching defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "value1", "Authorization": "default-token"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"X-Custom": "value2", "Authorization": "site-token"}},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Headers["X-Default"] != "value1" || cfg.Headers["X-Custom"] != "value2" {
			t.Errorf("expected merged headers, got %v", cfg.Headers)
		}
		if cfg.Headers["Authorization"] != "site-token" {
			t.Errorf("expected site token to override, got %q", cfg.Headers["Authorization"])
		}
		if _, leaked := file.Defaults.Headers["X-Custom"]; leaked {
			t.Error("site header leaked into defaults")
		}
		if other := file.GetSiteConfig("other.com"); other.Headers["Authorization"] != "default-token" {
			t.Errorf("expected default token for other hosts, got %q", other.Headers["Authorization"])
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		file := &File{Defaults: SiteConfig{Depth: 4}}
		if cfg := file.GetSiteConfig("any.example.com"); cfg.Depth != 4 {
			t.Errorf("expected depth 4, got %d", cfg.Depth)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.spider")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".spider")
		content := `defaults:
  depth: 2
  cookie: "default=abc"
  extensions: [".JPG", "png"]
sites:
  example.com:
    depth: 8
    cookie: "session=xyz"
    userAgent: "custom/1.0"
    headers:
      Authorization: "Bearer token"
`
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Depth != 2 || cfg.Defaults.Cookie != "default=abc" {
			t.Errorf("unexpected defaults %+v", cfg.Defaults)
		}
		if !slices.Equal(cfg.Defaults.Extensions, []string{"jpg", "png"}) {
			t.Errorf("expected normalized extensions, got %v", cfg.Defaults.Extensions)
		}

		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.Depth != 8 || site.UserAgent != "custom/1.0" {
			t.Errorf("unexpected site config %+v", site)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".spider")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".spider")
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 1\n"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("unexpected data dir %q", XDGDataDir())
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("unexpected config dir %q", XDGConfigDir())
	}
}
