package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Repos  ReposConfig  `yaml:"repos"`
	Cache  CacheConfig  `yaml:"cache"`
	Status StatusConfig `yaml:"status"`
}

type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"` // empty means allow all (local app)
}

type ReposConfig struct {
	Root        string `yaml:"root"`         // folder scanned for git repositories
	CommitLimit int    `yaml:"commit_limit"` // default page size for history walks
}

type CacheConfig struct {
	Path     string `yaml:"path"` // sqlite file; empty picks <user cache dir>/gitexplorer/cache.db
	Disabled bool   `yaml:"disabled"`
}

type StatusConfig struct {
	TTL string `yaml:"ttl"` // worktree status cache TTL, e.g. "3s"
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if c.Repos.Root == "" {
		return fmt.Errorf("repos.root must be configured")
	}
	if c.Repos.CommitLimit <= 0 {
		return fmt.Errorf("repos.commit_limit must be positive")
	}
	if _, err := time.ParseDuration(c.Status.TTL); err != nil {
		return fmt.Errorf("status.ttl: %w", err)
	}
	return nil
}

// StatusTTL returns the parsed worktree status cache TTL, falling back to
// 3s when the configured value is unusable.
func (c *Config) StatusTTL() time.Duration {
	d, err := time.ParseDuration(c.Status.TTL)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// CachePath resolves the sqlite cache file location. An explicitly
// configured path wins; otherwise the store lives in the per-user cache
// directory so wiping it never touches repository data.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "gitexplorer-cache.db"
	}
	return filepath.Join(dir, "gitexplorer", "cache.db")
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Repos: ReposConfig{
			Root:        "",
			CommitLimit: 2000,
		},
		Cache: CacheConfig{
			Path:     "",
			Disabled: false,
		},
		Status: StatusConfig{
			TTL: "3s",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	// Repo IDs are absolute paths, so resolve the root once up front.
	if cfg.Repos.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Repos.Root = wd
		}
	}
	if abs, err := filepath.Abs(cfg.Repos.Root); err == nil {
		cfg.Repos.Root = abs
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GITEXPLORER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GITEXPLORER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("GITEXPLORER_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.CORSAllowedOrigins = parseCSV(v)
	}
	if v := os.Getenv("GITEXPLORER_REPOS_ROOT"); v != "" {
		cfg.Repos.Root = v
	}
	if v := os.Getenv("GITEXPLORER_COMMIT_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			cfg.Repos.CommitLimit = limit
		}
	}
	if v := os.Getenv("GITEXPLORER_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("GITEXPLORER_CACHE_DISABLED"); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Disabled = disabled
		}
	}
	if v := os.Getenv("GITEXPLORER_STATUS_TTL"); v != "" {
		cfg.Status.TTL = v
	}

	// The desktop shell exports these two without the prefix.
	if cfg.Repos.Root == "" {
		if v := os.Getenv("REPOS_ROOT"); v != "" {
			cfg.Repos.Root = v
		}
	}
	if v := os.Getenv("PORT"); v != "" && os.Getenv("GITEXPLORER_PORT") == "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

func parseCSV(v string) []string {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
