// Package config loads and saves the fuelcheck configuration document.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/provider"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// CurrentVersion is the config document version this build reads and writes.
const CurrentVersion = 1

// ErrInvalid marks a config document that could not be read or is malformed.
// It is fatal for the whole invocation.
var ErrInvalid = errors.New("invalid config")

// Config holds all fuelcheck configuration.
type Config struct {
	Version   int              `toml:"version"`
	General   GeneralConfig    `toml:"general"`
	Providers []ProviderConfig `toml:"providers"`
	Pricing   PricingOverrides `toml:"pricing"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	Timezone          string `toml:"timezone,omitempty"`
	WebTimeoutSecs    int    `toml:"web_timeout_secs"`
	WatchIntervalSecs int    `toml:"watch_interval_secs"`
	CodexHome         string `toml:"codex_home,omitempty"`
	ClaudeDir         string `toml:"claude_dir,omitempty"`
}

// ProviderConfig holds one provider's settings.
type ProviderConfig struct {
	ID            provider.ID         `toml:"id"`
	Enabled       bool                `toml:"enabled"`
	Source        provider.SourceKind `toml:"source,omitempty"`
	CookieHeader  string              `toml:"cookie_header,omitempty"`
	APIKey        string              `toml:"api_key,omitempty"`
	Region        string              `toml:"region,omitempty"`
	WorkspaceID   string              `toml:"workspace_id,omitempty"`
	TokenAccounts *TokenAccountSet    `toml:"token_accounts,omitempty"`
}

// TokenAccountSet is an ordered list of account tokens with an active index.
type TokenAccountSet struct {
	Version     int            `toml:"version"`
	ActiveIndex int            `toml:"active_index"`
	Accounts    []TokenAccount `toml:"accounts"`
}

// TokenAccount is one stored account credential.
type TokenAccount struct {
	ID       string     `toml:"id,omitempty"`
	Label    string     `toml:"label,omitempty"`
	Token    string     `toml:"token"`
	AddedAt  *time.Time `toml:"added_at,omitempty"`
	LastUsed *time.Time `toml:"last_used,omitempty"`
}

// AccountLabel returns a display label for the account at index.
// Falls back from label to id to "account-N".
func AccountLabel(a TokenAccount, index int) string {
	if l := strings.TrimSpace(a.Label); l != "" {
		return l
	}
	if id := strings.TrimSpace(a.ID); id != "" {
		return id
	}
	return fmt.Sprintf("account-%d", index+1)
}

// FindAccount returns the index of the account whose label or id matches
// name, case-insensitively.
func (s *TokenAccountSet) FindAccount(name string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if s == nil || needle == "" {
		return 0, false
	}
	for i, a := range s.Accounts {
		if strings.ToLower(strings.TrimSpace(a.Label)) == needle ||
			strings.ToLower(strings.TrimSpace(a.ID)) == needle {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of accounts, treating a nil set as empty.
func (s *TokenAccountSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Accounts)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Version: CurrentVersion,
		General: GeneralConfig{
			WebTimeoutSecs:    20,
			WatchIntervalSecs: 10,
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "fuelcheck")
}

// DefaultPath returns the full path to the default config file.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// CacheDir returns the XDG-compliant cache directory.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "fuelcheck")
}

// Load reads the config file at path, returning defaults if it doesn't exist.
// An empty path means DefaultPath.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := DefaultConfig()

	//nolint:gosec // config path is chosen by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("%w: reading %s: %v", ErrInvalid, path, err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}

	return cfg, nil
}

// Save writes the config to path (DefaultPath when empty).
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists returns true if a config file exists at path.
func Exists(path string) bool {
	if path == "" {
		path = DefaultPath()
	}
	_, err := os.Stat(path)
	return err == nil
}

// Provider returns the settings for id. A provider missing from the document
// gets a zero entry with source auto.
func (c Config) Provider(id provider.ID) ProviderConfig {
	for _, p := range c.Providers {
		if p.ID == id {
			if p.Source == "" {
				p.Source = provider.SourceAuto
			}
			return p
		}
	}
	return ProviderConfig{ID: id, Source: provider.SourceAuto}
}

// Upsert replaces or appends the entry for p.ID.
func (c *Config) Upsert(p ProviderConfig) {
	for i := range c.Providers {
		if c.Providers[i].ID == p.ID {
			c.Providers[i] = p
			return
		}
	}
	c.Providers = append(c.Providers, p)
}

// EnabledProviders lists enabled providers in document order, falling back to
// provider.DefaultEnabled when none are enabled.
func (c Config) EnabledProviders() []provider.ID {
	var ids []provider.ID
	for _, p := range c.Providers {
		if p.Enabled {
			if _, ok := provider.Lookup(p.ID); ok {
				ids = append(ids, p.ID)
			}
		}
	}
	if len(ids) == 0 {
		return provider.DefaultEnabled()
	}
	return ids
}

// WebTimeout returns the per-invocation fetch deadline.
func (c Config) WebTimeout() time.Duration {
	if c.General.WebTimeoutSecs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.General.WebTimeoutSecs) * time.Second
}

// Validate checks the document for problems a run would otherwise trip over
// one provider at a time. All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported version %d (want %d)", c.Version, CurrentVersion))
	}

	seen := make(map[provider.ID]bool)
	for i, p := range c.Providers {
		spec, ok := provider.Lookup(p.ID)
		if !ok {
			errs = append(errs, fmt.Errorf("providers[%d]: unknown provider %q", i, p.ID))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate provider %q", i, p.ID))
		}
		seen[p.ID] = true

		if p.Source != "" {
			kind, err := provider.ParseSource(string(p.Source))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.ID, err))
			} else if !spec.Allows(kind) {
				errs = append(errs, fmt.Errorf("%s: source %q not supported", p.ID, kind))
			}
		}

		if ta := p.TokenAccounts; ta != nil && len(ta.Accounts) > 0 {
			if ta.ActiveIndex < 0 || ta.ActiveIndex >= len(ta.Accounts) {
				errs = append(errs, fmt.Errorf("%s: token_accounts.active_index %d out of range (0-%d)",
					p.ID, ta.ActiveIndex, len(ta.Accounts)-1))
			}
			for j, a := range ta.Accounts {
				if strings.TrimSpace(a.Token) == "" {
					errs = append(errs, fmt.Errorf("%s: token_accounts.accounts[%d] has empty token", p.ID, j))
				}
			}
		}
	}

	if c.General.Timezone != "" {
		if _, err := time.LoadLocation(c.General.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("general.timezone: %w", err))
		}
	}

	return errors.Join(errs...)
}

// MaskSecret shortens a secret for display.
func MaskSecret(s string) string {
	if len(s) > 16 {
		return s[:8] + "..." + s[len(s)-4:]
	}
	if len(s) > 4 {
		return s[:4] + "..."
	}
	if s == "" {
		return ""
	}
	return "****"
}

// Masked returns a copy of c with every secret masked, for dumping.
func (c Config) Masked() Config {
	out := c
	out.Providers = make([]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		p.CookieHeader = MaskSecret(p.CookieHeader)
		p.APIKey = MaskSecret(p.APIKey)
		if p.TokenAccounts != nil {
			ta := *p.TokenAccounts
			ta.Accounts = make([]TokenAccount, len(p.TokenAccounts.Accounts))
			for j, a := range p.TokenAccounts.Accounts {
				a.Token = MaskSecret(a.Token)
				ta.Accounts[j] = a
			}
			p.TokenAccounts = &ta
		}
		out.Providers[i] = p
	}
	return out
}
