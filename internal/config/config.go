package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	instance   *Config
	once       sync.Once
	configPath string
)

// Debrid describes one configured debrid account.
type Debrid struct {
	Name      string `json:"name,omitempty"`     // display name, unique
	Provider  string `json:"provider,omitempty"` // realdebrid, torbox, alldebrid, premiumize
	APIKey    string `json:"api_key,omitempty"`
	RateLimit string `json:"rate_limit,omitempty"` // e.g. "250/minute"; empty uses the provider default
	Proxy     string `json:"proxy,omitempty"`
}

type Auth struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // bcrypt hash
	APIToken string `json:"api_token,omitempty"`
}

type Config struct {
	BindAddress string `json:"bind_address,omitempty"`
	Port        string `json:"port,omitempty"`
	URLBase     string `json:"url_base,omitempty"`

	LogLevel       string   `json:"log_level,omitempty"`
	Debrids        []Debrid `json:"debrids,omitempty"`
	DownloadFolder string   `json:"download_folder,omitempty"` // local target for the download manager
	MaxDownloads   int      `json:"max_downloads,omitempty"`   // concurrent local downloads
	SyncInterval   string   `json:"sync_interval,omitempty"`   // account/profile refresh, e.g. "30m" or "04:00"
	UseAuth        bool     `json:"use_auth,omitempty"`

	Path string `json:"-"`
	Auth *Auth  `json:"-"`
}

func (c *Config) JsonFile() string {
	return filepath.Join(c.Path, "config.json")
}

func (c *Config) AuthFile() string {
	return filepath.Join(c.Path, "auth.json")
}

func (c *Config) loadConfig() error {
	if configPath == "" {
		return fmt.Errorf("config path not set")
	}
	c.Path = configPath
	file, err := os.ReadFile(c.JsonFile())
	if err != nil {
		if os.IsNotExist(err) {
			c.setDefaults()
			return c.Save()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	c.setDefaults()
	return nil
}

func (c *Config) setDefaults() {
	if c.Port == "" {
		c.Port = "8282"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxDownloads == 0 {
		c.MaxDownloads = 3
	}
	if c.SyncInterval == "" {
		c.SyncInterval = "30m"
	}
}

func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.JsonFile(), data, 0644)
}

// ValidateDebrids checks the configured accounts. A (provider, api key) pair
// must be unique, and every entry needs a provider tag and credential.
func ValidateDebrids(debrids []Debrid) error {
	if len(debrids) == 0 {
		return errors.New("no debrid accounts configured")
	}
	seen := make(map[string]struct{}, len(debrids))
	for _, d := range debrids {
		if d.APIKey == "" {
			return fmt.Errorf("debrid %q: api key is required", d.Name)
		}
		if d.Provider == "" {
			return fmt.Errorf("debrid %q: provider is required", d.Name)
		}
		key := d.Provider + "\x00" + d.APIKey
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate account for provider %s", d.Provider)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func ValidateConfig(c *Config) error {
	return ValidateDebrids(c.Debrids)
}

// GenerateAPIToken creates a new random API token.
func GenerateAPIToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func SetConfigPath(path string) {
	configPath = path
}

func Get() *Config {
	once.Do(func() {
		instance = &Config{}
		if err := instance.loadConfig(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(1)
		}
	})
	return instance
}

func (c *Config) GetAuth() *Auth {
	if !c.UseAuth {
		return nil
	}
	if c.Auth == nil {
		c.Auth = &Auth{}
		if _, err := os.Stat(c.AuthFile()); err == nil {
			file, err := os.ReadFile(c.AuthFile())
			if err == nil {
				_ = json.Unmarshal(file, c.Auth)
			}
		}
	}
	return c.Auth
}

func (c *Config) SaveAuth(auth *Auth) error {
	c.Auth = auth
	data, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	return os.WriteFile(c.AuthFile(), data, 0644)
}

func (c *Config) NeedsAuth() bool {
	if c.UseAuth {
		return c.GetAuth().Username == ""
	}
	return false
}

// Reload discards the cached config and re-reads it from disk.
func Reload() {
	cfg := &Config{}
	if err := cfg.loadConfig(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	instance = cfg
}
