// Package config holds the pilebox client configuration: where the cloud
// API lives, the session token, and where the local control plane binds.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pilehq/pilebox/internal/utils"
)

var (
	home, _ = os.UserHomeDir()

	DefaultDir          = filepath.Join(home, ".pilebox")
	DefaultConfigPath   = filepath.Join(DefaultDir, "config.json")
	DefaultRegistryPath = filepath.Join(DefaultDir, "piles.json")
	DefaultLogFilePath  = filepath.Join(DefaultDir, "logs", "pilebox.log")

	DefaultBaseURL     = "https://api.pilehq.com"
	DefaultControlAddr = "localhost:7438"
	DefaultDataDir     = filepath.Join(home, "Piles")
)

type Config struct {
	// BaseURL of the Pile cloud API.
	BaseURL string `json:"base_url"`

	// AccessToken is the signed-in user's bearer token. Issued by the
	// account tooling; pilebox only carries it.
	AccessToken string `json:"access_token,omitempty"`

	// DataDir is where new piles land when a command gets a relative
	// destination.
	DataDir string `json:"data_dir"`

	// ControlAddr is the bind address of the daemon's local HTTP API.
	ControlAddr string `json:"control_addr,omitempty"`

	// ControlToken guards the local HTTP API. Empty disables auth.
	ControlToken string `json:"control_token,omitempty"`

	// Path this config was loaded from. Not persisted.
	Path string `json:"-"`
}

// Validate fills defaults and normalizes paths. BaseURL must be an
// http(s) URL.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid base url %q", c.BaseURL)
	}

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("invalid data dir %q: %w", c.DataDir, err)
	}
	c.DataDir = dataDir

	if c.ControlAddr == "" {
		c.ControlAddr = DefaultControlAddr
	}

	if c.Path == "" {
		c.Path = DefaultConfigPath
	}
	path, err := utils.ResolvePath(c.Path)
	if err != nil {
		return fmt.Errorf("invalid config path %q: %w", c.Path, err)
	}
	c.Path = path

	return nil
}

// Save writes the config to its path.
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return utils.AtomicWriteFile(c.Path, data, 0o600)
}

// LoadFromFile reads a config file. The returned config is validated.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
