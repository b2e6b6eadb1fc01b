package semantic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/zotkit/zotkit/pkg/utils"
)

// Config drives the semantic search engine. It lives as JSON in the zotkit
// config directory so settings survive restarts.
type Config struct {
	EmbeddingModel  string `json:"embedding_model"`
	AutoUpdate      bool   `json:"auto_update"`
	UpdateFrequency string `json:"update_frequency"` // manual, startup, daily, or "every N days"
	UpdateDays      int    `json:"update_days,omitempty"`
	LastUpdate      string `json:"last_update,omitempty"` // RFC 3339
	DatabasePath    string `json:"database_path,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig(dir string) Config {
	return Config{
		EmbeddingModel:  "text-embedding-3-small",
		UpdateFrequency: "manual",
		DatabasePath:    filepath.Join(dir, "semantic.sqlite"),
	}
}

// LoadConfig reads the config file at path, falling back to defaults when
// the file is missing.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig(filepath.Dir(path))
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return cfg, err
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.UpdateFrequency == "" {
		cfg.UpdateFrequency = "manual"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(filepath.Dir(path), "semantic.sqlite")
	}
	return cfg, nil
}

// SaveConfig writes the config file at path.
func SaveConfig(path string, cfg Config) error {
	payload, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// ShouldUpdate reports whether the configured schedule calls for a refresh
// now.
func (c Config) ShouldUpdate(now time.Time) bool {
	if !c.AutoUpdate {
		return false
	}
	switch c.UpdateFrequency {
	case "", "manual":
		return false
	case "startup":
		return true
	}

	last, err := time.Parse(time.RFC3339, c.LastUpdate)
	if err != nil {
		// Never updated (or unreadable timestamp): refresh now.
		return true
	}
	days := c.UpdateDays
	if c.UpdateFrequency == "daily" || days <= 0 {
		days = 1
	}
	return now.Sub(last) >= time.Duration(days)*24*time.Hour
}
