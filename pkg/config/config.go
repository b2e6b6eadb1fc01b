// Package config resolves zotkit configuration from the process environment.
// Values are read at call time rather than cached, so a library switch or an
// exported variable takes effect on the next tool invocation.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zotkit/zotkit/pkg/utils"
)

const (
	// DefaultWebAPIBase is the hosted Zotero API endpoint.
	DefaultWebAPIBase = "https://api.zotero.org"

	// DefaultLocalAPIBase is the HTTP endpoint exposed by a running desktop
	// Zotero when "Allow other applications" is enabled.
	DefaultLocalAPIBase = "http://localhost:23119/api"

	// DefaultBetterBibTeXBase is the JSON-RPC endpoint of the Better BibTeX
	// plugin's debug bridge.
	DefaultBetterBibTeXBase = "http://localhost:23119/better-bibtex/json-rpc"
)

// Env is a snapshot of the environment-derived configuration.
type Env struct {
	Local       bool   // ZOTERO_LOCAL: talk to the desktop app instead of the web API
	APIKey      string // ZOTERO_API_KEY
	LibraryID   string // ZOTERO_LIBRARY_ID
	LibraryType string // ZOTERO_LIBRARY_TYPE (user or group)

	WebAPIBase      string
	LocalAPIBase    string
	BetterBibTeXURL string
	DataDir         string // Zotero data directory holding zotero.sqlite
}

// Read snapshots the current environment.
func Read() Env {
	e := Env{
		Local:           truthy(os.Getenv("ZOTERO_LOCAL")),
		APIKey:          os.Getenv("ZOTERO_API_KEY"),
		LibraryID:       os.Getenv("ZOTERO_LIBRARY_ID"),
		LibraryType:     os.Getenv("ZOTERO_LIBRARY_TYPE"),
		WebAPIBase:      os.Getenv("ZOTERO_API_BASE"),
		LocalAPIBase:    os.Getenv("ZOTERO_LOCAL_API_BASE"),
		BetterBibTeXURL: os.Getenv("ZOTERO_BBT_URL"),
		DataDir:         os.Getenv("ZOTERO_DATA_DIR"),
	}

	if e.LibraryType == "" {
		e.LibraryType = "user"
	}
	if e.LibraryID == "" && e.Local {
		// The desktop app addresses the personal library as user 0.
		e.LibraryID = "0"
	}
	if e.WebAPIBase == "" {
		e.WebAPIBase = DefaultWebAPIBase
	}
	if e.LocalAPIBase == "" {
		e.LocalAPIBase = DefaultLocalAPIBase
	}
	if e.BetterBibTeXURL == "" {
		e.BetterBibTeXURL = DefaultBetterBibTeXBase
	}
	if e.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			e.DataDir = filepath.Join(home, "Zotero")
		}
	} else if expanded, err := utils.ExpandHome(e.DataDir); err == nil {
		e.DataDir = expanded
	}
	return e
}

// DatabasePath returns the path of the local Zotero SQLite database.
func (e Env) DatabasePath() string {
	return filepath.Join(e.DataDir, "zotero.sqlite")
}

// Dir returns the zotkit configuration directory (~/.config/zotkit),
// creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "zotkit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1":
		return true
	}
	return false
}
