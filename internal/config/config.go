// Package config loads Jacques's settings by layering defaults, the
// config file, environment variables, and CLI flags, in that order of
// increasing precedence.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/mod/semver"
)

const configFileName = "config.json"
const configVersion = "1.0.0"

// NotificationCategories mirrors the config file's per-category
// enable flags
type NotificationCategories struct {
	Context     bool `json:"context"`
	Operation   bool `json:"operation"`
	Plan        bool `json:"plan"`
	AutoCompact bool `json:"auto-compact"`
	Handoff     bool `json:"handoff"`
}

// Notifications mirrors the config file's notifications block.
type Notifications struct {
	Enabled                 bool                   `json:"enabled"`
	Categories              NotificationCategories `json:"categories"`
	LargeOperationThreshold int                    `json:"largeOperationThreshold"`
	ContextThresholds       []int                  `json:"contextThresholds"`
}

// Config holds all application configuration.
type Config struct {
	Host           string `json:"-"`
	Port           int    `json:"-"`
	WSPort         int    `json:"-"`
	DataDir        string `json:"-"`
	TranscriptRoot string `json:"-"`

	Version       string            `json:"version"`
	Notifications Notifications     `json:"notifications"`
	Sources       map[string]any    `json:"sources"`
}

// Default returns a Config with documented defaults, rooted at
// <home>/.jacques.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("determining home directory: %w", err)
	}
	return Config{
		Host:           "127.0.0.1",
		Port:           8089,
		WSPort:         8090,
		DataDir:        filepath.Join(home, ".jacques"),
		TranscriptRoot: filepath.Join(home, ".claude"),
		Version:        configVersion,
		Notifications: Notifications{
			Enabled: true,
			Categories: NotificationCategories{
				Context: true, Operation: true, Plan: true, AutoCompact: true, Handoff: true,
			},
			LargeOperationThreshold: 50000,
			ContextThresholds:       []int{50, 70, 90},
		},
		Sources: map[string]any{},
	}, nil
}

// Load builds a Config by layering: defaults < config file < env <
// flags. The provided FlagSet must already be parsed by the caller.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, env, and the config
// file, without parsing CLI flags — for subcommands that manage
// their own flag sets (extract, reindex).
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	cfg.loadEnv()
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, configFileName)
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Version != "" {
		warnIfNewerMajor(file.Version, c.Version)
		c.Version = file.Version
	}
	c.Notifications = file.Notifications
	if file.Sources != nil {
		c.Sources = file.Sources
	}
	return nil
}

// warnIfNewerMajor logs a warning when a config file written by a
// newer major version is loaded by an older binary, since the schema
// may carry fields this Config doesn't know about.
func warnIfNewerMajor(fileVersion, binaryVersion string) {
	fv, bv := "v"+fileVersion, "v"+binaryVersion
	if !semver.IsValid(fv) || !semver.IsValid(bv) {
		return
	}
	if semver.Compare(semver.Major(fv), semver.Major(bv)) > 0 {
		log.Printf("warning: config file version %s is newer than this binary's %s", fileVersion, binaryVersion)
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv("JACQUES_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("JACQUES_TRANSCRIPT_ROOT"); v != "" {
		c.TranscriptRoot = v
	}
	if v := os.Getenv("JACQUES_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("JACQUES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("JACQUES_WS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.WSPort = p
		}
	}
}

// RegisterServeFlags registers the serve subcommand's flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8089, "REST API port")
	fs.Int("ws-port", 8090, "WebSocket port")
}

func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "ws-port":
			cfg.WSPort, _ = strconv.Atoi(f.Value.String())
		}
	})
}

// Save persists the current settings to the config file, preserving
// any fields present in an existing file that this Config doesn't
// model (forward-compatible with future keys).
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	if data, err := os.ReadFile(c.configPath()); err == nil {
		_ = json.Unmarshal(data, &existing)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	existing["version"] = c.Version
	existing["notifications"] = c.Notifications
	existing["sources"] = c.Sources

	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(c.configPath(), out, 0o600)
}

// SaveNotifications updates and persists the notifications block.
func (c *Config) SaveNotifications(n Notifications) error {
	c.Notifications = n
	return c.Save()
}
