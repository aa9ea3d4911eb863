package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// testConfigPath overrides ConfigPath for tests that must not touch the
// real user config directory.
var testConfigPath string

// SetTestConfigPath redirects ConfigPath to path, for use in tests.
func SetTestConfigPath(path string) { testConfigPath = path }

// ResetTestConfigPath restores the real, per-user ConfigPath.
func ResetTestConfigPath() { testConfigPath = "" }

// ConfigPath returns the default config file location,
// ~/.config/recap/config.json, honoring $XDG_CONFIG_HOME.
func ConfigPath() string {
	if testConfigPath != "" {
		return testConfigPath
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "recap", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".recap", "config.json")
	}
	return filepath.Join(home, ".config", "recap", "config.json")
}

func defaultDBPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "recap", defaultDBFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDBFileName
	}
	return filepath.Join(home, ".local", "share", "recap", defaultDBFileName)
}

// Load reads the config at the default path, falling back to Default() if
// the file does not exist. RECAP_DB_PATH, if set, overrides DBPath
// unconditionally (the one environment variable spec.md §6 recognizes).
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path, applying the same RECAP_DB_PATH
// override and defaulting behavior as Load.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	var sc saveConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	fromSaveConfig(cfg, sc)

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if dbPath := os.Getenv("RECAP_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
}

// saveConfig is the JSON-marshaling intermediary: bool fields are pointers
// so the on-disk file can omit unset overrides rather than writing out
// false, mirroring the teacher's *bool-shadow-struct pattern.
type saveConfig struct {
	DBPath  string            `json:"dbPath,omitempty"`
	Hours   saveHoursConfig   `json:"hours,omitempty"`
	LLM     LLMConfig         `json:"llm,omitempty"`
	Quota   saveQuotaConfig   `json:"quota,omitempty"`
	Sources saveSourcesConfig `json:"sources,omitempty"`
	Feature FeatureConfig     `json:"features,omitempty"`
}

type saveHoursConfig struct {
	DailyWorkHours float64 `json:"dailyWorkHours,omitempty"`
	NormalizeHours *bool   `json:"normalizeHours,omitempty"`
}

type saveQuotaConfig struct {
	PollIntervalMinutes int     `json:"pollIntervalMinutes,omitempty"`
	WarningPct          float64 `json:"warningPct,omitempty"`
	CriticalPct         float64 `json:"criticalPct,omitempty"`
}

type saveSourcesConfig struct {
	ClaudeCode saveSourceConfig `json:"claudeCode,omitempty"`
	Git        saveSourceConfig `json:"git,omitempty"`
}

type saveSourceConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
}

func toSaveConfig(cfg *Config) saveConfig {
	return saveConfig{
		DBPath: cfg.DBPath,
		Hours: saveHoursConfig{
			DailyWorkHours: cfg.Hours.DailyWorkHours,
			NormalizeHours: &cfg.Hours.NormalizeHours,
		},
		LLM: cfg.LLM,
		Quota: saveQuotaConfig{
			PollIntervalMinutes: cfg.Quota.PollIntervalMinutes,
			WarningPct:          cfg.Quota.WarningPct,
			CriticalPct:         cfg.Quota.CriticalPct,
		},
		Sources: saveSourcesConfig{
			ClaudeCode: saveSourceConfig{Enabled: &cfg.Sources.ClaudeCode.Enabled},
			Git:        saveSourceConfig{Enabled: &cfg.Sources.Git.Enabled},
		},
		Feature: cfg.Feature,
	}
}

// fromSaveConfig applies sc on top of cfg (already seeded with defaults), so
// a partial on-disk file only overrides what it actually sets.
func fromSaveConfig(cfg *Config, sc saveConfig) {
	if sc.DBPath != "" {
		cfg.DBPath = sc.DBPath
	}
	if sc.Hours.DailyWorkHours != 0 {
		cfg.Hours.DailyWorkHours = sc.Hours.DailyWorkHours
	}
	if sc.Hours.NormalizeHours != nil {
		cfg.Hours.NormalizeHours = *sc.Hours.NormalizeHours
	}
	if sc.LLM.Provider != "" {
		cfg.LLM = sc.LLM
	}
	if sc.Quota.PollIntervalMinutes != 0 {
		cfg.Quota.PollIntervalMinutes = sc.Quota.PollIntervalMinutes
	}
	if sc.Quota.WarningPct != 0 {
		cfg.Quota.WarningPct = sc.Quota.WarningPct
	}
	if sc.Quota.CriticalPct != 0 {
		cfg.Quota.CriticalPct = sc.Quota.CriticalPct
	}
	if sc.Sources.ClaudeCode.Enabled != nil {
		cfg.Sources.ClaudeCode.Enabled = *sc.Sources.ClaudeCode.Enabled
	}
	if sc.Sources.Git.Enabled != nil {
		cfg.Sources.Git.Enabled = *sc.Sources.Git.Enabled
	}
	if sc.Feature.Flags != nil {
		cfg.Feature.Flags = sc.Feature.Flags
	}
}

// Save writes cfg to its default path, creating parent directories as
// needed.
func Save(cfg *Config) error {
	path := ConfigPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	sc := toSaveConfig(cfg)
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
