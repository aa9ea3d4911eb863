// Package config holds Recap's on-disk configuration: the knobs spec.md §9
// names as user-tunable core behavior, plus the handful of ambient settings
// (DB path, per-source enablement, feature flags) needed to run the core
// standalone.
package config

// Config is the root configuration structure.
type Config struct {
	DBPath  string        `json:"dbPath"`
	Hours   HoursConfig   `json:"hours"`
	LLM     LLMConfig     `json:"llm"`
	Quota   QuotaConfig   `json:"quota"`
	Sources SourcesConfig `json:"sources"`
	Feature FeatureConfig `json:"features"`
}

// HoursConfig controls hours estimation (§4.4, §9).
type HoursConfig struct {
	DailyWorkHours float64 `json:"dailyWorkHours"`
	NormalizeHours bool    `json:"normalizeHours"`
}

// LLMConfig selects and authenticates the optional summarizer LLM backend
// (§4.6, §4.7). Provider is one of openai, openai-compatible, anthropic,
// ollama; an empty Provider means is_configured() reports false and the
// summarizer always takes the rule-based path.
type LLMConfig struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

// QuotaConfig controls the background quota poller (§4.7).
type QuotaConfig struct {
	PollIntervalMinutes int     `json:"pollIntervalMinutes"`
	WarningPct          float64 `json:"warningPct"`
	CriticalPct         float64 `json:"criticalPct"`
}

// SourcesConfig toggles the registered ingestion sources (§6).
type SourcesConfig struct {
	ClaudeCode SourceConfig `json:"claudeCode"`
	Git        SourceConfig `json:"git"`
}

// SourceConfig is the per-source enablement switch.
type SourceConfig struct {
	Enabled bool `json:"enabled"`
}

// FeatureConfig holds feature flag overrides, consumed by internal/features.
type FeatureConfig struct {
	Flags map[string]bool `json:"flags"`
}

const (
	defaultDailyWorkHours   = 8.0
	defaultQuotaPollMinutes = 15
	minQuotaPollMinutes     = 5
	defaultQuotaWarningPct  = 80.0
	defaultQuotaCriticalPct = 95.0
	defaultDBFileName       = "recap.db"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DBPath: defaultDBPath(),
		Hours: HoursConfig{
			DailyWorkHours: defaultDailyWorkHours,
			NormalizeHours: true,
		},
		Quota: QuotaConfig{
			PollIntervalMinutes: defaultQuotaPollMinutes,
			WarningPct:          defaultQuotaWarningPct,
			CriticalPct:         defaultQuotaCriticalPct,
		},
		Sources: SourcesConfig{
			ClaudeCode: SourceConfig{Enabled: true},
			Git:        SourceConfig{Enabled: true},
		},
		Feature: FeatureConfig{
			Flags: make(map[string]bool),
		},
	}
}

// Validate clamps out-of-range values to their defaults rather than
// rejecting the config outright, matching the teacher's tolerant style.
func (c *Config) Validate() error {
	if c.Hours.DailyWorkHours <= 0 {
		c.Hours.DailyWorkHours = defaultDailyWorkHours
	}
	if c.Quota.PollIntervalMinutes < minQuotaPollMinutes {
		c.Quota.PollIntervalMinutes = defaultQuotaPollMinutes
	}
	if c.Quota.WarningPct <= 0 {
		c.Quota.WarningPct = defaultQuotaWarningPct
	}
	if c.Quota.CriticalPct <= 0 {
		c.Quota.CriticalPct = defaultQuotaCriticalPct
	}
	if c.Feature.Flags == nil {
		c.Feature.Flags = make(map[string]bool)
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath()
	}
	return nil
}
