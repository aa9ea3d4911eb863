package cli

import (
	"log/slog"
	"os"

	"github.com/wilbur182/recap/internal/config"
	"github.com/wilbur182/recap/internal/core/compactor"
	"github.com/wilbur182/recap/internal/core/coordinator"
	"github.com/wilbur182/recap/internal/core/llm"
	"github.com/wilbur182/recap/internal/core/llm/anthropic"
	"github.com/wilbur182/recap/internal/core/llm/openaicompat"
	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/quota"
	"github.com/wilbur182/recap/internal/core/quota/claude"
	"github.com/wilbur182/recap/internal/core/sources"
	claudecodesource "github.com/wilbur182/recap/internal/core/sources/claudecode"
	gitsource "github.com/wilbur182/recap/internal/core/sources/git"
	"github.com/wilbur182/recap/internal/core/store"
	"github.com/wilbur182/recap/internal/core/summarizer"
	"github.com/wilbur182/recap/internal/features"
)

// app bundles the wiring every subcommand needs: a logger, a store handle,
// the current user, and the coordinator that drives a sync+compact pass.
type app struct {
	Log         *slog.Logger
	Config      *config.Config
	Store       *store.Store
	User        model.User
	Coordinator *coordinator.Coordinator
	QuotaPoller *quota.Poller
	WatchRoots  []string
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	features.Init(cfg)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	applyFeatureOverrides(log)

	db, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	users := store.NewUserStore(db)
	username := os.Getenv("USER")
	if username == "" {
		username = "local"
	}
	user, err := users.GetOrCreateByUsername(username)
	if err != nil {
		db.Close()
		return nil, err
	}

	client := buildLLMClient(cfg.LLM)
	usage := store.NewUsageStore(db)
	summ := summarizer.New(client, usage)

	snapshots := store.NewSnapshotStore(db)
	summaries := store.NewSummaryStore(db)
	comp := compactor.New(snapshots, summaries, summ, nil)

	workItems := store.NewWorkItemStore(db)
	registry := sources.NewRegistry()
	if cfg.Sources.ClaudeCode.Enabled {
		var git claudecodesource.GitHarvester
		if cfg.Sources.Git.Enabled {
			git = gitsource.New()
		}
		registry.Register(claudecodesource.New(snapshots, workItems, nil, cfg.Hours.DailyWorkHours, git), true)
	}

	coord := coordinator.New(registry, comp, log)

	qstore := store.NewQuotaStore(db)
	provider := claude.New(user.ID, manualTokenSource{token: user.ManualAccessToken})
	poller := quota.NewPoller([]quota.Provider{provider}, qstore, cfg.Quota.PollIntervalMinutes, nil, log)

	var watchRoots []string
	if src, ok := registry.Get(claudecodesource.SourceName); ok {
		if wr, ok := src.(interface{ WatchRoot() string }); ok {
			if root := wr.WatchRoot(); root != "" {
				watchRoots = append(watchRoots, root)
			}
		}
	}

	return &app{
		Log:         log,
		Config:      cfg,
		Store:       db,
		User:        user,
		Coordinator: coord,
		QuotaPoller: poller,
		WatchRoots:  watchRoots,
	}, nil
}

func (a *app) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

func buildLLMClient(cfg config.LLMConfig) llm.Client {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model)
	case "openai", "openai-compatible", "ollama":
		return openaicompat.New(cfg.Provider, cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return openaicompat.New("", "", "", "")
	}
}

// manualTokenSource adapts a single stored token into quota/claude's
// TokenSource seam.
type manualTokenSource struct{ token string }

func (m manualTokenSource) ManualToken(userID string) string { return m.token }
