// Package coordinator drives one ingestion pass end to end: discover
// projects across every enabled source, sync their sessions, then run a
// compaction cycle (spec §2, §5). A pass is the unit of work the periodic
// scheduler and any manual trigger both go through.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wilbur182/recap/internal/core/compactor"
	"github.com/wilbur182/recap/internal/core/sources"
)

// PassResult summarizes one coordinator pass across every enabled source
// plus the compaction cycle that followed it.
type PassResult struct {
	Sources    map[string]sources.SyncResult
	Compaction compactor.CompactionResult
	Err        error
}

// Coordinator owns one user's ingestion pipeline: discover, sync, compact.
// Passes are serialized by an in-process mutex — concurrent passes for the
// same user never overlap (spec §5). Per-source discovery runs inside the
// pass, under the same mutex, one source after another.
type Coordinator struct {
	Sources   *sources.Registry
	Compactor *compactor.Compactor
	Log       *slog.Logger
	Now       func() time.Time

	mu sync.Mutex
}

// New builds a Coordinator for one user's registered sources and compactor.
func New(registry *sources.Registry, comp *compactor.Compactor, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{Sources: registry, Compactor: comp, Log: log, Now: time.Now}
}

// RunPass discovers and syncs every enabled source sequentially (spec §5:
// "within a pass, per-project syncing is sequential"), then runs one
// compaction cycle. Concurrent calls for the same Coordinator block on mu
// until the prior pass finishes.
func (c *Coordinator) RunPass(ctx context.Context, userID string) PassResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := PassResult{Sources: make(map[string]sources.SyncResult)}

	for _, src := range c.Sources.Enabled() {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result
		}

		projects, err := src.DiscoverProjects()
		if err != nil {
			c.Log.Warn("discover projects failed", "source", src.SourceName(), "error", err)
			result.Sources[src.SourceName()] = sources.SyncResult{Error: err}
			continue
		}

		var aggregate sources.SyncResult
		for _, project := range projects {
			if ctx.Err() != nil {
				result.Err = ctx.Err()
				return result
			}
			syncResult, err := src.SyncSessions(project, userID)
			aggregate.ProjectsScanned += syncResult.ProjectsScanned
			aggregate.SessionsProcessed += syncResult.SessionsProcessed
			aggregate.SessionsSkipped += syncResult.SessionsSkipped
			aggregate.WorkItemsCreated += syncResult.WorkItemsCreated
			aggregate.WorkItemsUpdated += syncResult.WorkItemsUpdated
			if err != nil {
				c.Log.Warn("sync session failed", "source", src.SourceName(), "project", project.Path, "error", err)
				aggregate.Error = err
			}
		}
		result.Sources[src.SourceName()] = aggregate
	}

	if c.Compactor != nil {
		compaction, err := c.Compactor.RunCompactionCycle(ctx, userID, c.now())
		result.Compaction = compaction
		if err != nil {
			result.Err = fmt.Errorf("compaction cycle: %w", err)
		}
	}

	return result
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
