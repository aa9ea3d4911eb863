package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces a burst of writes to the same transcript file
// (Claude Code appends one line per turn) into a single triggered pass.
const debounceDelay = 2 * time.Second

// Watcher triggers an ingestion pass whenever a transcript directory
// changes, instead of waiting for the next scheduled tick. It repurposes
// the teacher's tiered fsnotify watch loop: Recap has no live event stream
// to push (spec's Non-goals exclude one), so a change only ever debounces
// into a single RunPass call.
type Watcher struct {
	Coordinator *Coordinator
	UserID      string
	Roots       []string
	Log         *slog.Logger
	OnPass      func(PassResult)

	watcher *fsnotify.Watcher
}

// NewWatcher builds a Watcher over roots (e.g. each enabled source's
// transcript directory). Roots that don't exist yet are skipped; Start
// returns an error only if the filesystem watcher cannot be created, and
// returns nil at once, watching nothing, if no root could be added.
func NewWatcher(c *Coordinator, userID string, roots []string, onPass func(PassResult), log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{Coordinator: c, UserID: userID, Roots: roots, Log: log, OnPass: onPass}
}

// Start watches every configured root and runs until ctx is canceled. Each
// filesystem event debounces into one coordinator pass.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	defer fw.Close()

	watched := 0
	for _, root := range w.Roots {
		if err := fw.Add(root); err != nil {
			w.Log.Warn("watch: could not add root", "root", root, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		return nil
	}

	var debounce *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case _, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case _, ok := <-fw.Errors:
			if !ok {
				return nil
			}
		case <-trigger:
			result := w.Coordinator.RunPass(ctx, w.UserID)
			if result.Err != nil {
				w.Log.Warn("watch-triggered pass failed", "error", result.Err)
			}
			if w.OnPass != nil {
				w.OnPass(result)
			}
		}
	}
}
