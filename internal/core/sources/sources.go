// Package sources defines the source-abstraction contract (spec §6) that
// lets new ingesters (Claude Code transcripts, Git history, future
// assistants) join the ingestion pipeline, plus a static name-keyed
// registry with per-source enablement.
package sources

// Project is one discoverable unit of work for a source: a directory the
// source has observed activity in.
type Project struct {
	Name         string
	Path         string
	SessionCount int
}

// SyncResult is returned by Source.SyncSessions, summarizing one sync pass
// over one project for one user.
type SyncResult struct {
	ProjectsScanned   int
	SessionsProcessed int
	SessionsSkipped   int
	WorkItemsCreated  int
	WorkItemsUpdated  int
	Error             error
}

// Source is the contract every ingester implements (spec §6).
type Source interface {
	// SourceName is the stable identifier stored in work_items.source.
	SourceName() string

	// DisplayName is the human-readable label for the UI.
	DisplayName() string

	// IsAvailable reports whether this source's backing data is reachable
	// (e.g., the transcript directory exists) without requiring a full scan.
	IsAvailable() bool

	// DiscoverProjects lists every project this source has observed
	// activity in.
	DiscoverProjects() ([]Project, error)

	// SyncSessions ingests every session the source can see for project,
	// upserting work items for userID.
	SyncSessions(project Project, userID string) (SyncResult, error)
}

// registry is the static, name-keyed set of constructed sources, with
// per-source enablement toggled by config.
type registry struct {
	sources map[string]Source
	enabled map[string]bool
}

// Registry holds every registered Source alongside its enabled flag.
type Registry struct {
	r registry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{r: registry{sources: make(map[string]Source), enabled: make(map[string]bool)}}
}

// Register adds src under its own SourceName, enabled by default.
func (reg *Registry) Register(src Source, enabled bool) {
	reg.r.sources[src.SourceName()] = src
	reg.r.enabled[src.SourceName()] = enabled
}

// SetEnabled toggles a registered source by name. No-op for unknown names.
func (reg *Registry) SetEnabled(name string, enabled bool) {
	if _, ok := reg.r.sources[name]; ok {
		reg.r.enabled[name] = enabled
	}
}

// Enabled returns every registered, enabled, and currently available source.
func (reg *Registry) Enabled() []Source {
	var out []Source
	for name, src := range reg.r.sources {
		if reg.r.enabled[name] && src.IsAvailable() {
			out = append(out, src)
		}
	}
	return out
}

// Get returns the registered source by name, if any.
func (reg *Registry) Get(name string) (Source, bool) {
	src, ok := reg.r.sources[name]
	return src, ok
}
