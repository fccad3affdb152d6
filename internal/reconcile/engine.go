// Package reconcile keeps the registry consistent with the notes on disk and
// the manifest. Sync is incremental and timestamp driven; Resync is a full
// rebuild that lets the manifest win. Rename propagation and explicit removal
// live here too because they must run against a freshly reconciled registry.
package reconcile

import (
	"log/slog"
	"sync"
	"time"

	"github.com/starford/slipbox/internal/workspace"
)

// Callbacks notify the render collaborator about changes. Either may be nil.
type Callbacks struct {
	// OnDocumentDirtied fires once per rescanned document.
	OnDocumentDirtied func(filename string, citationsChanged bool)
	// OnLinksChanged fires once per pass with every created or deleted link.
	OnLinksChanged func(changes []LinkChange)
}

// Engine runs reconciliation passes against one workspace. Passes are
// serialised; an Engine may be shared by the watcher and the servers.
type Engine struct {
	ws        *workspace.Workspace
	resolver  ConflictResolver
	callbacks Callbacks
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver sets the conflict resolver consulted during Resync.
func WithResolver(r ConflictResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithCallbacks sets the outbound change callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(e *Engine) {
		e.callbacks = cb
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine. Without WithResolver every prompt is declined.
func New(ws *workspace.Workspace, opts ...Option) *Engine {
	e := &Engine{
		ws:       ws,
		resolver: DeclineAll{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workspace returns the workspace the engine reconciles.
func (e *Engine) Workspace() *workspace.Workspace {
	return e.ws
}

func (e *Engine) notifyDirty(filename string, citationsChanged bool) {
	if e.callbacks.OnDocumentDirtied != nil {
		e.callbacks.OnDocumentDirtied(filename, citationsChanged)
	}
}

func (e *Engine) notifyLinks(changes []LinkChange) {
	if e.callbacks.OnLinksChanged != nil && len(changes) > 0 {
		e.callbacks.OnLinksChanged(changes)
	}
}
