package internal

import (
	"io"

	"github.com/starford/slipbox/internal/reconcile"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	resolver  reconcile.ConflictResolver
	callbacks reconcile.Callbacks
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log. The MCP stdio server needs stdout
// for the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithResolver sets the conflict resolver used by Resync.
func WithResolver(r reconcile.ConflictResolver) Option {
	return func(a *application) {
		a.resolver = r
	}
}

// WithCallbacks sets the engine change callbacks.
func WithCallbacks(cb reconcile.Callbacks) Option {
	return func(a *application) {
		a.callbacks = cb
	}
}
