package reconcile

import (
	"fmt"
	"log/slog"
	"time"
)

// Sync rescans every registered document whose file changed since its last
// scan, or that was never scanned. Per-document failures are collected in
// the report; the returned error is non-nil only when the pass could not run
// at all.
func (e *Engine) Sync() (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sync()
}

func (e *Engine) sync() (*Report, error) {
	start := time.Now()
	rep := newReport()

	docs, err := e.ws.Registry.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("reconcile: sync: list documents: %w", err)
	}
	dirty := e.observe(&rep, docs, false)
	e.scan(&rep, dirty)

	e.logger.Info("reconcile: sync complete",
		slog.String("run_id", rep.RunID),
		slog.Int("documents", len(docs)),
		slog.Int("dirty", len(rep.Dirty)),
		slog.Int("links_created", len(rep.LinksCreated)),
		slog.Int("links_deleted", len(rep.LinksDeleted)),
		slog.Int("dangling", len(rep.Dangling)),
		slog.Int("failures", len(rep.Failures)),
		slog.Duration("duration", time.Since(start)))
	return &rep, nil
}
