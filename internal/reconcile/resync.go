package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/starford/slipbox/internal/apperr"
	"github.com/starford/slipbox/internal/manifest"
	"github.com/starford/slipbox/internal/models"
	"github.com/starford/slipbox/internal/parser"
)

// Resync rebuilds the registry from the manifest and the notes on disk. The
// manifest is authoritative: declared notes are bound to documents by
// filename, then by reference, and finally created. Every document is then
// rescanned regardless of timestamps.
func (e *Engine) Resync() (*ResyncReport, error) {
	return e.ResyncWith(e.resolver)
}

// ResyncWith is Resync with a resolver for this pass only.
func (e *Engine) ResyncWith(resolver ConflictResolver) (*ResyncReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	rep := &ResyncReport{Report: newReport()}
	log := e.logger.With(slog.String("run_id", rep.RunID))

	entries, err := e.ws.Manifest.Load()
	if err != nil {
		return nil, fmt.Errorf("reconcile: resync: %w", err)
	}
	onDisk, err := e.ws.ListFilenames()
	if err != nil {
		return nil, fmt.Errorf("reconcile: resync: list notes: %w", err)
	}
	present := make(map[string]struct{}, len(onDisk))
	for _, name := range onDisk {
		present[name] = struct{}{}
	}
	winning := manifest.Winning(entries)

	e.createMissing(rep, resolver, winning, present)
	winning = e.declareUntracked(rep, resolver, winning, onDisk)

	if err := e.bind(rep, resolver, winning, present); err != nil {
		return nil, fmt.Errorf("reconcile: resync: %w", err)
	}

	docs, err := e.ws.Registry.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("reconcile: resync: list documents: %w", err)
	}
	dirty := e.observe(&rep.Report, docs, true)
	e.scan(&rep.Report, dirty)

	log.Info("reconcile: resync complete",
		slog.Int("declared", len(winning)),
		slog.Int("created", len(rep.Created)),
		slog.Int("rebound", len(rep.Rebound)),
		slog.Int("rereferenced", len(rep.Rereferenced)),
		slog.Int("manifest_appended", len(rep.ManifestAppended)),
		slog.Int("from_template", len(rep.FromTemplate)),
		slog.Int("conflicts", len(rep.Conflicts)),
		slog.Int("rescanned", len(rep.Dirty)),
		slog.Int("failures", len(rep.Failures)),
		slog.Duration("duration", time.Since(start)))
	return rep, nil
}

// createMissing offers to create declared notes that are absent on disk.
func (e *Engine) createMissing(rep *ResyncReport, resolver ConflictResolver, winning []manifest.Entry, present map[string]struct{}) {
	log := e.logger.With(slog.String("run_id", rep.RunID))
	for _, ent := range winning {
		if _, ok := present[ent.Filename]; ok {
			continue
		}
		c := Conflict{Kind: MissingFile, Filename: ent.Filename, Reference: ent.Reference}
		if resolver.Decide(c).Action == Skip {
			rep.Declined = append(rep.Declined, c)
			continue
		}
		tmpl, err := e.ws.Store.Read(e.ws.Layout.Template)
		if err != nil {
			rep.fail(log, apperr.Item("template", ent.Filename, apperr.ErrIO, err))
			continue
		}
		if err := e.ws.Store.Write(e.ws.NotePath(ent.Filename), tmpl); err != nil {
			rep.fail(log, apperr.Item("create", ent.Filename, apperr.ErrIO, err))
			continue
		}
		present[ent.Filename] = struct{}{}
		rep.FromTemplate = append(rep.FromTemplate, ent.Filename)
		log.Info("reconcile: created note from template", slog.String("filename", ent.Filename))
	}
}

// declareUntracked offers to append a declaration for every note on disk the
// manifest does not mention. It returns winning extended by the new
// declarations.
func (e *Engine) declareUntracked(rep *ResyncReport, resolver ConflictResolver, winning []manifest.Entry, onDisk []string) []manifest.Entry {
	log := e.logger.With(slog.String("run_id", rep.RunID))
	declared := make(map[string]struct{}, len(winning))
	refs := make(map[string]string, len(winning))
	for _, ent := range winning {
		declared[ent.Filename] = struct{}{}
		refs[ent.Reference] = ent.Filename
	}

	names := slices.Clone(onDisk)
	sort.Strings(names)
	for _, name := range names {
		if _, ok := declared[name]; ok {
			continue
		}
		c := Conflict{Kind: Untracked, Filename: name, Reference: parser.DefaultReference(name)}
		d := resolver.Decide(c)
		ref := c.Reference
		switch d.Action {
		case Skip:
			rep.Declined = append(rep.Declined, c)
			continue
		case Override:
			ref = strings.TrimSpace(d.Value)
		}
		if ref == "" {
			rep.Declined = append(rep.Declined, c)
			continue
		}
		if owner, taken := refs[ref]; taken {
			e.collision(rep, name, ref, fmt.Sprintf("reference already declared for %s", owner))
			continue
		}
		if err := e.ws.Manifest.Append(ref, name); err != nil {
			rep.fail(log, apperr.Item("declare", name, apperr.ErrIO, err))
			continue
		}
		refs[ref] = name
		declared[name] = struct{}{}
		winning = append(winning, manifest.Entry{Reference: ref, Filename: name})
		rep.ManifestAppended = append(rep.ManifestAppended, name)
		log.Info("reconcile: declared note", slog.String("filename", name), slog.String("reference", ref))
	}
	return winning
}

// bind matches every declaration to a document. Only registry listing
// failures are returned; everything else is reported per entry.
func (e *Engine) bind(rep *ResyncReport, resolver ConflictResolver, winning []manifest.Entry, present map[string]struct{}) error {
	log := e.logger.With(slog.String("run_id", rep.RunID))
	reg := e.ws.Registry

	declared := make(map[string]struct{}, len(winning))
	for _, ent := range winning {
		declared[ent.Filename] = struct{}{}
	}

	docs, err := reg.ListDocuments()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	orphans := make(map[string]models.Document)
	for _, d := range docs {
		_, isDeclared := declared[d.Filename]
		_, onDisk := present[d.Filename]
		if !isDeclared && !onDisk {
			orphans[d.Filename] = d
		}
	}

	for _, ent := range winning {
		doc, err := reg.GetDocumentByFilename(ent.Filename)
		switch {
		case err == nil:
			e.rereference(rep, doc, ent.Reference)
			continue
		case !errors.Is(err, apperr.ErrNotFound):
			rep.fail(log, apperr.Item("bind", ent.Filename, apperr.ErrIO, err))
			continue
		}

		doc, err = reg.GetDocumentByReference(ent.Reference)
		switch {
		case err == nil:
			if _, still := declared[doc.Filename]; still {
				e.collision(rep, ent.Filename, ent.Reference,
					fmt.Sprintf("reference owned by declared note %s", doc.Filename))
				continue
			}
			delete(orphans, doc.Filename)
			e.rebind(rep, doc, ent)
			continue
		case !errors.Is(err, apperr.ErrNotFound):
			rep.fail(log, apperr.Item("bind", ent.Filename, apperr.ErrIO, err))
			continue
		}

		if len(orphans) > 0 {
			c := Conflict{Kind: AmbiguousRename, Filename: ent.Filename, Reference: ent.Reference}
			for name := range orphans {
				c.Candidates = append(c.Candidates, name)
			}
			sort.Strings(c.Candidates)
			if d := resolver.Decide(c); d.Action == Override {
				if orphan, ok := orphans[d.Value]; ok {
					delete(orphans, d.Value)
					e.rebind(rep, &orphan, ent)
					continue
				}
			}
		}

		created := models.Document{Filename: ent.Filename, Reference: ent.Reference, CreatedAt: e.now()}
		if err := reg.CreateDocument(&created); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				e.collision(rep, ent.Filename, ent.Reference, err.Error())
				continue
			}
			rep.fail(log, apperr.Item("create", ent.Filename, apperr.ErrIO, err))
			continue
		}
		rep.Created = append(rep.Created, created)
		log.Info("reconcile: document created",
			slog.String("filename", created.Filename),
			slog.String("reference", created.Reference))
	}
	return nil
}

// rereference applies the manifest's reference to doc unless another
// document owns it.
func (e *Engine) rereference(rep *ResyncReport, doc *models.Document, ref string) {
	if doc.Reference == ref {
		return
	}
	log := e.logger.With(slog.String("run_id", rep.RunID))
	owner, err := e.ws.Registry.GetDocumentByReference(ref)
	switch {
	case err == nil && owner.ID != doc.ID:
		e.collision(rep, doc.Filename, ref, fmt.Sprintf("reference owned by %s", owner.Filename))
		return
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		rep.fail(log, apperr.Item("rereference", doc.Filename, apperr.ErrIO, err))
		return
	}
	old := doc.Reference
	doc.Reference = ref
	if err := e.ws.Registry.UpdateDocument(doc); err != nil {
		rep.fail(log, apperr.Item("rereference", doc.Filename, apperr.ErrIO, err))
		return
	}
	rep.Rereferenced = append(rep.Rereferenced, Rebind{
		Reference: ref, OldFilename: doc.Filename, NewFilename: doc.Filename, OldReference: old,
	})
	log.Info("reconcile: reference updated",
		slog.String("filename", doc.Filename),
		slog.String("old_reference", old),
		slog.String("reference", ref))
}

// rebind moves doc onto the declaration ent, keeping its identity.
func (e *Engine) rebind(rep *ResyncReport, doc *models.Document, ent manifest.Entry) {
	log := e.logger.With(slog.String("run_id", rep.RunID))
	rb := Rebind{Reference: ent.Reference, OldFilename: doc.Filename, NewFilename: ent.Filename}
	if doc.Reference != ent.Reference {
		rb.OldReference = doc.Reference
	}
	doc.Filename = ent.Filename
	doc.Reference = ent.Reference
	if err := e.ws.Registry.UpdateDocument(doc); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			e.collision(rep, ent.Filename, ent.Reference, err.Error())
			return
		}
		rep.fail(log, apperr.Item("rebind", ent.Filename, apperr.ErrIO, err))
		return
	}
	rep.Rebound = append(rep.Rebound, rb)
	log.Info("reconcile: document rebound",
		slog.String("old_filename", rb.OldFilename),
		slog.String("filename", rb.NewFilename),
		slog.String("reference", rb.Reference))
}

func (e *Engine) collision(rep *ResyncReport, filename, ref, detail string) {
	c := Conflict{Kind: ReferenceCollision, Filename: filename, Reference: ref, Detail: detail}
	rep.Conflicts = append(rep.Conflicts, c)
	rep.fail(e.logger.With(slog.String("run_id", rep.RunID)),
		apperr.Item("bind", filename, apperr.ErrConflict, errors.New(detail)))
}
