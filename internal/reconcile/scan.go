package reconcile

import (
	"errors"
	"log/slog"
	"os"
	"sort"

	"github.com/starford/slipbox/internal/apperr"
	"github.com/starford/slipbox/internal/models"
	"github.com/starford/slipbox/internal/parser"
)

// observe stats every document and returns those that need a rescan with
// LastEditAt advanced to the observed mtime (not yet persisted). With force
// set every document present on disk is returned.
func (e *Engine) observe(rep *Report, docs []models.Document, force bool) []models.Document {
	var dirty []models.Document
	for _, d := range docs {
		info, err := e.ws.Store.Stat(e.ws.NotePath(d.Filename))
		if err != nil {
			rep.fail(e.logger, ioItem("stat", d.Filename, err))
			continue
		}
		if !force && d.Scanned() && !info.ModTime.After(d.LastEditAt) {
			continue
		}
		if info.ModTime.After(d.LastEditAt) {
			d.LastEditAt = info.ModTime
		}
		dirty = append(dirty, d)
	}
	return dirty
}

type scanned struct {
	doc     models.Document
	markers parser.Markers
}

// scan regenerates labels and citations of every document, then resolves
// links. Labels go first for all documents so links into labels created in
// the same pass resolve. Each document commits independently.
func (e *Engine) scan(rep *Report, docs []models.Document) {
	log := e.logger.With(slog.String("run_id", rep.RunID))

	names, err := e.filenames()
	if err != nil {
		rep.fail(log, apperr.Item("scan", "registry", apperr.ErrIO, err))
		return
	}

	var ready []scanned
	for _, d := range docs {
		data, err := e.ws.Store.Read(e.ws.NotePath(d.Filename))
		if err != nil {
			rep.fail(log, ioItem("read", d.Filename, err))
			continue
		}
		m := parser.Extract(string(data))
		if err := e.reconcileLabels(rep, d, m.Labels, names); err != nil {
			rep.fail(log, apperr.Item("labels", d.Filename, apperr.ErrIO, err))
			continue
		}
		changed, err := e.reconcileCitations(d, m.Citations)
		if err != nil {
			rep.fail(log, apperr.Item("citations", d.Filename, apperr.ErrIO, err))
			continue
		}
		rep.CitationsChanged[d.Filename] = changed
		ready = append(ready, scanned{doc: d, markers: m})
	}

	for _, s := range ready {
		if err := e.reconcileLinks(rep, s.doc, s.markers.Links, names); err != nil {
			rep.fail(log, apperr.Item("links", s.doc.Filename, apperr.ErrIO, err))
			continue
		}
		d := s.doc
		if err := e.ws.Registry.UpdateDocument(&d); err != nil {
			rep.fail(log, apperr.Item("update", d.Filename, apperr.ErrIO, err))
			continue
		}
		rep.Dirty = append(rep.Dirty, d)
		log.Debug("reconcile: rescanned",
			slog.String("filename", d.Filename),
			slog.Int("labels", len(s.markers.Labels)),
			slog.Int("citations", len(s.markers.Citations)),
			slog.Int("links", len(s.markers.Links)))
		e.notifyDirty(d.Filename, rep.CitationsChanged[d.Filename])
	}
	e.notifyLinks(rep.LinkChanges())
}

// reconcileLabels makes the stored labels equal to values plus the
// whole-document sentinel. Removing a label drops the links into it; those
// are reported as deleted.
func (e *Engine) reconcileLabels(rep *Report, d models.Document, values []string, names map[int64]string) error {
	reg := e.ws.Registry
	want := make(map[string]struct{}, len(values)+1)
	want[parser.WholeDocument] = struct{}{}
	for _, v := range values {
		want[v] = struct{}{}
	}

	existing, err := reg.ListLabels(d.ID)
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		have[l.Value] = struct{}{}
		if _, keep := want[l.Value]; keep {
			continue
		}
		inbound, err := reg.ListLinksTo(l.ID)
		if err != nil {
			return err
		}
		if err := reg.DeleteLabel(l.ID); err != nil {
			return err
		}
		for _, k := range inbound {
			rep.LinksDeleted = append(rep.LinksDeleted, LinkChange{
				Kind: LinkDeleted, Source: names[k.SourceID], Target: d.Reference, Label: l.Value,
			})
		}
	}
	for _, v := range sortedKeys(want) {
		if _, ok := have[v]; ok {
			continue
		}
		if _, err := reg.CreateLabel(d.ID, v); err != nil {
			return err
		}
	}
	return nil
}

// reconcileCitations makes the stored citation keys equal to keys and
// reports whether anything changed.
func (e *Engine) reconcileCitations(d models.Document, keys []string) (bool, error) {
	reg := e.ws.Registry
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	existing, err := reg.ListCitations(d.ID)
	if err != nil {
		return false, err
	}
	changed := false
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c.Key] = struct{}{}
		if _, keep := want[c.Key]; keep {
			continue
		}
		if err := reg.DeleteCitation(c.ID); err != nil {
			return changed, err
		}
		changed = true
	}
	for _, k := range keys {
		if _, ok := have[k]; ok {
			continue
		}
		if _, err := reg.CreateCitation(d.ID, k); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// reconcileLinks resolves each (reference, label) pair and makes the stored
// outgoing links of d equal to the resolvable ones. Unresolvable pairs are
// reported as dangling.
func (e *Engine) reconcileLinks(rep *Report, d models.Document, refs []parser.LinkRef, names map[int64]string) error {
	reg := e.ws.Registry
	log := e.logger.With(slog.String("run_id", rep.RunID))

	existing, err := reg.ListLinksFrom(d.ID)
	if err != nil {
		return err
	}
	have := make(map[parser.LinkRef]models.Link, len(existing))
	for _, k := range existing {
		have[parser.LinkRef{Reference: k.TargetReference, Label: k.Label}] = k
	}

	want := make(map[parser.LinkRef]struct{}, len(refs))
	for _, ref := range refs {
		want[ref] = struct{}{}
		if _, ok := have[ref]; ok {
			continue
		}
		labelID, err := e.resolve(ref)
		if errors.Is(err, apperr.ErrNotFound) {
			rep.Dangling = append(rep.Dangling, Dangling{Source: d.Filename, Reference: ref.Reference, Label: ref.Label})
			log.Warn("reconcile: dangling reference",
				slog.String("source", d.Filename),
				slog.String("reference", ref.Reference),
				slog.String("label", ref.Label))
			continue
		}
		if err != nil {
			return err
		}
		if _, err := reg.CreateLink(d.ID, labelID); err != nil {
			return err
		}
		rep.LinksCreated = append(rep.LinksCreated, LinkChange{
			Kind: LinkCreated, Source: d.Filename, Target: ref.Reference, Label: ref.Label,
		})
	}

	for _, k := range existing {
		if _, keep := want[parser.LinkRef{Reference: k.TargetReference, Label: k.Label}]; keep {
			continue
		}
		if err := reg.DeleteLink(k.ID); err != nil {
			return err
		}
		rep.LinksDeleted = append(rep.LinksDeleted, LinkChange{
			Kind: LinkDeleted, Source: names[k.SourceID], Target: k.TargetReference, Label: k.Label,
		})
	}
	return nil
}

// resolve finds the label id for ref. A miss on either the document or the
// label matches apperr.ErrNotFound.
func (e *Engine) resolve(ref parser.LinkRef) (int64, error) {
	target, err := e.ws.Registry.GetDocumentByReference(ref.Reference)
	if err != nil {
		return 0, err
	}
	label, err := e.ws.Registry.GetLabel(target.ID, ref.Label)
	if err != nil {
		return 0, err
	}
	return label.ID, nil
}

func (e *Engine) filenames() (map[int64]string, error) {
	docs, err := e.ws.Registry.ListDocuments()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(docs))
	for _, d := range docs {
		out[d.ID] = d.Filename
	}
	return out, nil
}

func (r *Report) fail(log *slog.Logger, err error) {
	log.Warn("reconcile: item failed", slog.String("error", err.Error()))
	r.Failures = append(r.Failures, err)
}

// ioItem classifies a storage error as NotFound or IOFailure.
func ioItem(op, filename string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return apperr.Item(op, filename, apperr.ErrNotFound, err)
	}
	return apperr.Item(op, filename, apperr.ErrIO, err)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
