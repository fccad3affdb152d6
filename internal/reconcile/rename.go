package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/slipbox/internal/apperr"
	"github.com/starford/slipbox/internal/parser"
)

// RenameFilename moves a note to a new filename. The new name must be free
// both in the registry and on disk. The manifest declarations of the note
// follow the move.
func (e *Engine) RenameFilename(oldName, newName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg := e.ws.Registry
	doc, err := reg.GetDocumentByFilename(oldName)
	if err != nil {
		return fmt.Errorf("reconcile: rename %s: %w", oldName, err)
	}
	if oldName == newName {
		return nil
	}
	if _, err := reg.GetDocumentByFilename(newName); err == nil {
		return apperr.Item("rename", newName, apperr.ErrConflict, errors.New("filename already registered"))
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("reconcile: rename %s: %w", oldName, err)
	}

	oldPath, newPath := e.ws.NotePath(oldName), e.ws.NotePath(newName)
	exists, err := e.ws.Store.Exists(newPath)
	if err != nil {
		return apperr.Item("rename", newName, apperr.ErrIO, err)
	}
	if exists {
		return apperr.Item("rename", newName, apperr.ErrConflict, errors.New("file already exists"))
	}

	data, err := e.ws.Store.Read(oldPath)
	if err != nil {
		return ioItem("rename", oldName, err)
	}
	if err := e.ws.Store.Write(newPath, data); err != nil {
		return apperr.Item("rename", newName, apperr.ErrIO, err)
	}
	if err := e.ws.Store.Delete(oldPath); err != nil {
		return apperr.Item("rename", oldName, apperr.ErrIO, err)
	}

	doc.Filename = newName
	if err := reg.UpdateDocument(doc); err != nil {
		return fmt.Errorf("reconcile: rename %s: %w", oldName, err)
	}
	n, err := e.ws.Manifest.SetFilename(oldName, newName)
	if err != nil {
		return apperr.Item("rename", oldName, apperr.ErrIO, err)
	}
	e.logger.Info("reconcile: filename renamed",
		slog.String("old_filename", oldName),
		slog.String("filename", newName),
		slog.Int("manifest_lines", n))
	return nil
}

// RenameReference gives a document a new reference and rewrites every note
// linking to it. A Sync runs first so the links are current. Each source is
// rewritten once; a failed rewrite is reported and leaves earlier rewrites
// in place.
func (e *Engine) RenameReference(oldRef, newRef string) (*RenameReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := &RenameReport{}
	syncRep, err := e.sync()
	if err != nil {
		return nil, err
	}
	rep.Sync = syncRep
	if oldRef == newRef {
		return rep, nil
	}

	reg := e.ws.Registry
	doc, err := reg.GetDocumentByReference(oldRef)
	if err != nil {
		return rep, fmt.Errorf("reconcile: rename reference %s: %w", oldRef, err)
	}
	if owner, err := reg.GetDocumentByReference(newRef); err == nil {
		return rep, apperr.Item("rename reference", newRef, apperr.ErrConflict,
			fmt.Errorf("reference owned by %s", owner.Filename))
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return rep, fmt.Errorf("reconcile: rename reference %s: %w", oldRef, err)
	}

	sources, err := e.linkSources(doc.ID)
	if err != nil {
		return rep, fmt.Errorf("reconcile: rename reference %s: %w", oldRef, err)
	}

	n, err := e.ws.Manifest.SetReference(doc.Filename, newRef)
	if err != nil {
		return rep, apperr.Item("rename reference", doc.Filename, apperr.ErrIO, err)
	}
	rep.ManifestLines = n

	for _, id := range sources {
		src, err := reg.GetDocument(id)
		if err != nil {
			rep.Failures = append(rep.Failures, apperr.Item("rewrite", fmt.Sprint(id), apperr.ErrNotFound, err))
			continue
		}
		p := e.ws.NotePath(src.Filename)
		data, err := e.ws.Store.Read(p)
		if err != nil {
			rep.Failures = append(rep.Failures, ioItem("rewrite", src.Filename, err))
			continue
		}
		out, count := parser.RewriteReference(string(data), oldRef, newRef)
		if count == 0 {
			continue
		}
		if err := e.ws.Store.Write(p, []byte(out)); err != nil {
			rep.Failures = append(rep.Failures, apperr.Item("rewrite", src.Filename, apperr.ErrIO, err))
			continue
		}
		rep.Rewritten = append(rep.Rewritten, Rewrite{Filename: src.Filename, Markers: count})
	}

	doc.Reference = newRef
	if err := reg.UpdateDocument(doc); err != nil {
		return rep, fmt.Errorf("reconcile: rename reference %s: %w", oldRef, err)
	}

	for _, f := range rep.Failures {
		e.logger.Warn("reconcile: rewrite failed", slog.String("error", f.Error()))
	}
	e.logger.Info("reconcile: reference renamed",
		slog.String("filename", doc.Filename),
		slog.String("old_reference", oldRef),
		slog.String("reference", newRef),
		slog.Int("manifest_lines", n),
		slog.Int("rewritten", len(rep.Rewritten)),
		slog.Int("failures", len(rep.Failures)))
	return rep, rep.Err()
}

// linkSources returns the ids of every document linking into a label of
// target, deduplicated and ascending.
func (e *Engine) linkSources(target int64) ([]int64, error) {
	labels, err := e.ws.Registry.ListLabels(target)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{})
	var out []int64
	for _, l := range labels {
		links, err := e.ws.Registry.ListLinksTo(l.ID)
		if err != nil {
			return nil, err
		}
		for _, k := range links {
			if _, dup := seen[k.SourceID]; dup {
				continue
			}
			seen[k.SourceID] = struct{}{}
			out = append(out, k.SourceID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Remove forgets a note: the document and everything it owns are deleted
// from the registry and its manifest declarations are dropped. The file
// itself stays on disk.
func (e *Engine) Remove(filename string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.ws.Registry.GetDocumentByFilename(filename)
	if err != nil {
		return fmt.Errorf("reconcile: remove %s: %w", filename, err)
	}
	inbound, err := e.linkSources(doc.ID)
	if err != nil {
		return fmt.Errorf("reconcile: remove %s: %w", filename, err)
	}
	if err := e.ws.Registry.DeleteDocument(doc.ID); err != nil {
		return fmt.Errorf("reconcile: remove %s: %w", filename, err)
	}
	n, err := e.ws.Manifest.Remove(filename)
	if err != nil {
		return apperr.Item("remove", filename, apperr.ErrIO, err)
	}
	e.logger.Info("reconcile: document removed",
		slog.String("filename", filename),
		slog.String("reference", doc.Reference),
		slog.Int("inbound_sources", len(inbound)),
		slog.Int("manifest_lines", n))
	return nil
}
