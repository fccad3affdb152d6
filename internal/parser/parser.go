// Package parser extracts anchors, citation keys and cross-references from
// LaTeX note content. Extraction is best-effort: malformed markers are simply
// left unmatched.
package parser

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WholeDocument is the label a cross-reference without an explicit label
// points at. Every scanned document owns it.
const WholeDocument = "note"

// CitationCommands lists the citation spellings recognised by CitationRule.
var CitationCommands = []string{
	"cite", "citep", "citet", "citealp", "citealt",
	"citeauthor", "citeyear", "citeyearpar", "citetitle", "citeurl",
	"Cite", "Citep", "Citet",
	"parencite", "Parencite", "textcite", "Textcite",
	"footcite", "footcitetext", "autocite", "Autocite",
	"smartcite", "supercite", "fullcite", "nocite",
}

// Rule is a named tokenizer rule.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

var (
	// AnchorRule matches \label{id}; group 1 is the id.
	AnchorRule = Rule{"anchor", regexp.MustCompile(`\\label\{([^{}]+)\}`)}

	// SelfReferenceRule matches \currentdoc{id}; group 1 is the id.
	SelfReferenceRule = Rule{"self-reference", regexp.MustCompile(`\\currentdoc\{([^{}]+)\}`)}

	// CitationRule matches \CMD*[opt][opt]{keys}; group 1 is the key list.
	CitationRule = Rule{"citation", regexp.MustCompile(
		`\\(?:` + strings.Join(CitationCommands, "|") + `)\*?(?:\[[^\[\]]*\]){0,2}\{([^{}]*)\}`)}

	// CrossReferenceRule matches \excref[label]{Ref} and its variants.
	// Groups: 1 command, 2 optional "[label]", 3 label, 4 reference.
	CrossReferenceRule = Rule{"cross-reference", regexp.MustCompile(
		`\\(ex(?:hyper)?c?ref)(\[([^\[\]]*)\])?\{([^{}]+)\}`)}

	// ManifestRule matches \externaldocument[Ref-]{filename}.
	// Groups: 1 reference, 2 filename.
	ManifestRule = Rule{"manifest-declaration", regexp.MustCompile(
		`\\externaldocument\[([^\[\]]+)-\]\{([^{}]+)\}`)}
)

// Match returns the first capture group of every match of r in text.
func (r Rule) Match(text string) []string {
	matches := r.Pattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// LinkRef is a cross-reference target: a document reference plus a label
// inside it.
type LinkRef struct {
	Reference string `json:"reference"`
	Label     string `json:"label"`
}

func (l LinkRef) String() string {
	return l.Reference + "#" + l.Label
}

// Markers is the result of scanning one document.
type Markers struct {
	Labels    []string
	Citations []string
	Links     []LinkRef
}

// Extract scans text and returns sorted, deduplicated marker sets.
func Extract(text string) Markers {
	return Markers{
		Labels:    ExtractLabels(text),
		Citations: ExtractCitations(text),
		Links:     ExtractLinks(text),
	}
}

// ExtractLabels returns anchor and self-reference ids.
func ExtractLabels(text string) []string {
	ids := append(AnchorRule.Match(text), SelfReferenceRule.Match(text)...)
	return uniqueSorted(ids)
}

// ExtractCitations returns citation keys. Comma-separated key lists
// contribute one key per entry.
func ExtractCitations(text string) []string {
	var keys []string
	for _, group := range CitationRule.Match(text) {
		for _, k := range strings.Split(group, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return uniqueSorted(keys)
}

// ExtractLinks returns cross-reference targets.
func ExtractLinks(text string) []LinkRef {
	matches := CrossReferenceRule.Pattern.FindAllStringSubmatch(text, -1)
	seen := make(map[LinkRef]struct{}, len(matches))
	out := make([]LinkRef, 0, len(matches))
	for _, m := range matches {
		ref := LinkRef{Reference: strings.TrimSpace(m[4]), Label: strings.TrimSpace(m[3])}
		if ref.Label == "" {
			ref.Label = WholeDocument
		}
		if ref.Reference == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reference != out[j].Reference {
			return out[i].Reference < out[j].Reference
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// RewriteReference replaces the reference of every cross-reference marker
// targeting oldRef with newRef. Command spelling, the optional label group and
// anything after the marker are left as they were. It returns the rewritten
// text and the number of markers changed.
func RewriteReference(text, oldRef, newRef string) (string, int) {
	n := 0
	out := CrossReferenceRule.Pattern.ReplaceAllStringFunc(text, func(match string) string {
		m := CrossReferenceRule.Pattern.FindStringSubmatch(match)
		if strings.TrimSpace(m[4]) != oldRef {
			return match
		}
		n++
		return `\` + m[1] + m[2] + "{" + newRef + "}"
	})
	return out, n
}

// DefaultReference derives a reference from a note filename: the base name
// is split on underscores and each word title-cased, so "topic/note_b"
// becomes "NoteB".
func DefaultReference(filename string) string {
	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, w := range strings.Split(path.Base(filename), "_") {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
