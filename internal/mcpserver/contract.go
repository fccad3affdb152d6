package mcpserver

import (
	"strings"

	"github.com/starford/slipbox/internal/parser"
)

// MarkerSyntax describes the LaTeX markers the reconciler reads, for LLM
// consumers writing or editing notes.
var MarkerSyntax = `# Slip Box Marker Syntax

Every note is a LaTeX file under the notes directory. Its filename is the
path relative to that directory without the extension (e.g. ` + "`topic/graph_theory`" + `).

## Manifest

The manifest binds each note to a reference, one declaration per line:

` + "```" + `latex
\externaldocument[GraphTheory-]{topic/graph_theory}
` + "```" + `

The reference is the text before the trailing ` + "`-`" + `. When a filename is declared
twice the last declaration wins. Lines without a declaration are ignored.

## Anchors

- ` + "`\\label{id}`" + ` declares an anchor other notes may link to.
- ` + "`\\currentdoc{id}`" + ` declares a self-reference anchor.
- Every note implicitly owns the anchor ` + "`" + parser.WholeDocument + "`" + `, which a link without
  an explicit label targets.

## Cross-references

` + "```" + `latex
\excref{Reference}            % whole document
\exref[label]{Reference}      % a specific anchor
\exhyperref[label]{Reference}{link text}
\exhypercref{Reference}{link text}
` + "```" + `

A cross-reference whose reference or label does not exist is dangling: it is
reported and no link is stored.

## Citations

` + "`\\CMD*[pre][post]{key1,key2}`" + ` where CMD is one of:
` + strings.Join(parser.CitationCommands, ", ") + `.

Both optional arguments and the star are optional. Keys are comma separated.

## Renaming

Never edit a reference by hand. Use the ` + "`rename_reference`" + ` tool: it rewrites
the manifest and every note linking to the reference. Use ` + "`rename_filename`" + `
to move a note.
`
