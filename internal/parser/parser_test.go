package parser

import (
	"reflect"
	"testing"
)

func TestAnchorRule(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`\label{intro}`, []string{"intro"}},
		{`text \label{a} more \label{b}`, []string{"a", "b"}},
		{`\label{unclosed`, []string{}},
		{`\sublabel{x}`, []string{}},
	}
	for _, c := range cases {
		got := AnchorRule.Match(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("AnchorRule.Match(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSelfReferenceRule(t *testing.T) {
	got := SelfReferenceRule.Match(`\currentdoc{note} body`)
	if !reflect.DeepEqual(got, []string{"note"}) {
		t.Errorf("got %v", got)
	}
}

func TestCitationRule(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`\cite{knuth84}`, []string{"knuth84"}},
		{`\citep[see][p.~4]{lamport}`, []string{"lamport"}},
		{`\parencite*[ch. 2]{turing}`, []string{"turing"}},
		{`\textcite{a} \footcitetext{b}`, []string{"a", "b"}},
		{`\citeauthorx{nope}`, []string{}},
		{`\cite[a][b][c]{toomany}`, []string{}},
	}
	for _, c := range cases {
		got := CitationRule.Match(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("CitationRule.Match(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCitationCommands_Count(t *testing.T) {
	if len(CitationCommands) != 25 {
		t.Errorf("len(CitationCommands) = %d, want 25", len(CitationCommands))
	}
}

func TestManifestRule(t *testing.T) {
	m := ManifestRule.Pattern.FindStringSubmatch(`\externaldocument[FooBar-]{foo_bar}`)
	if m == nil || m[1] != "FooBar" || m[2] != "foo_bar" {
		t.Errorf("match = %v", m)
	}
	if ManifestRule.Pattern.MatchString(`\externaldocument{foo_bar}`) {
		t.Error("declaration without reference prefix should not match")
	}
}

func TestExtract_DedupesAndSorts(t *testing.T) {
	text := `\currentdoc{note}
\label{thm:main} \label{thm:main}
See \cite{b,a} and \citet{a}.
\excref{Other} \exref[lem]{Other} \exhyperref{Other}{text} \exhypercref[lem]{Other}
`
	m := Extract(text)
	if !reflect.DeepEqual(m.Labels, []string{"note", "thm:main"}) {
		t.Errorf("labels = %v", m.Labels)
	}
	if !reflect.DeepEqual(m.Citations, []string{"a", "b"}) {
		t.Errorf("citations = %v", m.Citations)
	}
	want := []LinkRef{{"Other", "lem"}, {"Other", WholeDocument}}
	if !reflect.DeepEqual(m.Links, want) {
		t.Errorf("links = %v, want %v", m.Links, want)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	text := `\label{x} \cite{k} \excref[y]{R} \excref{S}`
	a, b := Extract(text), Extract(text)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("extraction not deterministic: %v vs %v", a, b)
	}
}

func TestExtractLinks_EmptyLabelIsSentinel(t *testing.T) {
	links := ExtractLinks(`\excref[]{Foo}`)
	if len(links) != 1 || links[0].Label != WholeDocument {
		t.Errorf("links = %v", links)
	}
}

func TestExtractLinks_Malformed(t *testing.T) {
	links := ExtractLinks(`\excref[lbl{Foo} \excref{Foo \excref{}`)
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestRewriteReference_PreservesStructure(t *testing.T) {
	in := `A \excref{Foo}, B \exhyperref[sec]{Foo}{the text}, C \excref{Food}, D \exref[x]{Bar}.`
	got, n := RewriteReference(in, "Foo", "Baz")
	want := `A \excref{Baz}, B \exhyperref[sec]{Baz}{the text}, C \excref{Food}, D \exref[x]{Bar}.`
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
}

func TestRewriteReference_NoMatch(t *testing.T) {
	in := `\label{Foo} \cite{Foo}`
	got, n := RewriteReference(in, "Foo", "Bar")
	if got != in || n != 0 {
		t.Errorf("got %q, n = %d", got, n)
	}
}

func TestDefaultReference(t *testing.T) {
	cases := map[string]string{
		"note_b":             "NoteB",
		"example_note":       "ExampleNote",
		"topic/graph_theory": "GraphTheory",
		"single":             "Single",
	}
	for in, want := range cases {
		if got := DefaultReference(in); got != want {
			t.Errorf("DefaultReference(%q) = %q, want %q", in, got, want)
		}
	}
}
