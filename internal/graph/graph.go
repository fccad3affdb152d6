// Package graph derives the document adjacency matrix from the registry.
package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/starford/slipbox/internal/models"
	"github.com/starford/slipbox/internal/registry"
)

// Node is one row and column of the matrix.
type Node struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Reference string `json:"reference"`
}

// Edge is a nonzero cell.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Matrix counts links between documents. Cells[i][j] is the number of links
// from Nodes[i] into labels owned by Nodes[j].
type Matrix struct {
	Nodes []Node  `json:"nodes"`
	Cells [][]int `json:"cells"`
}

// Build snapshots the registry. Rows follow the registry's document order.
func Build(reg registry.Registry) (*Matrix, error) {
	docs, err := reg.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("graph: list documents: %w", err)
	}
	links, err := reg.ListLinks()
	if err != nil {
		return nil, fmt.Errorf("graph: list links: %w", err)
	}
	return FromLinks(docs, links), nil
}

// FromLinks builds a matrix from a document list and its links. Links whose
// endpoints are not in docs are ignored.
func FromLinks(docs []models.Document, links []models.Link) *Matrix {
	m := &Matrix{
		Nodes: make([]Node, len(docs)),
		Cells: make([][]int, len(docs)),
	}
	index := make(map[int64]int, len(docs))
	for i, d := range docs {
		m.Nodes[i] = Node{ID: d.ID, Filename: d.Filename, Reference: d.Reference}
		m.Cells[i] = make([]int, len(docs))
		index[d.ID] = i
	}
	for _, l := range links {
		i, okSrc := index[l.SourceID]
		j, okDst := index[l.TargetID]
		if okSrc && okDst {
			m.Cells[i][j]++
		}
	}
	return m
}

// Len returns the number of documents.
func (m *Matrix) Len() int {
	return len(m.Nodes)
}

// InDegree is the column sum for document j.
func (m *Matrix) InDegree(j int) int {
	n := 0
	for i := range m.Cells {
		n += m.Cells[i][j]
	}
	return n
}

// OutDegree is the row sum for document i.
func (m *Matrix) OutDegree(i int) int {
	n := 0
	for _, c := range m.Cells[i] {
		n += c
	}
	return n
}

// Unreferenced returns the documents nothing links to, in matrix order.
func (m *Matrix) Unreferenced() []Node {
	out := []Node{}
	for j, n := range m.Nodes {
		if m.InDegree(j) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns every nonzero cell in row-major order.
func (m *Matrix) Edges() []Edge {
	out := []Edge{}
	for i, row := range m.Cells {
		for j, c := range row {
			if c > 0 {
				out = append(out, Edge{From: m.Nodes[i].Reference, To: m.Nodes[j].Reference, Count: c})
			}
		}
	}
	return out
}

// WriteTo renders the matrix as tab-separated text with references as row
// and column headers.
func (m *Matrix) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	for _, n := range m.Nodes {
		bw.WriteString("\t" + n.Reference)
	}
	bw.WriteString("\n")
	for i, row := range m.Cells {
		bw.WriteString(m.Nodes[i].Reference)
		for _, c := range row {
			bw.WriteString("\t" + strconv.Itoa(c))
		}
		bw.WriteString("\n")
	}
	err := bw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
