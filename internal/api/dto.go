package api

import (
	"github.com/starford/slipbox/internal/graph"
	"github.com/starford/slipbox/internal/noteservice"
	"github.com/starford/slipbox/internal/reconcile"
)

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = noteservice.DocumentDetail

// DocumentItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentItem = noteservice.DocumentItem

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []DocumentItem `json:"documents" validate:"required"`
	Total     int            `json:"total" example:"42" validate:"required"`
}

// RenameRequest is the request body of both rename endpoints.
type RenameRequest = noteservice.Rename

// GraphResponse wraps the adjacency matrix with its derived views.
type GraphResponse struct {
	*graph.Matrix
	Edges        []graph.Edge `json:"edges" validate:"required"`
	Unreferenced []graph.Node `json:"unreferenced" validate:"required"`
}

// UnreferencedResponse lists documents with in-degree zero.
type UnreferencedResponse struct {
	Documents []graph.Node `json:"documents" validate:"required"`
}

// SyncResponse is a Sync report with its failures rendered.
type SyncResponse struct {
	*reconcile.Report
	Failures []string `json:"failures"`
}

// ResyncResponse is a Resync report with its failures rendered.
type ResyncResponse struct {
	*reconcile.ResyncReport
	Failures []string `json:"failures"`
}

// RenameResponse is a RenameReference report with its failures rendered.
type RenameResponse struct {
	*reconcile.RenameReport
	Failures []string `json:"failures"`
}

func newRenameResponse(rep *reconcile.RenameReport) RenameResponse {
	out := RenameResponse{RenameReport: rep, Failures: []string{}}
	for _, err := range rep.Failures {
		out.Failures = append(out.Failures, err.Error())
	}
	return out
}
