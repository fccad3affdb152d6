package reconcile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/huh"
)

// ConflictKind classifies a decision Resync cannot make on its own.
type ConflictKind string

const (
	// MissingFile: the manifest declares a note that is not on disk.
	MissingFile ConflictKind = "missing_file"
	// Untracked: a note on disk is not declared in the manifest.
	Untracked ConflictKind = "untracked"
	// AmbiguousRename: a declaration matches no document by filename or
	// reference while orphaned documents exist that it might be a rename of.
	AmbiguousRename ConflictKind = "ambiguous_rename"
	// ReferenceCollision: a reference is already owned by another document.
	// Always reported, never sent to the resolver.
	ReferenceCollision ConflictKind = "reference_collision"
)

// Conflict describes one decision point.
type Conflict struct {
	Kind       ConflictKind `json:"kind"`
	Filename   string       `json:"filename"`
	Reference  string       `json:"reference,omitempty"`
	Candidates []string     `json:"candidates,omitempty"`
	Detail     string       `json:"detail,omitempty"`
}

// Action is a resolver's answer.
type Action int

const (
	// Skip leaves things as they are.
	Skip Action = iota
	// Accept takes the proposed default.
	Accept
	// Override uses Decision.Value instead of the default.
	Override
)

func (a Action) String() string {
	switch a {
	case Accept:
		return "accept"
	case Override:
		return "override"
	default:
		return "skip"
	}
}

// Decision is the resolver's verdict on a Conflict.
type Decision struct {
	Action Action
	Value  string
}

// ConflictResolver decides conflicts raised during Resync.
type ConflictResolver interface {
	Decide(c Conflict) Decision
}

// ResolverFunc adapts a function to ConflictResolver.
type ResolverFunc func(Conflict) Decision

// Decide calls f(c).
func (f ResolverFunc) Decide(c Conflict) Decision {
	return f(c)
}

// AcceptAll takes every proposed default: missing notes are created from the
// template, untracked notes are declared under their derived reference and
// ambiguous declarations become new documents.
type AcceptAll struct{}

// Decide accepts.
func (AcceptAll) Decide(Conflict) Decision {
	return Decision{Action: Accept}
}

// DeclineAll skips every conflict.
type DeclineAll struct{}

// Decide skips.
func (DeclineAll) Decide(Conflict) Decision {
	return Decision{Action: Skip}
}

const createNewChoice = "(create a new document)"

// Interactive asks an operator on the terminal.
type Interactive struct{}

// Decide prompts for c. Aborted prompts count as Skip.
func (Interactive) Decide(c Conflict) Decision {
	d, err := prompt(c)
	if err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			slog.Warn("resolver: prompt failed", slog.String("kind", string(c.Kind)), slog.String("error", err.Error()))
		}
		return Decision{Action: Skip}
	}
	return d
}

func prompt(c Conflict) (Decision, error) {
	switch c.Kind {
	case MissingFile:
		create := true
		err := huh.NewConfirm().
			Title(fmt.Sprintf("%s (%s) is declared but missing. Create it from the template?", c.Filename, c.Reference)).
			Affirmative("Create").
			Negative("Leave absent").
			Value(&create).
			Run()
		if err != nil || !create {
			return Decision{Action: Skip}, err
		}
		return Decision{Action: Accept}, nil

	case Untracked:
		ref := c.Reference
		err := huh.NewInput().
			Title(fmt.Sprintf("%s is not in the manifest. Reference to declare (empty to skip):", c.Filename)).
			Value(&ref).
			Run()
		switch {
		case err != nil || ref == "":
			return Decision{Action: Skip}, err
		case ref == c.Reference:
			return Decision{Action: Accept}, nil
		default:
			return Decision{Action: Override, Value: ref}, nil
		}

	case AmbiguousRename:
		choice := createNewChoice
		options := append([]string{createNewChoice}, c.Candidates...)
		err := huh.NewSelect[string]().
			Title(fmt.Sprintf("%s (%s) matches no document. Is it a rename of one of these?", c.Filename, c.Reference)).
			Options(huh.NewOptions(options...)...).
			Value(&choice).
			Run()
		if err != nil || choice == createNewChoice {
			return Decision{Action: Accept}, err
		}
		return Decision{Action: Override, Value: choice}, nil
	}
	return Decision{Action: Skip}, nil
}
