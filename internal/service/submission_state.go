package service

import (
	"fmt"
	"slices"

	"github.com/noah-isme/testgen-workbench/internal/models"
)

// FallbackErrorMessage is shown when a failure carries no usable error text.
const FallbackErrorMessage = "Something went wrong"

// Phase is the current stage of the submission state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:       "idle",
	PhaseSubmitting: "submitting",
	PhaseSucceeded:  "succeeded",
	PhaseFailed:     "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a snapshot of a submission controller. Readers must treat it,
// including Selection, as read-only.
//
// Invariants kept by the transition methods:
//   - ErrorMessage is non-empty only in PhaseFailed;
//   - Results is empty in PhaseFailed.
type State struct {
	Selection *models.Document
	// Dispatched names the document sent by the latest dispatch. It keeps
	// that name even when the selection changes while Submitting.
	Dispatched   string
	Phase        Phase
	Results      []models.TestCase
	ErrorMessage string
	Version      uint64
}

// InFlight reports whether a dispatch is outstanding.
func (s State) InFlight() bool {
	return s.Phase == PhaseSubmitting
}

// HasSelection reports whether a document has been chosen.
func (s State) HasSelection() bool {
	return s.Selection != nil
}

// SelectionName returns the chosen document's name, or "".
func (s State) SelectionName() string {
	if s.Selection == nil {
		return ""
	}
	return s.Selection.Name
}

func (s State) clone() State {
	s.Results = slices.Clone(s.Results)
	if s.Results == nil {
		s.Results = []models.TestCase{}
	}
	return s
}

func (s State) next() State {
	s.Version++
	return s
}

// withSelection replaces the document. Outside of an in-flight dispatch the
// machine re-enters Idle and any error is dropped; results stay visible.
func (s State) withSelection(doc *models.Document) State {
	s = s.next()
	s.Selection = doc
	if s.Phase != PhaseSubmitting {
		s.Phase = PhaseIdle
		s.ErrorMessage = ""
	}
	return s
}

// beginSubmit keeps the prior results on screen until the dispatch resolves.
func (s State) beginSubmit(document string) State {
	s = s.next()
	s.Phase = PhaseSubmitting
	s.Dispatched = document
	s.ErrorMessage = ""
	return s
}

func (s State) succeed(records []models.TestCase) State {
	s = s.next()
	s.Phase = PhaseSucceeded
	s.Results = records
	if s.Results == nil {
		s.Results = []models.TestCase{}
	}
	s.ErrorMessage = ""
	return s
}

func (s State) fail(message string) State {
	s = s.next()
	s.Phase = PhaseFailed
	s.Results = []models.TestCase{}
	if message == "" {
		message = FallbackErrorMessage
	}
	s.ErrorMessage = message
	return s
}
