package dto

import (
	"github.com/noah-isme/testgen-workbench/internal/service"
	"github.com/noah-isme/testgen-workbench/internal/view"
)

// SessionStateResponse is the JSON form of a controller snapshot.
type SessionStateResponse struct {
	SessionID     string       `json:"session_id"`
	Phase         string       `json:"phase"`
	InFlight      bool         `json:"in_flight"`
	SelectionName string       `json:"selection_name"`
	ButtonLabel   string       `json:"button_label"`
	ErrorMessage  string       `json:"error_message"`
	TestCases     []view.Entry `json:"test_cases"`
	Version       uint64       `json:"version"`
}

// NewSessionStateResponse maps a snapshot to its response payload.
func NewSessionStateResponse(sessionID string, state service.State) SessionStateResponse {
	return SessionStateResponse{
		SessionID:     sessionID,
		Phase:         state.Phase.String(),
		InFlight:      state.InFlight(),
		SelectionName: state.SelectionName(),
		ButtonLabel:   view.ButtonLabel(state),
		ErrorMessage:  state.ErrorMessage,
		TestCases:     view.RenderEntries(state.Results),
		Version:       state.Version,
	}
}

// SubmitResponse reports what a submit request did.
type SubmitResponse struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
}
