/*
Copyright 2025 The replend Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package v1 defines the wire types of the replend HTTP API.
package v1

import (
	"encoding/json"

	"github.com/replenlab/replend/internal/classify"
	"github.com/replenlab/replend/pkg/core"
)

// TurnRequest is the body of POST /api/v1/sessions/{sessionID}/turns.
type TurnRequest struct {
	// Text is the user's message.
	Text string `json:"text"`
}

// TurnResponse is the orchestrator's answer to one turn.
type TurnResponse struct {
	// SessionID identifies the session; echo it on subsequent turns.
	SessionID string `json:"sessionId"`

	// Intent is the classified intent of the turn.
	Intent classify.Intent `json:"intent"`

	// State is the dialogue state after the turn.
	State string `json:"state"`

	// Trace lists the dialogue states traversed while handling the turn.
	Trace []string `json:"trace,omitempty"`

	// Message is the user-facing reply.
	Message string `json:"message"`

	// Frame carries retrieved data rows, when the turn retrieved data.
	Frame json.RawMessage `json:"frame,omitempty"`

	// Solution carries the solve result, when the turn solved a model.
	Solution *core.Solution `json:"solution,omitempty"`

	// ChartPath locates a rendered chart spec, when the turn visualized.
	ChartPath string `json:"chartPath,omitempty"`
}

// ErrorResponse is the body of any non-2xx API response.
type ErrorResponse struct {
	// Error is a short human-readable description.
	Error string `json:"error"`
}

// SessionResponse summarizes a session for GET /api/v1/sessions/{sessionID}.
type SessionResponse struct {
	// SessionID identifies the session.
	SessionID string `json:"sessionId"`

	// State is the current dialogue state.
	State string `json:"state"`

	// Turns is the number of turns in the bounded history.
	Turns int `json:"turns"`

	// HasActiveModel reports whether a base model is available for what-if
	// and visualize requests.
	HasActiveModel bool `json:"hasActiveModel"`

	// Scenarios is the number of what-if adjustments applied so far.
	Scenarios int `json:"scenarios"`
}
