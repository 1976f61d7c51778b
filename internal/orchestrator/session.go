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

package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/replenlab/replend/internal/classify"
	"github.com/replenlab/replend/internal/metrics"
	"github.com/replenlab/replend/internal/scenario"
	"github.com/replenlab/replend/pkg/core"
)

// State is the dialogue state of a session.
type State string

const (
	StateAwaitingIntent   State = "awaiting_intent"
	StateCollectingInputs State = "collecting_inputs"
	StateBuildingModel    State = "building_model"
	StatePresentingResult State = "presenting_result"
	StateAwaitingFollowup State = "awaiting_followup"
	StateError            State = "error"
)

// Turn is one conversation turn in a session's history.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Text is the turn content.
	Text string `json:"text"`

	// Intent is the classified intent (user turns only).
	Intent classify.Intent `json:"intent,omitempty"`

	// At is when the turn was recorded.
	At time.Time `json:"at"`
}

// Session holds one conversation's mutable context. Turns within a session
// are processed strictly in arrival order under mu; distinct sessions run
// concurrently with no shared mutable state between them.
type Session struct {
	// ID identifies the session.
	ID string

	// State is the current dialogue state.
	State State

	// History is the bounded turn history, oldest first.
	History []Turn

	// ActiveModel is the session's base model. This is a strong reference
	// held independently of the scenario cache: eviction there never
	// invalidates it.
	ActiveModel *core.ModelSpec

	// LastSolution is the most recent solve result, consumed by visualize.
	LastSolution *core.Solution

	// ScenarioStack records the what-if delta sequences applied against the
	// active model, in application order.
	ScenarioStack [][]scenario.Delta

	mu         sync.Mutex
	lastActive time.Time
}

// snapshot captures the dispatch-relevant state so a failed dispatch can be
// rolled back without adopting a partial model.
type snapshot struct {
	state        State
	activeModel  *core.ModelSpec
	lastSolution *core.Solution
	stackDepth   int
}

func (s *Session) snapshot() snapshot {
	return snapshot{
		state:        s.State,
		activeModel:  s.ActiveModel,
		lastSolution: s.LastSolution,
		stackDepth:   len(s.ScenarioStack),
	}
}

func (s *Session) restore(snap snapshot) {
	s.State = snap.state
	s.ActiveModel = snap.activeModel
	s.LastSolution = snap.lastSolution
	if len(s.ScenarioStack) > snap.stackDepth {
		s.ScenarioStack = s.ScenarioStack[:snap.stackDepth]
	}
}

// Summary is a consistent point-in-time view of a session for inspection
// endpoints. Reading the session fields directly would race a concurrent
// HandleTurn, which mutates them under the session lock.
type Summary struct {
	// ID identifies the session.
	ID string

	// State is the dialogue state at the time of the snapshot.
	State State

	// Turns is the number of turns in the bounded history.
	Turns int

	// HasActiveModel reports whether a base model is available.
	HasActiveModel bool

	// Scenarios is the number of what-if delta sequences applied.
	Scenarios int
}

// Summary returns a consistent snapshot of the session under its lock.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:             s.ID,
		State:          s.State,
		Turns:          len(s.History),
		HasActiveModel: s.ActiveModel != nil,
		Scenarios:      len(s.ScenarioStack),
	}
}

// appendTurn records a turn, truncating oldest-first once the window is
// exceeded. Truncation never touches the active model reference.
func (s *Session) appendTurn(t Turn, window int) {
	s.History = append(s.History, t)
	if window > 0 && len(s.History) > window {
		s.History = s.History[len(s.History)-window:]
	}
}

// DefaultHistoryWindow bounds session history when not configured.
const DefaultHistoryWindow = 50

// DefaultIdleTimeout expires sessions with no traffic.
const DefaultIdleTimeout = 30 * time.Minute

// SessionStore owns the live sessions: one entry per active conversation,
// created on first turn and expired on idle timeout.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTimeout   time.Duration
	historyWindow int
}

// NewSessionStore creates a SessionStore. Non-positive arguments select the
// defaults.
func NewSessionStore(idleTimeout time.Duration, historyWindow int) *SessionStore {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &SessionStore{
		sessions:      make(map[string]*Session),
		idleTimeout:   idleTimeout,
		historyWindow: historyWindow,
	}
}

// GetOrCreate returns the session with the given id, creating it on first
// use. An empty id allocates a new session id.
func (st *SessionStore) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := st.sessions[id]
	if !ok {
		sess = &Session{
			ID:         id,
			State:      StateAwaitingIntent,
			lastActive: time.Now(),
		}
		st.sessions[id] = sess
		metrics.SetActiveSessions(len(st.sessions))
	}
	sess.lastActive = time.Now()
	return sess
}

// Get returns the session if it exists.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Close removes a session explicitly.
func (st *SessionStore) Close(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
	metrics.SetActiveSessions(len(st.sessions))
}

// ExpireIdle removes sessions idle past the timeout and returns how many
// were dropped.
func (st *SessionStore) ExpireIdle(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	var dropped int
	for id, sess := range st.sessions {
		if now.Sub(sess.lastActive) > st.idleTimeout {
			delete(st.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		metrics.SetActiveSessions(len(st.sessions))
	}
	return dropped
}

// Len returns the live session count.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
