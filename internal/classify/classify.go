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

// Package classify defines the pluggable intent-classification interface and
// a deterministic keyword implementation used as the default backend.
package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Intent is the classified purpose of one conversation turn. It is derived
// per turn and never persisted beyond the triggering turn.
type Intent string

const (
	IntentRetrieve  Intent = "retrieve"
	IntentOptimize  Intent = "optimize"
	IntentVisualize Intent = "visualize"
	IntentWhatIf    Intent = "what_if"
	IntentClarify   Intent = "clarify"
	IntentUnknown   Intent = "unknown"
)

// ClassificationError reports that the classifier backend was unreachable
// or failed. The orchestrator never falls back to a silent default intent on
// this error.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("intent classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Classifier maps a user turn to an intent.
type Classifier interface {
	// Classify maps free-form turn text to an Intent. Failure to reach the
	// backend is a *ClassificationError.
	Classify(ctx context.Context, text string) (Intent, error)
}

// Keyword patterns per intent, checked in a fixed order so classification is
// deterministic. what_if comes first: scenario phrasing usually also contains
// optimize/demand vocabulary.
var keywordPatterns = []struct {
	intent   Intent
	patterns []*regexp.Regexp
}{
	{IntentWhatIf, compileAll(`what[- ]?if`, `scenario`, `simulate`)},
	{IntentVisualize, compileAll(`visuali[sz]e`, `plot`, `chart`, `graph`)},
	{IntentOptimize, compileAll(`optimi[sz]e`, `replenish`, `\bplan\b`, `\bmodel\b`, `reorder`, `order qty`)},
	{IntentRetrieve, compileAll(`retrieve`, `\bshow\b`, `fetch`, `\bdata\b`, `fast[- ]?moving`, `inventory`, `stock`)},
	{IntentClarify, compileAll(`\bhelp\b`, `how do i`, `what can you`)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// KeywordClassifier classifies turns by keyword patterns. It is deterministic
// and has no external dependencies, making it the default backend and the
// test double of choice.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(_ context.Context, text string) (Intent, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return IntentClarify, nil
	}
	for _, group := range keywordPatterns {
		for _, p := range group.patterns {
			if p.MatchString(t) {
				return group.intent, nil
			}
		}
	}
	return IntentUnknown, nil
}
