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

// Package engine implements the optimization modeling engine.
//
// The engine deterministically compiles a unified data frame plus a business
// rule set into an immutable ModelSpec, lowers the spec into a linear or
// mixed-integer program, invokes the solver, and returns a structured
// Solution.
//
// Build guarantees that two set-equal rule sets produce bit-identical
// ModelSpecs, which the scenario cache's fingerprint keys depend on.
//
// Solve treats infeasible and unbounded as normal outcomes reported in the
// Solution status: callers must be able to tell a user "this scenario has no
// feasible plan". Only solver faults (timeout, crash) are logged as system
// errors, carried as StatusSolverError.
package engine
