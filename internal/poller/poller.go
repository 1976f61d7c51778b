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

// Package poller feeds turns into the orchestrator from a drop directory.
// Each *.txt file is one turn; the filename stem (before the first dot) is
// the session id, so a sequence of files named "s1.001.txt", "s1.002.txt"
// forms one conversation. The answer is written next to the input as
// <name>.response.json and the input file is removed.
package poller

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/replenlab/replend/internal/orchestrator"
)

// Poller watches a drop directory and dispatches turn files.
type Poller struct {
	orch   *orchestrator.Orchestrator
	dir    string
	logger logr.Logger
}

// New creates a Poller for the given directory.
func New(orch *orchestrator.Orchestrator, dir string, logger logr.Logger) *Poller {
	return &Poller{orch: orch, dir: dir, logger: logger}
}

// Run watches the directory until the context is canceled. Files already
// present at startup are processed first, so restarts do not lose turns.
func (p *Poller) Run(ctx context.Context) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(p.dir); err != nil {
		return err
	}

	p.sweep(ctx)

	p.logger.Info("watching drop directory", "dir", p.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				p.process(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error(err, "watcher error")
		}
	}
}

// sweep processes files that were dropped while the poller was not running.
func (p *Poller) sweep(ctx context.Context) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.logger.Error(err, "sweep failed", "dir", p.dir)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			p.process(ctx, filepath.Join(p.dir, e.Name()))
		}
	}
}

// process handles one dropped file. Non-turn files are ignored.
func (p *Poller) process(ctx context.Context, path string) {
	if !strings.HasSuffix(path, ".txt") {
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		// Create events can race the writer; the follow-up Write event
		// retries.
		p.logger.V(1).Info("turn file not readable yet", "path", path)
		return
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return
	}

	name := filepath.Base(path)
	sessionID := name
	if i := strings.IndexByte(name, '.'); i > 0 {
		sessionID = name[:i]
	}

	resp, err := p.orch.HandleTurn(ctx, sessionID, text)
	if err != nil {
		p.logger.Error(err, "turn failed", "path", path, "session", sessionID)
		return
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		p.logger.Error(err, "encode response failed", "path", path)
		return
	}
	respPath := strings.TrimSuffix(path, ".txt") + ".response.json"
	if err := os.WriteFile(respPath, out, 0o644); err != nil {
		p.logger.Error(err, "write response failed", "path", respPath)
		return
	}
	if err := os.Remove(path); err != nil {
		p.logger.Error(err, "remove turn file failed", "path", path)
	}
	p.logger.V(1).Info("turn processed", "session", sessionID, "intent", resp.Intent)
}
