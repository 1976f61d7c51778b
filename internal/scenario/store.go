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

package scenario

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/replenlab/replend/pkg/core"
)

// Store persists scenario solutions across process restarts. Fingerprints are
// pure functions of the inputs, so persisted entries remain valid for the
// lifetime of the underlying data snapshot.
type Store interface {
	// Load returns the persisted Solution for the key, if present.
	Load(key Key) (*core.Solution, bool, error)

	// Save persists the Solution for the key. Existing entries are kept
	// as-is: cache entries are immutable.
	Save(key Key, sol *core.Solution) error

	// Close releases the backing resources.
	Close() error
}

// SQLiteStore is a Store backed by an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS scenario_cache (
	base_fp   TEXT NOT NULL,
	deltas_fp TEXT NOT NULL,
	solution  TEXT NOT NULL,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (base_fp, deltas_fp)
);
`

// OpenSQLiteStore opens (creating if needed) a SQLite-backed scenario store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scenario store %s: %w", path, err)
	}
	// The sqlite driver serializes writes; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init scenario store schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(key Key) (*core.Solution, bool, error) {
	var raw []byte
	err := s.db.QueryRow(
		`SELECT solution FROM scenario_cache WHERE base_fp = ? AND deltas_fp = ?`,
		key.Base, key.Deltas,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load scenario %s: %w", key, err)
	}
	var sol core.Solution
	if err := json.Unmarshal(raw, &sol); err != nil {
		return nil, false, fmt.Errorf("decode scenario %s: %w", key, err)
	}
	return &sol, true, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(key Key, sol *core.Solution) error {
	raw, err := json.Marshal(sol)
	if err != nil {
		return fmt.Errorf("encode scenario %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO scenario_cache (base_fp, deltas_fp, solution, stored_at) VALUES (?, ?, ?, ?)`,
		key.Base, key.Deltas, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save scenario %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
