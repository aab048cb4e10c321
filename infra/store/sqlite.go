// Package store persists scenario definitions and solve results in SQLite so
// runs survive process restarts and can be inspected later.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/transitionlab/fleetpath/core/model"
	"github.com/transitionlab/fleetpath/core/optimizer"
)

// Config locates the database file.
type Config struct {
	Path string `json:"path"`
}

// SetDefaults applies the default database path.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "fleetpath.db"
	}
}

// SQLiteStore persists scenarios and results in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS scenarios (
        id TEXT PRIMARY KEY,
        name TEXT,
        definition TEXT NOT NULL,
        updated INTEGER NOT NULL
    );
    CREATE TABLE IF NOT EXISTS results (
        run_id TEXT PRIMARY KEY,
        scenario_id TEXT NOT NULL,
        fingerprint TEXT NOT NULL,
        status TEXT NOT NULL,
        payload TEXT NOT NULL,
        finished INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_results_scenario ON results(scenario_id, finished);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// SaveScenario inserts or replaces the scenario definition.
func (s *SQLiteStore) SaveScenario(sc model.ScenarioDefinition) error {
	if sc.ID == "" {
		return fmt.Errorf("%w: scenario id is required", model.ErrInvalidScenario)
	}
	def, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO scenarios (id, name, definition, updated)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            definition = excluded.definition,
            updated = excluded.updated`,
		sc.ID, sc.Name, string(def), time.Now().Unix())
	return err
}

// GetScenario returns the stored definition for the given identifier.
func (s *SQLiteStore) GetScenario(id string) (model.ScenarioDefinition, error) {
	var def string
	err := s.db.QueryRow(`SELECT definition FROM scenarios WHERE id = ?`, id).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScenarioDefinition{}, fmt.Errorf("%w: scenario %s", model.ErrNotFound, id)
	}
	if err != nil {
		return model.ScenarioDefinition{}, err
	}
	var sc model.ScenarioDefinition
	if err := json.Unmarshal([]byte(def), &sc); err != nil {
		return model.ScenarioDefinition{}, err
	}
	return sc, nil
}

// ListScenarios returns all stored definitions ordered by identifier.
func (s *SQLiteStore) ListScenarios() ([]model.ScenarioDefinition, error) {
	rows, err := s.db.Query(`SELECT definition FROM scenarios ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.ScenarioDefinition
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return nil, err
		}
		var sc model.ScenarioDefinition
		if err := json.Unmarshal([]byte(def), &sc); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// DeleteScenario removes the definition. Deleting an unknown scenario is not
// an error.
func (s *SQLiteStore) DeleteScenario(id string) error {
	_, err := s.db.Exec(`DELETE FROM scenarios WHERE id = ?`, id)
	return err
}

// SaveResult persists a finished run.
func (s *SQLiteStore) SaveResult(res *optimizer.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO results (run_id, scenario_id, fingerprint, status, payload, finished)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id) DO UPDATE SET
            status = excluded.status,
            payload = excluded.payload,
            finished = excluded.finished`,
		res.RunID, res.ScenarioID, res.Fingerprint, res.Status.String(), string(payload), res.Finished.Unix())
	return err
}

// GetResult returns the run with the given identifier.
func (s *SQLiteStore) GetResult(runID string) (*optimizer.Result, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM results WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", model.ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	var res optimizer.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LatestResult returns the most recently finished run for the scenario.
func (s *SQLiteStore) LatestResult(scenarioID string) (*optimizer.Result, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM results WHERE scenario_id = ?
        ORDER BY finished DESC LIMIT 1`, scenarioID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no results for scenario %s", model.ErrNotFound, scenarioID)
	}
	if err != nil {
		return nil, err
	}
	var res optimizer.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
