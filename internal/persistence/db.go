// Package persistence records finished runs to SQLite: run parameters and
// outcome, the move log, and the final tract layout. Recorded runs are for
// analysis; a city is never reloaded from them.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/schelling/internal/agents"
	"github.com/talgya/schelling/internal/engine"
	"github.com/talgya/schelling/internal/world"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		size INTEGER NOT NULL,
		neighbor_radius INTEGER NOT NULL,
		occupancy_probability REAL NOT NULL,
		max_tolerance REAL NOT NULL,
		clustering REAL NOT NULL,
		outcome TEXT NOT NULL,
		moves INTEGER NOT NULL,
		evaluations INTEGER NOT NULL,
		population INTEGER NOT NULL,
		average_tolerance REAL,
		initial_unhappy INTEGER NOT NULL,
		initial_mean_homogeneity REAL,
		final_unhappy INTEGER NOT NULL,
		final_mean_homogeneity REAL
	);

	CREATE TABLE IF NOT EXISTS moves (
		run_id TEXT NOT NULL REFERENCES runs(id),
		move_index INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		origin INTEGER NOT NULL,
		destination INTEGER NOT NULL,
		unhappy_after INTEGER NOT NULL,
		mean_homogeneity_after REAL NOT NULL,
		PRIMARY KEY (run_id, move_index)
	);

	CREATE TABLE IF NOT EXISTS tracts (
		run_id TEXT NOT NULL REFERENCES runs(id),
		idx INTEGER NOT NULL,
		agent_id TEXT,
		identity TEXT,
		tolerance REAL,
		homogeneity REAL NOT NULL,
		happy INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRecord is one row of the runs table. The population means are nil for
// a run whose city had no residents.
type RunRecord struct {
	ID                     string    `db:"id" json:"id"`
	CreatedAt              time.Time `db:"-" json:"created_at"`
	CreatedAtUnix          int64     `db:"created_at" json:"-"`
	Seed                   int64     `db:"seed" json:"seed"`
	Size                   int       `db:"size" json:"size"`
	NeighborRadius         int       `db:"neighbor_radius" json:"neighbor_radius"`
	OccupancyProbability   float64   `db:"occupancy_probability" json:"occupancy_probability"`
	MaxTolerance           float64   `db:"max_tolerance" json:"max_tolerance"`
	Clustering             float64   `db:"clustering" json:"clustering"`
	Outcome                string    `db:"outcome" json:"outcome"`
	Moves                  int       `db:"moves" json:"moves"`
	Evaluations            int       `db:"evaluations" json:"evaluations"`
	Population             int       `db:"population" json:"population"`
	AverageTolerance       *float64  `db:"average_tolerance" json:"average_tolerance,omitempty"`
	InitialUnhappy         int       `db:"initial_unhappy" json:"initial_unhappy"`
	InitialMeanHomogeneity *float64  `db:"initial_mean_homogeneity" json:"initial_mean_homogeneity,omitempty"`
	FinalUnhappy           int       `db:"final_unhappy" json:"final_unhappy"`
	FinalMeanHomogeneity   *float64  `db:"final_mean_homogeneity" json:"final_mean_homogeneity,omitempty"`
}

// NewRunRecord summarizes a finished run under a fresh id.
func NewRunRecord(run *engine.Run) RunRecord {
	now := time.Now().UTC()
	return RunRecord{
		ID:                     uuid.NewString(),
		CreatedAt:              now,
		CreatedAtUnix:          now.Unix(),
		Seed:                   run.Seed,
		Size:                   run.Config.Size,
		NeighborRadius:         run.Config.NeighborRadius,
		OccupancyProbability:   run.Config.OccupancyProbability,
		MaxTolerance:           run.Config.MaxTolerance,
		Clustering:             run.Config.Clustering,
		Outcome:                run.Result.Outcome.String(),
		Moves:                  run.Result.Moves,
		Evaluations:            run.Result.Evaluations,
		Population:             run.Final.Population,
		AverageTolerance:       run.Final.AverageTolerance,
		InitialUnhappy:         run.Initial.Unhappy,
		InitialMeanHomogeneity: run.Initial.MeanHomogeneity,
		FinalUnhappy:           run.Final.Unhappy,
		FinalMeanHomogeneity:   run.Final.MeanHomogeneity,
	}
}

// SaveRun inserts a run row.
func (db *DB) SaveRun(r RunRecord) error {
	return db.inTx(func(tx *sqlx.Tx) error {
		return saveRun(tx, r)
	})
}

// SaveMoves writes the move log of a run (full replace).
func (db *DB) SaveMoves(runID string, moves []engine.MoveRecord) error {
	return db.inTx(func(tx *sqlx.Tx) error {
		return saveMoves(tx, runID, moves)
	})
}

// SaveTracts snapshots the city's layout and survey under runID (full replace).
func (db *DB) SaveTracts(runID string, city *world.City) error {
	return db.inTx(func(tx *sqlx.Tx) error {
		return saveTracts(tx, runID, city)
	})
}

// RecordRun saves the run row, its move log and its final layout in one
// transaction; on failure nothing of the run is kept.
func (db *DB) RecordRun(run *engine.Run) (RunRecord, error) {
	return db.record(NewRunRecord(run), run.Sim.MoveLog(), run.Sim.City)
}

func (db *DB) record(rec RunRecord, moves []engine.MoveRecord, city *world.City) (RunRecord, error) {
	slog.Info("recording run", "run_id", rec.ID, "moves", len(moves))

	err := db.inTx(func(tx *sqlx.Tx) error {
		if err := saveRun(tx, rec); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		if err := saveMoves(tx, rec.ID, moves); err != nil {
			return fmt.Errorf("save moves: %w", err)
		}
		if err := saveTracts(tx, rec.ID, city); err != nil {
			return fmt.Errorf("save tracts: %w", err)
		}
		return nil
	})
	if err != nil {
		return rec, err
	}

	slog.Info("run recorded", "run_id", rec.ID)
	return rec, nil
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func saveRun(tx *sqlx.Tx, r RunRecord) error {
	_, err := tx.NamedExec(`INSERT INTO runs
		(id, created_at, seed, size, neighbor_radius, occupancy_probability,
		 max_tolerance, clustering, outcome, moves, evaluations, population,
		 average_tolerance, initial_unhappy, initial_mean_homogeneity,
		 final_unhappy, final_mean_homogeneity)
		VALUES (:id, :created_at, :seed, :size, :neighbor_radius, :occupancy_probability,
		 :max_tolerance, :clustering, :outcome, :moves, :evaluations, :population,
		 :average_tolerance, :initial_unhappy, :initial_mean_homogeneity,
		 :final_unhappy, :final_mean_homogeneity)`, r)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func saveMoves(tx *sqlx.Tx, runID string, moves []engine.MoveRecord) error {
	if _, err := tx.Exec("DELETE FROM moves WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO moves
		(run_id, move_index, agent_id, origin, destination, unhappy_after, mean_homogeneity_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range moves {
		_, err := stmt.Exec(runID, m.MoveIndex, m.AgentID.String(), m.Origin, m.Destination,
			m.UnhappyAfter, m.MeanHomogeneityAfter)
		if err != nil {
			return fmt.Errorf("insert move %d: %w", m.MoveIndex, err)
		}
	}
	return nil
}

func saveTracts(tx *sqlx.Tx, runID string, city *world.City) error {
	survey := city.SurveyAll()

	if _, err := tx.Exec("DELETE FROM tracts WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO tracts
		(run_id, idx, agent_id, identity, tolerance, homogeneity, happy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range city.Tracts() {
		var agentID, identity *string
		var tolerance *float64
		if a := t.Occupant(); a != nil {
			id, ident, tol := a.ID().String(), a.Identity().String(), a.Tolerance()
			agentID, identity, tolerance = &id, &ident, &tol
		}
		happy := 0
		if survey.Happiness[t.Index()] {
			happy = 1
		}
		_, err := stmt.Exec(runID, t.Index(), agentID, identity, tolerance,
			survey.HomogeneityToResident[t.Index()], happy)
		if err != nil {
			return fmt.Errorf("insert tract %d: %w", t.Index(), err)
		}
	}
	return nil
}

// LoadMoves returns a run's move log in move order.
func (db *DB) LoadMoves(runID string) ([]engine.MoveRecord, error) {
	var rows []struct {
		MoveIndex            int       `db:"move_index"`
		AgentID              uuid.UUID `db:"agent_id"`
		Origin               int       `db:"origin"`
		Destination          int       `db:"destination"`
		UnhappyAfter         int       `db:"unhappy_after"`
		MeanHomogeneityAfter float64   `db:"mean_homogeneity_after"`
	}
	err := db.conn.Select(&rows, `SELECT move_index, agent_id, origin, destination,
		unhappy_after, mean_homogeneity_after
		FROM moves WHERE run_id = ? ORDER BY move_index`, runID)
	if err != nil {
		return nil, err
	}

	moves := make([]engine.MoveRecord, len(rows))
	for i, r := range rows {
		moves[i] = engine.MoveRecord{
			MoveIndex:            r.MoveIndex,
			AgentID:              r.AgentID,
			Origin:               r.Origin,
			Destination:          r.Destination,
			UnhappyAfter:         r.UnhappyAfter,
			MeanHomogeneityAfter: r.MeanHomogeneityAfter,
		}
	}
	return moves, nil
}

// TractRow is one row of the tracts table. Resident fields are nil for an
// empty tract.
type TractRow struct {
	Index       int              `db:"idx"`
	AgentID     *uuid.UUID       `db:"agent_id"`
	Identity    *agents.Identity `db:"-"`
	Tolerance   *float64         `db:"tolerance"`
	Homogeneity float64          `db:"homogeneity"`
	Happy       bool             `db:"happy"`

	IdentityLabel *string `db:"identity"`
}

// LoadTracts returns a run's final layout in ring order.
func (db *DB) LoadTracts(runID string) ([]TractRow, error) {
	var rows []TractRow
	err := db.conn.Select(&rows, `SELECT idx, agent_id, identity, tolerance, homogeneity, happy
		FROM tracts WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].IdentityLabel == nil {
			continue
		}
		id, err := agents.ParseIdentity(*rows[i].IdentityLabel)
		if err != nil {
			return nil, fmt.Errorf("tract %d: %w", rows[i].Index, err)
		}
		rows[i].Identity = &id
	}
	return rows, nil
}

// RecentRuns returns the most recent N runs, newest first.
func (db *DB) RecentRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := db.conn.Select(&runs, `SELECT id, created_at, seed, size, neighbor_radius,
		occupancy_probability, max_tolerance, clustering, outcome, moves, evaluations,
		population, average_tolerance, initial_unhappy, initial_mean_homogeneity,
		final_unhappy, final_mean_homogeneity
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].CreatedAt = time.Unix(runs[i].CreatedAtUnix, 0).UTC()
	}
	return runs, nil
}
