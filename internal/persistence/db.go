// Package persistence provides SQLite storage for experiment results:
// finished runs, their throughput samples, best tours and A* comparisons.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/antcolony/internal/experiment"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for result storage.
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
		params_json TEXT NOT NULL,
		config_json TEXT NOT NULL,
		ticks INTEGER NOT NULL,
		total_food INTEGER NOT NULL,
		collected INTEGER NOT NULL,
		first_pickup_tick INTEGER,
		all_food_tick INTEGER,
		throughput REAL NOT NULL,
		tours INTEGER NOT NULL,
		stats_json TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		time_seconds REAL NOT NULL,
		food_collected INTEGER NOT NULL,
		throughput REAL NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS best_paths (
		run_id TEXT NOT NULL REFERENCES runs(id),
		food_x INTEGER NOT NULL,
		food_y INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		path_json TEXT NOT NULL,
		PRIMARY KEY (run_id, food_x, food_y)
	);

	CREATE TABLE IF NOT EXISTS comparisons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch TEXT NOT NULL,
		num_walls INTEGER NOT NULL,
		trial INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		food_x INTEGER NOT NULL,
		food_y INTEGER NOT NULL,
		reachable INTEGER NOT NULL,
		astar_steps INTEGER NOT NULL,
		astar_explored INTEGER NOT NULL,
		astar_time_ns INTEGER NOT NULL,
		ant_ticks_to_find INTEGER,
		ant_best_steps INTEGER NOT NULL,
		ant_ticks INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_comparisons_batch ON comparisons(batch);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveResult writes a run with its samples and best paths in one
// transaction.
func (db *DB) SaveResult(r *experiment.Result) error {
	paramsJSON, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	configJSON, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	statsJSON, _ := json.Marshal(r.Stats)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, created_at, seed, params_json, config_json, ticks, total_food, collected,
		 first_pickup_tick, all_food_tick, throughput, tours, stats_json, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID.String(), time.Now().Unix(), r.Seed, string(paramsJSON), string(configJSON),
		r.Ticks, r.TotalFood, r.Collected,
		nullTick(r.FirstPickupTick), nullTick(r.AllFoodTick),
		r.Throughput, r.Tours, string(statsJSON), r.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO samples
		(run_id, tick, time_seconds, food_collected, throughput)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range r.Samples {
		if _, err := stmt.Exec(r.RunID.String(), s.Tick, s.TimeSeconds, s.Collected, s.Throughput); err != nil {
			return fmt.Errorf("insert sample %d: %w", s.Tick, err)
		}
	}

	for _, b := range r.BestPaths {
		pathJSON, _ := json.Marshal(b.Path)
		_, err := tx.Exec(`INSERT INTO best_paths
			(run_id, food_x, food_y, steps, path_json) VALUES (?, ?, ?, ?, ?)`,
			r.RunID.String(), b.Food.X, b.Food.Y, b.Steps(), string(pathJSON),
		)
		if err != nil {
			return fmt.Errorf("insert best path %s: %w", b.Food, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("run saved", "run", r.RunID, "samples", len(r.Samples), "best_paths", len(r.BestPaths))
	return nil
}

// SaveResults saves every result, stopping at the first failure.
func (db *DB) SaveResults(results []*experiment.Result) error {
	for _, r := range results {
		if err := db.SaveResult(r); err != nil {
			return err
		}
	}
	slog.Info("results saved", "runs", humanize.Comma(int64(len(results))))
	return nil
}

func nullTick(t *uint64) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*t), Valid: true}
}

// SaveComparisons appends a comparison batch under the given label.
func (db *DB) SaveComparisons(batch string, comps []experiment.Comparison) error {
	if len(comps) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range comps {
		reachable := 0
		if c.Reachable {
			reachable = 1
		}
		_, err := tx.Exec(`INSERT INTO comparisons
			(batch, num_walls, trial, seed, food_x, food_y, reachable, astar_steps,
			 astar_explored, astar_time_ns, ant_ticks_to_find, ant_best_steps, ant_ticks)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			batch, c.Walls, c.Trial, c.Seed, c.Food.X, c.Food.Y, reachable,
			c.AStarSteps, c.AStarExplored, c.AStarTime.Nanoseconds(),
			nullTick(c.ColonyFirstPickup), c.ColonyBestSteps, c.ColonyTicks,
		)
		if err != nil {
			return fmt.Errorf("insert comparison walls=%d trial=%d: %w", c.Walls, c.Trial, err)
		}
	}

	return tx.Commit()
}

// RunRow is the stored summary of one run.
type RunRow struct {
	ID              string        `db:"id" json:"id"`
	CreatedAt       int64         `db:"created_at" json:"created_at"`
	Seed            int64         `db:"seed" json:"seed"`
	ParamsJSON      string        `db:"params_json" json:"-"`
	Ticks           uint64        `db:"ticks" json:"ticks"`
	TotalFood       int           `db:"total_food" json:"total_food"`
	Collected       int           `db:"collected" json:"collected"`
	FirstPickupTick sql.NullInt64 `db:"first_pickup_tick" json:"-"`
	AllFoodTick     sql.NullInt64 `db:"all_food_tick" json:"-"`
	Throughput      float64       `db:"throughput" json:"throughput"`
	Tours           int           `db:"tours" json:"tours"`
}

// MarshalJSON flattens nullable ticks and decoded params.
func (r RunRow) MarshalJSON() ([]byte, error) {
	type plain RunRow
	out := struct {
		plain
		Params          experiment.Params `json:"params"`
		FirstPickupTick *int64            `json:"first_pickup_tick"`
		AllFoodTick     *int64            `json:"all_food_tick"`
	}{plain: plain(r)}
	out.Params, _ = r.Params()
	if r.FirstPickupTick.Valid {
		out.FirstPickupTick = &r.FirstPickupTick.Int64
	}
	if r.AllFoodTick.Valid {
		out.AllFoodTick = &r.AllFoodTick.Int64
	}
	return json.Marshal(out)
}

// Params decodes the stored sweep parameters.
func (r RunRow) Params() (experiment.Params, error) {
	var p experiment.Params
	err := json.Unmarshal([]byte(r.ParamsJSON), &p)
	return p, err
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]RunRow, error) {
	var rows []RunRow
	err := db.conn.Select(&rows, `SELECT id, created_at, seed, params_json, ticks, total_food,
		collected, first_pickup_tick, all_food_tick, throughput, tours
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	return rows, err
}

// Samples returns the throughput samples of a run in tick order.
func (db *DB) Samples(runID uuid.UUID) ([]experiment.Sample, error) {
	var samples []experiment.Sample
	err := db.conn.Select(&samples, `SELECT tick, time_seconds, food_collected, throughput
		FROM samples WHERE run_id = ? ORDER BY tick`, runID.String())
	return samples, err
}

// BestPaths returns the stored best tours of a run.
func (db *DB) BestPaths(runID uuid.UUID) ([]experiment.BestPath, error) {
	var rows []struct {
		X        int    `db:"food_x"`
		Y        int    `db:"food_y"`
		PathJSON string `db:"path_json"`
	}
	err := db.conn.Select(&rows, `SELECT food_x, food_y, path_json
		FROM best_paths WHERE run_id = ? ORDER BY food_y, food_x`, runID.String())
	if err != nil {
		return nil, err
	}
	out := make([]experiment.BestPath, 0, len(rows))
	for _, r := range rows {
		b := experiment.BestPath{}
		b.Food.X, b.Food.Y = r.X, r.Y
		if err := json.Unmarshal([]byte(r.PathJSON), &b.Path); err != nil {
			return nil, fmt.Errorf("decode path %d,%d: %w", r.X, r.Y, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Comparisons returns a stored comparison batch in insertion order.
func (db *DB) Comparisons(batch string) ([]experiment.Comparison, error) {
	var rows []struct {
		experiment.Comparison
		FoodX       int   `db:"food_x"`
		FoodY       int   `db:"food_y"`
		AStarTimeNS int64 `db:"astar_time_ns"`
	}
	err := db.conn.Select(&rows, `SELECT num_walls, trial, seed, food_x, food_y, reachable,
		astar_steps, astar_explored, astar_time_ns, ant_ticks_to_find, ant_best_steps, ant_ticks
		FROM comparisons WHERE batch = ? ORDER BY id`, batch)
	if err != nil {
		return nil, err
	}
	out := make([]experiment.Comparison, len(rows))
	for i, r := range rows {
		c := r.Comparison
		c.Food.X, c.Food.Y = r.FoodX, r.FoodY
		c.AStarTime = time.Duration(r.AStarTimeNS)
		out[i] = c
	}
	return out, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}
