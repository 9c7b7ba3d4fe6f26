// Package catalog stores the planning catalog in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/twinplan/core/catalog"
	"github.com/kilianp07/twinplan/core/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS twin_worlds (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    resolution INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS households (
    id INTEGER PRIMARY KEY,
    twinworld_id INTEGER NOT NULL REFERENCES twin_worlds(id),
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cost_models (
    id INTEGER PRIMARY KEY,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS algorithms (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    tag TEXT NOT NULL,
    params TEXT
);
CREATE TABLE IF NOT EXISTS energy_flows (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    resolution INTEGER NOT NULL,
    solar_panels_factor REAL NOT NULL,
    energy_usage_factor REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS flow_points (
    flow_id INTEGER NOT NULL REFERENCES energy_flows(id),
    ts INTEGER NOT NULL,
    energy_used REAL NOT NULL,
    solar_produced REAL NOT NULL,
    price REAL,
    PRIMARY KEY (flow_id, ts)
);`

// SQLiteCatalog is a catalog.Catalog persisted in SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates the database at path and ensures schema.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteCatalog{db: db}, nil
}

// Import upserts every entity of the scenario in one transaction.
func (c *SQLiteCatalog) Import(ctx context.Context, s catalog.Scenario) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, w := range s.TwinWorlds {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO twin_worlds (id, name, description, start_date, end_date, resolution) VALUES (?, ?, ?, ?, ?, ?)`,
			w.ID, w.Name, w.Description, w.Start.String(), w.End.String(), w.ResolutionMinutes); err != nil {
			return fmt.Errorf("twin world %d: %w", w.ID, err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM households WHERE twinworld_id = ?`, w.ID); err != nil {
			return err
		}
		for _, h := range w.Households {
			h.TwinWorldID = w.ID
			if err = insertJSON(ctx, tx, `INSERT OR REPLACE INTO households (id, twinworld_id, record) VALUES (?, ?, ?)`, h, h.ID, w.ID); err != nil {
				return fmt.Errorf("household %d: %w", h.ID, err)
			}
		}
	}
	for _, cm := range s.CostModels {
		if err = insertJSON(ctx, tx, `INSERT OR REPLACE INTO cost_models (id, record) VALUES (?, ?)`, cm, cm.ID); err != nil {
			return fmt.Errorf("cost model %d: %w", cm.ID, err)
		}
	}
	for _, a := range s.Algorithms {
		if err = insertJSON(ctx, tx, `INSERT OR REPLACE INTO algorithms (id, name, description, tag, params) VALUES (?, ?, ?, ?, ?)`,
			a.Params, a.ID, a.Name, a.Description, a.Tag); err != nil {
			return fmt.Errorf("algorithm %d: %w", a.ID, err)
		}
	}
	for _, f := range s.EnergyFlows {
		if err = importFlow(ctx, tx, f.EnergyFlow); err != nil {
			return fmt.Errorf("energy flow %d: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// insertJSON executes query with args followed by v encoded as JSON.
func insertJSON(ctx context.Context, tx *sql.Tx, query string, v any, args ...any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, append(args, string(b))...)
	return err
}

func importFlow(ctx context.Context, tx *sql.Tx, f model.EnergyFlow) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO energy_flows (id, name, resolution, solar_panels_factor, energy_usage_factor) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.ResolutionMinutes, f.SolarPanelsFactor, f.EnergyUsageFactor); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_points WHERE flow_id = ?`, f.ID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO flow_points (flow_id, ts, energy_used, solar_produced, price) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, p := range f.Points {
		var price sql.NullFloat64
		if p.PriceEUR != nil {
			price = sql.NullFloat64{Float64: *p.PriceEUR, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, f.ID, p.Timestamp.Unix(), p.EnergyUsedKWh, p.SolarProducedKWh, price); err != nil {
			return err
		}
	}
	return nil
}

// Options lists all entities without households and flow points.
func (c *SQLiteCatalog) Options(ctx context.Context) (catalog.Options, error) {
	var opts catalog.Options
	var err error
	if opts.TwinWorlds, err = c.twinWorlds(ctx, `SELECT id, name, description, start_date, end_date, resolution FROM twin_worlds ORDER BY id`); err != nil {
		return opts, err
	}
	if opts.CostModels, err = queryJSON[model.CostModel](ctx, c.db, `SELECT record FROM cost_models ORDER BY id`); err != nil {
		return opts, err
	}
	if opts.Algorithms, err = c.algorithms(ctx, `SELECT id, name, description, tag, params FROM algorithms ORDER BY id`); err != nil {
		return opts, err
	}
	opts.EnergyFlows, err = c.flows(ctx, `SELECT id, name, resolution, solar_panels_factor, energy_usage_factor FROM energy_flows ORDER BY id`)
	return opts, err
}

// TwinWorld returns the twin world with its households.
func (c *SQLiteCatalog) TwinWorld(ctx context.Context, id int) (model.TwinWorld, error) {
	worlds, err := c.twinWorlds(ctx, `SELECT id, name, description, start_date, end_date, resolution FROM twin_worlds WHERE id = ?`, id)
	if err != nil {
		return model.TwinWorld{}, err
	}
	if len(worlds) == 0 {
		return model.TwinWorld{}, &catalog.NotFoundError{Entity: "twin world", ID: id}
	}
	w := worlds[0]
	w.Households, err = queryJSON[model.Household](ctx, c.db, `SELECT record FROM households WHERE twinworld_id = ? ORDER BY id`, id)
	return w, err
}

func (c *SQLiteCatalog) CostModel(ctx context.Context, id int) (model.CostModel, error) {
	cms, err := queryJSON[model.CostModel](ctx, c.db, `SELECT record FROM cost_models WHERE id = ?`, id)
	if err != nil {
		return model.CostModel{}, err
	}
	if len(cms) == 0 {
		return model.CostModel{}, &catalog.NotFoundError{Entity: "cost model", ID: id}
	}
	return cms[0], nil
}

func (c *SQLiteCatalog) Algorithm(ctx context.Context, id int) (model.Algorithm, error) {
	as, err := c.algorithms(ctx, `SELECT id, name, description, tag, params FROM algorithms WHERE id = ?`, id)
	if err != nil {
		return model.Algorithm{}, err
	}
	if len(as) == 0 {
		return model.Algorithm{}, &catalog.NotFoundError{Entity: "algorithm", ID: id}
	}
	return as[0], nil
}

// EnergyFlow returns the flow with its points ordered by time.
func (c *SQLiteCatalog) EnergyFlow(ctx context.Context, id int) (model.EnergyFlow, error) {
	flows, err := c.flows(ctx, `SELECT id, name, resolution, solar_panels_factor, energy_usage_factor FROM energy_flows WHERE id = ?`, id)
	if err != nil {
		return model.EnergyFlow{}, err
	}
	if len(flows) == 0 {
		return model.EnergyFlow{}, &catalog.NotFoundError{Entity: "energy flow", ID: id}
	}
	f := flows[0]
	rows, err := c.db.QueryContext(ctx, `SELECT ts, energy_used, solar_produced, price FROM flow_points WHERE flow_id = ? ORDER BY ts`, id)
	if err != nil {
		return f, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			ts    int64
			p     model.FlowPoint
			price sql.NullFloat64
		)
		if err := rows.Scan(&ts, &p.EnergyUsedKWh, &p.SolarProducedKWh, &price); err != nil {
			return f, err
		}
		p.Timestamp = time.Unix(ts, 0).UTC()
		if price.Valid {
			v := price.Float64
			p.PriceEUR = &v
		}
		f.Points = append(f.Points, p)
	}
	return f, rows.Err()
}

// Close closes the underlying database.
func (c *SQLiteCatalog) Close() error { return c.db.Close() }

func (c *SQLiteCatalog) twinWorlds(ctx context.Context, query string, args ...any) ([]model.TwinWorld, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.TwinWorld
	for rows.Next() {
		var (
			w          model.TwinWorld
			desc       sql.NullString
			start, end string
		)
		if err := rows.Scan(&w.ID, &w.Name, &desc, &start, &end, &w.ResolutionMinutes); err != nil {
			return nil, err
		}
		w.Description = desc.String
		if w.Start, err = model.ParseDate(start); err != nil {
			return nil, fmt.Errorf("twin world %d: %w", w.ID, err)
		}
		if w.End, err = model.ParseDate(end); err != nil {
			return nil, fmt.Errorf("twin world %d: %w", w.ID, err)
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (c *SQLiteCatalog) algorithms(ctx context.Context, query string, args ...any) ([]model.Algorithm, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Algorithm
	for rows.Next() {
		var (
			a      model.Algorithm
			desc   sql.NullString
			params sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &desc, &a.Tag, &params); err != nil {
			return nil, err
		}
		a.Description = desc.String
		if params.Valid && params.String != "null" {
			if err := json.Unmarshal([]byte(params.String), &a.Params); err != nil {
				return nil, fmt.Errorf("algorithm %d params: %w", a.ID, err)
			}
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (c *SQLiteCatalog) flows(ctx context.Context, query string, args ...any) ([]model.EnergyFlow, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.EnergyFlow
	for rows.Next() {
		var f model.EnergyFlow
		if err := rows.Scan(&f.ID, &f.Name, &f.ResolutionMinutes, &f.SolarPanelsFactor, &f.EnergyUsageFactor); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func queryJSON[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

var _ catalog.Catalog = (*SQLiteCatalog)(nil)
