// Package planlog keeps a history of planning runs.
package planlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/twinplan/core/planning"
)

// RunRecord captures one planning run and its outcome.
type RunRecord struct {
	RunID        string                       `json:"run_id"`
	Timestamp    time.Time                    `json:"timestamp"`
	TwinWorldID  int                          `json:"twinworld_id"`
	CostModelID  int                          `json:"costmodel_id"`
	AlgorithmID  int                          `json:"algorithm_id"`
	EnergyFlowID int                          `json:"energyflow_id"`
	Algorithm    string                       `json:"algorithm"`
	Phase        string                       `json:"phase"`
	Seed         int64                        `json:"seed"`
	ChunkOffset  int                          `json:"chunk_offset"`
	Days         int                          `json:"days"`
	Scheduled    int                          `json:"scheduled"`
	Unscheduled  int                          `json:"unscheduled"`
	GreedyCost   float64                      `json:"greedy_cost"`
	Cost         float64                      `json:"cost"`
	BaselineCost float64                      `json:"baseline_cost"`
	LocalShare   float64                      `json:"local_share"`
	DurationMS   float64                      `json:"duration_ms"`
	Violations   []planning.CapacityViolation `json:"violations,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start       time.Time
	End         time.Time
	TwinWorldID int
	RunID       string
}

// Match reports whether r satisfies q.
func (q Query) Match(r RunRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.TwinWorldID != 0 && r.TwinWorldID != q.TwinWorldID {
		return false
	}
	return q.RunID == "" || r.RunID == q.RunID
}

// Store persists RunRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q Query) ([]RunRecord, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, RunRecord) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]RunRecord, error) { return nil, nil }
func (NopStore) Close() error                                      { return nil }

// Options selects and configures a store backend.
type Options struct {
	Backend    string // "jsonl", "sqlite" or "none"
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open creates the store selected by o.Backend.
func Open(o Options) (Store, error) {
	switch o.Backend {
	case "", "none":
		return NopStore{}, nil
	case "jsonl":
		return NewRotatingJSONLStore(o.Path, o.MaxSizeMB, o.MaxBackups, o.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(o.Path)
	default:
		return nil, fmt.Errorf("unknown plan log backend %q", o.Backend)
	}
}
