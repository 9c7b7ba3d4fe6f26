package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/twinplan/core/metrics"
)

type captured struct {
	mu     sync.Mutex
	bodies []string
}

func (c *captured) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		return ""
	}
	return c.bodies[len(c.bodies)-1]
}

func influxServer(t *testing.T) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, string(data))
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestInfluxSink_RecordAnneal(t *testing.T) {
	srv, body := influxServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.AnnealEvent{
		RunID:        "run-1",
		TwinWorldID:  3,
		Seed:         42,
		Iterations:   500,
		Accepted:     120,
		Improvements: 4,
		InitialCost:  1.2346,
		BestCost:     1.1,
		Kept:         true,
		Time:         now,
	}
	if err := sink.RecordAnneal(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("plan_anneal").
		AddTag("run_id", "run-1").
		AddTag("twinworld_id", "3").
		AddTag("kept", "true").
		AddField("seed", int64(42)).
		AddField("iterations", 500).
		AddField("accepted", 120).
		AddField("improvements", 4).
		AddField("initial_cost", 1.235).
		AddField("best_cost", 1.1).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body.last()) != expected {
		t.Errorf("unexpected body: %s", body.last())
	}
}

func TestInfluxSink_RecordPlan(t *testing.T) {
	srv, body := influxServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()

	err := sink.RecordPlan(coremetrics.PlanEvent{
		RunID:       "run-2",
		TwinWorldID: 1,
		CostModelID: 2,
		Algorithm:   "greedy",
		Phase:       "greedy",
		Scheduled:   6,
		Unscheduled: 1,
		Cost:        2.5,
		Duration:    1500 * time.Microsecond,
		Time:        time.Now(),
	})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	got := body.last()
	for _, want := range []string{"plan_run,", "run_id=run-2", "costmodel_id=2", "unscheduled=1i", "cost=2.5", "duration_ms=1.5"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %s", want, got)
		}
	}
}

func TestInfluxSink_RecordPlanDays(t *testing.T) {
	srv, body := influxServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	if err := sink.RecordPlanDays(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if body.last() != "" {
		t.Fatalf("expected no write for empty batch")
	}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := []coremetrics.DayEvent{
		{RunID: "r", TwinWorldID: 1, Date: day, SurplusKWh: 10, LocalKWh: 4},
		{RunID: "r", TwinWorldID: 1, Date: day.AddDate(0, 0, 1), SurplusKWh: 8, LocalKWh: 2},
	}
	if err := sink.RecordPlanDays(days); err != nil {
		t.Fatalf("record error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(body.last()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines got %d: %s", len(lines), body.last())
	}
	if !strings.HasPrefix(lines[0], "plan_day,") || !strings.Contains(lines[1], "local_kwh=2") {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("expected health endpoint to be called")
	}
}
