package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/twinplan/core/logger"
	coremetrics "github.com/kilianp07/twinplan/core/metrics"
	infralogger "github.com/kilianp07/twinplan/infra/logger"
)

// InfluxSink writes planning runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordPlan writes one plan_run point.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_run").
		AddTag("run_id", ev.RunID).
		AddTag("twinworld_id", strconv.Itoa(ev.TwinWorldID)).
		AddTag("costmodel_id", strconv.Itoa(ev.CostModelID)).
		AddTag("algorithm", ev.Algorithm).
		AddTag("phase", ev.Phase).
		AddField("seed", ev.Seed).
		AddField("days", ev.Days).
		AddField("households", ev.Households).
		AddField("scheduled", ev.Scheduled).
		AddField("unscheduled", ev.Unscheduled).
		AddField("greedy_cost", round3(ev.GreedyCost)).
		AddField("cost", round3(ev.Cost)).
		AddField("baseline_cost", round3(ev.BaselineCost)).
		AddField("local_share", round3(ev.LocalShare)).
		AddField("self_efficiency", round3(ev.SelfEfficiency)).
		AddField("total_efficiency", round3(ev.TotalEfficiency)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlanDays writes one plan_day point per planned day, timestamped at
// the day's midnight.
func (s *InfluxSink) RecordPlanDays(days []coremetrics.DayEvent) error {
	if len(days) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(days))
	for _, d := range days {
		points = append(points, write.NewPointWithMeasurement("plan_day").
			AddTag("run_id", d.RunID).
			AddTag("twinworld_id", strconv.Itoa(d.TwinWorldID)).
			AddField("surplus_kwh", round3(d.SurplusKWh)).
			AddField("demand_kwh", round3(d.DemandKWh)).
			AddField("local_kwh", round3(d.LocalKWh)).
			AddField("grid_kwh", round3(d.GridKWh)).
			AddField("self_efficiency", round3(d.SelfEfficiency)).
			AddField("total_efficiency", round3(d.TotalEfficiency)).
			AddField("cost", round3(d.Cost)).
			AddField("savings", round3(d.Savings)).
			SetTime(d.Date))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordAnneal writes the annealing statistics of a run.
func (s *InfluxSink) RecordAnneal(ev coremetrics.AnnealEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_anneal").
		AddTag("run_id", ev.RunID).
		AddTag("twinworld_id", strconv.Itoa(ev.TwinWorldID)).
		AddTag("kept", strconv.FormatBool(ev.Kept)).
		AddField("seed", ev.Seed).
		AddField("iterations", ev.Iterations).
		AddField("accepted", ev.Accepted).
		AddField("improvements", ev.Improvements).
		AddField("initial_cost", round3(ev.InitialCost)).
		AddField("best_cost", round3(ev.BestCost)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
