package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/twinplan/core/planning"
)

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes the appliance runs of a plan to w, one row per run.
// Unscheduled runs have empty start and end columns.
func WriteCSV(w io.Writer, runs []planning.ApplianceRun) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"household_id", "appliance_id", "appliance", "date", "status", "start", "end", "energy_kwh", "reason"}); err != nil {
		return err
	}
	for _, r := range runs {
		var start, end string
		if r.Start != nil {
			start = r.Start.Format(time.RFC3339)
		}
		if r.End != nil {
			end = r.End.Format(time.RFC3339)
		}
		rec := []string{
			strconv.Itoa(r.HouseholdID),
			strconv.Itoa(r.ApplianceID),
			r.ApplianceName,
			r.Date.String(),
			r.Status,
			start,
			end,
			strconv.FormatFloat(r.EnergyKWh, 'f', -1, 64),
			r.Reason,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSlotsCSV writes the community energy flow of every planned slot.
func WriteSlotsCSV(w io.Writer, slots []planning.SlotFlow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start", "surplus_kwh", "demand_kwh", "own_kwh", "community_kwh", "grid_kwh", "buy_price", "cost", "class"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, s := range slots {
		rec := []string{
			s.Start.Format(time.RFC3339),
			f(s.SurplusKWh), f(s.DemandKWh), f(s.OwnKWh), f(s.CommunityKWh), f(s.GridKWh),
			f(s.BuyPrice), f(s.Cost),
			s.Class,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChart renders an HTML line chart of solar surplus, demand, locally
// covered and grid energy per slot.
func WriteChart(w io.Writer, title string, slots []planning.SlotFlow) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Energy (kWh)"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{}),
	)

	xAxis := make([]string, 0, len(slots))
	var surplus, demand, local, grid []opts.LineData
	for _, s := range slots {
		xAxis = append(xAxis, s.Start.Format("2006-01-02 15:04"))
		surplus = append(surplus, opts.LineData{Value: s.SurplusKWh})
		demand = append(demand, opts.LineData{Value: s.DemandKWh})
		local = append(local, opts.LineData{Value: s.OwnKWh + s.CommunityKWh})
		grid = append(grid, opts.LineData{Value: s.GridKWh})
	}
	line.SetXAxis(xAxis).
		AddSeries("Solar surplus", surplus).
		AddSeries("Demand", demand).
		AddSeries("Local", local).
		AddSeries("Grid", grid)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
