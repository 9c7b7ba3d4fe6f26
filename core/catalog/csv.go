package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/twinplan/core/model"
)

var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"}

// ReadFlowCSV parses an energy flow series with the header
// timestamp,energy_used,solar_produced[,price]. Columns may appear in any
// order; an empty price cell leaves the cost model price in effect.
// Timestamps without a zone are read as UTC.
func ReadFlowCSV(r io.Reader) ([]model.FlowPoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"timestamp", "energy_used", "solar_produced"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	priceCol, hasPrice := cols["price"]

	var points []model.FlowPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}
		ts, err := parseTimestamp(rec[cols["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		used, err := strconv.ParseFloat(strings.TrimSpace(rec[cols["energy_used"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: energy_used: %w", line, err)
		}
		solar, err := strconv.ParseFloat(strings.TrimSpace(rec[cols["solar_produced"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: solar_produced: %w", line, err)
		}
		p := model.FlowPoint{Timestamp: ts, EnergyUsedKWh: used, SolarProducedKWh: solar}
		if hasPrice && priceCol < len(rec) {
			if cell := strings.TrimSpace(rec[priceCol]); cell != "" {
				price, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: price: %w", line, err)
				}
				p.PriceEUR = &price
			}
		}
		points = append(points, p)
	}
	return points, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
