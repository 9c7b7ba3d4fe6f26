package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/twinplan/core/model"
	"github.com/kilianp07/twinplan/core/planning"
)

var at = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func TestWriteCSV(t *testing.T) {
	end := at.Add(2 * time.Hour)
	runs := []planning.ApplianceRun{
		{HouseholdID: 1, ApplianceID: 2, ApplianceName: "dishwasher", Date: model.NewDate(at), Status: planning.StatusScheduled, Start: &at, End: &end, EnergyKWh: 2.4},
		{HouseholdID: 1, ApplianceID: 3, ApplianceName: "car", Date: model.NewDate(at), Status: planning.StatusUnscheduled, Reason: "charger busy"},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, runs); err != nil {
		t.Fatalf("write: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 rows got %d", len(recs))
	}
	if recs[1][5] != "2024-06-03T10:00:00Z" || recs[1][6] != "2024-06-03T12:00:00Z" || recs[1][7] != "2.4" {
		t.Fatalf("unexpected row %v", recs[1])
	}
	if recs[2][4] != "unscheduled" || recs[2][5] != "" || recs[2][8] != "charger busy" {
		t.Fatalf("unexpected row %v", recs[2])
	}
}

func TestWriteSlotsCSV(t *testing.T) {
	slots := []planning.SlotFlow{{Start: at, SurplusKWh: 1.5, DemandKWh: 2, OwnKWh: 1, CommunityKWh: 0.5, GridKWh: 0.5, BuyPrice: 0.3, Cost: 0.2, Class: planning.SlotMixed}}
	var buf bytes.Buffer
	if err := WriteSlotsCSV(&buf, slots); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "start,surplus_kwh,demand_kwh,own_kwh,community_kwh,grid_kwh,buy_price,cost,class\n" +
		"2024-06-03T10:00:00Z,1.5,2,1,0.5,0.5,0.3,0.2,mixed\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv\n%s", buf.String())
	}
}

func TestWriteChart(t *testing.T) {
	slots := []planning.SlotFlow{{Start: at, SurplusKWh: 1}, {Start: at.Add(time.Hour), GridKWh: 2}}
	var buf bytes.Buffer
	if err := WriteChart(&buf, "Rue des Lilas", slots); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, s := range []string{"Rue des Lilas", "Solar surplus", "Grid", "2024-06-03 11:00"} {
		if !strings.Contains(html, s) {
			t.Fatalf("chart misses %q", s)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, map[string]int{"days": 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "{\n  \"days\": 7\n}\n" {
		t.Fatalf("unexpected json %q", buf.String())
	}
}
