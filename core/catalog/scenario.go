package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/twinplan/core/model"
)

// Scenario is the file representation of a catalog.
type Scenario struct {
	TwinWorlds  []model.TwinWorld `json:"twin_worlds"`
	CostModels  []model.CostModel `json:"cost_models"`
	Algorithms  []model.Algorithm `json:"algorithms"`
	EnergyFlows []FlowSource      `json:"energy_flows"`
}

// FlowSource is an energy flow whose points are either inline or read from
// a CSV file relative to the scenario file.
type FlowSource struct {
	model.EnergyFlow
	CSV string `json:"csv,omitempty"`
}

// LoadScenario reads a YAML or JSON scenario and resolves CSV flows.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	s, err := ParseScenario(data, filepath.Ext(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range s.EnergyFlows {
		f := &s.EnergyFlows[i]
		if f.CSV == "" {
			continue
		}
		p := f.CSV
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		points, err := readFlowFile(p)
		if err != nil {
			return Scenario{}, fmt.Errorf("energy flow %d: %w", f.ID, err)
		}
		f.Points = points
	}
	return s, nil
}

// ParseScenario decodes a scenario document. YAML is converted to JSON
// first so the model's JSON codecs apply to both formats.
func ParseScenario(data []byte, ext string) (Scenario, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Scenario{}, err
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return Scenario{}, fmt.Errorf("convert yaml: %w", err)
		}
		data = b
	case ".json":
	default:
		return Scenario{}, fmt.Errorf("unsupported scenario format: %s", ext)
	}
	var s Scenario
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Scenario{}, err
	}
	s.link()
	return s, nil
}

// link fills owner IDs left out of nested entities.
func (s *Scenario) link() {
	for i := range s.TwinWorlds {
		w := &s.TwinWorlds[i]
		for j := range w.Households {
			h := &w.Households[j]
			if h.TwinWorldID == 0 {
				h.TwinWorldID = w.ID
			}
			for k := range h.Appliances {
				a := &h.Appliances[k]
				if a.HouseholdID == 0 {
					a.HouseholdID = h.ID
				}
				for l := range a.Windows {
					if a.Windows[l].ApplianceID == 0 {
						a.Windows[l].ApplianceID = a.ID
					}
				}
			}
		}
	}
}

func readFlowFile(path string) ([]model.FlowPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadFlowCSV(f)
}
