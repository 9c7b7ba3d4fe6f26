package config

import "fmt"

// CatalogConfig selects where twin worlds, cost models, algorithms and
// energy flows are read from.
type CatalogConfig struct {
	// Backend is "memory" (scenario file only) or "sqlite".
	Backend string `json:"backend"`
	// Path is the SQLite database file.
	Path string `json:"path"`
	// Scenario is a YAML or JSON scenario file. With the sqlite backend it
	// is imported at startup.
	Scenario string `json:"scenario"`
}

// SetDefaults applies sane defaults.
func (c *CatalogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "catalog.db"
	}
}

// Validate checks mandatory fields.
func (c CatalogConfig) Validate() error {
	switch c.Backend {
	case "memory":
		if c.Scenario == "" {
			return fmt.Errorf("scenario is required for the memory backend")
		}
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}
