// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation. The planner registers its strategies and priority
// policies here, the metrics layer its sinks.
//
// Example usage:
//
//	reg := factory.NewRegistry[planning.Strategy]()
//	reg.Register("annealing", func(conf map[string]any) (planning.Strategy, error) {
//	    cfg := planning.DefaultAnnealConfig()
//	    if err := factory.Decode(conf, &cfg); err != nil {
//	        return nil, err
//	    }
//	    return &planning.AnnealingStrategy{Config: cfg}, nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "annealing", Conf: map[string]any{"max_iterations": 500}})
package factory
