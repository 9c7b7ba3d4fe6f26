package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/twinplan/app"
	"github.com/kilianp07/twinplan/config"
	"github.com/kilianp07/twinplan/core/catalog"
	"github.com/kilianp07/twinplan/core/planning"
	"github.com/kilianp07/twinplan/infra/logger"
	"github.com/kilianp07/twinplan/pkg/export"
)

type planFlags struct {
	scenario  string
	sel       app.Selection
	chunkDays int
	seed      int64
	all       bool
	out       string
	format    string
}

var pf planFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a twin world from a scenario file and export the schedule",
	Long: `Plan loads a scenario file (YAML or JSON), plans the selected twin world
and writes the result as JSON, a CSV of appliance runs, a CSV of slot flows
or an HTML chart. With --all every chunk of the horizon is planned.`,
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVarP(&pf.scenario, "scenario", "s", "", "scenario file (defaults to catalog.scenario of the config)")
	f.IntVar(&pf.sel.TwinWorldID, "twinworld", 1, "twin world id")
	f.IntVar(&pf.sel.CostModelID, "costmodel", 1, "cost model id")
	f.IntVar(&pf.sel.AlgorithmID, "algorithm", 1, "algorithm id")
	f.IntVar(&pf.sel.EnergyFlowID, "energyflow", 1, "energy flow id")
	f.IntVar(&pf.sel.ChunkOffset, "offset", 0, "first day to plan, counted from the horizon start")
	f.IntVar(&pf.chunkDays, "days", 0, "days per chunk (0 uses the planner default)")
	f.Int64Var(&pf.seed, "seed", 0, "annealing seed (0 derives it from the input)")
	f.BoolVar(&pf.all, "all", false, "plan every remaining chunk")
	f.StringVarP(&pf.out, "out", "o", "-", "output file, - for stdout")
	f.StringVarP(&pf.format, "format", "f", "json", "json, csv, slots or html")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := &config.Config{}
	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, err = config.Load(cfgPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg.Planner.SetDefaults()
	}
	path := pf.scenario
	if path == "" {
		path = cfg.Catalog.Scenario
	}
	if path == "" {
		return fmt.Errorf("no scenario file given")
	}
	sc, err := catalog.LoadScenario(path)
	if err != nil {
		return err
	}
	cat, err := catalog.NewMemory(sc)
	if err != nil {
		return err
	}
	svc := app.New(cat,
		app.WithLogger(logger.New("plan")),
		app.WithDefaults(app.Defaults{
			ChunkDays: cfg.Planner.ChunkDays,
			Priority:  cfg.Planner.Priority,
			Annealing: cfg.Planner.Annealing,
		}),
	)
	if _, err := svc.Start(ctx, pf.sel); err != nil {
		return err
	}

	in := app.PlanInput{ChunkOffset: pf.sel.ChunkOffset, ChunkDays: pf.chunkDays}
	if cmd.Flags().Changed("seed") {
		in.Seed = &pf.seed
	}
	var outputs []app.PlanOutput
	for {
		out, err := svc.Plan(ctx, in)
		if err != nil {
			return err
		}
		outputs = append(outputs, out)
		if !pf.all || out.Done {
			break
		}
		in.ChunkOffset = out.NextChunkOffset
	}

	w := cmd.OutOrStdout()
	if pf.out != "-" {
		f, err := os.Create(pf.out)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return writePlans(w, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), outputs)
}

func writePlans(w io.Writer, title string, outputs []app.PlanOutput) error {
	switch pf.format {
	case "json":
		if len(outputs) == 1 {
			return export.WriteJSON(w, outputs[0])
		}
		return export.WriteJSON(w, outputs)
	case "csv":
		var runs []planning.ApplianceRun
		for _, o := range outputs {
			for _, h := range o.Households {
				runs = append(runs, h.Runs...)
			}
		}
		return export.WriteCSV(w, runs)
	case "slots":
		var slots []planning.SlotFlow
		for _, o := range outputs {
			slots = append(slots, o.Efficiency.Slots...)
		}
		return export.WriteSlotsCSV(w, slots)
	case "html":
		var slots []planning.SlotFlow
		for _, o := range outputs {
			slots = append(slots, o.Efficiency.Slots...)
		}
		return export.WriteChart(w, title, slots)
	default:
		return fmt.Errorf("unknown format %q", pf.format)
	}
}
