package planning

import (
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/twinplan/core/model"
)

// DefaultChunkDays is the number of days planned per request when the input
// leaves ChunkDays unset and the horizon is longer.
const DefaultChunkDays = 7

// Input gathers the read-only data of a planning request.
type Input struct {
	TwinWorld  model.TwinWorld
	CostModel  model.CostModel
	EnergyFlow model.EnergyFlow
	// ChunkOffset is the number of days between the horizon start and the
	// first planned day.
	ChunkOffset int
	// ChunkDays limits the planned days; 0 plans DefaultChunkDays.
	ChunkDays int
}

// Day is one planned day.
type Day struct {
	Index   int          `json:"index"`  // position in the planned chunk
	Number  int          `json:"number"` // 1-based day number in the horizon
	Date    model.Date   `json:"date"`
	Weekday time.Weekday `json:"weekday"`
}

type applianceRef struct {
	model.Appliance
	household int // index into Context.households
	resource  int // index into the resource table
	slots     int
	energy    float64 // kWh drawn per slot
}

// Job is one appliance run to place on one day.
type Job struct {
	ID        int
	Appliance int // index into the context appliances
	Day       int // index into the planned days
	// Starts lists the window-feasible start slots in ascending order.
	Starts []int
	// WindowStarts are the window start slots able to hold the run.
	WindowStarts []int
	// Reason is set when no window on that day can hold the run.
	Reason string
}

// Context is the per-run working state. It is built once by NewContext, is
// read-only afterwards and must not be shared between concurrent runs that
// mutate schedules derived from it.
type Context struct {
	World      model.TwinWorld
	Cost       model.CostModel
	Flow       model.EnergyFlow
	Resolution int
	SlotHours  float64

	slotsPerDay    int
	days           []Day
	households     []model.Household
	appliances     []applianceRef
	applianceIndex map[int]int
	resources      int
	jobs           []Job
	dayJobs        [][]int

	surplus [][][]float64 // [day][household][slot] kWh
	solar   [][][]float64 // [day][household][slot] kWh
	buy     [][]float64   // [day][slot] €/kWh
	local   [][]float64   // [day][slot] €/kWh
	sell    float64
	ratio   []float64 // [day]
}

// NewContext validates the input and materializes everything the scheduler
// needs. It fails with a *model.ValidationError before any scheduling work.
func NewContext(in Input) (*Context, error) {
	w := in.TwinWorld
	if err := w.Validate(); err != nil {
		return nil, model.PrefixField(err, "twinworld")
	}
	if err := in.CostModel.Validate(); err != nil {
		return nil, model.PrefixField(err, "costmodel")
	}
	if err := in.EnergyFlow.Validate(); err != nil {
		return nil, model.PrefixField(err, "energyflow")
	}
	res := w.Resolution()
	if in.EnergyFlow.Resolution() != res {
		return nil, model.IncompleteDataError("energyflow.resolution_minutes",
			"got %d minutes, twin world uses %d", in.EnergyFlow.Resolution(), res)
	}

	c := &Context{
		World:       w,
		Cost:        in.CostModel,
		Flow:        in.EnergyFlow,
		Resolution:  res,
		SlotHours:   float64(res) / 60,
		slotsPerDay: w.SlotsPerDay(),
		sell:        in.CostModel.SellPrice,
	}
	if err := c.planDays(in.ChunkOffset, in.ChunkDays); err != nil {
		return nil, err
	}
	c.indexAppliances()
	if err := c.loadEnergy(); err != nil {
		return nil, err
	}
	if err := c.buildJobs(); err != nil {
		return nil, err
	}
	c.resolvePrices()
	return c, nil
}

func (c *Context) planDays(offset, chunk int) error {
	total := c.World.Days()
	if offset < 0 || offset >= total {
		return &model.ValidationError{Kind: model.ErrInvalidTwinWorld, Field: "chunk_offset",
			Reason: fmt.Sprintf("%d is outside the %d day horizon", offset, total)}
	}
	if chunk <= 0 {
		chunk = DefaultChunkDays
	}
	n := min(chunk, total-offset)
	c.days = make([]Day, n)
	for i := range c.days {
		date := c.World.Start.AddDays(offset + i)
		c.days[i] = Day{Index: i, Number: offset + i + 1, Date: date, Weekday: date.Weekday()}
	}
	return nil
}

// indexAppliances orders households and appliances by ID so that every
// traversal of the context is reproducible.
func (c *Context) indexAppliances() {
	c.households = slices.Clone(c.World.Households)
	slices.SortFunc(c.households, func(a, b model.Household) int { return a.ID - b.ID })

	c.applianceIndex = make(map[int]int)
	resources := make(map[string]int)
	for h, hh := range c.households {
		apps := slices.Clone(hh.Appliances)
		slices.SortFunc(apps, func(a, b model.Appliance) int { return a.ID - b.ID })
		for _, a := range apps {
			a.HouseholdID = hh.ID
			key := fmt.Sprintf("%d/%s", hh.ID, a.ResourceKey())
			r, ok := resources[key]
			if !ok {
				r = len(resources)
				resources[key] = r
			}
			c.applianceIndex[a.ID] = len(c.appliances)
			c.appliances = append(c.appliances, applianceRef{
				Appliance: a,
				household: h,
				resource:  r,
				slots:     a.DurationSlots(c.Resolution),
				energy:    a.PowerKW * c.SlotHours,
			})
		}
	}
	c.resources = len(resources)
}

// loadEnergy aligns the energy flow to the planned days and derives the
// per-household solar production and surplus.
func (c *Context) loadEnergy() error {
	flow := c.Flow
	idx := flow.Index()
	c.solar = make([][][]float64, len(c.days))
	c.surplus = make([][][]float64, len(c.days))
	points := make([]model.FlowPoint, c.slotsPerDay)
	for d := range c.days {
		for s := range points {
			ts := c.SlotStart(d, s)
			p, ok := idx[ts]
			if !ok {
				return model.IncompleteDataError("energyflow.points",
					"no data for slot %s", ts.Format(time.RFC3339))
			}
			points[s] = p
		}
		c.solar[d] = make([][]float64, len(c.households))
		c.surplus[d] = make([][]float64, len(c.households))
		for h, hh := range c.households {
			solar := make([]float64, c.slotsPerDay)
			surplus := make([]float64, c.slotsPerDay)
			for s, p := range points {
				solar[s] = p.SolarProducedKWh * float64(hh.SolarPanels) / flow.SolarPanelsFactor
				surplus[s] = max(0, solar[s]-c.baseline(hh, p, s))
			}
			c.solar[d][h] = solar
			c.surplus[d][h] = surplus
		}
	}
	return nil
}

// baseline returns the inflexible consumption of a household in one slot.
// Without a declared profile, 80% of the scaled reference consumption is
// treated as inflexible.
func (c *Context) baseline(h model.Household, p model.FlowPoint, slot int) float64 {
	if len(h.BaselineKW) > 0 {
		return h.BaselineKW[slot] * c.SlotHours
	}
	return p.EnergyUsedKWh * 0.8 * h.EnergyUsageKWh / c.Flow.EnergyUsageFactor
}

// buildJobs derives the jobs of every planned day from the slot index.
func (c *Context) buildJobs() error {
	c.dayJobs = make([][]int, len(c.days))
	for d, day := range c.days {
		active := make(map[int]bool)
		for entry := range c.Slots(d) {
			for _, id := range entry.Eligible {
				if _, ok := c.applianceIndex[id]; !ok {
					return model.NewInvariantError("slot %d of day %d references unknown appliance %d", entry.Slot, day.Number, id)
				}
				active[id] = true
			}
		}
		for i, a := range c.appliances {
			if !active[a.ID] {
				continue
			}
			job := Job{ID: len(c.jobs), Appliance: i, Day: d}
			job.Starts, job.WindowStarts = c.windowRuns(a, day.Weekday)
			if len(job.Starts) == 0 {
				job.Reason = fmt.Sprintf("no %s window holds a %d minute run", day.Weekday, a.DurationMinutes)
			}
			c.dayJobs[d] = append(c.dayJobs[d], job.ID)
			c.jobs = append(c.jobs, job)
		}
	}
	return nil
}

// resolvePrices computes buy and community prices per slot.
func (c *Context) resolvePrices() {
	idx := c.Flow.Index()
	c.buy = make([][]float64, len(c.days))
	c.local = make([][]float64, len(c.days))
	c.ratio = make([]float64, len(c.days))
	for d := range c.days {
		ratio := c.Cost.Ratio()
		if c.Cost.Scheme == model.SchemeTEMO {
			ratio = c.scarcity(d)
		}
		c.ratio[d] = ratio
		c.buy[d] = make([]float64, c.slotsPerDay)
		c.local[d] = make([]float64, c.slotsPerDay)
		for s := range c.buy[d] {
			price := c.Cost.BuyPriceAt(c.SlotClock(s))
			if p := idx[c.SlotStart(d, s)]; p.PriceEUR != nil {
				price = *p.PriceEUR
			}
			c.buy[d][s] = price
			c.local[d][s] = model.LocalPrice(price, c.sell, ratio)
		}
	}
}

// scarcity is the share of the day's flexible demand in demand plus
// community surplus. Abundant solar pushes the community price to the sell
// price, no solar pushes it to the buy price.
func (c *Context) scarcity(d int) float64 {
	var demand, surplus float64
	for _, j := range c.dayJobs[d] {
		a := c.appliances[c.jobs[j].Appliance]
		demand += a.energy * float64(a.slots)
	}
	for _, hs := range c.surplus[d] {
		for _, v := range hs {
			surplus += v
		}
	}
	if demand+surplus == 0 {
		return 1
	}
	return demand / (demand + surplus)
}

// Days returns the planned days.
func (c *Context) Days() []Day { return c.days }

// SlotsPerDay returns the number of slots in a day.
func (c *Context) SlotsPerDay() int { return c.slotsPerDay }

// Jobs returns the jobs of a planned day in appliance order.
func (c *Context) Jobs(day int) []Job {
	out := make([]Job, len(c.dayJobs[day]))
	for i, j := range c.dayJobs[day] {
		out[i] = c.jobs[j]
	}
	return out
}

// JobCount returns the number of jobs over all planned days.
func (c *Context) JobCount() int { return len(c.jobs) }

// Appliance returns the appliance of a job.
func (c *Context) Appliance(job Job) model.Appliance { return c.appliances[job.Appliance].Appliance }

// Household returns the household owning the appliance of a job.
func (c *Context) Household(job Job) model.Household {
	return c.households[c.appliances[job.Appliance].household]
}

// Households returns the households ordered by ID.
func (c *Context) Households() []model.Household { return c.households }

// SlotStart returns the UTC start time of a slot.
func (c *Context) SlotStart(day, slot int) time.Time {
	return c.days[day].Date.Add(time.Duration(slot*c.Resolution) * time.Minute)
}

// SlotClock returns the time of day a slot starts.
func (c *Context) SlotClock(slot int) model.Clock { return model.Clock(slot * c.Resolution) }

// BuyPrice returns the grid buy price of a slot.
func (c *Context) BuyPrice(day, slot int) float64 { return c.buy[day][slot] }

// LocalPrice returns the community energy price of a slot.
func (c *Context) LocalPrice(day, slot int) float64 { return c.local[day][slot] }

// Ratio returns the price ratio applied on a day.
func (c *Context) Ratio(day int) float64 { return c.ratio[day] }
