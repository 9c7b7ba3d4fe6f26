// Package simulate exposes the planning service over JSON HTTP.
package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/twinplan/app"
	"github.com/kilianp07/twinplan/core/logger"
	"github.com/kilianp07/twinplan/core/model"
	"github.com/kilianp07/twinplan/core/planlog"
)

// Simulator is the part of app.Service the handler needs.
type Simulator interface {
	LoadOptions(ctx context.Context) (app.Options, error)
	Start(ctx context.Context, sel app.Selection) (app.SelectedOptions, error)
	Plan(ctx context.Context, in app.PlanInput) (app.PlanOutput, error)
	PlanSimulatedAnnealing(ctx context.Context, in app.PlanInput) (app.PlanOutput, error)
	Reset()
	Stop()
	Runs(ctx context.Context, q planlog.Query) ([]planlog.RunRecord, error)
}

// maxBody bounds request bodies; a plan request may inline a twin world
// and an energy flow.
const maxBody = 32 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewHandler registers the simulation routes under /api/simulate. The run
// log endpoint requires "Bearer <token>" when token is non-empty.
func NewHandler(sim Simulator, token string, log logger.Logger) http.Handler {
	log = logger.OrNop(log)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/simulate/load-data", func(w http.ResponseWriter, r *http.Request) {
		opts, err := sim.LoadOptions(r.Context())
		respond(w, log, opts, err)
	})
	mux.HandleFunc("POST /api/simulate/start", func(w http.ResponseWriter, r *http.Request) {
		var sel app.Selection
		if !decode(w, r, &sel) {
			return
		}
		out, err := sim.Start(r.Context(), sel)
		respond(w, log, out, err)
	})
	mux.HandleFunc("POST /api/simulate/plan", planHandler(sim.Plan, log))
	mux.HandleFunc("POST /api/simulate/plan/annealing", planHandler(sim.PlanSimulatedAnnealing, log))
	mux.HandleFunc("POST /api/simulate/reset", func(w http.ResponseWriter, r *http.Request) {
		sim.Reset()
		respond(w, log, map[string]string{"status": "reset"}, nil)
	})
	mux.HandleFunc("POST /api/simulate/stop", func(w http.ResponseWriter, r *http.Request) {
		sim.Stop()
		respond(w, log, map[string]string{"status": "stopped"}, nil)
	})
	mux.HandleFunc("GET /api/simulate/runs", func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q, ok := runQuery(w, r)
		if !ok {
			return
		}
		recs, err := sim.Runs(r.Context(), q)
		if recs == nil {
			recs = []planlog.RunRecord{}
		}
		respond(w, log, recs, err)
	})
	return mux
}

func planHandler(plan func(context.Context, app.PlanInput) (app.PlanOutput, error), log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in app.PlanInput
		if !decode(w, r, &in) {
			return
		}
		out, err := plan(r.Context(), in)
		respond(w, log, out, err)
	}
}

func runQuery(w http.ResponseWriter, r *http.Request) (planlog.Query, bool) {
	v := r.URL.Query()
	q := planlog.Query{RunID: v.Get("run_id")}
	for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if s := v.Get(key); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: key})
				return q, false
			}
			*dst = t
		}
	}
	if s := v.Get("twinworld_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: "twinworld_id"})
			return q, false
		}
		q.TwinWorldID = id
	}
	return q, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func respond(w http.ResponseWriter, log logger.Logger, v any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		log.Errorf("simulate: %v", err)
	}
	writeJSON(w, status, body)
}

// classify maps service errors to HTTP statuses.
func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		body.Field = ve.Field
		return http.StatusBadRequest, body
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, app.ErrStopped), errors.Is(err, app.ErrNoSession):
		return http.StatusConflict, body
	case errors.Is(err, model.ErrInvariant):
		return http.StatusInternalServerError, body
	case errors.Is(err, model.ErrIncompleteData), errors.Is(err, model.ErrInvalidCostModel),
		errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
