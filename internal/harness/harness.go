package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/invariant"
	"github.com/roach88/rwaverify/internal/metrics"
	"github.com/roach88/rwaverify/internal/protocol"
	"github.com/roach88/rwaverify/internal/session"
	"github.com/roach88/rwaverify/internal/tracing"
)

// Seeder gives an actor a fresh registered identity with a bank account.
// *seed.Gateway implements it.
type Seeder interface {
	SeedActor(ctx context.Context, st *actor.State) error
}

// RunIDGenerator names runs. Implemented by UUIDv7Generator and
// testutil.FixedRunID.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable run ids.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Env is everything a run needs from the outside.
type Env struct {
	Browser browser.Browser
	BaseURL string
	Seeder  Seeder
	UI      browser.Options

	// Mode applies unless the scenario sets deviation_mode.
	Mode invariant.Mode

	// Timeout bounds a whole scenario. Zero means no bound.
	Timeout time.Duration

	RunIDs  RunIDGenerator
	Logger  *slog.Logger
	Tracer  tracing.Tracer
	Metrics metrics.Recorder
}

func (e Env) withDefaults() Env {
	if e.Mode == "" {
		e.Mode = invariant.ModeTracked
	}
	if e.RunIDs == nil {
		e.RunIDs = UUIDv7Generator{}
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.Tracer == nil {
		e.Tracer = tracing.Noop{}
	}
	if e.Metrics == nil {
		e.Metrics = metrics.Nop{}
	}
	return e
}

type runner struct {
	env      Env
	scenario *Scenario
	logger   *slog.Logger
	seq      *sequence
	result   *Result
	sessions map[string]*session.Session
}

// Run seeds fresh actors for scenario, opens one isolated browser context
// per actor, runs the steps and evaluates the assertions.
//
// An error is returned only when the run could not be set up (seeding,
// opening sessions). Step and assertion failures are reported in the
// result.
func Run(ctx context.Context, env Env, scenario *Scenario) (*Result, error) {
	env = env.withDefaults()
	if env.Browser == nil || env.Seeder == nil {
		return nil, errors.New("harness: env needs a browser and a seeder")
	}
	mode := env.Mode
	if scenario.DeviationMode != "" {
		m, err := invariant.ParseMode(scenario.DeviationMode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	start := time.Now()
	runID := env.RunIDs.Generate()
	ctx, span := env.Tracer.StartScenario(ctx, runID, scenario.Name)
	defer span.End()
	if env.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, env.Timeout)
		defer cancel()
	}

	r := &runner{
		env:      env,
		scenario: scenario,
		logger:   env.Logger.With("scenario", scenario.Name, "run_id", runID),
		seq:      &sequence{},
		result:   NewResult(scenario.Name),
		sessions: map[string]*session.Session{},
	}
	r.result.RunID = runID
	r.result.Mode = mode
	r.logger.Info("scenario started", "mode", mode, "actors", len(scenario.Actors))

	defer func() {
		all := make([]*session.Session, 0, len(r.sessions))
		for _, s := range r.sessions {
			all = append(all, s)
		}
		if err := session.CloseAll(all...); err != nil {
			r.logger.Warn("closing sessions", "error", err)
		}
	}()
	if err := r.open(ctx); err != nil {
		span.SetError(err)
		env.Metrics.ScenarioFinished(scenario.Name, false, time.Since(start))
		return nil, err
	}

	orch := protocol.New(protocol.Options{
		Mode:     mode,
		Logger:   r.logger,
		Tracer:   env.Tracer,
		Metrics:  env.Metrics,
		OnRecord: r.record,
	})
	if r.execute(ctx, orch) {
		for _, msg := range EvaluateAssertions(r.result, scenario.Assertions) {
			r.result.AddError(msg)
		}
	}

	elapsed := time.Since(start)
	env.Metrics.ScenarioFinished(scenario.Name, r.result.Pass, elapsed)
	if !r.result.Pass {
		span.SetError(errors.New(strings.Join(r.result.Errors, "; ")))
	}
	r.logger.Info("scenario finished", "pass", r.result.Pass, "duration", elapsed,
		"deviations", len(r.result.Deviations()))
	return r.result, nil
}

// open seeds every actor in declaration order and gives each its own
// browser context.
func (r *runner) open(ctx context.Context) error {
	composer := session.NewComposer(r.env.BaseURL, r.env.UI)
	for _, label := range r.scenario.Actors {
		st := actor.New(label)
		if err := r.env.Seeder.SeedActor(ctx, st); err != nil {
			return fmt.Errorf("seed %s: %w", label, err)
		}
		r.event(label, "seed", nil)

		s, err := session.Open(ctx, r.env.Browser, composer, st)
		if err != nil {
			return fmt.Errorf("open session %s: %w", label, err)
		}
		r.sessions[label] = s
	}
	return nil
}

func (r *runner) event(actor, action string, args map[string]any) {
	r.result.AddEvent(r.seq.next(), actor, action, args)
}

func (r *runner) record(rec protocol.Record) {
	r.event(rec.Actor, rec.Action, rec.Args)
}

// execute runs the steps and reports whether all of them behaved as
// declared.
func (r *runner) execute(ctx context.Context, orch *protocol.Orchestrator) bool {
	requests := map[string]*protocol.Transaction{}
	for i, step := range r.scenario.Steps {
		out, err := r.step(ctx, orch, step, requests)
		r.result.Findings = append(r.result.Findings, out.Findings...)
		for _, s := range out.Snapshots {
			r.result.observe(s)
		}

		if step.Expect != nil {
			kind := ErrorKind(err)
			if kind != step.Expect.Error {
				got := "success"
				if err != nil {
					got = fmt.Sprintf("%s (%v)", kind, err)
				}
				r.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s", i, step.Op, step.Expect.Error, got))
				return false
			}
			r.event("", "expected_error", map[string]any{"step": i, "op": step.Op, "error": kind})
			// A failed protocol may leave its actor signed in.
			if err := orch.Park(ctx); err != nil {
				r.result.AddError(fmt.Sprintf("steps[%d] %s: park: %v", i, step.Op, err))
				return false
			}
			continue
		}
		if err != nil {
			r.result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Op, err))
			return false
		}
	}
	return true
}

func (r *runner) step(ctx context.Context, orch *protocol.Orchestrator, step Step, requests map[string]*protocol.Transaction) (protocol.Outcome, error) {
	switch step.Op {
	case OpPay:
		return orch.Pay(ctx, r.sessions[step.From], r.sessions[step.To], step.Amount, step.Note)

	case OpRequest:
		out, err := orch.Request(ctx, r.sessions[step.From], r.sessions[step.To], step.Amount, step.Note)
		if err == nil && step.ID != "" {
			tx := out.Transaction
			requests[step.ID] = &tx
		}
		return out, err

	case OpAccept, OpReject:
		tx, ok := requests[step.Request]
		if !ok {
			return protocol.Outcome{}, fmt.Errorf("request %q was not created", step.Request)
		}
		by := step.By
		if by == "" {
			by = tx.Payer()
		}
		payer, requester := r.sessions[by], r.sessions[tx.Payee()]
		if step.Op == OpAccept {
			return orch.Accept(ctx, tx, payer, requester)
		}
		return orch.Reject(ctx, tx, payer, requester)

	default:
		return protocol.Outcome{}, fmt.Errorf("unknown op %q", step.Op)
	}
}
