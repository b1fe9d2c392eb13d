package reservation

import (
	"context"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/pkg/db"
	"github.com/velogear/velogear-backend/pkg/enums"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/metrics"
)

type stockReserver interface {
	Reserve(ctx context.Context, key stock.ItemKey, qty int) error
	Release(ctx context.Context, key stock.ItemKey, qty int) error
}

// Engine coordinates all-or-nothing reservation across an order's lines. It
// prefers the procedure path and downgrades to the optimistic path for the
// rest of the process lifetime once the procedures are found missing.
type Engine struct {
	procedure  stockReserver
	optimistic stockReserver
	log        *logger.Logger
	metrics    *metrics.CheckoutMetrics

	procedureEnabled atomic.Bool
}

// NewEngine builds a reservation engine. procedureInstalled seeds the path
// choice, typically from ProcedureBackend.Probe at startup.
func NewEngine(procedure, optimistic stockReserver, procedureInstalled bool, log *logger.Logger, m *metrics.CheckoutMetrics) *Engine {
	e := &Engine{
		procedure:  procedure,
		optimistic: optimistic,
		log:        log,
		metrics:    m,
	}
	e.procedureEnabled.Store(procedureInstalled && procedure != nil)
	return e
}

// ReserveAll holds stock for every line or for none. Duplicate lines are
// merged before any write so a product demanded twice is judged against its
// total. On any failure every prior hold is released through the path that
// made it, then the causal error is returned.
func (e *Engine) ReserveAll(ctx context.Context, lines []Line) ([]Held, error) {
	flattened := FlattenDemand(lines)
	held := make([]Held, 0, len(flattened))

	for _, line := range flattened {
		mode, err := e.reserveOne(ctx, line)
		if err != nil {
			e.compensate(ctx, held)
			return nil, err
		}
		held = append(held, Held{Line: line, Mode: mode})
	}
	return held, nil
}

func (e *Engine) reserveOne(ctx context.Context, line Line) (enums.ReservationMode, error) {
	if e.procedureEnabled.Load() {
		err := e.procedure.Reserve(ctx, line.Key(), line.Quantity)
		if err == nil {
			e.metrics.IncReservationAttempt("procedure", "ok")
			return enums.ReservedViaProcedure, nil
		}
		if !db.IsUndefinedFunction(err) {
			e.metrics.IncReservationAttempt("procedure", "rejected")
			return "", err
		}
		// procedures are not installed; stay on the optimistic path from now on
		e.procedureEnabled.Store(false)
		e.metrics.IncFallbackActivation()
		e.log.Warn(ctx, "stock procedures missing, switching to optimistic reservation")
	}

	if err := e.optimistic.Reserve(ctx, line.Key(), line.Quantity); err != nil {
		e.metrics.IncReservationAttempt("optimistic", "rejected")
		return "", err
	}
	e.metrics.IncReservationAttempt("optimistic", "ok")
	return enums.ReservedViaOptimisticRetry, nil
}

// ReleaseAll returns every hold, continuing past individual failures and
// aggregating them. Callers use it both for compensation and for explicit
// stock returns outside the cancel procedure.
func (e *Engine) ReleaseAll(ctx context.Context, held []Held) error {
	var combined error
	for _, h := range held {
		if err := e.releaseOne(ctx, h); err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		e.metrics.AddReleasedUnits("release", h.Quantity)
	}
	return combined
}

// releaseOne mirrors the hold's reservation path. A procedure-mode hold whose
// procedure has since vanished is returned optimistically rather than leaked.
func (e *Engine) releaseOne(ctx context.Context, h Held) error {
	if h.Mode == enums.ReservedViaProcedure && e.procedure != nil {
		err := e.procedure.Release(ctx, h.Key(), h.Quantity)
		if err == nil || !db.IsUndefinedFunction(err) {
			return err
		}
		e.procedureEnabled.Store(false)
	}
	return e.optimistic.Release(ctx, h.Key(), h.Quantity)
}

func (e *Engine) compensate(ctx context.Context, held []Held) {
	if len(held) == 0 {
		return
	}
	var combined error
	for _, h := range held {
		if err := e.releaseOne(ctx, h); err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		e.metrics.AddReleasedUnits("compensation", h.Quantity)
	}
	if combined != nil {
		// leaked units require manual reconciliation, keep the full detail
		e.log.Error(ctx, "compensating release failed", combined)
	}
}
