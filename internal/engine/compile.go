package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/estimate"
	"github.com/SmartXchain/piedmont-sub000/internal/events"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
)

// CompileOptions are parameters for compiling an order's routing.
type CompileOptions struct {
	OrderID string
	// Start overrides the anchor derived from the order start date.
	Start *time.Time
	// ResourceID is assigned to every compiled operation when set.
	ResourceID string
	ActorID    string
}

// CompileSchedule lays the order's routing steps end to end into operations.
// It returns the operations written, or none when the routing has no steps.
func (e Engine) CompileSchedule(ctx context.Context, opts CompileOptions) ([]domain.Operation, error) {
	if strings.TrimSpace(opts.OrderID) == "" {
		return nil, invalid("order_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOrderTx(ctx, tx, opts.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFound("order", opts.OrderID)
	}
	if err != nil {
		return nil, err
	}
	ops, err := e.compileTx(ctx, tx, &o, opts)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.compiled(o, ops)
	return ops, nil
}

// compileIfUnscheduled compiles the order unless it already has operations.
func (e Engine) compileIfUnscheduled(ctx context.Context, tx *sql.Tx, o *domain.Order, actorID string) ([]domain.Operation, error) {
	if o.RoutingID == nil || o.Status == domain.OrderDone || o.Status == domain.OrderCancelled {
		return nil, nil
	}
	n, err := e.Repo.CountOperations(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, nil
	}
	return e.compileTx(ctx, tx, o, CompileOptions{OrderID: o.ID, ActorID: actorID})
}

func (e Engine) compileTx(ctx context.Context, tx *sql.Tx, o *domain.Order, opts CompileOptions) ([]domain.Operation, error) {
	if o.Status == domain.OrderDone || o.Status == domain.OrderCancelled {
		return nil, conflict("order %s is %s and cannot be scheduled", o.WorkOrder, o.Status)
	}
	if o.RoutingID == nil {
		return nil, invalid("routing_id", "order has no routing")
	}
	n, err := e.Repo.CountOperations(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, conflict("order already scheduled")
	}
	rt, err := e.Repo.GetRoutingTx(ctx, tx, *o.RoutingID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFound("routing", *o.RoutingID)
	}
	if err != nil {
		return nil, err
	}
	if opts.ResourceID != "" {
		if _, err := e.Repo.GetResourceTx(ctx, tx, opts.ResourceID); errors.Is(err, repo.ErrNotFound) {
			return nil, notFound("resource", opts.ResourceID)
		} else if err != nil {
			return nil, err
		}
	}
	if len(rt.Steps) == 0 {
		return nil, nil
	}
	anchor, err := e.anchor(*o, opts.Start)
	if err != nil {
		return nil, err
	}
	ops := PlanOperations(o.ID, rt.Steps, anchor, optionalString(opts.ResourceID))
	if err := e.Repo.InsertOperations(ctx, tx, rt.ID, ops); err != nil {
		return nil, fmt.Errorf("insert operations: %w", err)
	}
	finish := ops[len(ops)-1].PlannedEnd.In(e.config().Location()).Format(domain.DateLayout)
	o.Status = domain.OrderScheduled
	o.EstimatedFinishDate = &finish
	o.UpdatedAt = e.now().UTC()
	if err := e.Repo.UpdateOrder(ctx, tx, *o); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, events.ScheduleCompiled, "order", o.ID, opts.ActorID, events.EventPayload{
		"work_order":            o.WorkOrder,
		"operations":            len(ops),
		"anchor":                anchor.Format(time.RFC3339),
		"estimated_finish_date": finish,
	}); err != nil {
		return nil, err
	}
	return ops, nil
}

// PlanOperations places the steps back to back from anchor in ascending step
// order, each lasting its mean estimate.
func PlanOperations(orderID string, steps []domain.RoutingStep, anchor time.Time, resourceID *string) []domain.Operation {
	sorted := append([]domain.RoutingStep(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StepNumber < sorted[j].StepNumber })
	ops := make([]domain.Operation, 0, len(sorted))
	cursor := anchor
	for i, st := range sorted {
		end := cursor.Add(time.Duration(estimate.StepMinutes(st.Method, estimate.Mean)) * time.Minute)
		ops = append(ops, domain.Operation{
			ID:           uuid.NewString(),
			OrderID:      orderID,
			StepNumber:   st.StepNumber,
			MethodID:     st.MethodID,
			ResourceID:   resourceID,
			Sequence:     i + 1,
			PlannedStart: cursor,
			PlannedEnd:   end,
			Status:       domain.OperationPlanned,
		})
		cursor = end
	}
	return ops
}

// anchor resolves the first operation's start: explicit start, else the start
// date at the shop's start of day, else now.
func (e Engine) anchor(o domain.Order, start *time.Time) (time.Time, error) {
	cfg := e.config()
	if start != nil {
		return start.In(cfg.Location()), nil
	}
	if o.StartDate != nil {
		at, err := cfg.AtDayStart(*o.StartDate)
		if err != nil {
			return time.Time{}, invalid("start_date", "must be a YYYY-MM-DD date")
		}
		return at, nil
	}
	return e.now().In(cfg.Location()), nil
}

func (e Engine) compiled(o domain.Order, ops []domain.Operation) {
	if len(ops) == 0 {
		return
	}
	e.Metrics.Compiled()
	finish := ""
	if o.EstimatedFinishDate != nil {
		finish = *o.EstimatedFinishDate
	}
	e.log().Info("schedule compiled", "order_id", o.ID, "work_order", o.WorkOrder, "operations", len(ops), "estimated_finish_date", finish)
}
