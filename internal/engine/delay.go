package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/events"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
)

type DelayOptions struct {
	OrderID    string
	StepNumber int
	Minutes    int
	Reason     string
	ActorID    string
}

// AddDelay appends minutes and a justification to the ledger row of one
// order step. Planned operation times are left alone; the delay shows up in
// the projected schedule.
func (e Engine) AddDelay(ctx context.Context, opts DelayOptions) (domain.DelayLog, error) {
	if strings.TrimSpace(opts.OrderID) == "" {
		return domain.DelayLog{}, invalid("order_id", "is required")
	}
	if opts.StepNumber <= 0 {
		return domain.DelayLog{}, invalid("step_number", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DelayLog{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOrderTx(ctx, tx, opts.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.DelayLog{}, notFound("order", opts.OrderID)
	}
	if err != nil {
		return domain.DelayLog{}, err
	}
	if err := e.ensureStep(ctx, tx, o, opts.StepNumber); err != nil {
		return domain.DelayLog{}, err
	}
	if opts.Minutes <= 0 {
		return domain.DelayLog{}, invalid("minutes", "must be greater than 0")
	}
	reason := strings.TrimSpace(opts.Reason)
	if reason == "" {
		return domain.DelayLog{}, invalid("reason", "is required")
	}
	if o.Status == domain.OrderDone {
		return domain.DelayLog{}, conflict("order %s is done; delays cannot be added", o.WorkOrder)
	}
	now := e.now()
	note := fmt.Sprintf("[+%d min @ %s] %s", opts.Minutes, now.In(e.config().Location()).Format("2006-01-02 15:04"), reason)
	d, err := e.Repo.AccumulateDelay(ctx, tx, o.ID, opts.StepNumber, opts.Minutes, note, now)
	if err != nil {
		return d, fmt.Errorf("accumulate delay: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.DelayAdded, "order", o.ID, opts.ActorID, events.EventPayload{
		"work_order":    o.WorkOrder,
		"step_number":   opts.StepNumber,
		"minutes":       opts.Minutes,
		"total_minutes": d.AddedMinutes,
		"reason":        reason,
	}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	e.Metrics.Delayed(opts.Minutes)
	e.log().Info("delay added", "order_id", o.ID, "work_order", o.WorkOrder, "step_number", opts.StepNumber, "minutes", opts.Minutes, "total_minutes", d.AddedMinutes)
	return d, nil
}

func (e Engine) ensureStep(ctx context.Context, tx *sql.Tx, o domain.Order, step int) error {
	missing := notFound("step", strconv.Itoa(step))
	if o.RoutingID == nil {
		return missing
	}
	rt, err := e.Repo.GetRoutingTx(ctx, tx, *o.RoutingID)
	if errors.Is(err, repo.ErrNotFound) {
		return missing
	}
	if err != nil {
		return err
	}
	for _, st := range rt.Steps {
		if st.StepNumber == step {
			return nil
		}
	}
	return missing
}

// ListDelays returns the ledger rows of an order by step.
func (e Engine) ListDelays(ctx context.Context, orderID string) ([]domain.DelayLog, error) {
	if _, err := e.Repo.GetOrder(ctx, orderID); errors.Is(err, repo.ErrNotFound) {
		return nil, notFound("order", orderID)
	} else if err != nil {
		return nil, err
	}
	return e.Repo.ListDelays(ctx, orderID)
}
