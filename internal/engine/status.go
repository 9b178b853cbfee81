package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/events"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
)

type StatusUpdateOptions struct {
	OrderID string
	Status  string
	ActorID string
}

// UpdateOrderStatus applies an operator status change. Entering done stamps
// completed_at and leaving it clears the stamp.
func (e Engine) UpdateOrderStatus(ctx context.Context, opts StatusUpdateOptions) (domain.Order, error) {
	if strings.TrimSpace(opts.OrderID) == "" {
		return domain.Order{}, invalid("order_id", "is required")
	}
	if strings.TrimSpace(opts.Status) == "" {
		return domain.Order{}, invalid("status", "is required")
	}
	next := domain.OrderStatus(strings.TrimSpace(opts.Status))
	if !next.OperatorSettable() {
		return domain.Order{}, invalid("status", "invalid status")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOrderTx(ctx, tx, opts.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return o, notFound("order", opts.OrderID)
	}
	if err != nil {
		return o, err
	}
	prev := o.Status
	if err := ensureOrderTransition(prev, next); err != nil {
		return o, err
	}
	now := e.now().UTC()
	o.Status = next
	switch {
	case next == domain.OrderDone:
		o.CompletedAt = &now
	case prev == domain.OrderDone:
		o.CompletedAt = nil
	}
	o.UpdatedAt = now
	if err := e.Repo.UpdateOrder(ctx, tx, o); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, events.OrderStatusUpdated, "order", o.ID, opts.ActorID, events.EventPayload{
		"work_order": o.WorkOrder,
		"from":       string(prev),
		"to":         string(next),
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	e.Metrics.StatusChanged(string(next))
	e.log().Info("order status updated", "order_id", o.ID, "work_order", o.WorkOrder, "from", prev, "to", next)
	return o, nil
}

// ensureOrderTransition guards operator changes. A done order may only be
// re-opened; a cancelled order is frozen.
func ensureOrderTransition(prev, next domain.OrderStatus) error {
	switch prev {
	case domain.OrderCancelled:
		return conflict("order is cancelled")
	case domain.OrderDone:
		if next == domain.OrderInProgress {
			return nil
		}
		return conflict("order is done; only re-opening to in_progress is allowed")
	}
	return nil
}

// CancelOrder moves a non-terminal order to cancelled.
func (e Engine) CancelOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, invalid("order_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOrderTx(ctx, tx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return o, notFound("order", orderID)
	}
	if err != nil {
		return o, err
	}
	if o.Status == domain.OrderDone || o.Status == domain.OrderCancelled {
		return o, conflict("order is %s and cannot be cancelled", o.Status)
	}
	prev := o.Status
	o.Status = domain.OrderCancelled
	o.UpdatedAt = e.now().UTC()
	if err := e.Repo.UpdateOrder(ctx, tx, o); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, events.OrderCancelled, "order", o.ID, actorID, events.EventPayload{
		"work_order": o.WorkOrder,
		"from":       string(prev),
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	e.Metrics.StatusChanged(string(domain.OrderCancelled))
	e.log().Info("order cancelled", "order_id", o.ID, "work_order", o.WorkOrder)
	return o, nil
}

// SetPartStatus records whether the order's parts have arrived. It is
// independent of the order status.
func (e Engine) SetPartStatus(ctx context.Context, orderID, status, actorID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, invalid("order_id", "is required")
	}
	ps := domain.PartStatus(strings.TrimSpace(status))
	if !ps.Valid() {
		return domain.Order{}, invalid("part_status", "invalid part status")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOrderTx(ctx, tx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return o, notFound("order", orderID)
	}
	if err != nil {
		return o, err
	}
	prev := o.PartStatus
	o.PartStatus = ps
	o.UpdatedAt = e.now().UTC()
	if err := e.Repo.UpdateOrder(ctx, tx, o); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, events.PartStatusUpdated, "order", o.ID, actorID, events.EventPayload{
		"from": string(prev),
		"to":   string(ps),
	}); err != nil {
		return o, err
	}
	return o, tx.Commit()
}

// OperationUpdateOptions change one operation. Nil fields are left as is; an
// empty ResourceID clears the assignment.
type OperationUpdateOptions struct {
	OrderID     string
	Sequence    int
	Status      string
	ResourceID  *string
	ActualStart *time.Time
	ActualEnd   *time.Time
	ActorID     string
}

// UpdateOperation tracks execution of one operation. The order status is
// not touched.
func (e Engine) UpdateOperation(ctx context.Context, opts OperationUpdateOptions) (domain.Operation, error) {
	if strings.TrimSpace(opts.OrderID) == "" {
		return domain.Operation{}, invalid("order_id", "is required")
	}
	if opts.Sequence <= 0 {
		return domain.Operation{}, invalid("sequence", "must be greater than 0")
	}
	var status domain.OperationStatus
	if opts.Status != "" {
		status = domain.OperationStatus(strings.TrimSpace(opts.Status))
		if !status.Valid() {
			return domain.Operation{}, invalid("status", "invalid status")
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Operation{}, err
	}
	defer tx.Rollback()

	op, err := e.Repo.GetOperationTx(ctx, tx, opts.OrderID, opts.Sequence)
	if errors.Is(err, repo.ErrNotFound) {
		return op, notFound("operation", fmt.Sprintf("%s/%d", opts.OrderID, opts.Sequence))
	}
	if err != nil {
		return op, err
	}
	prev := op.Status
	if status != "" {
		op.Status = status
	}
	if opts.ResourceID != nil {
		if *opts.ResourceID == "" {
			op.ResourceID = nil
		} else {
			if _, err := e.Repo.GetResourceTx(ctx, tx, *opts.ResourceID); errors.Is(err, repo.ErrNotFound) {
				return op, notFound("resource", *opts.ResourceID)
			} else if err != nil {
				return op, err
			}
			op.ResourceID = opts.ResourceID
		}
	}
	if opts.ActualStart != nil {
		t := opts.ActualStart.UTC()
		op.ActualStart = &t
	}
	if opts.ActualEnd != nil {
		t := opts.ActualEnd.UTC()
		op.ActualEnd = &t
	}
	if op.ActualStart != nil && op.ActualEnd != nil && op.ActualEnd.Before(*op.ActualStart) {
		return op, invalid("actual_end", "must not be before actual_start")
	}
	if err := e.Repo.UpdateOperationProgress(ctx, tx, op); err != nil {
		return op, err
	}
	if err := e.Events.Append(ctx, tx, events.OperationUpdated, "operation", op.ID, opts.ActorID, events.EventPayload{
		"order_id": op.OrderID,
		"sequence": op.Sequence,
		"from":     string(prev),
		"to":       string(op.Status),
	}); err != nil {
		return op, err
	}
	if err := tx.Commit(); err != nil {
		return op, err
	}
	e.log().Info("operation updated", "order_id", op.OrderID, "sequence", op.Sequence, "status", op.Status)
	return op, nil
}
