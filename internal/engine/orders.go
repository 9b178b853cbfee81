package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/events"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
)

// OrderCreateOptions are parameters for creating a manufacturing order.
type OrderCreateOptions struct {
	ID              string
	WorkOrder       string `validate:"required"`
	PartNumber      string `validate:"required"`
	PartDescription string
	Quantity        int    `validate:"gt=0"`
	RoutingID       string
	StartDate       string `validate:"omitempty,datetime=2006-01-02"`
	DueDate         string `validate:"omitempty,datetime=2006-01-02"`
	ActorID         string
}

// CreateOrder inserts a planned order. With a routing the order is compiled
// in the same transaction.
func (e Engine) CreateOrder(ctx context.Context, opts OrderCreateOptions) (domain.Order, error) {
	opts.WorkOrder = strings.TrimSpace(opts.WorkOrder)
	opts.PartNumber = strings.TrimSpace(opts.PartNumber)
	opts.RoutingID = strings.TrimSpace(opts.RoutingID)
	if err := checkStruct(opts); err != nil {
		return domain.Order{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.now().UTC()
	o := domain.Order{
		ID:              id,
		WorkOrder:       opts.WorkOrder,
		PartNumber:      opts.PartNumber,
		PartDescription: strings.TrimSpace(opts.PartDescription),
		Quantity:        opts.Quantity,
		RoutingID:       optionalString(opts.RoutingID),
		StartDate:       optionalString(opts.StartDate),
		DueDate:         optionalString(opts.DueDate),
		Status:          domain.OrderPlanned,
		PartStatus:      domain.PartNotReceived,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetOrderByWorkOrderTx(ctx, tx, o.WorkOrder); err == nil {
		return o, invalid("work_order", "already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return o, err
	}
	if o.RoutingID != nil {
		if _, err := e.Repo.GetRoutingTx(ctx, tx, *o.RoutingID); errors.Is(err, repo.ErrNotFound) {
			return o, notFound("routing", *o.RoutingID)
		} else if err != nil {
			return o, err
		}
	}
	if err := e.Repo.InsertOrder(ctx, tx, o); err != nil {
		if isUniqueViolation(err, "orders.work_order") {
			return o, invalid("work_order", "already exists")
		}
		return o, err
	}
	if err := e.Events.Append(ctx, tx, events.OrderCreated, "order", o.ID, opts.ActorID, events.EventPayload{
		"work_order":  o.WorkOrder,
		"part_number": o.PartNumber,
		"quantity":    o.Quantity,
		"routing_id":  opts.RoutingID,
	}); err != nil {
		return o, err
	}
	ops, err := e.compileIfUnscheduled(ctx, tx, &o, opts.ActorID)
	if err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	e.log().Info("order created", "order_id", o.ID, "work_order", o.WorkOrder)
	e.compiled(o, ops)
	return o, nil
}

// AttachRouting binds a routing to an order and compiles it if the order has
// no operations yet. Once compiled the routing can no longer be swapped.
func (e Engine) AttachRouting(ctx context.Context, orderID, routingID, actorID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	routingID = strings.TrimSpace(routingID)
	if orderID == "" {
		return domain.Order{}, invalid("order_id", "is required")
	}
	if routingID == "" {
		return domain.Order{}, invalid("routing_id", "is required")
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
		return o, conflict("order is %s and cannot change routing", o.Status)
	}
	if _, err := e.Repo.GetRoutingTx(ctx, tx, routingID); errors.Is(err, repo.ErrNotFound) {
		return o, notFound("routing", routingID)
	} else if err != nil {
		return o, err
	}
	n, err := e.Repo.CountOperations(ctx, tx, o.ID)
	if err != nil {
		return o, err
	}
	if n > 0 && (o.RoutingID == nil || *o.RoutingID != routingID) {
		return o, conflict("order already scheduled")
	}
	o.RoutingID = &routingID
	o.UpdatedAt = e.now().UTC()
	if err := e.Repo.UpdateOrder(ctx, tx, o); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, events.OrderRoutingSet, "order", o.ID, actorID, events.EventPayload{
		"work_order": o.WorkOrder,
		"routing_id": routingID,
	}); err != nil {
		return o, err
	}
	ops, err := e.compileIfUnscheduled(ctx, tx, &o, actorID)
	if err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	e.compiled(o, ops)
	return o, nil
}

// GetOrder loads an order, reporting a missing one as not found.
func (e Engine) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := e.Repo.GetOrder(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return o, notFound("order", id)
	}
	return o, err
}

// ListOperations returns an order's operations by sequence.
func (e Engine) ListOperations(ctx context.Context, orderID string) ([]domain.Operation, error) {
	if _, err := e.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return e.Repo.ListOperations(ctx, orderID)
}

type ResourceCreateOptions struct {
	ID         string
	Name       string `validate:"required"`
	Type       string `validate:"required,oneof=tank oven line operator cell"`
	Department string
	ActorID    string
}

func (e Engine) CreateResource(ctx context.Context, opts ResourceCreateOptions) (domain.Resource, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	opts.Type = strings.TrimSpace(opts.Type)
	if err := checkStruct(opts); err != nil {
		return domain.Resource{}, err
	}
	res := domain.Resource{
		ID:         opts.ID,
		Name:       opts.Name,
		Type:       domain.ResourceType(opts.Type),
		Department: strings.TrimSpace(opts.Department),
		Active:     true,
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetResourceTx(ctx, tx, res.ID); err == nil {
		return res, invalid("id", "already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return res, err
	}
	if err := e.Repo.InsertResource(ctx, tx, res); err != nil {
		switch {
		case isUniqueViolation(err, "resources.id"):
			return res, invalid("id", "already exists")
		case isUniqueViolation(err, "resources.name"):
			return res, invalid("name", "a resource with this name and type already exists")
		}
		return res, err
	}
	if err := e.Events.Append(ctx, tx, events.ResourceCreated, "resource", res.ID, opts.ActorID, events.EventPayload{
		"name": res.Name,
		"type": string(res.Type),
	}); err != nil {
		return res, err
	}
	return res, tx.Commit()
}
