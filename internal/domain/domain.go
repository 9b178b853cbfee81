package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and wire layout of date-only fields.
const DateLayout = "2006-01-02"

type OrderStatus string

const (
	OrderPlanned    OrderStatus = "planned"
	OrderScheduled  OrderStatus = "scheduled"
	OrderInProgress OrderStatus = "in_progress"
	OrderDone       OrderStatus = "done"
	OrderHold       OrderStatus = "hold"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPlanned, OrderScheduled, OrderInProgress, OrderDone, OrderHold, OrderCancelled:
		return true
	}
	return false
}

// OperatorSettable reports whether operators may set the status directly.
// scheduled is owned by the compiler and cancelled by administration.
func (s OrderStatus) OperatorSettable() bool {
	switch s {
	case OrderPlanned, OrderInProgress, OrderHold, OrderDone:
		return true
	}
	return false
}

// Label is the human readable status shown on schedule rows.
func (s OrderStatus) Label() string {
	switch s {
	case OrderPlanned:
		return "Planned"
	case OrderScheduled:
		return "Scheduled"
	case OrderInProgress:
		return "In Progress"
	case OrderDone:
		return "Done"
	case OrderHold:
		return "On Hold"
	case OrderCancelled:
		return "Cancelled"
	}
	return string(s)
}

type OperationStatus string

const (
	OperationPlanned    OperationStatus = "planned"
	OperationInProgress OperationStatus = "in_progress"
	OperationCompleted  OperationStatus = "completed"
	OperationHold       OperationStatus = "hold"
	OperationCancelled  OperationStatus = "cancelled"
)

func (s OperationStatus) Valid() bool {
	switch s {
	case OperationPlanned, OperationInProgress, OperationCompleted, OperationHold, OperationCancelled:
		return true
	}
	return false
}

type PartStatus string

const (
	PartNotReceived PartStatus = "not_received"
	PartReceived    PartStatus = "received"
	PartNotBooked   PartStatus = "not_booked"
	PartBooked      PartStatus = "booked"
)

func (s PartStatus) Valid() bool {
	switch s {
	case PartNotReceived, PartReceived, PartNotBooked, PartBooked:
		return true
	}
	return false
}

type ResourceType string

const (
	ResourceTank     ResourceType = "tank"
	ResourceOven     ResourceType = "oven"
	ResourceLine     ResourceType = "line"
	ResourceOperator ResourceType = "operator"
	ResourceCell     ResourceType = "cell"
)

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceTank, ResourceOven, ResourceLine, ResourceOperator, ResourceCell:
		return true
	}
	return false
}

// Order is a manufacturing order (work order) for one part number.
type Order struct {
	ID                  string      `json:"id"`
	WorkOrder           string      `json:"work_order"`
	PartNumber          string      `json:"part_number"`
	PartDescription     string      `json:"part_description,omitempty"`
	Quantity            int         `json:"quantity"`
	RoutingID           *string     `json:"routing_id,omitempty"`
	StartDate           *string     `json:"start_date,omitempty" format:"date"`
	DueDate             *string     `json:"due_date,omitempty" format:"date"`
	EstimatedFinishDate *string     `json:"estimated_finish_date,omitempty" format:"date"`
	Status              OrderStatus `json:"status" enum:"planned,scheduled,in_progress,done,hold,cancelled"`
	PartStatus          PartStatus  `json:"part_status" enum:"not_received,received,not_booked,booked"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// IsLate reports whether the order is past due on the given day.
func (o Order) IsLate(today time.Time) bool {
	if o.DueDate == nil || o.Status == OrderDone || o.Status == OrderCancelled {
		return false
	}
	due, err := time.ParseInLocation(DateLayout, *o.DueDate, today.Location())
	if err != nil {
		return false
	}
	y, m, d := today.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, today.Location()).After(due)
}

// Operation is one scheduled step of an order.
type Operation struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	StepNumber   int             `json:"step_number"`
	MethodID     *string         `json:"method_id,omitempty"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	Sequence     int             `json:"sequence"`
	PlannedStart time.Time       `json:"planned_start"`
	PlannedEnd   time.Time       `json:"planned_end"`
	Status       OperationStatus `json:"status" enum:"planned,in_progress,completed,hold,cancelled"`
	ActualStart  *time.Time      `json:"actual_start,omitempty"`
	ActualEnd    *time.Time      `json:"actual_end,omitempty"`
}

// Minutes is the planned duration of the operation.
func (op Operation) Minutes() int {
	return int(op.PlannedEnd.Sub(op.PlannedStart) / time.Minute)
}

// DelayLog accumulates manual delays for one (order, step) pair.
type DelayLog struct {
	OrderID      string    `json:"order_id"`
	StepNumber   int       `json:"step_number"`
	AddedMinutes int       `json:"added_minutes"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Resource struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       ResourceType `json:"type" enum:"tank,oven,line,operator,cell"`
	Department string       `json:"department,omitempty"`
	Active     bool         `json:"active"`
}

// Method carries the min/max duration bounds, in minutes, of a process method.
type Method struct {
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Tank     string              `json:"tank,omitempty"`
	TouchMin decimal.NullDecimal `json:"touch_min"`
	TouchMax decimal.NullDecimal `json:"touch_max"`
	RunMin   decimal.NullDecimal `json:"run_min"`
	RunMax   decimal.NullDecimal `json:"run_max"`
}

type Routing struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Steps       []RoutingStep `json:"steps"`
}

// RoutingStep binds a step number of a routing to an optional method.
// Method is populated when the step is loaded with its method.
type RoutingStep struct {
	RoutingID  string  `json:"routing_id"`
	StepNumber int     `json:"step_number"`
	Title      string  `json:"title,omitempty"`
	MethodID   *string `json:"method_id,omitempty"`
	Method     *Method `json:"method,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// StepKey addresses one routing step of one order.
type StepKey struct {
	OrderID    string
	StepNumber int
}
