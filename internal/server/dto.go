package server

import (
	"encoding/json"
	"time"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
)

// Request payloads. Fields are optional in the schema so the engine reports
// which one is missing or invalid.

type AddDelayRequest struct {
	OrderID    string `json:"orderId,omitempty"`
	StepNumber int    `json:"stepNumber,omitempty"`
	Minutes    int    `json:"minutes,omitempty" doc:"Minutes to add, greater than zero"`
	Reason     string `json:"reason,omitempty"`
}

type UpdateStatusRequest struct {
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty" doc:"One of planned, in_progress, hold, done"`
}

type CreateOrderRequest struct {
	WorkOrder       string `json:"work_order,omitempty"`
	PartNumber      string `json:"part_number,omitempty"`
	PartDescription string `json:"part_description,omitempty"`
	Quantity        int    `json:"quantity,omitempty"`
	RoutingID       string `json:"routing_id,omitempty"`
	StartDate       string `json:"start_date,omitempty" doc:"YYYY-MM-DD"`
	DueDate         string `json:"due_date,omitempty" doc:"YYYY-MM-DD"`
}

type AttachRoutingRequest struct {
	RoutingID string `json:"routing_id,omitempty"`
}

type PartStatusRequest struct {
	PartStatus string `json:"part_status,omitempty" doc:"One of not_received, received, not_booked, booked"`
}

type UpdateOperationRequest struct {
	Status      string     `json:"status,omitempty" doc:"One of planned, in_progress, completed, hold, cancelled"`
	ResourceID  *string    `json:"resource_id,omitempty" doc:"Empty string clears the assignment"`
	ActualStart *time.Time `json:"actual_start,omitempty"`
	ActualEnd   *time.Time `json:"actual_end,omitempty"`
}

type CreateResourceRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Type       string `json:"type,omitempty" doc:"One of tank, oven, line, operator, cell"`
	Department string `json:"department,omitempty"`
}

// Response payloads

type successBody struct {
	Success bool `json:"success"`
}

type successOutput struct {
	Body successBody `json:"body"`
}

func ok() *successOutput {
	return &successOutput{Body: successBody{Success: true}}
}

type OrderResponse struct {
	ID                  string     `json:"id"`
	WorkOrder           string     `json:"work_order"`
	PartNumber          string     `json:"part_number"`
	PartDescription     string     `json:"part_description,omitempty"`
	Quantity            int        `json:"quantity"`
	RoutingID           string     `json:"routing_id,omitempty"`
	StartDate           string     `json:"start_date,omitempty" format:"date"`
	DueDate             string     `json:"due_date,omitempty" format:"date"`
	EstimatedFinishDate string     `json:"estimated_finish_date,omitempty" format:"date"`
	Status              string     `json:"status" enum:"planned,scheduled,in_progress,done,hold,cancelled"`
	StatusLabel         string     `json:"status_label"`
	PartStatus          string     `json:"part_status" enum:"not_received,received,not_booked,booked"`
	IsLate              bool       `json:"is_late"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type orderOutput struct {
	Body OrderResponse `json:"body"`
}

type OperationResponse struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	StepNumber   int        `json:"step_number"`
	MethodID     string     `json:"method_id,omitempty"`
	ResourceID   string     `json:"resource_id,omitempty"`
	Sequence     int        `json:"sequence"`
	PlannedStart time.Time  `json:"planned_start"`
	PlannedEnd   time.Time  `json:"planned_end"`
	Minutes      int        `json:"minutes"`
	Status       string     `json:"status" enum:"planned,in_progress,completed,hold,cancelled"`
	ActualStart  *time.Time `json:"actual_start,omitempty"`
	ActualEnd    *time.Time `json:"actual_end,omitempty"`
}

type DelayResponse struct {
	OrderID      string    `json:"order_id"`
	StepNumber   int       `json:"step_number"`
	AddedMinutes int       `json:"added_minutes"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ResourceResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Type       domain.ResourceType `json:"type" enum:"tank,oven,line,operator,cell"`
	Department string              `json:"department,omitempty"`
	Active     bool                `json:"active"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func orderResponse(o domain.Order, today time.Time) OrderResponse {
	return OrderResponse{
		ID:                  o.ID,
		WorkOrder:           o.WorkOrder,
		PartNumber:          o.PartNumber,
		PartDescription:     o.PartDescription,
		Quantity:            o.Quantity,
		RoutingID:           stringOrEmpty(o.RoutingID),
		StartDate:           stringOrEmpty(o.StartDate),
		DueDate:             stringOrEmpty(o.DueDate),
		EstimatedFinishDate: stringOrEmpty(o.EstimatedFinishDate),
		Status:              string(o.Status),
		StatusLabel:         o.Status.Label(),
		PartStatus:          string(o.PartStatus),
		IsLate:              o.IsLate(today),
		CompletedAt:         o.CompletedAt,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func operationResponse(op domain.Operation) OperationResponse {
	return OperationResponse{
		ID:           op.ID,
		OrderID:      op.OrderID,
		StepNumber:   op.StepNumber,
		MethodID:     stringOrEmpty(op.MethodID),
		ResourceID:   stringOrEmpty(op.ResourceID),
		Sequence:     op.Sequence,
		PlannedStart: op.PlannedStart,
		PlannedEnd:   op.PlannedEnd,
		Minutes:      op.Minutes(),
		Status:       string(op.Status),
		ActualStart:  op.ActualStart,
		ActualEnd:    op.ActualEnd,
	}
}

func delayResponse(d domain.DelayLog) DelayResponse {
	return DelayResponse(d)
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
