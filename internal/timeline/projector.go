// Package timeline projects persisted orders, operations and delays into the
// rows and bars of the schedule view. Projection is recomputed on every call.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/SmartXchain/piedmont-sub000/internal/config"
	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/estimate"
)

const (
	NoMethod   = "No method"
	Unassigned = "Unassigned"
)

type Schedule struct {
	Resources []Resource `json:"resources"`
	Events    []Event    `json:"events"`
}

// Resource is a row of the view: one parent per order, one child per step.
type Resource struct {
	ID         string `json:"id"`
	ParentID   string `json:"parentId,omitempty"`
	Title      string `json:"title"`
	PartNumber string `json:"partNumber,omitempty"`
	Status     string `json:"status,omitempty"`
	Color      string `json:"color,omitempty"`
	Tank       string `json:"tank,omitempty"`
}

// Event is a bar on a row.
type Event struct {
	ID            string `json:"id"`
	ResourceID    string `json:"resourceId"`
	Title         string `json:"title"`
	Start         string `json:"start" format:"date-time"`
	End           string `json:"end" format:"date-time"`
	Color         string `json:"color"`
	ExtendedProps Props  `json:"extendedProps"`
}

type Props struct {
	IsSummary    bool   `json:"isSummary"`
	OrderID      string `json:"orderId"`
	WorkOrder    string `json:"workOrder"`
	StepNumber   int    `json:"stepNumber,omitempty"`
	IsDelayed    bool   `json:"isDelayed"`
	DelayMinutes int    `json:"delayMinutes"`
	IsCompleted  bool   `json:"isCompleted"`
	Status       string `json:"status"`
	Detail       string `json:"detail"`
}

// Input is the persisted state a projection reads.
type Input struct {
	Orders     []domain.Order
	Operations map[string][]domain.Operation
	Routings   map[string]domain.Routing
	Delays     map[domain.StepKey]int
	Resources  map[string]domain.Resource
}

type anchored struct {
	order  domain.Order
	anchor time.Time
}

// Project walks each order's routing from its anchor, sizing every step by
// its maximum estimate plus logged delay. Stored planned times other than the
// first start are not read.
func Project(in Input, cfg *config.Config) Schedule {
	if cfg == nil {
		cfg = config.Default()
	}
	loc := cfg.Location()
	orders := make([]anchored, 0, len(in.Orders))
	for _, o := range in.Orders {
		orders = append(orders, anchored{order: o, anchor: anchorOf(o, in.Operations[o.ID], cfg)})
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].anchor.Equal(orders[j].anchor) {
			return orders[i].anchor.Before(orders[j].anchor)
		}
		return orders[i].order.WorkOrder < orders[j].order.WorkOrder
	})

	out := Schedule{Resources: []Resource{}, Events: []Event{}}
	for _, a := range orders {
		o := a.order
		color := orderColor(o, cfg.Schedule.Palette, cfg.Schedule.StatusColors)
		parentID := "order-" + o.ID
		out.Resources = append(out.Resources, Resource{
			ID:         parentID,
			Title:      fmt.Sprintf("%s · %s", o.WorkOrder, o.PartNumber),
			PartNumber: o.PartNumber,
			Status:     o.Status.Label(),
			Color:      color,
		})

		steps := routingSteps(o, in.Routings)
		if len(steps) == 0 {
			continue
		}
		byStep := map[int]domain.Operation{}
		for _, op := range in.Operations[o.ID] {
			byStep[op.StepNumber] = op
		}
		cursor := a.anchor
		for _, st := range steps {
			rowID := fmt.Sprintf("%s-step-%d", parentID, st.StepNumber)
			op, hasOp := byStep[st.StepNumber]
			title := NoMethod
			if st.Method != nil && st.Method.Title != "" {
				title = st.Method.Title
			}
			out.Resources = append(out.Resources, Resource{
				ID:       rowID,
				ParentID: parentID,
				Title:    fmt.Sprintf("Step %d: %s", st.StepNumber, title),
				Tank:     tankLabel(st.Method, op, hasOp, in.Resources),
			})

			base := estimate.StepMinutes(st.Method, estimate.Max)
			delay := in.Delays[domain.StepKey{OrderID: o.ID, StepNumber: st.StepNumber}]
			if delay < 0 {
				delay = 0
			}
			end := cursor.Add(time.Duration(base+delay) * time.Minute)
			status := string(o.Status)
			if hasOp {
				status = string(op.Status)
			}
			out.Events = append(out.Events, Event{
				ID:         rowID + "-bar",
				ResourceID: rowID,
				Title:      fmt.Sprintf("Step %d: %s", st.StepNumber, title),
				Start:      cursor.In(loc).Format(time.RFC3339),
				End:        end.In(loc).Format(time.RFC3339),
				Color:      color,
				ExtendedProps: Props{
					OrderID:      o.ID,
					WorkOrder:    o.WorkOrder,
					StepNumber:   st.StepNumber,
					IsDelayed:    delay > 0,
					DelayMinutes: delay,
					IsCompleted:  hasOp && op.Status == domain.OperationCompleted,
					Status:       status,
					Detail:       stepDetail(st.StepNumber, title, base, delay),
				},
			})
			cursor = end
		}

		summary := "Order Total"
		if o.Status == domain.OrderDone {
			summary = "Completed"
		}
		total := int(cursor.Sub(a.anchor) / time.Minute)
		out.Events = append(out.Events, Event{
			ID:         parentID + "-summary",
			ResourceID: parentID,
			Title:      summary,
			Start:      a.anchor.In(loc).Format(time.RFC3339),
			End:        cursor.In(loc).Format(time.RFC3339),
			Color:      color,
			ExtendedProps: Props{
				IsSummary: true,
				OrderID:   o.ID,
				WorkOrder: o.WorkOrder,
				Status:    string(o.Status),
				Detail:    fmt.Sprintf("%s: %d steps, %d min", o.WorkOrder, len(steps), total),
			},
		})
	}
	return out
}

// anchorOf is the first operation's planned start, else the start date at
// the start of day, else the order's creation time.
func anchorOf(o domain.Order, ops []domain.Operation, cfg *config.Config) time.Time {
	if len(ops) > 0 {
		first := ops[0]
		for _, op := range ops[1:] {
			if op.Sequence < first.Sequence {
				first = op
			}
		}
		return first.PlannedStart
	}
	if o.StartDate != nil {
		if at, err := cfg.AtDayStart(*o.StartDate); err == nil {
			return at
		}
	}
	return o.CreatedAt
}

func routingSteps(o domain.Order, routings map[string]domain.Routing) []domain.RoutingStep {
	if o.RoutingID == nil {
		return nil
	}
	rt, ok := routings[*o.RoutingID]
	if !ok {
		return nil
	}
	steps := append([]domain.RoutingStep(nil), rt.Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	return steps
}

func tankLabel(m *domain.Method, op domain.Operation, hasOp bool, resources map[string]domain.Resource) string {
	if m != nil && m.Tank != "" {
		return m.Tank
	}
	if hasOp && op.ResourceID != nil {
		if res, ok := resources[*op.ResourceID]; ok {
			return res.Name
		}
	}
	return Unassigned
}

func stepDetail(step int, title string, base, delay int) string {
	if delay > 0 {
		return fmt.Sprintf("Step %d %s: %d min + %d min delay", step, title, base, delay)
	}
	return fmt.Sprintf("Step %d %s: %d min", step, title, base)
}
