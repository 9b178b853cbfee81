package engine

import (
	"context"
	"time"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
	"github.com/SmartXchain/piedmont-sub000/internal/timeline"
)

// Schedule projects the current state of every open order. Cancelled orders
// are left out of the view.
func (e Engine) Schedule(ctx context.Context) (timeline.Schedule, error) {
	started := time.Now()
	orders, err := e.Repo.ListOrders(ctx, repo.OrderFilters{})
	if err != nil {
		return timeline.Schedule{}, err
	}
	visible := orders[:0]
	for _, o := range orders {
		if o.Status != domain.OrderCancelled {
			visible = append(visible, o)
		}
	}
	ops, err := e.Repo.OperationsByOrder(ctx)
	if err != nil {
		return timeline.Schedule{}, err
	}
	routings, err := e.Repo.ListRoutings(ctx)
	if err != nil {
		return timeline.Schedule{}, err
	}
	delays, err := e.Repo.DelayMinutes(ctx)
	if err != nil {
		return timeline.Schedule{}, err
	}
	resources, err := e.Repo.ListResources(ctx, false)
	if err != nil {
		return timeline.Schedule{}, err
	}
	byID := make(map[string]domain.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}
	s := timeline.Project(timeline.Input{
		Orders:     visible,
		Operations: ops,
		Routings:   routings,
		Delays:     delays,
		Resources:  byID,
	}, e.config())
	e.Metrics.Projected(time.Since(started).Seconds())
	return s, nil
}
