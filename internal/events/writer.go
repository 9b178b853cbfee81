package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the engine.
const (
	ScheduleCompiled   = "schedule.compiled"
	DelayAdded         = "delay.added"
	OrderCreated       = "order.created"
	OrderRoutingSet    = "order.routing.attached"
	OrderStatusUpdated = "order.status.updated"
	OrderCancelled     = "order.cancelled"
	PartStatusUpdated  = "order.part_status.updated"
	OperationUpdated   = "operation.updated"
	CatalogImported    = "catalog.imported"
	ResourceCreated    = "resource.created"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an audit row inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if actorID == "" {
		actorID = "system"
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
