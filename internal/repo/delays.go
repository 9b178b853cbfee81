package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
)

func scanDelay(row rowScanner) (domain.DelayLog, error) {
	var d domain.DelayLog
	var created, updated string
	err := row.Scan(&d.OrderID, &d.StepNumber, &d.AddedMinutes, &d.Reason, &created, &updated)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if d.CreatedAt, err = parseTime(created); err != nil {
		return d, err
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return d, err
	}
	return d, nil
}

// AccumulateDelay creates the (order, step) row or adds minutes to it and
// appends note on a new line. The increment happens in SQL so concurrent
// callers cannot lose an update.
func (r Repo) AccumulateDelay(ctx context.Context, tx *sql.Tx, orderID string, stepNumber, minutes int, note string, now time.Time) (domain.DelayLog, error) {
	ts := formatTime(now)
	q := r.on(tx)
	if _, err := q.ExecContext(ctx, `INSERT INTO delay_logs(order_id,step_number,added_minutes,reason,created_at,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(order_id,step_number) DO UPDATE SET
  added_minutes = delay_logs.added_minutes + excluded.added_minutes,
  reason = CASE WHEN delay_logs.reason = '' THEN excluded.reason ELSE delay_logs.reason || char(10) || excluded.reason END,
  updated_at = excluded.updated_at`,
		orderID, stepNumber, minutes, note, ts, ts); err != nil {
		return domain.DelayLog{}, err
	}
	return scanDelay(q.QueryRowContext(ctx, `SELECT order_id,step_number,added_minutes,reason,created_at,updated_at FROM delay_logs WHERE order_id=? AND step_number=?`, orderID, stepNumber))
}

func (r Repo) GetDelay(ctx context.Context, orderID string, stepNumber int) (domain.DelayLog, error) {
	return scanDelay(r.DB.QueryRowContext(ctx, `SELECT order_id,step_number,added_minutes,reason,created_at,updated_at FROM delay_logs WHERE order_id=? AND step_number=?`, orderID, stepNumber))
}

func (r Repo) ListDelays(ctx context.Context, orderID string) ([]domain.DelayLog, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT order_id,step_number,added_minutes,reason,created_at,updated_at FROM delay_logs WHERE order_id=? ORDER BY step_number`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DelayLog
	for rows.Next() {
		d, err := scanDelay(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// DelayMinutes returns accumulated minutes for every ledger row.
func (r Repo) DelayMinutes(ctx context.Context) (map[domain.StepKey]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT order_id,step_number,added_minutes FROM delay_logs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.StepKey]int{}
	for rows.Next() {
		var k domain.StepKey
		var minutes int
		if err := rows.Scan(&k.OrderID, &k.StepNumber, &minutes); err != nil {
			return nil, err
		}
		res[k] = minutes
	}
	return res, rows.Err()
}
