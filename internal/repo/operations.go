package repo

import (
	"context"
	"database/sql"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
)

const operationColumns = `id,order_id,step_number,method_id,resource_id,sequence,planned_start,planned_end,status,actual_start,actual_end`

func scanOperation(row rowScanner) (domain.Operation, error) {
	var op domain.Operation
	var methodID, resourceID, actualStart, actualEnd sql.NullString
	var start, end string
	err := row.Scan(&op.ID, &op.OrderID, &op.StepNumber, &methodID, &resourceID, &op.Sequence, &start, &end, &op.Status, &actualStart, &actualEnd)
	if err == sql.ErrNoRows {
		return op, ErrNotFound
	}
	if err != nil {
		return op, err
	}
	op.MethodID = stringPtr(methodID)
	op.ResourceID = stringPtr(resourceID)
	if op.PlannedStart, err = parseTime(start); err != nil {
		return op, err
	}
	if op.PlannedEnd, err = parseTime(end); err != nil {
		return op, err
	}
	if op.ActualStart, err = parseTimePtr(actualStart); err != nil {
		return op, err
	}
	if op.ActualEnd, err = parseTimePtr(actualEnd); err != nil {
		return op, err
	}
	return op, nil
}

// InsertOperations bulk inserts the compiled operations of one order.
func (r Repo) InsertOperations(ctx context.Context, tx *sql.Tx, routingID string, ops []domain.Operation) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO operations(id,order_id,routing_id,step_number,method_id,resource_id,sequence,planned_start,planned_end,status,actual_start,actual_end)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, op := range ops {
		if _, err := stmt.ExecContext(ctx, op.ID, op.OrderID, routingID, op.StepNumber, nullableStringPtr(op.MethodID), nullableStringPtr(op.ResourceID),
			op.Sequence, formatTime(op.PlannedStart), formatTime(op.PlannedEnd), string(op.Status), nullableTime(op.ActualStart), nullableTime(op.ActualEnd)); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) CountOperations(ctx context.Context, tx *sql.Tx, orderID string) (int, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT count(*) FROM operations WHERE order_id=?`, orderID).Scan(&n)
	return n, err
}

// ListOperations returns the operations of one order by sequence.
func (r Repo) ListOperations(ctx context.Context, orderID string) ([]domain.Operation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE order_id=? ORDER BY sequence`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, op)
	}
	return res, rows.Err()
}

// OperationsByOrder returns all operations grouped by order, each group in
// sequence order.
func (r Repo) OperationsByOrder(ctx context.Context) (map[string][]domain.Operation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+operationColumns+` FROM operations ORDER BY order_id, sequence`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]domain.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		res[op.OrderID] = append(res[op.OrderID], op)
	}
	return res, rows.Err()
}

func (r Repo) GetOperationTx(ctx context.Context, tx *sql.Tx, orderID string, sequence int) (domain.Operation, error) {
	return scanOperation(r.on(tx).QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE order_id=? AND sequence=?`, orderID, sequence))
}

// UpdateOperationProgress writes the execution tracking columns only.
func (r Repo) UpdateOperationProgress(ctx context.Context, tx *sql.Tx, op domain.Operation) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE operations SET status=?, resource_id=?, actual_start=?, actual_end=? WHERE id=?`,
		string(op.Status), nullableStringPtr(op.ResourceID), nullableTime(op.ActualStart), nullableTime(op.ActualEnd), op.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
