package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// on runs against tx when one is given, else against the pool.
func (r Repo) on(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const orderColumns = `id,work_order,part_number,part_description,quantity,routing_id,start_date,due_date,estimated_finish_date,status,part_status,completed_at,created_at,updated_at`

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var desc, routingID, start, due, finish, completed sql.NullString
	var created, updated string
	err := row.Scan(&o.ID, &o.WorkOrder, &o.PartNumber, &desc, &o.Quantity, &routingID, &start, &due, &finish,
		&o.Status, &o.PartStatus, &completed, &created, &updated)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if desc.Valid {
		o.PartDescription = desc.String
	}
	o.RoutingID = stringPtr(routingID)
	o.StartDate = stringPtr(start)
	o.DueDate = stringPtr(due)
	o.EstimatedFinishDate = stringPtr(finish)
	if o.CompletedAt, err = parseTimePtr(completed); err != nil {
		return o, err
	}
	if o.CreatedAt, err = parseTime(created); err != nil {
		return o, err
	}
	if o.UpdatedAt, err = parseTime(updated); err != nil {
		return o, err
	}
	return o, nil
}

func (r Repo) InsertOrder(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO orders(`+orderColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.WorkOrder, o.PartNumber, nullable(o.PartDescription), o.Quantity, nullableStringPtr(o.RoutingID),
		nullableStringPtr(o.StartDate), nullableStringPtr(o.DueDate), nullableStringPtr(o.EstimatedFinishDate),
		string(o.Status), string(o.PartStatus), nullableTime(o.CompletedAt), formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	return err
}

// UpdateOrder writes every mutable column of the order.
func (r Repo) UpdateOrder(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE orders SET part_number=?, part_description=?, quantity=?, routing_id=?, start_date=?, due_date=?, estimated_finish_date=?, status=?, part_status=?, completed_at=?, updated_at=? WHERE id=?`,
		o.PartNumber, nullable(o.PartDescription), o.Quantity, nullableStringPtr(o.RoutingID), nullableStringPtr(o.StartDate),
		nullableStringPtr(o.DueDate), nullableStringPtr(o.EstimatedFinishDate), string(o.Status), string(o.PartStatus),
		nullableTime(o.CompletedAt), formatTime(o.UpdatedAt), o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return r.GetOrderTx(ctx, nil, id)
}

func (r Repo) GetOrderTx(ctx context.Context, tx *sql.Tx, id string) (domain.Order, error) {
	return scanOrder(r.on(tx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id))
}

func (r Repo) GetOrderByWorkOrder(ctx context.Context, workOrder string) (domain.Order, error) {
	return r.GetOrderByWorkOrderTx(ctx, nil, workOrder)
}

func (r Repo) GetOrderByWorkOrderTx(ctx context.Context, tx *sql.Tx, workOrder string) (domain.Order, error) {
	return scanOrder(r.on(tx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE work_order=?`, workOrder))
}

type OrderFilters struct {
	Status    string
	RoutingID string
}

// ListOrders returns orders by start date then work order; undated orders last.
func (r Repo) ListOrders(ctx context.Context, f OrderFilters) ([]domain.Order, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.RoutingID != "" {
		clauses = append(clauses, "routing_id=?")
		args = append(args, f.RoutingID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders `+where+` ORDER BY start_date IS NULL, start_date, work_order`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return t, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
