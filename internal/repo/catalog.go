package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
)

const methodColumns = `id,title,tank,touch_min,touch_max,run_min,run_max`

func scanMethod(row rowScanner) (domain.Method, error) {
	var m domain.Method
	var tank sql.NullString
	err := row.Scan(&m.ID, &m.Title, &tank, &m.TouchMin, &m.TouchMax, &m.RunMin, &m.RunMax)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if tank.Valid {
		m.Tank = tank.String
	}
	return m, err
}

func (r Repo) UpsertMethod(ctx context.Context, tx *sql.Tx, m domain.Method) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO methods(`+methodColumns+`) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET title=excluded.title, tank=excluded.tank, touch_min=excluded.touch_min,
touch_max=excluded.touch_max, run_min=excluded.run_min, run_max=excluded.run_max`,
		m.ID, m.Title, nullable(m.Tank), m.TouchMin, m.TouchMax, m.RunMin, m.RunMax)
	return err
}

func (r Repo) ListMethods(ctx context.Context) ([]domain.Method, error) {
	return r.listMethods(ctx, nil)
}

func (r Repo) listMethods(ctx context.Context, tx *sql.Tx) ([]domain.Method, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT `+methodColumns+` FROM methods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Method
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// UpsertRouting stores the routing and makes its step list match rt.Steps.
// Steps dropped from the list are deleted, which fails while operations
// still reference them.
func (r Repo) UpsertRouting(ctx context.Context, tx *sql.Tx, rt domain.Routing) error {
	q := r.on(tx)
	if _, err := q.ExecContext(ctx, `INSERT INTO routings(id,name,description) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description`,
		rt.ID, rt.Name, nullable(rt.Description)); err != nil {
		return err
	}
	keep := make([]string, 0, len(rt.Steps))
	args := []any{rt.ID}
	for _, st := range rt.Steps {
		if _, err := q.ExecContext(ctx, `INSERT INTO routing_steps(routing_id,step_number,title,method_id) VALUES (?,?,?,?)
ON CONFLICT(routing_id,step_number) DO UPDATE SET title=excluded.title, method_id=excluded.method_id`,
			rt.ID, st.StepNumber, nullable(st.Title), nullableStringPtr(st.MethodID)); err != nil {
			return fmt.Errorf("step %d: %w", st.StepNumber, err)
		}
		keep = append(keep, "?")
		args = append(args, st.StepNumber)
	}
	query := `DELETE FROM routing_steps WHERE routing_id=?`
	if len(keep) > 0 {
		query += ` AND step_number NOT IN (` + strings.Join(keep, ",") + `)`
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune steps of %s: %w", rt.ID, err)
	}
	return nil
}

// GetRoutingTx loads a routing with its steps in step order and their methods.
func (r Repo) GetRoutingTx(ctx context.Context, tx *sql.Tx, id string) (domain.Routing, error) {
	var rt domain.Routing
	var desc sql.NullString
	err := r.on(tx).QueryRowContext(ctx, `SELECT id,name,description FROM routings WHERE id=?`, id).Scan(&rt.ID, &rt.Name, &desc)
	if err == sql.ErrNoRows {
		return rt, ErrNotFound
	}
	if err != nil {
		return rt, err
	}
	if desc.Valid {
		rt.Description = desc.String
	}
	methods, err := r.methodIndex(ctx, tx)
	if err != nil {
		return rt, err
	}
	steps, err := r.listSteps(ctx, tx, id, methods)
	if err != nil {
		return rt, err
	}
	rt.Steps = steps
	return rt, nil
}

// ListRoutings returns every routing keyed by id, steps and methods loaded.
func (r Repo) ListRoutings(ctx context.Context) (map[string]domain.Routing, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,description FROM routings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	res := map[string]domain.Routing{}
	for rows.Next() {
		var rt domain.Routing
		var desc sql.NullString
		if err := rows.Scan(&rt.ID, &rt.Name, &desc); err != nil {
			rows.Close()
			return nil, err
		}
		if desc.Valid {
			rt.Description = desc.String
		}
		res[rt.ID] = rt
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	methods, err := r.methodIndex(ctx, nil)
	if err != nil {
		return nil, err
	}
	for id, rt := range res {
		steps, err := r.listSteps(ctx, nil, id, methods)
		if err != nil {
			return nil, err
		}
		rt.Steps = steps
		res[id] = rt
	}
	return res, nil
}

func (r Repo) methodIndex(ctx context.Context, tx *sql.Tx) (map[string]domain.Method, error) {
	methods, err := r.listMethods(ctx, tx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]domain.Method, len(methods))
	for _, m := range methods {
		idx[m.ID] = m
	}
	return idx, nil
}

func (r Repo) listSteps(ctx context.Context, tx *sql.Tx, routingID string, methods map[string]domain.Method) ([]domain.RoutingStep, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT routing_id,step_number,title,method_id FROM routing_steps WHERE routing_id=? ORDER BY step_number`, routingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []domain.RoutingStep
	for rows.Next() {
		var st domain.RoutingStep
		var title, methodID sql.NullString
		if err := rows.Scan(&st.RoutingID, &st.StepNumber, &title, &methodID); err != nil {
			return nil, err
		}
		if title.Valid {
			st.Title = title.String
		}
		st.MethodID = stringPtr(methodID)
		if st.MethodID != nil {
			if m, ok := methods[*st.MethodID]; ok {
				st.Method = &m
			}
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

const resourceColumns = `id,name,type,department,active`

func scanResource(row rowScanner) (domain.Resource, error) {
	var res domain.Resource
	var dept sql.NullString
	err := row.Scan(&res.ID, &res.Name, &res.Type, &dept, &res.Active)
	if err == sql.ErrNoRows {
		return res, ErrNotFound
	}
	if dept.Valid {
		res.Department = dept.String
	}
	return res, err
}

// InsertResource adds a new resource; an existing id or name/type pair fails
// with a constraint error.
func (r Repo) InsertResource(ctx context.Context, tx *sql.Tx, res domain.Resource) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO resources(`+resourceColumns+`) VALUES (?,?,?,?,?)`,
		res.ID, res.Name, string(res.Type), nullable(res.Department), res.Active)
	return err
}

// UpsertResource is used by catalog import, which is idempotent.
func (r Repo) UpsertResource(ctx context.Context, tx *sql.Tx, res domain.Resource) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO resources(`+resourceColumns+`) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, type=excluded.type, department=excluded.department, active=excluded.active`,
		res.ID, res.Name, string(res.Type), nullable(res.Department), res.Active)
	return err
}

func (r Repo) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	return r.GetResourceTx(ctx, nil, id)
}

func (r Repo) GetResourceTx(ctx context.Context, tx *sql.Tx, id string) (domain.Resource, error) {
	return scanResource(r.on(tx).QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id=?`, id))
}

func (r Repo) ListResources(ctx context.Context, activeOnly bool) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources`
	if activeOnly {
		query += ` WHERE active=1`
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Resource
	for rows.Next() {
		item, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}
