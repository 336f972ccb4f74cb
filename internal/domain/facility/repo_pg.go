package facility

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ conn queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{conn: pool} }

const facilityCols = `id, name, average_wait_minutes, leave_signal_weight, created_at, updated_at`

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(&f.ID, &f.Name, &f.AverageWaitMinutes, &f.LeaveSignalWeight, &f.CreatedAt, &f.UpdatedAt)
	return &f, err
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Facility, error) {
	f, err := scanFacility(r.conn.QueryRow(ctx, `SELECT `+facilityCols+` FROM facility WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get facility %s: %w", id, err)
	}
	return f, nil
}

func (r *repoPG) Upsert(ctx context.Context, f *Facility) error {
	err := r.conn.QueryRow(ctx, `
		INSERT INTO facility (id, name, average_wait_minutes, leave_signal_weight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
			average_wait_minutes = EXCLUDED.average_wait_minutes,
			leave_signal_weight = EXCLUDED.leave_signal_weight,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		f.ID, f.Name, f.AverageWaitMinutes, f.LeaveSignalWeight).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert facility %s: %w", f.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM facility WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete facility %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Facility, int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM facility`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count facilities: %w", err)
	}
	rows, err := r.conn.Query(ctx, `SELECT `+facilityCols+` FROM facility ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()
	var items []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}
