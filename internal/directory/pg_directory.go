package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool used by the directory.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgDirectory struct {
	db DB
}

func NewPgDirectory(db DB) *PgDirectory {
	return &PgDirectory{db: db}
}

const userColumns = `id, name, email, role, specialty, active, verified, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Role,
		&u.Specialty,
		&u.Active,
		&u.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (d *PgDirectory) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := d.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (d *PgDirectory) ListProviders(ctx context.Context, specialty string) ([]User, error) {
	providers, err := d.listProviders(ctx, specialty)
	if err != nil {
		return nil, err
	}

	// No specialist matched: fall back to general practitioners.
	if len(providers) == 0 && specialty != "" && !strings.EqualFold(specialty, "General Practice") {
		return d.listProviders(ctx, "general")
	}

	return providers, nil
}

func (d *PgDirectory) listProviders(ctx context.Context, specialty string) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = 'provider' AND active AND verified
	`
	args := []any{}
	if specialty != "" && !strings.EqualFold(specialty, "General Practice") {
		query += ` AND specialty ILIKE '%' || $1 || '%'`
		args = append(args, specialty)
	}
	query += ` ORDER BY name`

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}
