package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// PlayerRow is a saved player account.
type PlayerRow struct {
	Name         string // lower-case key
	DisplayName  string
	PasswordHash string
	Rights       int16
	X, Y         int32
	Plane        int16
	Gender       int16
	Body         []int32
	Colors       []int32
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// PlayerRepo stores player rows in PostgreSQL.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Load returns the row for name, or nil if there is none.
func (r *PlayerRepo) Load(ctx context.Context, name string) (*PlayerRow, error) {
	row := &PlayerRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, display_name, password_hash, rights, x, y, plane,
		        gender, body, colors, created_at, last_login
		 FROM players WHERE name = $1`, name,
	).Scan(
		&row.Name, &row.DisplayName, &row.PasswordHash, &row.Rights, &row.X, &row.Y, &row.Plane,
		&row.Gender, &row.Body, &row.Colors, &row.CreatedAt, &row.LastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *PlayerRepo) Create(ctx context.Context, row *PlayerRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (name, display_name, password_hash, rights, x, y, plane, gender, body, colors, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		row.Name, row.DisplayName, row.PasswordHash, row.Rights, row.X, row.Y, row.Plane,
		row.Gender, row.Body, row.Colors,
	)
	return err
}

// Save writes the mutable columns of row.
func (r *PlayerRepo) Save(ctx context.Context, row *PlayerRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET rights = $2, x = $3, y = $4, plane = $5,
		        gender = $6, body = $7, colors = $8
		 WHERE name = $1`,
		row.Name, row.Rights, row.X, row.Y, row.Plane, row.Gender, row.Body, row.Colors,
	)
	return err
}

func (r *PlayerRepo) TouchLogin(ctx context.Context, name string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET last_login = NOW() WHERE name = $1`, name)
	return err
}
