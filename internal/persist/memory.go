package persist

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepo keeps player rows in process memory. It is used when no
// database is configured; everything is lost on restart.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]PlayerRow
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]PlayerRow)}
}

func (r *MemoryRepo) Load(_ context.Context, name string) (*PlayerRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[name]
	if !ok {
		return nil, nil
	}
	return cloneRow(row), nil
}

func (r *MemoryRepo) Create(_ context.Context, row *PlayerRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.Name]; ok {
		return fmt.Errorf("player %q already exists", row.Name)
	}
	c := cloneRow(*row)
	c.CreatedAt = time.Now()
	r.rows[row.Name] = *c
	return nil
}

func (r *MemoryRepo) Save(_ context.Context, row *PlayerRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[row.Name]
	if !ok {
		return nil
	}
	c := cloneRow(*row)
	c.PasswordHash = cur.PasswordHash
	c.CreatedAt = cur.CreatedAt
	r.rows[row.Name] = *c
	return nil
}

func (r *MemoryRepo) TouchLogin(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[name]; ok {
		now := time.Now()
		row.LastLogin = &now
		r.rows[name] = row
	}
	return nil
}

func cloneRow(row PlayerRow) *PlayerRow {
	row.Body = append([]int32(nil), row.Body...)
	row.Colors = append([]int32(nil), row.Colors...)
	return &row
}
