package persist

import (
	"context"
	"fmt"
	"strings"

	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Repo is the row storage behind a Store.
type Repo interface {
	Load(ctx context.Context, name string) (*PlayerRow, error)
	Create(ctx context.Context, row *PlayerRow) error
	Save(ctx context.Context, row *PlayerRow) error
	TouchLogin(ctx context.Context, name string) error
}

// StoreOptions configures account handling.
type StoreOptions struct {
	AutoCreate bool
	Spawn      world.Position
	HashCost   int // 0 = bcrypt.DefaultCost
}

// Store authenticates players and converts between rows and profiles.
type Store struct {
	repo Repo
	opts StoreOptions
	log  *zap.Logger
}

func NewStore(repo Repo, opts StoreOptions, log *zap.Logger) *Store {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &Store{repo: repo, opts: opts, log: log}
}

func key(name string) string { return strings.ToLower(name) }

// Load authenticates name with password and returns the saved profile.
// ok is false for a wrong password or an unknown account when accounts
// are not created automatically.
func (s *Store) Load(ctx context.Context, name, password string) (world.Profile, bool, error) {
	row, err := s.repo.Load(ctx, key(name))
	if err != nil {
		return world.Profile{}, false, fmt.Errorf("load player %s: %w", name, err)
	}
	if row == nil {
		if !s.opts.AutoCreate {
			return world.Profile{}, false, nil
		}
		if row, err = s.create(ctx, name, password); err != nil {
			return world.Profile{}, false, err
		}
		s.log.Info("account created", zap.String("name", name))
	} else if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return world.Profile{}, false, nil
	}

	if err := s.repo.TouchLogin(ctx, row.Name); err != nil {
		s.log.Warn("update last login", zap.String("name", name), zap.Error(err))
	}
	return rowToProfile(row), true, nil
}

func (s *Store) create(ctx context.Context, name, password string) (*PlayerRow, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	row := profileToRow(world.Profile{
		Name:       name,
		Position:   s.opts.Spawn,
		Appearance: world.DefaultAppearance(),
	})
	row.PasswordHash = string(hash)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create player %s: %w", name, err)
	}
	return row, nil
}

// Save writes the profile back.
func (s *Store) Save(ctx context.Context, pr world.Profile) error {
	if err := s.repo.Save(ctx, profileToRow(pr)); err != nil {
		return fmt.Errorf("save player %s: %w", pr.Name, err)
	}
	return nil
}

func profileToRow(pr world.Profile) *PlayerRow {
	row := &PlayerRow{
		Name:        key(pr.Name),
		DisplayName: pr.Name,
		Rights:      int16(pr.Rights),
		X:           int32(pr.Position.X),
		Y:           int32(pr.Position.Y),
		Plane:       int16(pr.Position.Plane),
		Gender:      int16(pr.Appearance.Gender),
	}
	for _, v := range pr.Appearance.Body {
		row.Body = append(row.Body, int32(v))
	}
	for _, v := range pr.Appearance.Colors {
		row.Colors = append(row.Colors, int32(v))
	}
	return row
}

func rowToProfile(row *PlayerRow) world.Profile {
	a := world.DefaultAppearance()
	a.Gender = int(row.Gender)
	if len(row.Body) == len(a.Body) {
		for i, v := range row.Body {
			a.Body[i] = int(v)
		}
	}
	if len(row.Colors) == len(a.Colors) {
		for i, v := range row.Colors {
			a.Colors[i] = int(v)
		}
	}
	return world.Profile{
		Name:       row.DisplayName,
		Rights:     world.Rights(row.Rights),
		Position:   world.Position{X: int(row.X), Y: int(row.Y), Plane: int(row.Plane)},
		Appearance: a,
	}
}
