package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*UserProfile, error)
	FirstAttorney(ctx context.Context) (*UserProfile, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]UserProfile, error)
	GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*UserProfile, error) {
	var profile UserProfile
	err := r.db.GetContext(ctx, &profile, "SELECT * FROM user_profiles WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &profile, err
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*UserProfile, error) {
	var profile UserProfile
	err := r.db.GetContext(ctx, &profile, "SELECT * FROM user_profiles WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &profile, err
}

func (r *postgresRepository) FirstAttorney(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	err := r.db.GetContext(ctx, &profile, "SELECT * FROM user_profiles WHERE is_attorney = true ORDER BY join_date LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &profile, err
}

func (r *postgresRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]UserProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT * FROM user_profiles WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}

	var profiles []UserProfile
	err = r.db.SelectContext(ctx, &profiles, r.db.Rebind(query), args...)
	return profiles, err
}

func (r *postgresRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	var prefs Preferences
	err := r.db.GetContext(ctx, &prefs, "SELECT * FROM preferences WHERE user_profile_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &prefs, err
}
