package tokens

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, token *DocumentToken) error
	GetValid(ctx context.Context, documentID uuid.UUID, token string) (*DocumentToken, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, token *DocumentToken) error {
	query := `
		INSERT INTO document_tokens (id, token, document_id, date_created, date_expires)
		VALUES (:id, :token, :document_id, :date_created, :date_expires)`
	_, err := r.db.NamedExecContext(ctx, query, token)
	return err
}

func (r *postgresRepository) GetValid(ctx context.Context, documentID uuid.UUID, token string) (*DocumentToken, error) {
	var found DocumentToken
	query := `
		SELECT * FROM document_tokens
		WHERE document_id = $1 AND token = $2 AND used_at IS NULL AND date_expires > $3`
	err := r.db.GetContext(ctx, &found, query, documentID, token, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &found, err
}

func (r *postgresRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "UPDATE document_tokens SET used_at = $1 WHERE id = $2", time.Now(), id)
	return err
}

func (r *postgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM document_tokens WHERE date_expires <= $1", time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
