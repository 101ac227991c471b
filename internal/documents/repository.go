package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/offerflow/offerflow-backend/internal/users"
)

type Repository interface {
	// WithTx runs fn against a transaction-scoped repository. The
	// check-then-append of a transition must happen inside one transaction
	// with the document row locked, or concurrent submits could both pass.
	WithTx(ctx context.Context, fn func(Repository) error) error

	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)
	LockDocument(ctx context.Context, id uuid.UUID) error
	ListAccessibleDocuments(ctx context.Context, userID uuid.UUID) ([]Document, error)
	ListLineageDocuments(ctx context.Context, rootID uuid.UUID) ([]Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	HasParticipant(ctx context.Context, documentID, userID uuid.UUID) (bool, error)

	CreateAction(ctx context.Context, action *Action) error
	ListLineageActions(ctx context.Context, rootID uuid.UUID) ([]Action, error)
	LatestAction(ctx context.Context, documentID uuid.UUID) (*Action, error)
	LatestActionState(ctx context.Context, documentID uuid.UUID) (*ActionState, error)
	BindActionRecipient(ctx context.Context, actionID, userID uuid.UUID) error
	LineageParticipants(ctx context.Context, rootID uuid.UUID) ([]users.UserProfile, error)
}

type postgresRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db, q: db}
}

func (r *postgresRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if _, inTx := r.q.(*sqlx.Tx); inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &postgresRepository{db: r.db, q: tx}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func (r *postgresRepository) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	// a document with no explicit root is its own root
	if doc.RootID == uuid.Nil {
		doc.RootID = doc.ID
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO documents (id, title, root_id, property_id, created_at)
		VALUES (:id, :title, :root_id, :property_id, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, doc)
	return err
}

func (r *postgresRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := sqlx.GetContext(ctx, r.q, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &doc, err
}

func (r *postgresRepository) LockDocument(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := sqlx.GetContext(ctx, r.q, &locked, "SELECT id FROM documents WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDocumentNotFound
	}
	return err
}

// ListAccessibleDocuments returns the documents the user appears on,
// ordered by most recent action first.
func (r *postgresRepository) ListAccessibleDocuments(ctx context.Context, userID uuid.UUID) ([]Document, error) {
	var docs []Document
	query := `
		SELECT d.id, d.title, d.root_id, d.property_id, d.created_at
		FROM documents d
		JOIN actions a ON a.document_id = d.id
		WHERE a.from_user_id = $1 OR a.to_user_id = $1
		GROUP BY d.id
		ORDER BY MAX(a.timestamp) DESC`
	err := sqlx.SelectContext(ctx, r.q, &docs, query, userID)
	return docs, err
}

func (r *postgresRepository) ListLineageDocuments(ctx context.Context, rootID uuid.UUID) ([]Document, error) {
	var docs []Document
	err := sqlx.SelectContext(ctx, r.q, &docs,
		"SELECT * FROM documents WHERE root_id = $1 ORDER BY created_at", rootID)
	return docs, err
}

// DeleteDocument removes a single document; its actions go with it via the
// ON DELETE CASCADE on actions.document_id. Siblings in the lineage stay.
func (r *postgresRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	return err
}

// HasParticipant reports whether the user appears on any action of the
// document; it backs the access filter on every document endpoint.
func (r *postgresRepository) HasParticipant(ctx context.Context, documentID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists,
		"SELECT EXISTS (SELECT 1 FROM actions WHERE document_id = $1 AND (from_user_id = $2 OR to_user_id = $2))",
		documentID, userID)
	return exists, err
}

func (r *postgresRepository) CreateAction(ctx context.Context, action *Action) error {
	if !action.Type.Persistable() {
		return fmt.Errorf("action type %q is display-only and cannot be persisted", action.Type)
	}
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}

	query := `
		INSERT INTO actions (id, document_id, from_user_id, to_user_id, type, timestamp)
		VALUES (:id, :document_id, :from_user_id, :to_user_id, :type, :timestamp)`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, action)
	return err
}

func (r *postgresRepository) ListLineageActions(ctx context.Context, rootID uuid.UUID) ([]Action, error) {
	var actions []Action
	query := `
		SELECT a.id, a.document_id, a.from_user_id, a.to_user_id, a.type, a.timestamp
		FROM actions a
		JOIN documents d ON d.id = a.document_id
		WHERE d.root_id = $1
		ORDER BY a.timestamp`
	err := sqlx.SelectContext(ctx, r.q, &actions, query, rootID)
	return actions, err
}

func (r *postgresRepository) LatestAction(ctx context.Context, documentID uuid.UUID) (*Action, error) {
	var action Action
	err := sqlx.GetContext(ctx, r.q, &action,
		"SELECT * FROM actions WHERE document_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 1", documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &action, err
}

func (r *postgresRepository) LatestActionState(ctx context.Context, documentID uuid.UUID) (*ActionState, error) {
	action, err := r.LatestAction(ctx, documentID)
	if err != nil || action == nil {
		return nil, err
	}

	state := &ActionState{Action: *action}

	if err := sqlx.GetContext(ctx, r.q, &state.From,
		"SELECT * FROM user_profiles WHERE id = $1", action.FromUserID); err != nil {
		return nil, fmt.Errorf("failed to load action sender: %w", err)
	}

	if action.ToUserID != nil {
		var to users.UserProfile
		if err := sqlx.GetContext(ctx, r.q, &to,
			"SELECT * FROM user_profiles WHERE id = $1", *action.ToUserID); err != nil {
			return nil, fmt.Errorf("failed to load action recipient: %w", err)
		}
		state.To = &to
	}

	return state, nil
}

// BindActionRecipient is the single allowed post-creation mutation of a log
// entry, used when a deferred invitation is redeemed.
func (r *postgresRepository) BindActionRecipient(ctx context.Context, actionID, userID uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, "UPDATE actions SET to_user_id = $1 WHERE id = $2", userID, actionID)
	return err
}

// LineageParticipants returns every profile that appears on any action in
// the lineage, earliest joiner first.
func (r *postgresRepository) LineageParticipants(ctx context.Context, rootID uuid.UUID) ([]users.UserProfile, error) {
	var profiles []users.UserProfile
	query := `
		SELECT p.id, p.first_name, p.last_name, p.email, p.is_attorney, p.join_date
		FROM user_profiles p
		WHERE p.id IN (
			SELECT a.from_user_id
			FROM actions a JOIN documents d ON d.id = a.document_id
			WHERE d.root_id = $1
			UNION
			SELECT a.to_user_id
			FROM actions a JOIN documents d ON d.id = a.document_id
			WHERE d.root_id = $1 AND a.to_user_id IS NOT NULL
		)
		ORDER BY p.join_date`
	err := sqlx.SelectContext(ctx, r.q, &profiles, query, rootID)
	return profiles, err
}
