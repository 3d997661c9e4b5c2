package repository

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	contractdb "mailassist/contracts/db"
	"mailassist/pkg/otel"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations holding the goose files.
const MigrationsDir = "migrations"

const decisionsTable = "classification_decisions"

type DecisionRepository struct {
	db *pgxpool.Pool
}

func NewDecisionRepository(db *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Insert appends one dispatcher decision.
func (r *DecisionRepository) Insert(ctx context.Context, d contractdb.ClassificationDecision) error {
	query := `
        INSERT INTO classification_decisions (mailbox_id, message_id, outcome, folder_path, folder_id, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
    `
	return otel.Exec(ctx, "insert", decisionsTable, query, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, d.MailboxID, d.MessageID, d.Outcome, d.FolderPath, d.FolderID, d.Error)
		return err
	})
}

// ListByMailbox returns the latest decisions of a mailbox, newest first.
func (r *DecisionRepository) ListByMailbox(ctx context.Context, mailboxID string, limit int) ([]contractdb.ClassificationDecision, error) {
	query := `
        SELECT id, mailbox_id, message_id, outcome, folder_path, folder_id, error, created_at
        FROM classification_decisions
        WHERE mailbox_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `
	var out []contractdb.ClassificationDecision
	err := otel.Exec(ctx, "select", decisionsTable, query, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, mailboxID, limit)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (contractdb.ClassificationDecision, error) {
			var d contractdb.ClassificationDecision
			err := row.Scan(&d.ID, &d.MailboxID, &d.MessageID, &d.Outcome, &d.FolderPath, &d.FolderID, &d.Error, &d.CreatedAt)
			return d, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
