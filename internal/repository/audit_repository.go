package repository

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"quotedesk/internal/domain"
)

// AuditRepository only ever inserts; the table also rejects UPDATE and DELETE with a trigger.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *domain.QuoteAuditLogEntry) error {
	query := `
        INSERT INTO quote_audit_logs (
            quote_id, quote_number, action, description, actor_type,
            actor_id, actor_name, actor_email, previous_value, new_value, metadata
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		entry.QuoteID,
		entry.QuoteNumber,
		entry.Action,
		entry.Description,
		entry.ActorType,
		entry.ActorID,
		entry.ActorName,
		entry.ActorEmail,
		entry.PreviousValue,
		entry.NewValue,
		entry.Metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListByQuote returns up to limit entries after (ascending) or before (descending) the given id.
// afterID of 0 starts from the beginning in either order.
func (r *AuditRepository) ListByQuote(ctx context.Context, quoteID uuid.UUID, afterID int64, descending bool, limit int) ([]domain.QuoteAuditLogEntry, error) {
	query := `SELECT * FROM quote_audit_logs WHERE quote_id = $1 AND id > $2 ORDER BY id ASC LIMIT $3`
	args := []interface{}{quoteID, afterID, limit}
	switch {
	case descending && afterID > 0:
		query = `SELECT * FROM quote_audit_logs WHERE quote_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3`
	case descending:
		query = `SELECT * FROM quote_audit_logs WHERE quote_id = $1 ORDER BY id DESC LIMIT $2`
		args = []interface{}{quoteID, limit}
	}

	entries := []domain.QuoteAuditLogEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, nil
}
