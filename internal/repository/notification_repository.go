package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"quotedesk/internal/domain"
	"strings"
	"time"
)

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) ListSettings(ctx context.Context) ([]domain.NotificationSetting, error) {
	settings := []domain.NotificationSetting{}
	if err := r.db.SelectContext(ctx, &settings, `SELECT * FROM notification_settings ORDER BY type`); err != nil {
		return nil, fmt.Errorf("failed to list notification settings: %w", err)
	}
	return settings, nil
}

func (r *NotificationRepository) GetSetting(ctx context.Context, t domain.NotificationType) (*domain.NotificationSetting, error) {
	var s domain.NotificationSetting
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM notification_settings WHERE type = $1`, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification setting: %w", err)
	}
	return &s, nil
}

func (r *NotificationRepository) UpsertSetting(ctx context.Context, s *domain.NotificationSetting) error {
	query := `
        INSERT INTO notification_settings (type, enabled, channel, recipients, subject_template, body_template, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
        ON CONFLICT (type) DO UPDATE SET
            enabled = EXCLUDED.enabled,
            channel = EXCLUDED.channel,
            recipients = EXCLUDED.recipients,
            subject_template = EXCLUDED.subject_template,
            body_template = EXCLUDED.body_template,
            updated_at = CURRENT_TIMESTAMP
        RETURNING updated_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		s.Type,
		s.Enabled,
		s.Channel,
		s.Recipients,
		s.SubjectTemplate,
		s.BodyTemplate,
	).Scan(&s.UpdatedAt)
}

func (r *NotificationRepository) CreateLog(ctx context.Context, l *domain.NotificationLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = domain.NotificationPending
	}
	query := `
        INSERT INTO notification_logs (
            id, type, channel, recipient, subject, status, quote_id, customer_id, user_id
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		l.ID,
		l.Type,
		l.Channel,
		l.Recipient,
		l.Subject,
		l.Status,
		l.QuoteID,
		l.CustomerID,
		l.UserID,
	).Scan(&l.CreatedAt)
}

func (r *NotificationRepository) MarkLog(ctx context.Context, id uuid.UUID, status domain.NotificationStatus, messageID, errMsg *string) error {
	var sentAt *time.Time
	if status == domain.NotificationSent {
		now := time.Now().UTC()
		sentAt = &now
	}
	query := `
        UPDATE notification_logs
        SET status = $2, message_id = $3, error_message = $4, sent_at = $5
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, messageID, errMsg, sentAt)
	if err != nil {
		return fmt.Errorf("failed to update notification log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) ListLogs(ctx context.Context, filter domain.NotificationLogFilter) ([]domain.NotificationLog, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.QuoteID != nil {
		args = append(args, *filter.QuoteID)
		conds = append(conds, fmt.Sprintf("quote_id = $%d", len(args)))
	}

	query := "SELECT * FROM notification_logs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	logs := []domain.NotificationLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	return logs, nil
}
