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

type QuoteRepository struct {
	db *sqlx.DB
}

func NewQuoteRepository(db *sqlx.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// FormatQuoteNumber renders sequence values as Q-YYYY-NNNNN.
func FormatQuoteNumber(year int, seq int64) string {
	return fmt.Sprintf("Q-%d-%05d", year, seq)
}

// Create assigns the quote number and inserts the quote with its line items in one transaction.
func (r *QuoteRepository) Create(ctx context.Context, q *domain.Quote) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT nextval('quote_number_seq')`); err != nil {
		return fmt.Errorf("failed to allocate quote number: %w", err)
	}
	q.QuoteNumber = FormatQuoteNumber(time.Now().UTC().Year(), seq)

	query := `
        INSERT INTO quotes (
            id, quote_number, title, notes,
            customer_id, customer_name, customer_email, customer_phone, customer_company,
            owner_id, subtotal, discount_value, discount_type, discount, tax_rate, tax,
            shipping, total, status, approval_token, valid_until, artwork_required
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
            $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
        ) RETURNING created_at, last_modified_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		q.ID,
		q.QuoteNumber,
		q.Title,
		q.Notes,
		q.CustomerID,
		q.CustomerName,
		q.CustomerEmail,
		q.CustomerPhone,
		q.CustomerCompany,
		q.OwnerID,
		q.Subtotal,
		q.DiscountValue,
		q.DiscountType,
		q.Discount,
		q.TaxRate,
		q.Tax,
		q.Shipping,
		q.Total,
		q.Status,
		q.ApprovalToken,
		q.ValidUntil,
		q.ArtworkRequired,
	).Scan(&q.CreatedAt, &q.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}

	if err := insertLineItems(ctx, tx, q.ID, q.LineItems); err != nil {
		return err
	}

	return tx.Commit()
}

func insertLineItems(ctx context.Context, tx *sqlx.Tx, quoteID uuid.UUID, items []domain.LineItem) error {
	query := `
        INSERT INTO line_items (
            id, quote_id, position, item_type, description, quantity,
            unit_price, discount, total, product_id, supplier_id, service_options
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for i := range items {
		item := &items[i]
		item.QuoteID = quoteID
		item.Position = i
		_, err := tx.ExecContext(
			ctx,
			query,
			item.ID,
			item.QuoteID,
			item.Position,
			item.ItemType,
			item.Description,
			item.Quantity,
			item.UnitPrice,
			item.Discount,
			item.Total,
			item.ProductID,
			item.SupplierID,
			item.ServiceOptions,
		)
		if err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i, err)
		}
	}
	return nil
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	return r.getOne(ctx, `SELECT * FROM quotes WHERE id = $1`, id)
}

func (r *QuoteRepository) GetByApprovalToken(ctx context.Context, token string) (*domain.Quote, error) {
	return r.getOne(ctx, `SELECT * FROM quotes WHERE approval_token = $1`, token)
}

func (r *QuoteRepository) GetByArtworkToken(ctx context.Context, token string) (*domain.Quote, error) {
	return r.getOne(ctx, `SELECT * FROM quotes WHERE artwork_token = $1`, token)
}

func (r *QuoteRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.Quote, error) {
	var q domain.Quote
	if err := r.db.GetContext(ctx, &q, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	items, err := r.lineItems(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.LineItems = items

	if q.CustomerID != nil {
		var c domain.Customer
		err := r.db.GetContext(ctx, &c, `SELECT * FROM customers WHERE id = $1`, *q.CustomerID)
		switch {
		case err == nil:
			q.Customer = &c
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("failed to load customer: %w", err)
		}
	}

	return &q, nil
}

func (r *QuoteRepository) lineItems(ctx context.Context, quoteID uuid.UUID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	query := `SELECT * FROM line_items WHERE quote_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &items, query, quoteID); err != nil {
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	return items, nil
}

// Update writes every mutable column. The row must still be in expectedStatus,
// otherwise a concurrent writer won and ErrConflict is returned. Line items are
// replaced only when replaceItems is set.
func (r *QuoteRepository) Update(ctx context.Context, q *domain.Quote, expectedStatus domain.QuoteStatus, replaceItems bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE quotes SET
            title = $3,
            notes = $4,
            customer_id = $5,
            customer_name = $6,
            customer_email = $7,
            customer_phone = $8,
            customer_company = $9,
            owner_id = $10,
            subtotal = $11,
            discount_value = $12,
            discount_type = $13,
            discount = $14,
            tax_rate = $15,
            tax = $16,
            shipping = $17,
            total = $18,
            status = $19,
            valid_until = $20,
            artwork_required = $21,
            artwork_url = $22,
            artwork_file_name = $23,
            artwork_thumbnail_url = $24,
            artwork_version = $25,
            artwork_token = $26,
            artwork_sent_at = $27,
            artwork_approved_at = $28,
            artwork_declined_at = $29,
            artwork_notes = $30,
            sent_at = $31,
            approved_at = $32,
            last_modified_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND status = $2
        RETURNING last_modified_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		q.ID,
		expectedStatus,
		q.Title,
		q.Notes,
		q.CustomerID,
		q.CustomerName,
		q.CustomerEmail,
		q.CustomerPhone,
		q.CustomerCompany,
		q.OwnerID,
		q.Subtotal,
		q.DiscountValue,
		q.DiscountType,
		q.Discount,
		q.TaxRate,
		q.Tax,
		q.Shipping,
		q.Total,
		q.Status,
		q.ValidUntil,
		q.ArtworkRequired,
		q.ArtworkURL,
		q.ArtworkFileName,
		q.ArtworkThumbnailURL,
		q.ArtworkVersion,
		q.ArtworkToken,
		q.ArtworkSentAt,
		q.ArtworkApprovedAt,
		q.ArtworkDeclinedAt,
		q.ArtworkNotes,
		q.SentAt,
		q.ApprovedAt,
	).Scan(&q.LastModifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrConflict(ctx, tx, q.ID)
		}
		return fmt.Errorf("failed to update quote: %w", err)
	}

	if replaceItems {
		if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE quote_id = $1`, q.ID); err != nil {
			return fmt.Errorf("failed to clear line items: %w", err)
		}
		if err := insertLineItems(ctx, tx, q.ID, q.LineItems); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *QuoteRepository) missingOrConflict(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM quotes WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check quote: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *QuoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE quote_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete line items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit()
}

func (r *QuoteRepository) List(ctx context.Context, filter domain.QuoteFilter) (*domain.QuoteList, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.OwnerID != "" {
		add("owner_id = $%d", filter.OwnerID)
	}
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(quote_number ILIKE $%d OR title ILIKE $%d OR customer_name ILIKE $%d OR customer_email ILIKE $%d)", n, n, n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM quotes"+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count quotes: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT * FROM quotes%s ORDER BY created_at DESC LIMIT %d OFFSET %d", where, limit, offset)
	quotes := []domain.Quote{}
	if err := r.db.SelectContext(ctx, &quotes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}

	return &domain.QuoteList{Quotes: quotes, Total: total, Limit: limit, Offset: offset}, nil
}
