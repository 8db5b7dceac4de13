package service

import (
	"context"
	"github.com/google/uuid"
	"quotedesk/internal/domain"
	"quotedesk/internal/events"
	"quotedesk/internal/notification"
)

// QuoteStore is implemented by repository.QuoteRepository.
type QuoteStore interface {
	Create(ctx context.Context, q *domain.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error)
	GetByApprovalToken(ctx context.Context, token string) (*domain.Quote, error)
	GetByArtworkToken(ctx context.Context, token string) (*domain.Quote, error)
	Update(ctx context.Context, q *domain.Quote, expectedStatus domain.QuoteStatus, replaceItems bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.QuoteFilter) (*domain.QuoteList, error)
}

type CustomerStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
}

type AuditStore interface {
	Insert(ctx context.Context, entry *domain.QuoteAuditLogEntry) error
	ListByQuote(ctx context.Context, quoteID uuid.UUID, afterID int64, descending bool, limit int) ([]domain.QuoteAuditLogEntry, error)
}

type SettingsStore interface {
	ListSettings(ctx context.Context) ([]domain.NotificationSetting, error)
	GetSetting(ctx context.Context, t domain.NotificationType) (*domain.NotificationSetting, error)
	UpsertSetting(ctx context.Context, s *domain.NotificationSetting) error
	ListLogs(ctx context.Context, filter domain.NotificationLogFilter) ([]domain.NotificationLog, error)
}

// Thumbnailer renders a preview image for uploaded artwork.
type Thumbnailer interface {
	Thumbnail(data []byte, contentType string) ([]byte, error)
}

// QuoteNotifier sends user-triggered notifications synchronously.
type QuoteNotifier interface {
	SendNow(ctx context.Context, t domain.NotificationType, q *domain.Quote, actor domain.Actor, force bool) notification.Result
	SendTest(ctx context.Context, t domain.NotificationType, to string, actor domain.Actor) notification.Result
}

// ArtworkPurger drops stored artwork once its quote is deleted.
type ArtworkPurger interface {
	PurgeArtwork(ctx context.Context, quoteID uuid.UUID)
}

// Publisher receives committed mutations.
type Publisher interface {
	Publish(ctx context.Context, ev events.QuoteMutated)
}
