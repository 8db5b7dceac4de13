package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"log"
	"net/url"
	"path"
	"quotedesk/internal/domain"
	"quotedesk/internal/events"
	"quotedesk/internal/service/s3"
	"regexp"
	"strings"
	"time"
)

const maxArtworkSize = 50 << 20

type ArtworkService struct {
	quotes   QuoteStore
	storage  s3.Storage
	thumbs   Thumbnailer
	notifier QuoteNotifier
	bus      Publisher
	now      func() time.Time
}

// NewArtworkService wires the artwork workflow. storage and thumbs may be nil,
// in which case only externally hosted artwork URLs can be registered.
func NewArtworkService(quotes QuoteStore, storage s3.Storage, thumbs Thumbnailer, notifier QuoteNotifier, bus Publisher) *ArtworkService {
	return &ArtworkService{
		quotes:   quotes,
		storage:  storage,
		thumbs:   thumbs,
		notifier: notifier,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ArtworkUpload carries either file bytes or an external URL.
type ArtworkUpload struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	URL         string `json:"url"`
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func artworkPrefix(quoteID uuid.UUID) string {
	return fmt.Sprintf("artwork/%s/", quoteID)
}

func artworkKey(quoteID uuid.UUID, version int, fileName string) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(fileName), "_")
	if name == "" || name == "." || name == "_" {
		name = "artwork"
	}
	return fmt.Sprintf("%sv%d/%s", artworkPrefix(quoteID), version, name)
}

// UploadArtwork stores a new artwork version. The previous token stops working
// and any earlier customer decision is cleared.
func (s *ArtworkService) UploadArtwork(ctx context.Context, actor domain.Actor, id uuid.UUID, up ArtworkUpload) (*domain.Quote, error) {
	const op = "upload artwork"

	hasData, hasURL := len(up.Data) > 0, strings.TrimSpace(up.URL) != ""
	switch {
	case hasData == hasURL:
		return nil, domain.Invalid(op, "provide either a file or a URL")
	case hasData && len(up.Data) > maxArtworkSize:
		return nil, domain.Invalid(op, "artwork exceeds %d MB", maxArtworkSize>>20)
	case hasData && s.storage == nil:
		return nil, domain.Invalid(op, "file uploads are not configured, provide a URL")
	}
	if hasURL {
		u, err := url.Parse(strings.TrimSpace(up.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, domain.Invalid(op, "artwork URL must be an absolute http(s) URL")
		}
		if strings.TrimSpace(up.FileName) == "" {
			up.FileName = path.Base(u.Path)
		}
	}
	if strings.TrimSpace(up.FileName) == "" || up.FileName == "/" || up.FileName == "." {
		return nil, domain.Invalid(op, "file name is required")
	}

	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.ArtworkRequired {
		return nil, domain.Invalid(op, "artwork is not required for this quote")
	}
	switch q.Status {
	case domain.QuoteStatusApproved, domain.QuoteStatusDeclined, domain.QuoteStatusArchived:
		return nil, &domain.ValidationError{Op: op, Reason: fmt.Sprintf("quote is %s", q.Status.Label()), Err: domain.ErrInvalidTransition}
	}

	before := q.Clone()
	version := q.ArtworkVersion + 1

	artworkURL := strings.TrimSpace(up.URL)
	var thumbURL *string
	var storedKeys []string
	if hasData {
		key := artworkKey(q.ID, version, up.FileName)
		if err := s.storage.UploadBytes(ctx, key, up.Data, up.ContentType); err != nil {
			return nil, fmt.Errorf("failed to store artwork: %w", err)
		}
		storedKeys = append(storedKeys, key)
		artworkURL = s.storage.URL(key)

		if s.thumbs != nil {
			if thumb, err := s.thumbs.Thumbnail(up.Data, up.ContentType); err != nil {
				log.Printf("[ArtworkService] No thumbnail for %s v%d: %v", q.QuoteNumber, version, err)
			} else {
				thumbKey := path.Dir(key) + "/thumbnail.jpg"
				if err := s.storage.UploadBytes(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
					log.Printf("[ArtworkService] Failed to store thumbnail for %s: %v", q.QuoteNumber, err)
				} else {
					storedKeys = append(storedKeys, thumbKey)
					u := s.storage.URL(thumbKey)
					thumbURL = &u
				}
			}
		}
	}

	token, err := generateToken()
	if err != nil {
		s.cleanup(ctx, storedKeys)
		return nil, fmt.Errorf("failed to generate artwork token: %w", err)
	}

	fileName := path.Base(up.FileName)
	q.ArtworkVersion = version
	q.ArtworkURL = &artworkURL
	q.ArtworkFileName = &fileName
	q.ArtworkThumbnailURL = thumbURL
	q.ArtworkToken = &token
	q.ArtworkSentAt = nil
	q.ArtworkApprovedAt = nil
	q.ArtworkDeclinedAt = nil
	q.ArtworkNotes = nil
	if q.Status == domain.QuoteStatusArtworkApproved || q.Status == domain.QuoteStatusArtworkDeclined {
		q.Status = domain.QuoteStatusArtworkPending
	}

	if err := s.quotes.Update(ctx, q, before.Status, false); err != nil {
		s.cleanup(ctx, storedKeys)
		return nil, fmt.Errorf("failed to save artwork: %w", err)
	}
	log.Printf("[ArtworkService] Quote %s artwork v%d stored", q.QuoteNumber, version)

	s.publish(ctx, q, actor, auditArtworkUploaded(before, q, actor), nil, nil)
	return q, nil
}

// PurgeArtwork removes every stored version and thumbnail of a deleted quote.
// Failures are logged; the quote is already gone.
func (s *ArtworkService) PurgeArtwork(ctx context.Context, quoteID uuid.UUID) {
	if s.storage == nil {
		return
	}
	n, err := s.storage.DeletePrefix(ctx, artworkPrefix(quoteID))
	if err != nil {
		log.Printf("[ArtworkService] Failed to purge artwork of quote %s (%d removed): %v", quoteID, n, err)
		return
	}
	log.Printf("[ArtworkService] Purged %d artwork objects of quote %s", n, quoteID)
}

func (s *ArtworkService) cleanup(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.storage.DeleteObject(ctx, k); err != nil {
			log.Printf("[ArtworkService] Failed to remove orphaned object %s: %v", k, err)
		}
	}
}

// SendArtwork emails the approval link for the current version. It ignores the
// notification settings and reports delivery problems to the caller.
func (s *ArtworkService) SendArtwork(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Quote, error) {
	const op = "send artwork"

	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.IsArchived() {
		return nil, &domain.ValidationError{Op: op, Reason: "quote is archived", Err: domain.ErrInvalidTransition}
	}
	if !q.ArtworkRequired || !q.HasArtwork() {
		return nil, domain.Invalid(op, "no artwork has been uploaded")
	}
	if !looksLikeEmail(q.ResolvedCustomerEmail()) {
		return nil, domain.Invalid(op, "quote has no customer email")
	}

	prev := q.Status
	switch prev {
	case domain.QuoteStatusPending, domain.QuoteStatusReviewing, domain.QuoteStatusSent:
		q.Status = domain.QuoteStatusArtworkPending
	}
	now := s.now()
	q.ArtworkSentAt = &now

	if err := s.quotes.Update(ctx, q, prev, false); err != nil {
		return nil, fmt.Errorf("failed to mark artwork sent: %w", err)
	}

	s.publish(ctx, q, actor, auditArtworkSent(q, prev, actor), nil, nil)

	res := s.notifier.SendNow(ctx, domain.NotifyCustomerArtworkApproval, q, actor, true)
	if !res.Success() {
		log.Printf("[ArtworkService] Artwork for %s marked sent but email failed: %v", q.QuoteNumber, res.Err)
		return q, &domain.DeliveryError{Type: domain.NotifyCustomerArtworkApproval, Err: res.Err}
	}
	return q, nil
}

// GetArtworkByToken resolves a customer artwork link. Rotated tokens fail closed.
func (s *ArtworkService) GetArtworkByToken(ctx context.Context, token string) (*domain.Quote, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrTokenInvalid
	}
	q, err := s.quotes.GetByArtworkToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	if q.IsArchived() || !q.HasArtwork() {
		return nil, domain.ErrTokenInvalid
	}
	return q, nil
}

// RespondToArtwork records the customer's decision on the current version.
// A version can be answered once.
func (s *ArtworkService) RespondToArtwork(ctx context.Context, token string, approve bool, notes string) (*domain.Quote, error) {
	const op = "respond to artwork"

	q, err := s.GetArtworkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if q.ArtworkApprovedAt != nil || q.ArtworkDeclinedAt != nil {
		return nil, &domain.ValidationError{Op: op, Reason: fmt.Sprintf("artwork v%d has already been answered", q.ArtworkVersion), Err: domain.ErrInvalidTransition}
	}
	prev := q.Status
	to := domain.QuoteStatusArtworkDeclined
	if approve {
		to = domain.QuoteStatusArtworkApproved
	}
	if prev != domain.QuoteStatusArtworkPending {
		return nil, domain.InvalidTransition(op, prev, to)
	}

	now := s.now()
	notes = strings.TrimSpace(notes)
	if approve {
		q.ArtworkApprovedAt = &now
	} else {
		q.ArtworkDeclinedAt = &now
	}
	if notes != "" {
		q.ArtworkNotes = &notes
	}
	q.Status = to

	if err := s.quotes.Update(ctx, q, prev, false); err != nil {
		return nil, fmt.Errorf("failed to record artwork response: %w", err)
	}

	action := "declined"
	if approve {
		action = "approved"
	}
	log.Printf("[ArtworkService] Customer %s artwork v%d of %s", action, q.ArtworkVersion, q.QuoteNumber)

	actor := domain.CustomerActor(q.ResolvedCustomerName(), q.ResolvedCustomerEmail())
	s.publish(ctx, q, actor,
		auditArtworkResponded(q, prev, approve, notes, actor),
		[]events.Intent{{
			Type:           domain.NotifyInternalArtworkResponse,
			PreviousStatus: prev,
			NewStatus:      to,
			ArtworkAction:  action,
		}},
		&events.OwnerAlert{
			Headline: fmt.Sprintf("%s %s artwork v%d for %s", orNone(q.ResolvedCustomerName()), action, q.ArtworkVersion, q.QuoteNumber),
			Action:   action,
			Notes:    notes,
		})
	return q, nil
}

// OpenArtwork streams the stored file behind a customer link.
func (s *ArtworkService) OpenArtwork(ctx context.Context, token string, thumbnail bool) (s3.Object, error) {
	q, err := s.GetArtworkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, domain.ErrNotFound
	}
	key := artworkKey(q.ID, q.ArtworkVersion, derefOr(q.ArtworkFileName, ""))
	if thumbnail {
		if q.ArtworkThumbnailURL == nil {
			return nil, domain.ErrNotFound
		}
		key = path.Dir(key) + "/thumbnail.jpg"
	}
	obj, err := s.storage.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, s3.ErrObjectNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}

func (s *ArtworkService) publish(ctx context.Context, q *domain.Quote, actor domain.Actor, d domain.AuditDraft, intents []events.Intent, alert *events.OwnerAlert) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.QuoteMutated{
		Quote:         q.Clone(),
		Actor:         actor,
		Audit:         []domain.AuditDraft{d},
		Notifications: intents,
		OwnerAlert:    alert,
	})
}
