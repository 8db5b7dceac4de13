package service

import "quotedesk/internal/domain"

// adminTransitions lists the moves an internal user may make through ChangeStatus.
// Customer responses and artwork actions have their own rules. ARTWORK_APPROVED
// and ARTWORK_DECLINED are only ever set by the customer's artwork response.
var adminTransitions = map[domain.QuoteStatus][]domain.QuoteStatus{
	domain.QuoteStatusPending: {
		domain.QuoteStatusReviewing,
		domain.QuoteStatusSent,
		domain.QuoteStatusArchived,
	},
	domain.QuoteStatusReviewing: {
		domain.QuoteStatusPending,
		domain.QuoteStatusSent,
		domain.QuoteStatusArchived,
	},
	domain.QuoteStatusSent: {
		domain.QuoteStatusArtworkPending,
		domain.QuoteStatusApproved,
		domain.QuoteStatusDeclined,
		domain.QuoteStatusReviewing,
		domain.QuoteStatusArchived,
	},
	domain.QuoteStatusArtworkPending: {domain.QuoteStatusArchived},
	domain.QuoteStatusArtworkApproved: {
		domain.QuoteStatusApproved,
		domain.QuoteStatusDeclined,
		domain.QuoteStatusArchived,
	},
	domain.QuoteStatusArtworkDeclined: {domain.QuoteStatusArchived},
	domain.QuoteStatusApproved: {domain.QuoteStatusArchived},
	domain.QuoteStatusDeclined: {domain.QuoteStatusArchived},
	domain.QuoteStatusArchived: nil,
}

func CanTransition(from, to domain.QuoteStatus) bool {
	for _, s := range adminTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s by an internal user.
func AllowedTransitions(s domain.QuoteStatus) []domain.QuoteStatus {
	return append([]domain.QuoteStatus(nil), adminTransitions[s]...)
}
