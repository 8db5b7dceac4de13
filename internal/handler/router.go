package handler

import (
	"github.com/go-chi/chi/v5"
	"net/http"
	"quotedesk/internal/auth"
)

// Routes bundles every HTTP handler the API serves.
type Routes struct {
	Quotes        *QuoteHandler
	Artwork       *ArtworkHandler
	Public        *PublicHandler
	Audit         *AuditHandler
	Notifications *NotificationHandler
	// Thumbnail serves artwork previews behind customer links.
	Thumbnail http.HandlerFunc
}

// Mount registers the staff API under /v1 and the customer pages under /v1/public.
func (rt Routes) Mount(r chi.Router, verifier auth.Verifier) {
	r.Route("/v1", func(r chi.Router) {
		r.Route("/public", func(r chi.Router) {
			r.Route("/quotes/{token}", func(r chi.Router) {
				r.Get("/", rt.Public.GetQuote)
				r.Get("/pdf", rt.Public.QuotePDF)
				r.Post("/approve", rt.Public.ApproveQuote)
				r.Post("/decline", rt.Public.DeclineQuote)
			})
			r.Route("/artwork/{token}", func(r chi.Router) {
				r.Get("/", rt.Public.GetArtwork)
				r.Get("/file", rt.Public.ArtworkFile)
				if rt.Thumbnail != nil {
					r.Get("/thumbnail", rt.Thumbnail)
				}
				r.Post("/approve", rt.Public.ApproveArtwork)
				r.Post("/decline", rt.Public.DeclineArtwork)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))

			r.Post("/quotes", rt.Quotes.CreateQuote)
			r.Get("/quotes", rt.Quotes.ListQuotes)

			r.Route("/quotes/{id}", func(r chi.Router) {
				r.Get("/", rt.Quotes.GetQuote)
				r.Patch("/", rt.Quotes.UpdateQuote)
				r.Delete("/", rt.Quotes.DeleteQuote)
				r.Post("/status", rt.Quotes.ChangeStatus)
				r.Get("/transitions", rt.Quotes.GetTransitions)
				r.Post("/send", rt.Quotes.SendToCustomer)
				r.Post("/archive", rt.Quotes.ArchiveQuote)
				r.Get("/pdf", rt.Quotes.DownloadPDF)
				r.Get("/audit-logs", rt.Audit.GetAuditLogs)
				r.Post("/artwork", rt.Artwork.UploadArtwork)
				r.Post("/artwork/send", rt.Artwork.SendArtwork)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/settings", rt.Notifications.ListSettings)
				r.Put("/settings/{type}", rt.Notifications.UpdateSetting)
				r.Post("/settings/{type}/test", rt.Notifications.SendTest)
				r.Get("/logs", rt.Notifications.ListLogs)
			})
		})
	})
}
