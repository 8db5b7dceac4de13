package notification

import (
	"html"
	"regexp"
	"strings"

	"quotedesk/internal/domain"
)

// Missing is rendered for a known token that has no value in the context.
const Missing = "N/A"

type Template struct {
	Subject string
	Body    string
	IsHTML  bool
}

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

var defaultTemplates = map[domain.NotificationType]Template{
	domain.NotifyInternalQuoteCreated: {
		Subject: "New quote {{quoteNumber}} created",
		Body: `<p>Quote <strong>{{quoteNumber}}</strong> ({{quoteTitle}}) was created by {{userName}}.</p>
<p>Customer: {{customerName}} ({{customerCompany}})<br>Total: {{quoteTotal}}</p>
<p><a href="{{quoteUrl}}">Open quote</a></p>`,
		IsHTML: true,
	},
	domain.NotifyInternalQuoteStatusChange: {
		Subject: "Quote {{quoteNumber}} is now {{newStatus}}",
		Body: `<p>Quote <strong>{{quoteNumber}}</strong> moved from {{previousStatus}} to {{newStatus}}.</p>
<p>Customer: {{customerName}}<br>Total: {{quoteTotal}}</p>
<p><a href="{{quoteUrl}}">Open quote</a></p>`,
		IsHTML: true,
	},
	domain.NotifyInternalUserVerification: {
		Subject: "Verify your {{companyName}} account",
		Body: `<p>Hello {{userName}},</p>
<p>Please confirm that {{userEmail}} belongs to you to finish setting up your account.</p>`,
		IsHTML: true,
	},
	domain.NotifyInternalArtworkResponse: {
		Subject: "Artwork for quote {{quoteNumber}} was {{artworkAction}}",
		Body: `<p>{{customerName}} {{artworkAction}} artwork version {{artworkVersion}} ({{artworkFileName}}) for quote <strong>{{quoteNumber}}</strong>.</p>
<p>Notes: {{artworkNotes}}</p>
<p><a href="{{quoteUrl}}">Open quote</a></p>`,
		IsHTML: true,
	},
	domain.NotifyCustomerQuoteSent: {
		Subject: "Your quote {{quoteNumber}} from {{companyName}}",
		Body: `<p>Hello {{customerName}},</p>
<p>Your quote <strong>{{quoteNumber}}</strong> ({{quoteTitle}}) is ready. Total: {{quoteTotal}}, valid until {{validUntil}}.</p>
<p><a href="{{quoteApprovalUrl}}">Review and approve your quote</a></p>
<p>{{companyName}}</p>`,
		IsHTML: true,
	},
	domain.NotifyCustomerQuoteStatusChange: {
		Subject: "Quote {{quoteNumber}} is now {{newStatus}}",
		Body: `<p>Hello {{customerName}},</p>
<p>The status of your quote <strong>{{quoteNumber}}</strong> changed from {{previousStatus}} to {{newStatus}}.</p>
<p>{{companyName}}</p>`,
		IsHTML: true,
	},
	domain.NotifyCustomerArtworkApproval: {
		Subject: "Please review artwork for quote {{quoteNumber}}",
		Body: `<p>Hello {{customerName}},</p>
<p>Artwork version {{artworkVersion}} ({{artworkFileName}}) for quote <strong>{{quoteNumber}}</strong> is ready for your review.</p>
<p><a href="{{artworkApprovalUrl}}">Approve or decline the artwork</a></p>
<p>{{companyName}}</p>`,
		IsHTML: true,
	},
}

var fallbackTemplate = Template{
	Subject: "Update on quote {{quoteNumber}}",
	Body:    `<p>There is an update on quote <strong>{{quoteNumber}}</strong>: {{newStatus}}.</p>`,
	IsHTML:  true,
}

// DefaultTemplate returns the built-in template; unknown types get a generic one.
func DefaultTemplate(t domain.NotificationType) Template {
	if tpl, ok := defaultTemplates[t]; ok {
		return tpl
	}
	return fallbackTemplate
}

// Resolve applies non-empty custom subject and body from an enabled setting
// field by field over the built-in default.
func Resolve(t domain.NotificationType, setting *domain.NotificationSetting) Template {
	tpl := DefaultTemplate(t)
	if setting == nil || !setting.Enabled {
		return tpl
	}
	if s := strings.TrimSpace(setting.SubjectTemplate); s != "" {
		tpl.Subject = s
	}
	if b := strings.TrimSpace(setting.BodyTemplate); b != "" {
		tpl.Body = b
		tpl.IsHTML = looksLikeHTML(b)
	}
	return tpl
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "</") || strings.Contains(s, "<br") || strings.Contains(s, "<p>")
}

// Renderer substitutes {{token}} placeholders.
type Renderer struct {
	format *Formatter
}

func NewRenderer(f *Formatter) *Renderer {
	if f == nil {
		f = NewFormatter("en-US", "$")
	}
	return &Renderer{format: f}
}

// Render never fails: known tokens without a value become N/A, unknown tokens vanish.
func (r *Renderer) Render(tpl string, ctx TemplateContext, escapeHTML bool) string {
	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		if len(sub) < 2 {
			return ""
		}
		fn, ok := tokenFormatters[Token(sub[1])]
		if !ok {
			return ""
		}
		v := fn(r.format, ctx)
		if strings.TrimSpace(v) == "" {
			v = Missing
		}
		if escapeHTML {
			v = html.EscapeString(v)
		}
		return v
	})
}

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

// RenderTemplate renders both fields. Subjects are not HTML-escaped but lose line breaks.
func (r *Renderer) RenderTemplate(tpl Template, ctx TemplateContext) Template {
	return Template{
		Subject: headerSafe.Replace(r.Render(tpl.Subject, ctx, false)),
		Body:    r.Render(tpl.Body, ctx, tpl.IsHTML),
		IsHTML:  tpl.IsHTML,
	}
}
