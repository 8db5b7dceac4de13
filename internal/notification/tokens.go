package notification

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"quotedesk/internal/domain"
	"quotedesk/internal/pricing"
)

// Token is one placeholder name usable as {{token}} in subjects and bodies.
type Token string

const (
	TokenQuoteNumber        Token = "quoteNumber"
	TokenQuoteTotal         Token = "quoteTotal"
	TokenQuoteTitle         Token = "quoteTitle"
	TokenQuoteStatus        Token = "quoteStatus"
	TokenValidUntil         Token = "validUntil"
	TokenCustomerName       Token = "customerName"
	TokenCustomerCompany    Token = "customerCompany"
	TokenCustomerEmail      Token = "customerEmail"
	TokenUserName           Token = "userName"
	TokenUserEmail          Token = "userEmail"
	TokenPreviousStatus     Token = "previousStatus"
	TokenNewStatus          Token = "newStatus"
	TokenArtworkURL         Token = "artworkUrl"
	TokenArtworkFileName    Token = "artworkFileName"
	TokenArtworkVersion     Token = "artworkVersion"
	TokenArtworkApprovalURL Token = "artworkApprovalUrl"
	TokenArtworkNotes       Token = "artworkNotes"
	TokenArtworkAction      Token = "artworkAction"
	TokenQuoteURL           Token = "quoteUrl"
	TokenQuoteApprovalURL   Token = "quoteApprovalUrl"
	TokenCompanyName        Token = "companyName"
)

// TemplateContext carries every value a template may reference. Zero values mean "absent".
type TemplateContext struct {
	QuoteID            *uuid.UUID
	QuoteNumber        string
	QuoteTitle         string
	QuoteTotal         *decimal.Decimal
	QuoteStatus        domain.QuoteStatus
	ValidUntil         *time.Time
	CustomerID         *uuid.UUID
	CustomerName       string
	CustomerCompany    string
	CustomerEmail      string
	UserID             string
	UserName           string
	UserEmail          string
	PreviousStatus     domain.QuoteStatus
	NewStatus          domain.QuoteStatus
	ArtworkURL         string
	ArtworkFileName    string
	ArtworkVersion     int
	ArtworkApprovalURL string
	ArtworkNotes       string
	ArtworkAction      string
	QuoteURL           string
	QuoteApprovalURL   string
	CompanyName        string
}

type formatter func(f *Formatter, c TemplateContext) string

func text(get func(TemplateContext) string) formatter {
	return func(_ *Formatter, c TemplateContext) string { return get(c) }
}

func status(get func(TemplateContext) domain.QuoteStatus) formatter {
	return func(_ *Formatter, c TemplateContext) string {
		s := get(c)
		if s == "" {
			return ""
		}
		return s.Label()
	}
}

var tokenFormatters = map[Token]formatter{
	TokenQuoteNumber: text(func(c TemplateContext) string { return c.QuoteNumber }),
	TokenQuoteTotal: func(f *Formatter, c TemplateContext) string {
		if c.QuoteTotal == nil {
			return ""
		}
		return f.Currency(*c.QuoteTotal)
	},
	TokenQuoteTitle:  text(func(c TemplateContext) string { return c.QuoteTitle }),
	TokenQuoteStatus: status(func(c TemplateContext) domain.QuoteStatus { return c.QuoteStatus }),
	TokenValidUntil: func(f *Formatter, c TemplateContext) string {
		if c.ValidUntil == nil {
			return ""
		}
		return f.Date(*c.ValidUntil)
	},
	TokenCustomerName:    text(func(c TemplateContext) string { return c.CustomerName }),
	TokenCustomerCompany: text(func(c TemplateContext) string { return c.CustomerCompany }),
	TokenCustomerEmail:   text(func(c TemplateContext) string { return c.CustomerEmail }),
	TokenUserName:        text(func(c TemplateContext) string { return c.UserName }),
	TokenUserEmail:       text(func(c TemplateContext) string { return c.UserEmail }),
	TokenPreviousStatus:  status(func(c TemplateContext) domain.QuoteStatus { return c.PreviousStatus }),
	TokenNewStatus:       status(func(c TemplateContext) domain.QuoteStatus { return c.NewStatus }),
	TokenArtworkURL:      text(func(c TemplateContext) string { return c.ArtworkURL }),
	TokenArtworkFileName: text(func(c TemplateContext) string { return c.ArtworkFileName }),
	TokenArtworkVersion: func(_ *Formatter, c TemplateContext) string {
		if c.ArtworkVersion <= 0 {
			return ""
		}
		return strconv.Itoa(c.ArtworkVersion)
	},
	TokenArtworkApprovalURL: text(func(c TemplateContext) string { return c.ArtworkApprovalURL }),
	TokenArtworkNotes:       text(func(c TemplateContext) string { return c.ArtworkNotes }),
	TokenArtworkAction:      text(func(c TemplateContext) string { return c.ArtworkAction }),
	TokenQuoteURL:           text(func(c TemplateContext) string { return c.QuoteURL }),
	TokenQuoteApprovalURL:   text(func(c TemplateContext) string { return c.QuoteApprovalURL }),
	TokenCompanyName:        text(func(c TemplateContext) string { return c.CompanyName }),
}

// Tokens lists the supported vocabulary.
func Tokens() []Token {
	out := make([]Token, 0, len(tokenFormatters))
	for t := range tokenFormatters {
		out = append(out, t)
	}
	return out
}

var supportedTags = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.BrazilianPortuguese,
}

var tagMatcher = language.NewMatcher(supportedTags)

var shortDateLayouts = map[language.Tag]string{
	language.AmericanEnglish:     "01/02/2006",
	language.BritishEnglish:      "02/01/2006",
	language.German:              "02.01.2006",
	language.French:              "02/01/2006",
	language.Spanish:             "02/01/2006",
	language.BrazilianPortuguese: "02/01/2006",
}

// Formatter renders money and dates for one locale.
type Formatter struct {
	tag        language.Tag
	printer    *message.Printer
	symbol     string
	decimalSep string
	dateLayout string
}

// NewFormatter picks the closest supported locale; unknown locales fall back to en-US.
func NewFormatter(locale, currencySymbol string) *Formatter {
	tag := language.AmericanEnglish
	if parsed, err := language.Parse(strings.TrimSpace(locale)); err == nil {
		_, idx, conf := tagMatcher.Match(parsed)
		if conf != language.No {
			tag = supportedTags[idx]
		}
	}
	if currencySymbol == "" {
		currencySymbol = "$"
	}
	printer := message.NewPrinter(tag)
	return &Formatter{
		tag:        tag,
		printer:    printer,
		symbol:     currencySymbol,
		decimalSep: decimalSeparator(printer),
		dateLayout: shortDateLayouts[tag],
	}
}

// decimalSeparator asks the locale how it writes 1.5.
func decimalSeparator(p *message.Printer) string {
	sample := p.Sprint(number.Decimal(1.5, number.Scale(1)))
	sep := strings.TrimSuffix(strings.TrimPrefix(sample, "1"), "5")
	if sep == "" || sep == sample {
		return "."
	}
	return sep
}

// Currency rounds half-up to cents and applies locale grouping. Only the whole
// units go through the locale printer; cents are taken from the decimal as is.
func (f *Formatter) Currency(d decimal.Decimal) string {
	rounded := pricing.Round2(d)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	whole, cents, _ := strings.Cut(rounded.StringFixed(2), ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = f.printer.Sprint(number.Decimal(n))
	}
	return sign + f.symbol + whole + f.decimalSep + cents
}

func (f *Formatter) Date(t time.Time) string {
	return t.Format(f.dateLayout)
}
