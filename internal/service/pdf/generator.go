// Package pdf renders quotes as printable documents.
package pdf

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"quotedesk/internal/domain"
)

// MoneyFormatter renders an amount for display.
type MoneyFormatter func(decimal.Decimal) string

type Generator struct {
	companyName string
	money       MoneyFormatter
}

func New(companyName string, money MoneyFormatter) *Generator {
	if money == nil {
		money = func(d decimal.Decimal) string { return d.StringFixed(2) }
	}
	return &Generator{companyName: companyName, money: money}
}

func (g *Generator) Generate(q *domain.Quote) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Quote "+q.QuoteNumber), false)
	pdf.SetAuthor(tr(g.companyName), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(g.companyName))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	title := "Quote " + q.QuoteNumber
	if q.Title != "" {
		title += " - " + q.Title
	}
	pdf.Cell(0, 8, tr(title))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", q.CreatedAt.Format("2006-01-02")))
	pdf.Ln(5)
	if q.ValidUntil != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Valid until: %s", q.ValidUntil.Format("2006-01-02")))
		pdf.Ln(5)
	}
	customer := strings.TrimSpace(strings.Join(nonEmpty(q.ResolvedCustomerName(), q.ResolvedCustomerCompany(), q.ResolvedCustomerEmail()), ", "))
	if customer != "" {
		pdf.Cell(0, 6, tr("Customer: "+customer))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(95, 7, "Description", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Unit", "B", 0, "R", false, 0, "")
	pdf.CellFormat(20, 7, "Disc.", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range q.LineItems {
		desc := it.Description
		if desc == "" {
			desc = string(it.ItemType)
		}
		pdf.CellFormat(95, 6, tr(trim(desc, 55)), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, tr(g.money(it.UnitPrice)), "", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, tr(g.money(it.Discount)), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, tr(g.money(it.Total)), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	g.totalRow(pdf, tr, "Subtotal", q.Subtotal, false)
	if !q.Discount.IsZero() {
		label := "Discount"
		if q.DiscountType == domain.DiscountPercentage {
			label = fmt.Sprintf("Discount (%s%%)", q.DiscountValue.String())
		}
		g.totalRow(pdf, tr, label, q.Discount.Neg(), false)
	}
	if !q.Tax.IsZero() {
		g.totalRow(pdf, tr, fmt.Sprintf("Tax (%s%%)", q.TaxRate.String()), q.Tax, false)
	}
	if !q.Shipping.IsZero() {
		g.totalRow(pdf, tr, "Shipping", q.Shipping, false)
	}
	g.totalRow(pdf, tr, "Total", q.Total, true)

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 8)
	pdf.Cell(0, 5, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		log.Printf("[PDF] Output failed for %s: %v", q.QuoteNumber, err)
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) totalRow(pdf *gofpdf.Fpdf, tr func(string) string, label string, amount decimal.Decimal, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.CellFormat(160, 6, tr(label), "", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, tr(g.money(amount)), "", 1, "R", false, 0, "")
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func trim(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "..."
}
