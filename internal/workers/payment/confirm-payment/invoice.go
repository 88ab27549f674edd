package confirmpayment

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"stream-monetization-workers/internal/models"

	"github.com/go-pdf/fpdf"
)

// InvoiceNumber formats INV-{unix millis}-{last 6 chars of conversion id}.
func InvoiceNumber(conversionID string, at time.Time) string {
	suffix := conversionID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("INV-%d-%s", at.UnixMilli(), suffix)
}

// BuildInvoice prices the conversion's line items. Tax is rounded to the
// nearest minor unit.
func BuildInvoice(c *models.ConversionEvent, taxRate float64, id string, at time.Time) *models.Invoice {
	quantity := c.Quantity
	if quantity < 1 {
		quantity = 1
	}
	subtotal := c.Amount
	tax := int64(math.Round(float64(subtotal) * taxRate))

	return &models.Invoice{
		ID:            id,
		InvoiceNumber: InvoiceNumber(c.ID, at),
		ConversionID:  c.ID,
		CustomerEmail: c.CustomerDetails.Email,
		CustomerName:  c.CustomerDetails.Name,
		LineItems:     lineItems(c.ProductName, quantity, subtotal),
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal + tax,
		Currency:      c.Currency,
		Status:        models.InvoicePaid,
		IssuedAt:      at.UTC(),
	}
}

// lineItems splits amount over quantity so every line's quantity times unit
// price equals its amount. An uneven split puts the extra minor units on a
// second line priced one unit higher.
func lineItems(description string, quantity int, amount int64) []models.LineItem {
	unit := amount / int64(quantity)
	rem := int(amount % int64(quantity))

	items := []models.LineItem{}
	if base := quantity - rem; base > 0 {
		items = append(items, models.LineItem{
			Description: description,
			Quantity:    base,
			UnitAmount:  unit,
			Amount:      unit * int64(base),
		})
	}
	if rem > 0 {
		items = append(items, models.LineItem{
			Description: description,
			Quantity:    rem,
			UnitAmount:  unit + 1,
			Amount:      (unit + 1) * int64(rem),
		})
	}
	return items
}

// RenderInvoicePDF lays the invoice out on a single A4 page.
func RenderInvoicePDF(inv *models.Invoice, issuer string, taxRate float64) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(inv.InvoiceNumber, false)
	pdf.SetCreator(issuer, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, issuer, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Invoice "+inv.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Issued "+inv.IssuedAt.Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, "Bill to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	if inv.CustomerName != "" {
		pdf.CellFormat(0, 6, inv.CustomerName, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, inv.CustomerEmail, "", 1, "L", false, 0, "")
	pdf.Ln(6)

	widths := []float64{95, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	for i, header := range []string{"Description", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, header, "B", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range inv.LineItems {
		pdf.CellFormat(widths[0], 8, item.Description, "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 8, FormatAmount(item.UnitAmount, inv.Currency), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 8, FormatAmount(item.Amount, inv.Currency), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	labelWidth := widths[0] + widths[1] + widths[2]
	totals := []struct {
		label  string
		amount int64
	}{
		{"Subtotal", inv.Subtotal},
		{fmt.Sprintf("Tax (%.2f%%)", taxRate*100), inv.Tax},
		{"Total", inv.Total},
	}
	for i, row := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 11)
		}
		pdf.CellFormat(labelWidth, 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, FormatAmount(row.amount, inv.Currency), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatAmount renders minor units as a two-decimal amount.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, strings.ToUpper(currency), minor/100, minor%100)
}
