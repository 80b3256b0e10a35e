// Package receipts renders PDF receipts for completed transactions.
package receipts

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt is the data rendered into the PDF.
type Receipt struct {
	TransactionID string
	PurchaseID    string
	BuyerEmail    string
	BuyerName     string
	ProductTitle  string
	AmountCents   int64
	Currency      string
	CompletedAt   time.Time
}

// Render writes the receipt PDF to w.
func Render(w io.Writer, r Receipt) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+r.TransactionID, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Receipt")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	buyer := r.BuyerEmail
	if r.BuyerName != "" {
		buyer = fmt.Sprintf("%s <%s>", r.BuyerName, r.BuyerEmail)
	}

	row("Transaction", r.TransactionID)
	row("Purchase", r.PurchaseID)
	row("Billed to", buyer)
	row("Item", r.ProductTitle)
	row("Amount", FormatAmount(r.AmountCents, r.Currency))
	row("Date", r.CompletedAt.UTC().Format("2006-01-02 15:04 UTC"))

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "Thank you for your purchase. This document confirms payment in full.")

	return pdf.Output(w)
}

// FormatAmount renders integer cents as a currency string, e.g. "USD 12.50".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", strings.ToUpper(currency), sign, cents/100, cents%100)
}
