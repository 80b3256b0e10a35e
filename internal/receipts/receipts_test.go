package receipts

import (
	"bytes"
	"testing"
	"time"
)

func TestRenderProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, Receipt{
		TransactionID: "tx-123",
		PurchaseID:    "pur-456",
		BuyerEmail:    "alice@example.com",
		BuyerName:     "Alice",
		ProductTitle:  "Font Pack Vol. 1",
		AmountCents:   1500,
		Currency:      "usd",
		CompletedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
	if buf.Len() < 500 {
		t.Fatalf("suspiciously small PDF: %d bytes", buf.Len())
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		cents    int64
		currency string
		want     string
	}{
		{1500, "usd", "USD 15.00"},
		{995, "eur", "EUR 9.95"},
		{5, "usd", "USD 0.05"},
		{0, "usd", "USD 0.00"},
		{-1250, "usd", "USD -12.50"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.cents, tc.currency); got != tc.want {
			t.Fatalf("FormatAmount(%d, %q) = %q, want %q", tc.cents, tc.currency, got, tc.want)
		}
	}
}
