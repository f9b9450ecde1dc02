package invoices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
)

func testTemplateData() TemplateData {
	return TemplateData{
		InvoiceNumber: "C25TTA260829ABC123",
		LookupCode:    "TCT11223344",
		IssuedAt:      "29/08/2026",
		SellerName:    "Truong Tieu Hoc",
		SellerTaxCode: "0312345678",
		BuyerName:     "Tran Thi Binh",
		Description:   "Hoc phi thang 9",
		Amount:        "500000",
		TaxAmount:     "0",
		TotalAmount:   "500000",
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(testTemplateData())
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "C25TTA260829ABC123")
	assert.Contains(t, out, "Tran Thi Binh")
	assert.Contains(t, out, "Hoc phi thang 9")
	assert.Contains(t, out, "500000")
	assert.Contains(t, out, "TCT11223344")
}

func TestExecRendererMissingBinary(t *testing.T) {
	renderer := NewExecRenderer(config.RenderingConfig{PDFBinary: "definitely-not-a-pdf-engine"})

	_, err := renderer.RenderPDF(context.Background(), testTemplateData())
	assert.Error(t, err)
}

func TestExecRendererUsesStdout(t *testing.T) {
	// cat is a stand-in engine: it copies the rendered HTML to stdout, which
	// is enough to exercise the pipe wiring.
	renderer := NewExecRenderer(config.RenderingConfig{PDFBinary: "cat"})

	out, err := renderer.RenderPDF(context.Background(), testTemplateData())
	require.NoError(t, err)
	assert.Contains(t, string(out), "C25TTA260829ABC123")
}
