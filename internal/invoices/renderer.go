package invoices

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os/exec"
	"strings"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
)

//go:embed templates/invoice.html
var templateFS embed.FS

var invoiceTmpl = template.Must(template.ParseFS(templateFS, "templates/invoice.html"))

// TemplateData feeds the invoice template. Amounts are pre-formatted strings
// so the template stays dumb.
type TemplateData struct {
	InvoiceNumber string
	LookupCode    string
	IssuedAt      string
	SellerName    string
	SellerTaxCode string
	SellerAddress string
	BuyerName     string
	Description   string
	Amount        string
	TaxAmount     string
	TotalAmount   string
}

// Renderer turns invoice data into a printable PDF. Implementations may fail
// at any time; callers fall back to the HTML rendition.
type Renderer interface {
	RenderPDF(ctx context.Context, data TemplateData) ([]byte, error)
}

// RenderHTML produces the HTML rendition of an invoice. It is both the input
// to the PDF engine and the fallback artifact when the engine is down.
func RenderHTML(data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render invoice template: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildTemplateData flattens an invoice row and the seller identity into
// template input.
func BuildTemplateData(invoice *models.Invoice, description string, cfg config.EInvoiceConfig) TemplateData {
	return TemplateData{
		InvoiceNumber: invoice.Number,
		LookupCode:    invoice.LookupCode,
		IssuedAt:      invoice.IssuedAt.Format("02/01/2006"),
		SellerName:    cfg.SellerName,
		SellerTaxCode: cfg.SellerTaxCode,
		SellerAddress: cfg.SellerAddress,
		BuyerName:     invoice.CustomerName,
		Description:   description,
		Amount:        invoice.Amount.StringFixed(0),
		TaxAmount:     invoice.TaxAmount.StringFixed(0),
		TotalAmount:   invoice.TotalAmount.StringFixed(0),
	}
}

type execRenderer struct {
	cfg config.RenderingConfig
}

// NewExecRenderer shells out to an HTML to PDF engine (weasyprint and
// wkhtmltopdf both accept "- -" for stdin/stdout operation).
func NewExecRenderer(cfg config.RenderingConfig) Renderer {
	return &execRenderer{cfg: cfg}
}

func (r *execRenderer) RenderPDF(ctx context.Context, data TemplateData) ([]byte, error) {
	html, err := RenderHTML(data)
	if err != nil {
		return nil, err
	}
	return ConvertHTMLToPDF(ctx, r.cfg, html)
}

// ConvertHTMLToPDF pipes raw HTML through the configured engine binary. The
// print spooler uses it directly for HTML payloads.
func ConvertHTMLToPDF(ctx context.Context, cfg config.RenderingConfig, html []byte) ([]byte, error) {
	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, cfg.PDFBinary, "-", "-")
	cmd.Stdin = bytes.NewReader(html)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", cfg.PDFBinary, err, detail)
		}
		return nil, fmt.Errorf("%s: %w", cfg.PDFBinary, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output", cfg.PDFBinary)
	}
	return out.Bytes(), nil
}
