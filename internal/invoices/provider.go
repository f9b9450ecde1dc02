package invoices

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
)

// Document is the canonical payload submitted to the e-invoice authority.
// School fees are VAT-exempt, so TaxAmount stays zero.
type Document struct {
	SellerName    string
	SellerTaxCode string
	SellerAddress string
	BuyerName     string
	Description   string
	Amount        decimal.Decimal
	TaxAmount     decimal.Decimal
	IssuedAt      time.Time
}

// Issued is what the provider hands back for a submitted document.
type Issued struct {
	InvoiceNumber string
	ProviderCode  string
	LookupCode    string
	SignedXML     []byte
}

// Provider abstracts the external e-invoice authority.
type Provider interface {
	Submit(ctx context.Context, doc Document) (*Issued, error)
}

type mockProvider struct {
	serial string
}

// NewMockProvider simulates the e-invoice authority: it assigns numbers under
// the configured serial and signs the canonical XML with a digest stamp.
func NewMockProvider(cfg config.EInvoiceConfig) Provider {
	return &mockProvider{serial: cfg.Serial}
}

func (p *mockProvider) Submit(_ context.Context, doc Document) (*Issued, error) {
	if strings.TrimSpace(doc.BuyerName) == "" {
		return nil, fmt.Errorf("buyer name required")
	}
	if doc.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive")
	}

	issuedAt := doc.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	suffix, err := randomHex(3)
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}
	lookup, err := randomHex(4)
	if err != nil {
		return nil, fmt.Errorf("generate lookup code: %w", err)
	}

	number := fmt.Sprintf("%s%s%s", p.serial, issuedAt.Format("060102"), suffix)
	lookupCode := "TCT" + lookup

	signed, err := signDocument(doc, number, lookupCode, issuedAt)
	if err != nil {
		return nil, fmt.Errorf("sign document: %w", err)
	}

	return &Issued{
		InvoiceNumber: number,
		ProviderCode:  p.serial,
		LookupCode:    lookupCode,
		SignedXML:     signed,
	}, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

type xmlInvoice struct {
	XMLName       xml.Name  `xml:"Invoice"`
	InvoiceNumber string    `xml:"InvoiceNumber"`
	LookupCode    string    `xml:"LookupCode"`
	IssuedAt      time.Time `xml:"IssuedAt"`
	Seller        xmlParty  `xml:"Seller"`
	Buyer         xmlParty  `xml:"Buyer"`
	Items         []xmlItem `xml:"Items>Item"`
	TaxAmount     string    `xml:"TaxAmount"`
	TotalAmount   string    `xml:"TotalAmount"`
	Signature     string    `xml:"Signature"`
}

type xmlParty struct {
	Name    string `xml:"Name"`
	TaxCode string `xml:"TaxCode,omitempty"`
	Address string `xml:"Address,omitempty"`
}

type xmlItem struct {
	Description string `xml:"Description"`
	Amount      string `xml:"Amount"`
}

func signDocument(doc Document, number, lookupCode string, issuedAt time.Time) ([]byte, error) {
	total := doc.Amount.Add(doc.TaxAmount)
	digest := sha256.Sum256([]byte(number + "|" + lookupCode + "|" + total.StringFixed(2)))

	payload := xmlInvoice{
		InvoiceNumber: number,
		LookupCode:    lookupCode,
		IssuedAt:      issuedAt,
		Seller: xmlParty{
			Name:    doc.SellerName,
			TaxCode: doc.SellerTaxCode,
			Address: doc.SellerAddress,
		},
		Buyer: xmlParty{Name: doc.BuyerName},
		Items: []xmlItem{{
			Description: doc.Description,
			Amount:      doc.Amount.StringFixed(2),
		}},
		TaxAmount:   doc.TaxAmount.StringFixed(2),
		TotalAmount: total.StringFixed(2),
		Signature:   hex.EncodeToString(digest[:]),
	}

	out, err := xml.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
