package printing

import (
	"encoding/json"
	"fmt"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// JobOptions are the print options a staff user can set per job.
type JobOptions struct {
	Copies    int
	PaperSize string
}

func (o JobOptions) normalized() JobOptions {
	if o.Copies < 1 {
		o.Copies = 1
	}
	if o.PaperSize == "" {
		o.PaperSize = "A4"
	}
	return o
}

// JobPayload is the serialized render payload stored on the job row and
// shipped to agents. Document is base64 in the JSON encoding.
type JobPayload struct {
	InvoiceNumber string             `json:"invoice_number"`
	DocumentType  enums.DocumentType `json:"document_type"`
	Document      []byte             `json:"document"`
	Copies        int                `json:"copies"`
	PaperSize     string             `json:"paper_size"`
}

type artifactReader interface {
	ReadAll(path string) ([]byte, error)
}

// buildPayload embeds the invoice PDF artifact when it exists and falls back
// to a minimal HTML receipt synthesized from persisted invoice fields.
func buildPayload(invoice *models.Invoice, artifacts artifactReader, opts JobOptions) (*JobPayload, error) {
	opts = opts.normalized()

	payload := &JobPayload{
		InvoiceNumber: invoice.Number,
		Copies:        opts.Copies,
		PaperSize:     opts.PaperSize,
	}

	if invoice.PDFPath != nil && *invoice.PDFPath != "" {
		if data, err := artifacts.ReadAll(*invoice.PDFPath); err == nil {
			payload.Document = data
			payload.DocumentType = documentTypeForPath(*invoice.PDFPath)
			return payload, nil
		}
	}

	payload.Document = receiptHTML(invoice)
	payload.DocumentType = enums.DocumentTypeHTML
	return payload, nil
}

func documentTypeForPath(path string) enums.DocumentType {
	if len(path) >= 5 && path[len(path)-5:] == ".html" {
		return enums.DocumentTypeHTML
	}
	return enums.DocumentTypePDF
}

func receiptHTML(invoice *models.Invoice) []byte {
	return []byte(fmt.Sprintf(
		`<html><body><h1>Hoa don %s</h1><p>Nguoi mua: %s</p><p>Ma tra cuu: %s</p><p>Tong tien: %s VND</p></body></html>`,
		invoice.Number,
		invoice.CustomerName,
		invoice.LookupCode,
		invoice.TotalAmount.StringFixed(0),
	))
}

func encodePayload(payload *JobPayload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	return data, nil
}

func decodePayload(raw []byte) (*JobPayload, error) {
	var payload JobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return &payload, nil
}
