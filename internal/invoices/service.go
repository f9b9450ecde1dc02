package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	pkgdb "github.com/anhpnguyen/edupay-backend/pkg/db"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type studentReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

type invoiceNotifier interface {
	InvoiceIssued(ctx context.Context, invoice *models.Invoice, order *models.Order)
}

type artifactStore interface {
	SavePDF(invoiceID uuid.UUID, data []byte) (string, error)
	SaveHTMLFallback(invoiceID uuid.UUID, data []byte) (string, error)
	SaveXML(invoiceID uuid.UUID, data []byte) (string, error)
	Open(path string) (io.ReadCloser, error)
	ReadAll(path string) ([]byte, error)
}

// Artifact is an opened invoice document ready to stream to a client.
type Artifact struct {
	Reader      io.ReadCloser
	ContentType string
	Filename    string
}

// Service defines the invoice issuance operations.
type Service interface {
	Issue(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	Rerender(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	Resend(ctx context.Context, invoiceID uuid.UUID) error
	Lookup(ctx context.Context, code string) (*models.Invoice, error)
	OpenArtifact(ctx context.Context, invoiceID uuid.UUID, kind string) (*Artifact, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	provider  Provider
	renderer  Renderer
	artifacts artifactStore
	students  studentReader
	notify    invoiceNotifier
	cfg       config.EInvoiceConfig
	logg      *logger.Logger
}

// NewService builds an invoice service. The notifier is optional.
func NewService(
	repo Repository,
	tx txRunner,
	provider Provider,
	renderer Renderer,
	artifacts artifactStore,
	students studentReader,
	notify invoiceNotifier,
	cfg config.EInvoiceConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoices repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if provider == nil {
		return nil, fmt.Errorf("einvoice provider required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact store required")
	}
	if students == nil {
		return nil, fmt.Errorf("student reader required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		provider:  provider,
		renderer:  renderer,
		artifacts: artifacts,
		students:  students,
		notify:    notify,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

func (s *service) Issue(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	switch order.Status {
	case enums.OrderStatusPaid:
	case enums.OrderStatusInvoiced:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice already issued")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid")
	}

	if _, err := s.repo.FindInvoiceByOrderID(ctx, order.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice already issued")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing invoice")
	}

	student, err := s.students.FindByID(ctx, order.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "student not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load student")
	}
	customerName := student.FullName
	if student.ParentName != nil && *student.ParentName != "" {
		customerName = *student.ParentName
	}

	now := time.Now()
	doc := Document{
		SellerName:    s.cfg.SellerName,
		SellerTaxCode: s.cfg.SellerTaxCode,
		SellerAddress: s.cfg.SellerAddress,
		BuyerName:     customerName,
		Description:   order.Description,
		Amount:        order.Amount,
		TaxAmount:     decimal.Zero,
		IssuedAt:      now,
	}

	// The provider call is the legal act and happens before our transaction;
	// a local failure after a successful submit is surfaced, not retried.
	issued, err := s.provider.Submit(ctx, doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "einvoice provider unavailable")
	}

	invoice := &models.Invoice{
		ID:           uuid.New(),
		OrderID:      order.ID,
		Number:       issued.InvoiceNumber,
		ProviderCode: issued.ProviderCode,
		LookupCode:   issued.LookupCode,
		CustomerName: customerName,
		Amount:       order.Amount,
		TaxAmount:    decimal.Zero,
		TotalAmount:  order.Amount,
		IssuedAt:     now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// The order is re-read under lock: a manual refund may have landed
		// between the pre-check and this transaction.
		current, err := repo.FindOrderByIDForUpdate(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		switch current.Status {
		case enums.OrderStatusPaid:
		case enums.OrderStatusInvoiced:
			return pkgerrors.New(pkgerrors.CodeConflict, "invoice already issued")
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid")
		}

		if _, err := repo.CreateInvoice(ctx, invoice); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice already issued")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice")
		}
		if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusInvoiced); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusInvoiced

	s.writeArtifacts(ctx, invoice, order.Description, issued.SignedXML)

	if s.notify != nil {
		s.notify.InvoiceIssued(ctx, invoice, order)
	}

	return invoice, nil
}

// writeArtifacts renders and stores the invoice documents. Issuance already
// committed; nothing here may fail the operation.
func (s *service) writeArtifacts(ctx context.Context, invoice *models.Invoice, description string, signedXML []byte) {
	updates := map[string]any{}

	data := BuildTemplateData(invoice, description, s.cfg)
	if pdfPath, err := s.renderPDFArtifact(ctx, invoice.ID, data); err != nil {
		s.logArtifactFailure(ctx, invoice.ID, "pdf", err)
	} else {
		updates["pdf_path"] = pdfPath
		invoice.PDFPath = &pdfPath
	}

	if len(signedXML) > 0 {
		if xmlPath, err := s.artifacts.SaveXML(invoice.ID, signedXML); err != nil {
			s.logArtifactFailure(ctx, invoice.ID, "xml", err)
		} else {
			updates["xml_path"] = xmlPath
			invoice.XMLPath = &xmlPath
		}
	}

	if len(updates) == 0 {
		return
	}
	if err := s.repo.UpdateArtifactPaths(ctx, invoice.ID, updates); err != nil {
		s.logArtifactFailure(ctx, invoice.ID, "paths", err)
	}
}

// renderPDFArtifact tries the PDF engine and degrades to the HTML rendition.
func (s *service) renderPDFArtifact(ctx context.Context, invoiceID uuid.UUID, data TemplateData) (string, error) {
	pdf, err := s.renderer.RenderPDF(ctx, data)
	if err == nil {
		return s.artifacts.SavePDF(invoiceID, pdf)
	}

	if s.logg != nil {
		s.logg.Error(ctx, "invoices.render.pdf_fallback", err)
	}
	html, htmlErr := RenderHTML(data)
	if htmlErr != nil {
		return "", multierr.Append(err, htmlErr)
	}
	return s.artifacts.SaveHTMLFallback(invoiceID, html)
}

func (s *service) Rerender(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindOrderByID(ctx, invoice.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	data := BuildTemplateData(invoice, order.Description, s.cfg)
	pdfPath, err := s.renderPDFArtifact(ctx, invoice.ID, data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "render invoice")
	}

	if err := s.repo.UpdateArtifactPaths(ctx, invoice.ID, map[string]any{"pdf_path": pdfPath}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record artifact path")
	}
	invoice.PDFPath = &pdfPath
	return invoice, nil
}

func (s *service) Resend(ctx context.Context, invoiceID uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	if s.notify == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "notifications not configured")
	}

	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	order, err := s.repo.FindOrderByID(ctx, invoice.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	s.notify.InvoiceIssued(ctx, invoice, order)
	return nil
}

func (s *service) Lookup(ctx context.Context, code string) (*models.Invoice, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup code required")
	}

	invoice, err := s.repo.FindInvoiceByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup invoice")
	}
	return invoice, nil
}

func (s *service) OpenArtifact(ctx context.Context, invoiceID uuid.UUID, kind string) (*Artifact, error) {
	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	var path *string
	switch strings.ToLower(kind) {
	case "pdf":
		path = invoice.PDFPath
	case "xml":
		path = invoice.XMLPath
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown artifact kind")
	}
	if path == nil || *path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "artifact not found")
	}

	reader, err := s.artifacts.Open(*path)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Reader:      reader,
		ContentType: contentTypeForPath(*path),
		Filename:    filepath.Base(*path),
	}, nil
}

func (s *service) findInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) logArtifactFailure(ctx context.Context, invoiceID uuid.UUID, kind string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"invoice_id": invoiceID.String(),
		"artifact":   kind,
	})
	s.logg.Error(logCtx, "invoices.artifact.write_failed", err)
}

func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".xml":
		return "application/xml"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
