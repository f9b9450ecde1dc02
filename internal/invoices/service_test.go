package invoices

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
)

type stubInvoicesRepo struct {
	invoices map[uuid.UUID]*models.Invoice
	orders   map[uuid.UUID]*models.Order

	createInvoice      func(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
	findOrderForUpdate func(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func newStubInvoicesRepo() *stubInvoicesRepo {
	return &stubInvoicesRepo{
		invoices: make(map[uuid.UUID]*models.Invoice),
		orders:   make(map[uuid.UUID]*models.Order),
	}
}

func (s *stubInvoicesRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubInvoicesRepo) CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	if s.createInvoice != nil {
		return s.createInvoice(ctx, invoice)
	}
	for _, existing := range s.invoices {
		if existing.OrderID == invoice.OrderID {
			return nil, errors.New(`duplicate key value violates unique constraint "idx_invoices_order_id"`)
		}
	}
	s.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (s *stubInvoicesRepo) FindInvoiceByID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	if invoice, ok := s.invoices[id]; ok {
		return invoice, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInvoicesRepo) FindInvoiceByOrderID(_ context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	for _, invoice := range s.invoices {
		if invoice.OrderID == orderID {
			return invoice, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInvoicesRepo) FindInvoiceByCode(_ context.Context, code string) (*models.Invoice, error) {
	for _, invoice := range s.invoices {
		if invoice.Number == code || invoice.LookupCode == code {
			return invoice, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInvoicesRepo) UpdateArtifactPaths(_ context.Context, id uuid.UUID, updates map[string]any) error {
	invoice, ok := s.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if path, ok := updates["pdf_path"].(string); ok {
		invoice.PDFPath = &path
	}
	if path, ok := updates["xml_path"].(string); ok {
		invoice.XMLPath = &path
	}
	return nil
}

func (s *stubInvoicesRepo) FindOrderByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if order, ok := s.orders[id]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInvoicesRepo) FindOrderByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.findOrderForUpdate != nil {
		return s.findOrderForUpdate(ctx, id)
	}
	return s.FindOrderByID(ctx, id)
}

func (s *stubInvoicesRepo) UpdateOrderStatus(_ context.Context, id uuid.UUID, status enums.OrderStatus) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = status
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubStudents struct {
	students map[uuid.UUID]*models.Student
}

func (s *stubStudents) FindByID(_ context.Context, id uuid.UUID) (*models.Student, error) {
	if student, ok := s.students[id]; ok {
		return student, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubProvider struct {
	err   error
	calls int
}

func (s *stubProvider) Submit(_ context.Context, doc Document) (*Issued, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Issued{
		InvoiceNumber: "C25TTA260829ABC123",
		ProviderCode:  "C25TTA",
		LookupCode:    "TCT11223344",
		SignedXML:     []byte(`<?xml version="1.0"?><Invoice><Buyer>` + doc.BuyerName + `</Buyer></Invoice>`),
	}, nil
}

type stubRenderer struct {
	err error
}

func (s *stubRenderer) RenderPDF(context.Context, TemplateData) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7 rendered"), nil
}

type countingNotifier struct {
	issued int
}

func (c *countingNotifier) InvoiceIssued(context.Context, *models.Invoice, *models.Order) {
	c.issued++
}

type invoiceFixture struct {
	repo     *stubInvoicesRepo
	provider *stubProvider
	renderer *stubRenderer
	notify   *countingNotifier
	svc      Service
	order    *models.Order
	student  *models.Student
}

func newInvoiceFixture(t *testing.T, orderStatus enums.OrderStatus) *invoiceFixture {
	t.Helper()

	repo := newStubInvoicesRepo()
	parentName := "Tran Thi Binh"
	student := &models.Student{
		ID:         uuid.New(),
		Code:       "HS2026001",
		FullName:   "Nguyen Van An",
		ClassName:  "3A",
		ParentName: &parentName,
	}
	order := &models.Order{
		ID:          uuid.New(),
		Code:        "ORD-2026-0001",
		Description: "Hoc phi thang 9",
		Amount:      decimal.NewFromInt(500000),
		Status:      orderStatus,
		StudentID:   student.ID,
	}
	repo.orders[order.ID] = order

	provider := &stubProvider{}
	renderer := &stubRenderer{}
	notify := &countingNotifier{}
	store := NewArtifactStore(config.ArtifactsConfig{Dir: t.TempDir()})

	svc, err := NewService(
		repo,
		stubTxRunner{},
		provider,
		renderer,
		store,
		&stubStudents{students: map[uuid.UUID]*models.Student{student.ID: student}},
		notify,
		config.EInvoiceConfig{Serial: "C25TTA", SellerName: "Truong Tieu Hoc", SellerTaxCode: "0312345678"},
		nil,
	)
	require.NoError(t, err)

	return &invoiceFixture{
		repo:     repo,
		provider: provider,
		renderer: renderer,
		notify:   notify,
		svc:      svc,
		order:    order,
		student:  student,
	}
}

func assertInvoiceErrorCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, code, typed.Code())
}

func TestIssueSuccess(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	invoice, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)

	assert.Equal(t, "C25TTA260829ABC123", invoice.Number)
	assert.Equal(t, "TCT11223344", invoice.LookupCode)
	assert.Equal(t, "Tran Thi Binh", invoice.CustomerName)
	assert.True(t, invoice.TotalAmount.Equal(f.order.Amount))
	assert.True(t, invoice.TaxAmount.IsZero())
	assert.Equal(t, enums.OrderStatusInvoiced, f.repo.orders[f.order.ID].Status)
	assert.Equal(t, 1, f.notify.issued)

	require.NotNil(t, invoice.PDFPath)
	pdf, err := os.ReadFile(*invoice.PDFPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))

	require.NotNil(t, invoice.XMLPath)
	xmlData, err := os.ReadFile(*invoice.XMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(xmlData), "Tran Thi Binh")
}

func TestIssueOrderNotPaid(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPending)

	_, err := f.svc.Issue(context.Background(), f.order.ID)
	assertInvoiceErrorCode(t, err, pkgerrors.CodeStateConflict)
	assert.Zero(t, f.provider.calls)
}

func TestIssueTwiceConflicts(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	_, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)

	_, err = f.svc.Issue(context.Background(), f.order.ID)
	assertInvoiceErrorCode(t, err, pkgerrors.CodeConflict)
}

func TestIssueUniqueViolationRace(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	// Simulate a concurrent Issue that wins between the precheck and the
	// insert: the precheck sees nothing, the insert hits the unique index.
	f.repo.createInvoice = func(_ context.Context, _ *models.Invoice) (*models.Invoice, error) {
		return nil, errors.New(`duplicate key value violates unique constraint "idx_invoices_order_id"`)
	}

	_, err := f.svc.Issue(context.Background(), f.order.ID)
	assertInvoiceErrorCode(t, err, pkgerrors.CodeConflict)
}

func TestIssueRefundedBetweenCheckAndCommit(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	// A manual refund commits after the pre-check: the locked re-read inside
	// the transaction sees the order back in pending and issuance must stop.
	f.repo.findOrderForUpdate = func(_ context.Context, id uuid.UUID) (*models.Order, error) {
		order := *f.repo.orders[id]
		order.Status = enums.OrderStatusPending
		return &order, nil
	}

	_, err := f.svc.Issue(context.Background(), f.order.ID)
	assertInvoiceErrorCode(t, err, pkgerrors.CodeStateConflict)
	assert.Empty(t, f.repo.invoices)
	assert.Equal(t, enums.OrderStatusPaid, f.repo.orders[f.order.ID].Status)
	assert.Zero(t, f.notify.issued)
}

func TestIssueProviderDownWritesNothing(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)
	f.provider.err = errors.New("connection refused")

	_, err := f.svc.Issue(context.Background(), f.order.ID)
	assertInvoiceErrorCode(t, err, pkgerrors.CodeDependency)
	assert.Empty(t, f.repo.invoices)
	assert.Equal(t, enums.OrderStatusPaid, f.repo.orders[f.order.ID].Status)
}

func TestIssueRendererDownFallsBackToHTML(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)
	f.renderer.err = errors.New("weasyprint not installed")

	invoice, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)

	require.NotNil(t, invoice.PDFPath)
	assert.True(t, strings.HasSuffix(*invoice.PDFPath, ".html"))

	html, err := os.ReadFile(*invoice.PDFPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), invoice.Number)
}

func TestIssueOrderNotFound(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	_, err := f.svc.Issue(context.Background(), uuid.New())
	assertInvoiceErrorCode(t, err, pkgerrors.CodeNotFound)
}

func TestRerenderRegeneratesPDFOnly(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	invoice, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)
	originalXML := *invoice.XMLPath

	require.NoError(t, os.Remove(*invoice.PDFPath))

	rerendered, err := f.svc.Rerender(context.Background(), invoice.ID)
	require.NoError(t, err)

	require.NotNil(t, rerendered.PDFPath)
	_, err = os.Stat(*rerendered.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, originalXML, *rerendered.XMLPath)
}

func TestRerenderUnknownInvoice(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	_, err := f.svc.Rerender(context.Background(), uuid.New())
	assertInvoiceErrorCode(t, err, pkgerrors.CodeNotFound)
}

func TestResendTriggersNotificationOnly(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	invoice, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.notify.issued)

	require.NoError(t, f.svc.Resend(context.Background(), invoice.ID))
	assert.Equal(t, 2, f.notify.issued)
	assert.Equal(t, 1, f.provider.calls)
}

func TestLookupByNumberAndCode(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	invoice, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)

	byNumber, err := f.svc.Lookup(context.Background(), invoice.Number)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, byNumber.ID)

	byCode, err := f.svc.Lookup(context.Background(), invoice.LookupCode)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, byCode.ID)

	_, err = f.svc.Lookup(context.Background(), "C25TTA000000XXXXXX")
	assertInvoiceErrorCode(t, err, pkgerrors.CodeNotFound)
}

func TestOpenArtifact(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	invoice, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)

	artifact, err := f.svc.OpenArtifact(context.Background(), invoice.ID, "pdf")
	require.NoError(t, err)
	require.NoError(t, artifact.Reader.Close())
	assert.Equal(t, "application/pdf", artifact.ContentType)

	xmlArtifact, err := f.svc.OpenArtifact(context.Background(), invoice.ID, "xml")
	require.NoError(t, err)
	require.NoError(t, xmlArtifact.Reader.Close())
	assert.Equal(t, "application/xml", xmlArtifact.ContentType)

	_, err = f.svc.OpenArtifact(context.Background(), invoice.ID, "docx")
	assertInvoiceErrorCode(t, err, pkgerrors.CodeValidation)
}

func TestOpenArtifactMissingFile(t *testing.T) {
	f := newInvoiceFixture(t, enums.OrderStatusPaid)

	invoice, err := f.svc.Issue(context.Background(), f.order.ID)
	require.NoError(t, err)

	require.NoError(t, os.Remove(*invoice.PDFPath))

	_, err = f.svc.OpenArtifact(context.Background(), invoice.ID, "pdf")
	assertInvoiceErrorCode(t, err, pkgerrors.CodeNotFound)
}
