package printing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

func setupPrintingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	agents := `
CREATE TABLE IF NOT EXISTS printer_agents (
  id TEXT PRIMARY KEY,
  host_id TEXT NOT NULL UNIQUE,
  host_name TEXT NOT NULL,
  endpoint TEXT NOT NULL,
  token TEXT NOT NULL,
  last_seen_at DATETIME NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	printers := `
CREATE TABLE IF NOT EXISTS printers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  location TEXT NOT NULL,
  address TEXT NOT NULL,
  kind TEXT NOT NULL DEFAULT 'network',
  agent_id TEXT,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	jobs := `
CREATE TABLE IF NOT EXISTS print_jobs (
  id TEXT PRIMARY KEY,
  printer_id TEXT NOT NULL,
  invoice_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  payload_type TEXT NOT NULL,
  copies INTEGER NOT NULL DEFAULT 1,
  paper_size TEXT NOT NULL DEFAULT 'A4',
  status TEXT NOT NULL DEFAULT 'pending',
  last_error TEXT,
  sent_at DATETIME,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	invoices := `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  number TEXT NOT NULL UNIQUE,
  provider_code TEXT NOT NULL,
  lookup_code TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_tax_code TEXT,
  customer_address TEXT,
  amount NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL,
  total_amount NUMERIC NOT NULL,
  pdf_path TEXT,
  xml_path TEXT,
  issued_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, ddl := range []string{agents, printers, jobs, invoices} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func TestPrinterAndAgentPersistence(t *testing.T) {
	db := setupPrintingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agent, err := repo.CreateAgent(ctx, &models.PrinterAgent{
		ID:         uuid.New(),
		HostID:     "LAB-PC-01",
		HostName:   "lab-pc-01",
		Endpoint:   "http://10.0.0.5:9100",
		Token:      "tok",
		LastSeenAt: time.Now(),
		IsActive:   true,
	})
	require.NoError(t, err)

	_, err = repo.CreateAgent(ctx, &models.PrinterAgent{
		ID:         uuid.New(),
		HostID:     "LAB-PC-01",
		HostName:   "other",
		Endpoint:   "http://x",
		Token:      "tok2",
		LastSeenAt: time.Now(),
	})
	require.Error(t, err, "duplicate host id must be rejected")

	byHost, err := repo.FindAgentByHostID(ctx, "LAB-PC-01")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, byHost.ID)

	seenAt := time.Now().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, repo.TouchAgentHeartbeat(ctx, agent.ID, seenAt))
	refreshed, err := repo.FindAgentByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, seenAt, refreshed.LastSeenAt, time.Second)

	_, err = repo.CreatePrinter(ctx, &models.Printer{
		ID:       uuid.New(),
		Name:     "z-printer",
		Location: "loc",
		Address:  "addr",
		Kind:     "network",
		IsActive: false,
	})
	require.NoError(t, err)
	_, err = repo.CreatePrinter(ctx, &models.Printer{
		ID:       uuid.New(),
		Name:     "a-printer",
		Location: "loc",
		Address:  "addr",
		Kind:     "usb",
		AgentID:  &agent.ID,
		IsActive: true,
	})
	require.NoError(t, err)

	all, err := repo.ListPrinters(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-printer", all[0].Name)

	active, err := repo.ListPrinters(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a-printer", active[0].Name)
}

func TestPrintJobPersistence(t *testing.T) {
	db := setupPrintingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	invoice := &models.Invoice{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		Number:       "C25TTA260829AA11BB",
		ProviderCode: "MOCKVN",
		LookupCode:   "TCT11223344",
		CustomerName: "Le Van C",
		Amount:       decimal.NewFromInt(300000),
		TaxAmount:    decimal.Zero,
		TotalAmount:  decimal.NewFromInt(300000),
		IssuedAt:     time.Now(),
	}
	require.NoError(t, db.Create(invoice).Error)

	loaded, err := repo.FindInvoiceByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.Number, loaded.Number)

	printerID := uuid.New()
	first := &models.PrintJob{
		ID:          uuid.New(),
		PrinterID:   printerID,
		InvoiceID:   invoice.ID,
		Payload:     []byte(`{"invoice_number":"x"}`),
		PayloadType: enums.DocumentTypePDF,
		Copies:      1,
		PaperSize:   "A4",
		Status:      enums.PrintJobStatusPending,
		CreatedAt:   time.Now().Add(-time.Minute),
	}
	_, err = repo.CreatePrintJob(ctx, first)
	require.NoError(t, err)

	second := &models.PrintJob{
		ID:          uuid.New(),
		PrinterID:   printerID,
		InvoiceID:   invoice.ID,
		Payload:     []byte(`{"invoice_number":"y"}`),
		PayloadType: enums.DocumentTypeHTML,
		Copies:      2,
		PaperSize:   "A4",
		Status:      enums.PrintJobStatusFailed,
		CreatedAt:   time.Now(),
	}
	_, err = repo.CreatePrintJob(ctx, second)
	require.NoError(t, err)

	msg := "lpr: offline"
	require.NoError(t, repo.UpdatePrintJob(ctx, first.ID, map[string]any{
		"status":     enums.PrintJobStatusFailed,
		"last_error": &msg,
	}))
	updated, err := repo.FindPrintJobByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PrintJobStatusFailed, updated.Status)
	require.NotNil(t, updated.LastError)
	assert.Equal(t, msg, *updated.LastError)

	all, err := repo.ListPrintJobs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest job first")

	failed := enums.PrintJobStatusFailed
	onlyFailed, err := repo.ListPrintJobs(ctx, &failed)
	require.NoError(t, err)
	assert.Len(t, onlyFailed, 2)

	require.NoError(t, repo.UpdatePrintJob(ctx, first.ID, map[string]any{
		"status":     enums.PrintJobStatusPending,
		"last_error": nil,
	}))
	cleared, err := repo.FindPrintJobByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.LastError)
}

func TestClaimFailedPrintJob(t *testing.T) {
	db := setupPrintingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	msg := "agent unreachable"
	job := &models.PrintJob{
		ID:          uuid.New(),
		PrinterID:   uuid.New(),
		InvoiceID:   uuid.New(),
		Payload:     []byte(`{"invoice_number":"z"}`),
		PayloadType: enums.DocumentTypePDF,
		Copies:      1,
		PaperSize:   "A4",
		Status:      enums.PrintJobStatusFailed,
		LastError:   &msg,
	}
	_, err := repo.CreatePrintJob(ctx, job)
	require.NoError(t, err)

	claimed, err := repo.ClaimFailedPrintJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	reset, err := repo.FindPrintJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PrintJobStatusPending, reset.Status)
	assert.Nil(t, reset.LastError)

	// No longer failed, so a second claim matches nothing.
	again, err := repo.ClaimFailedPrintJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, again)
}
