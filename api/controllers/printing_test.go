package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/api/middleware"
	"github.com/anhpnguyen/edupay-backend/internal/printing"
	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
	"github.com/anhpnguyen/edupay-backend/pkg/metrics"
)

type stubPrintRepo struct {
	agents map[uuid.UUID]*models.PrinterAgent
	jobs   map[uuid.UUID]*models.PrintJob
}

func newStubPrintRepo() *stubPrintRepo {
	return &stubPrintRepo{
		agents: map[uuid.UUID]*models.PrinterAgent{},
		jobs:   map[uuid.UUID]*models.PrintJob{},
	}
}

func (r *stubPrintRepo) WithTx(*gorm.DB) printing.Repository { return r }

func (r *stubPrintRepo) CreatePrinter(_ context.Context, printer *models.Printer) (*models.Printer, error) {
	return printer, nil
}

func (r *stubPrintRepo) FindPrinterByID(context.Context, uuid.UUID) (*models.Printer, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubPrintRepo) ListPrinters(context.Context, bool) ([]models.Printer, error) {
	return nil, nil
}

func (r *stubPrintRepo) CreateAgent(_ context.Context, agent *models.PrinterAgent) (*models.PrinterAgent, error) {
	r.agents[agent.ID] = agent
	return agent, nil
}

func (r *stubPrintRepo) FindAgentByID(_ context.Context, id uuid.UUID) (*models.PrinterAgent, error) {
	if agent, ok := r.agents[id]; ok {
		return agent, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubPrintRepo) FindAgentByHostID(context.Context, string) (*models.PrinterAgent, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubPrintRepo) ListAgents(context.Context) ([]models.PrinterAgent, error) {
	out := make([]models.PrinterAgent, 0, len(r.agents))
	for _, agent := range r.agents {
		out = append(out, *agent)
	}
	return out, nil
}

func (r *stubPrintRepo) TouchAgentHeartbeat(context.Context, uuid.UUID, time.Time) error {
	return nil
}

func (r *stubPrintRepo) CreatePrintJob(_ context.Context, job *models.PrintJob) (*models.PrintJob, error) {
	r.jobs[job.ID] = job
	return job, nil
}

func (r *stubPrintRepo) FindPrintJobByID(_ context.Context, id uuid.UUID) (*models.PrintJob, error) {
	if job, ok := r.jobs[id]; ok {
		return job, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubPrintRepo) ListPrintJobs(context.Context, *enums.PrintJobStatus) ([]models.PrintJob, error) {
	return nil, nil
}

func (r *stubPrintRepo) UpdatePrintJob(context.Context, uuid.UUID, map[string]any) error {
	return nil
}

func (r *stubPrintRepo) ClaimFailedPrintJob(_ context.Context, id uuid.UUID) (bool, error) {
	job, ok := r.jobs[id]
	if !ok || job.Status != enums.PrintJobStatusFailed {
		return false, nil
	}
	job.Status = enums.PrintJobStatusPending
	job.LastError = nil
	return true, nil
}

func (r *stubPrintRepo) FindInvoiceByID(context.Context, uuid.UUID) (*models.Invoice, error) {
	return nil, gorm.ErrRecordNotFound
}

type noopSpooler struct{}

func (noopSpooler) Spool(context.Context, string, *printing.JobPayload) error { return nil }

type noopAgentClient struct{}

func (noopAgentClient) SendJob(context.Context, *models.PrinterAgent, printing.AgentJobRequest) error {
	return nil
}

type emptyArtifacts struct{}

func (emptyArtifacts) ReadAll(string) ([]byte, error) { return nil, gorm.ErrRecordNotFound }

func newPrintingFixture(t *testing.T) (*printing.Registry, *printing.Dispatcher, *stubPrintRepo) {
	t.Helper()

	repo := newStubPrintRepo()
	jwtCfg := config.JWTConfig{
		Secret:               "controllers-test-secret",
		Issuer:               "edupay-test",
		ExpirationMinutes:    15,
		AgentTokenTTLMinutes: 60,
	}
	printCfg := config.PrintingConfig{StalenessWindow: 5 * time.Minute}

	registry, err := printing.NewRegistry(repo, jwtCfg, printCfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	dispatcher, err := printing.NewDispatcher(repo, noopSpooler{}, noopAgentClient{}, emptyArtifacts{}, metrics.NewDispatchMetrics(nil), nil)
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}
	return registry, dispatcher, repo
}

func TestRegisterPrintAgentReturnsTokenOnce(t *testing.T) {
	registry, _, _ := newPrintingFixture(t)

	body := []byte(`{"host_id":"lab-01","host_name":"Lab PC","endpoint":"http://10.0.0.5:9100"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/printing/agents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	RegisterPrintAgent(registry, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"token"`) {
		t.Fatalf("registration response should carry the bearer token: %s", rec.Body.String())
	}

	listRec := httptest.NewRecorder()
	ListPrintAgents(registry, nil).ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/api/v1/printing/agents", nil))

	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", listRec.Code)
	}
	if strings.Contains(listRec.Body.String(), `"token"`) {
		t.Fatalf("agent listing must not expose bearer tokens: %s", listRec.Body.String())
	}
	if !strings.Contains(listRec.Body.String(), `"lab-01"`) {
		t.Fatalf("registered agent missing from listing: %s", listRec.Body.String())
	}
}

func TestCompletePrintJobRequiresAgentContext(t *testing.T) {
	_, dispatcher, repo := newPrintingFixture(t)

	jobID := uuid.New()
	repo.jobs[jobID] = &models.PrintJob{ID: jobID, Status: enums.PrintJobStatusSent}

	rec := httptest.NewRecorder()
	req := requestWithParam(http.MethodPost, "/api/v1/printing/jobs/"+jobID.String()+"/complete", "id", jobID.String())
	CompletePrintJob(dispatcher, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without agent context, got %d", rec.Code)
	}
}

func TestCompletePrintJobUnknownJob(t *testing.T) {
	_, dispatcher, _ := newPrintingFixture(t)

	jobID := uuid.NewString()
	req := requestWithParam(http.MethodPost, "/api/v1/printing/jobs/"+jobID+"/complete", "id", jobID)
	req = req.WithContext(middleware.WithAgentID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	CompletePrintJob(dispatcher, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestCreatePrintJobValidatesCopies(t *testing.T) {
	_, dispatcher, _ := newPrintingFixture(t)

	body := []byte(`{"invoice_id":"` + uuid.NewString() + `","printer_id":"` + uuid.NewString() + `","copies":50}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/printing/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	CreatePrintJob(dispatcher, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
}
