package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
	"github.com/anhpnguyen/edupay-backend/pkg/metrics"
)

// CreateJobInput describes a staff print request.
type CreateJobInput struct {
	InvoiceID uuid.UUID
	PrinterID uuid.UUID
	Options   JobOptions
}

// Dispatcher creates print jobs and drives delivery attempts. Attempts run
// outside any transaction; their outcome is recorded on the job row and a
// failed attempt never fails the creating call.
type Dispatcher struct {
	repo      Repository
	spooler   Spooler
	agents    AgentClient
	artifacts artifactReader
	metrics   *metrics.DispatchMetrics
	logg      *logger.Logger
}

// NewDispatcher wires the dispatch dependencies. Metrics and logger are
// optional.
func NewDispatcher(
	repo Repository,
	spooler Spooler,
	agents AgentClient,
	artifacts artifactReader,
	m *metrics.DispatchMetrics,
	logg *logger.Logger,
) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("printing repository required")
	}
	if spooler == nil {
		return nil, fmt.Errorf("spooler required")
	}
	if agents == nil {
		return nil, fmt.Errorf("agent client required")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact reader required")
	}
	return &Dispatcher{
		repo:      repo,
		spooler:   spooler,
		agents:    agents,
		artifacts: artifacts,
		metrics:   m,
		logg:      logg,
	}, nil
}

// CreateJob resolves the invoice and printer, persists a pending job and runs
// the first delivery attempt. The job is returned whatever the attempt did.
func (d *Dispatcher) CreateJob(ctx context.Context, input CreateJobInput) (*models.PrintJob, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	if input.PrinterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "printer id required")
	}

	invoice, err := d.repo.FindInvoiceByID(ctx, input.InvoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}

	printer, err := d.resolvePrinter(ctx, input.PrinterID)
	if err != nil {
		return nil, err
	}

	payload, err := buildPayload(invoice, d.artifacts, input.Options)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build payload")
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payload")
	}

	job := &models.PrintJob{
		ID:          uuid.New(),
		PrinterID:   printer.ID,
		InvoiceID:   invoice.ID,
		Payload:     raw,
		PayloadType: payload.DocumentType,
		Copies:      payload.Copies,
		PaperSize:   payload.PaperSize,
		Status:      enums.PrintJobStatusPending,
	}
	if _, err := d.repo.CreatePrintJob(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist job")
	}

	d.attempt(ctx, job, printer, payload)
	return job, nil
}

// Retry re-dispatches a failed job. The printer binding is re-resolved
// because it may have changed since the original attempt.
func (d *Dispatcher) Retry(ctx context.Context, jobID uuid.UUID) (*models.PrintJob, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}

	job, err := d.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != enums.PrintJobStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "job is not in a failed state")
	}

	printer, err := d.resolvePrinter(ctx, job.PrinterID)
	if err != nil {
		return nil, err
	}

	payload, err := decodePayload(job.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode payload")
	}

	// The claim is conditional on the failed status so two concurrent
	// retries cannot both dispatch.
	claimed, err := d.repo.ClaimFailedPrintJob(ctx, job.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset job")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "job is not in a failed state")
	}
	job.Status = enums.PrintJobStatusPending
	job.LastError = nil

	d.attempt(ctx, job, printer, payload)
	return job, nil
}

// MarkCompleted records an agent's confirmation that the document printed.
func (d *Dispatcher) MarkCompleted(ctx context.Context, jobID, agentID uuid.UUID) (*models.PrintJob, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}

	job, err := d.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != enums.PrintJobStatusSent {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "job has not been sent")
	}

	if agentID != uuid.Nil {
		printer, err := d.repo.FindPrinterByID(ctx, job.PrinterID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load printer")
		}
		if printer.AgentID == nil || *printer.AgentID != agentID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "job does not belong to agent")
		}
	}

	now := time.Now()
	if err := d.repo.UpdatePrintJob(ctx, job.ID, map[string]any{
		"status":       enums.PrintJobStatusCompleted,
		"completed_at": &now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update job")
	}
	job.Status = enums.PrintJobStatusCompleted
	job.CompletedAt = &now
	return job, nil
}

// ListJobs returns jobs, optionally filtered by status.
func (d *Dispatcher) ListJobs(ctx context.Context, status *enums.PrintJobStatus) ([]models.PrintJob, error) {
	jobs, err := d.repo.ListPrintJobs(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list jobs")
	}
	return jobs, nil
}

func (d *Dispatcher) resolvePrinter(ctx context.Context, printerID uuid.UUID) (*models.Printer, error) {
	printer, err := d.repo.FindPrinterByID(ctx, printerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "printer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load printer")
	}
	if !printer.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "printer is inactive")
	}
	return printer, nil
}

func (d *Dispatcher) findJob(ctx context.Context, jobID uuid.UUID) (*models.PrintJob, error) {
	job, err := d.repo.FindPrintJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	return job, nil
}

// attempt performs one delivery and records the outcome on the job row.
func (d *Dispatcher) attempt(ctx context.Context, job *models.PrintJob, printer *models.Printer, payload *JobPayload) {
	route := routeFor(printer)
	start := time.Now()

	err := d.deliver(ctx, route, printer, job, payload)

	duration := time.Since(start)
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	if d.metrics != nil {
		d.metrics.IncDispatch(string(route.Kind), outcome)
		d.metrics.ObserveDispatchDuration(string(route.Kind), duration)
	}

	now := time.Now()
	updates := map[string]any{}
	if err != nil {
		msg := err.Error()
		job.Status = enums.PrintJobStatusFailed
		job.LastError = &msg
		updates["status"] = enums.PrintJobStatusFailed
		updates["last_error"] = &msg
		if d.logg != nil {
			logCtx := d.logg.WithFields(ctx, map[string]any{
				"job_id": job.ID.String(),
				"route":  string(route.Kind),
			})
			d.logg.Error(logCtx, "printing.dispatch.failed", err)
		}
	} else {
		job.Status = enums.PrintJobStatusSent
		job.SentAt = &now
		updates["status"] = enums.PrintJobStatusSent
		updates["sent_at"] = &now
	}

	if updateErr := d.repo.UpdatePrintJob(ctx, job.ID, updates); updateErr != nil && d.logg != nil {
		d.logg.Error(ctx, "printing.dispatch.record_outcome", updateErr)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, route Route, printer *models.Printer, job *models.PrintJob, payload *JobPayload) error {
	switch route.Kind {
	case RouteAgent:
		agent, err := d.repo.FindAgentByID(ctx, route.AgentID)
		if err != nil {
			return fmt.Errorf("load agent: %w", err)
		}
		if !agent.IsActive {
			return fmt.Errorf("agent %s is inactive", agent.HostID)
		}

		req := AgentJobRequest{
			JobID:        job.ID,
			PrinterName:  printer.Name,
			DocumentType: payload.DocumentType,
			Document:     payload.Document,
			Copies:       payload.Copies,
			PaperSize:    payload.PaperSize,
		}
		if err := d.agents.SendJob(ctx, agent, req); err != nil {
			return err
		}

		// Reaching the agent is the only liveness signal we keep.
		if err := d.repo.TouchAgentHeartbeat(ctx, agent.ID, time.Now()); err != nil && d.logg != nil {
			d.logg.Error(ctx, "printing.agent.heartbeat", err)
		}
		return nil
	default:
		return d.spooler.Spool(ctx, printer.Name, payload)
	}
}
