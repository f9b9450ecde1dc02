package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/api/middleware"
	"github.com/anhpnguyen/edupay-backend/api/responses"
	"github.com/anhpnguyen/edupay-backend/api/validators"
	"github.com/anhpnguyen/edupay-backend/internal/printing"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
)

type registerAgentRequest struct {
	HostID   string `json:"host_id" validate:"required,min=1"`
	HostName string `json:"host_name"`
	Endpoint string `json:"endpoint" validate:"required,url"`
}

type registerPrinterRequest struct {
	Name     string  `json:"name" validate:"required,min=1"`
	Location string  `json:"location"`
	Address  string  `json:"address"`
	Kind     string  `json:"kind" validate:"omitempty,oneof=network thermal laser usb"`
	AgentID  *string `json:"agent_id" validate:"omitempty,uuid"`
}

type createPrintJobRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required,uuid"`
	PrinterID string `json:"printer_id" validate:"required,uuid"`
	Copies    int    `json:"copies" validate:"omitempty,min=1,max=20"`
	PaperSize string `json:"paper_size" validate:"omitempty,oneof=A4 A5"`
}

// agentView hides the bearer token from list responses; the token leaves the
// system exactly once, in the registration response.
type agentView struct {
	ID         uuid.UUID `json:"id"`
	HostID     string    `json:"host_id"`
	HostName   string    `json:"host_name"`
	Endpoint   string    `json:"endpoint"`
	LastSeenAt time.Time `json:"last_seen_at"`
	IsActive   bool      `json:"is_active"`
}

type registeredAgentView struct {
	agentView
	Token string `json:"token"`
}

func toAgentView(agent *models.PrinterAgent) agentView {
	return agentView{
		ID:         agent.ID,
		HostID:     agent.HostID,
		HostName:   agent.HostName,
		Endpoint:   agent.Endpoint,
		LastSeenAt: agent.LastSeenAt,
		IsActive:   agent.IsActive,
	}
}

// RegisterPrintAgent enrolls a relay process and returns its bearer token.
func RegisterPrintAgent(registry *printing.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "printing registry unavailable"))
			return
		}

		var payload registerAgentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		agent, err := registry.RegisterAgent(r.Context(), printing.RegisterAgentInput{
			HostID:   payload.HostID,
			HostName: payload.HostName,
			Endpoint: payload.Endpoint,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, registeredAgentView{
			agentView: toAgentView(agent),
			Token:     agent.Token,
		})
	}
}

// ListPrintAgents returns the agent inventory without bearer tokens.
func ListPrintAgents(registry *printing.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "printing registry unavailable"))
			return
		}

		agents, err := registry.ListAgents(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]agentView, 0, len(agents))
		for i := range agents {
			views = append(views, toAgentView(&agents[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

// RegisterPrinter stores a new print target.
func RegisterPrinter(registry *printing.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "printing registry unavailable"))
			return
		}

		var payload registerPrinterRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var agentID *uuid.UUID
		if payload.AgentID != nil && *payload.AgentID != "" {
			parsed, err := uuid.Parse(*payload.AgentID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid agent id"))
				return
			}
			agentID = &parsed
		}

		printer, err := registry.RegisterPrinter(r.Context(), printing.RegisterPrinterInput{
			Name:     payload.Name,
			Location: payload.Location,
			Address:  payload.Address,
			Kind:     payload.Kind,
			AgentID:  agentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, printer)
	}
}

// ListPrinters returns printers, restricted to active ones with ?active=true.
func ListPrinters(registry *printing.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "printing registry unavailable"))
			return
		}

		activeOnly := r.URL.Query().Get("active") == "true"
		printers, err := registry.ListPrinters(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, printers)
	}
}

// CreatePrintJob dispatches an invoice to a printer. The job row is returned
// whatever the first attempt did; a failed attempt is visible on job status.
func CreatePrintJob(dispatcher *printing.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print dispatcher unavailable"))
			return
		}

		var payload createPrintJobRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoiceID, err := uuid.Parse(payload.InvoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice id"))
			return
		}
		printerID, err := uuid.Parse(payload.PrinterID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid printer id"))
			return
		}

		job, err := dispatcher.CreateJob(r.Context(), printing.CreateJobInput{
			InvoiceID: invoiceID,
			PrinterID: printerID,
			Options: printing.JobOptions{
				Copies:    payload.Copies,
				PaperSize: payload.PaperSize,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, job)
	}
}

// ListPrintJobs returns jobs, optionally filtered with ?status=.
func ListPrintJobs(dispatcher *printing.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print dispatcher unavailable"))
			return
		}

		var status *enums.PrintJobStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParsePrintJobStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		jobs, err := dispatcher.ListJobs(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, jobs)
	}
}

// RetryPrintJob re-dispatches a failed job.
func RetryPrintJob(dispatcher *printing.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print dispatcher unavailable"))
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid job id"))
			return
		}

		job, err := dispatcher.Retry(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, job)
	}
}

// CompletePrintJob records an agent's confirmation that a sent job printed.
// The calling agent comes from the bearer token.
func CompletePrintJob(dispatcher *printing.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print dispatcher unavailable"))
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid job id"))
			return
		}

		agentID, err := uuid.Parse(middleware.AgentIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "agent context missing"))
			return
		}

		job, err := dispatcher.MarkCompleted(r.Context(), jobID, agentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, job)
	}
}
