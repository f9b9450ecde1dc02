package printing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/anhpnguyen/edupay-backend/pkg/auth"
	"github.com/anhpnguyen/edupay-backend/pkg/config"
	pkgdb "github.com/anhpnguyen/edupay-backend/pkg/db"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
)

// RegisterAgentInput describes a relay process announcing itself.
type RegisterAgentInput struct {
	HostID   string
	HostName string
	Endpoint string
}

// RegisterPrinterInput describes a new print target.
type RegisterPrinterInput struct {
	Name     string
	Location string
	Address  string
	Kind     string
	AgentID  *uuid.UUID
}

// Registry manages the printer and agent inventory. Agent liveness is
// derived from last_seen_at against the staleness window; there is no
// heartbeat endpoint.
type Registry struct {
	repo     Repository
	jwtCfg   config.JWTConfig
	printCfg config.PrintingConfig
}

// NewRegistry wires the registry dependencies.
func NewRegistry(repo Repository, jwtCfg config.JWTConfig, printCfg config.PrintingConfig) (*Registry, error) {
	if repo == nil {
		return nil, fmt.Errorf("printing repository required")
	}
	return &Registry{repo: repo, jwtCfg: jwtCfg, printCfg: printCfg}, nil
}

// RegisterAgent stores a new agent and mints its bearer credential. The token
// is returned exactly once; only its persisted copy is used for relays.
func (r *Registry) RegisterAgent(ctx context.Context, input RegisterAgentInput) (*models.PrinterAgent, error) {
	hostID := strings.TrimSpace(input.HostID)
	if hostID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host id required")
	}
	if strings.TrimSpace(input.Endpoint) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "endpoint required")
	}

	agentID := uuid.New()
	token, err := pkgauth.MintAgentToken(r.jwtCfg, time.Now(), agentID, hostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint agent token")
	}

	agent := &models.PrinterAgent{
		ID:         agentID,
		HostID:     hostID,
		HostName:   strings.TrimSpace(input.HostName),
		Endpoint:   strings.TrimSpace(input.Endpoint),
		Token:      token,
		LastSeenAt: time.Now(),
		IsActive:   true,
	}

	created, err := r.repo.CreateAgent(ctx, agent)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "agent host id already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist agent")
	}
	return created, nil
}

// RegisterPrinter validates the agent binding before storing the printer.
func (r *Registry) RegisterPrinter(ctx context.Context, input RegisterPrinterInput) (*models.Printer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "printer name required")
	}

	if input.AgentID != nil && *input.AgentID != uuid.Nil {
		agent, err := r.repo.FindAgentByID(ctx, *input.AgentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent")
		}
		if !agent.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "agent is inactive")
		}
		if r.AgentStale(agent, time.Now()) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "agent has not been seen recently")
		}
	}

	kind := strings.TrimSpace(input.Kind)
	if kind == "" {
		kind = "network"
	}

	printer := &models.Printer{
		ID:       uuid.New(),
		Name:     name,
		Location: strings.TrimSpace(input.Location),
		Address:  strings.TrimSpace(input.Address),
		Kind:     kind,
		AgentID:  input.AgentID,
		IsActive: true,
	}

	created, err := r.repo.CreatePrinter(ctx, printer)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "printer name already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist printer")
	}
	return created, nil
}

// ListPrinters returns the inventory, optionally limited to active printers.
func (r *Registry) ListPrinters(ctx context.Context, activeOnly bool) ([]models.Printer, error) {
	printers, err := r.repo.ListPrinters(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list printers")
	}
	return printers, nil
}

// ListAgents returns all registered agents.
func (r *Registry) ListAgents(ctx context.Context) ([]models.PrinterAgent, error) {
	agents, err := r.repo.ListAgents(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agents")
	}
	return agents, nil
}

// AgentStale reports whether the agent has been silent past the window.
func (r *Registry) AgentStale(agent *models.PrinterAgent, now time.Time) bool {
	window := r.printCfg.StalenessWindow
	if window <= 0 {
		return false
	}
	return now.Sub(agent.LastSeenAt) > window
}
