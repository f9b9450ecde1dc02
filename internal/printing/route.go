package printing

import (
	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
)

// RouteKind names the two delivery paths a job can take.
type RouteKind string

const (
	RouteDirect RouteKind = "direct"
	RouteAgent  RouteKind = "agent"
)

// Route is derived from the printer row at dispatch time. AgentID is set only
// for agent-relayed printers.
type Route struct {
	Kind    RouteKind
	AgentID uuid.UUID
}

func routeFor(printer *models.Printer) Route {
	if printer.AgentID != nil && *printer.AgentID != uuid.Nil {
		return Route{Kind: RouteAgent, AgentID: *printer.AgentID}
	}
	return Route{Kind: RouteDirect}
}
