package printing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// AgentClient relays a job to a remote print agent.
type AgentClient interface {
	SendJob(ctx context.Context, agent *models.PrinterAgent, req AgentJobRequest) error
}

// AgentJobRequest is the wire body POSTed to an agent's /print-job endpoint.
type AgentJobRequest struct {
	JobID        uuid.UUID          `json:"job_id"`
	PrinterName  string             `json:"printer_name"`
	DocumentType enums.DocumentType `json:"document_type"`
	Document     []byte             `json:"document"`
	Copies       int                `json:"copies"`
	PaperSize    string             `json:"paper_size"`
}

type httpAgentClient struct {
	client *http.Client
}

// NewAgentClient builds the HTTP relay client. The timeout bounds the whole
// round trip; a hung agent must not hold the dispatch path open.
func NewAgentClient(cfg config.PrintingConfig) AgentClient {
	return &httpAgentClient{
		client: &http.Client{Timeout: cfg.AgentTimeout},
	}
}

func (c *httpAgentClient) SendJob(ctx context.Context, agent *models.PrinterAgent, req AgentJobRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode agent request: %w", err)
	}

	url := strings.TrimRight(agent.Endpoint, "/") + "/print-job"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+agent.Token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("reach agent %s: %w", agent.HostID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("agent %s rejected job: %s", agent.HostID, resp.Status)
	}
	return nil
}
