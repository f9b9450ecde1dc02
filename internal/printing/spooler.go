package printing

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/anhpnguyen/edupay-backend/internal/invoices"
	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
)

// Spooler hands a document to the local print system.
type Spooler interface {
	Spool(ctx context.Context, printerName string, payload *JobPayload) error
}

type lprSpooler struct {
	command   string
	rendering config.RenderingConfig
}

// NewLprSpooler spools through the system lpr command. HTML payloads are
// converted to PDF first; lpr would print raw markup otherwise, so a failed
// conversion fails the attempt.
func NewLprSpooler(printCfg config.PrintingConfig, renderCfg config.RenderingConfig) Spooler {
	return &lprSpooler{command: printCfg.SpoolCommand, rendering: renderCfg}
}

func (s *lprSpooler) Spool(ctx context.Context, printerName string, payload *JobPayload) error {
	document := payload.Document
	ext := ".pdf"

	if payload.DocumentType == enums.DocumentTypeHTML {
		converted, err := invoices.ConvertHTMLToPDF(ctx, s.rendering, document)
		if err != nil {
			return fmt.Errorf("convert html payload: %w", err)
		}
		document = converted
	}

	tmp, err := os.CreateTemp("", "printjob_*"+ext)
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(document); err != nil {
		tmp.Close()
		return fmt.Errorf("write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close spool file: %w", err)
	}

	args := []string{"-P", printerName}
	if payload.Copies > 1 {
		args = append(args, "-#", strconv.Itoa(payload.Copies))
	}
	args = append(args, tmp.Name())

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", s.command, err, detail)
		}
		return fmt.Errorf("%s: %w", s.command, err)
	}
	return nil
}
