package enums

import "fmt"

// PrintJobStatus tracks one dispatch attempt. Only Failed jobs may be
// retried; Sent means the payload was handed off to the printer or agent.
type PrintJobStatus string

const (
	PrintJobStatusPending   PrintJobStatus = "pending"
	PrintJobStatusSent      PrintJobStatus = "sent"
	PrintJobStatusCompleted PrintJobStatus = "completed"
	PrintJobStatusFailed    PrintJobStatus = "failed"
)

var validPrintJobStatuses = []PrintJobStatus{
	PrintJobStatusPending,
	PrintJobStatusSent,
	PrintJobStatusCompleted,
	PrintJobStatusFailed,
}

// String implements fmt.Stringer.
func (p PrintJobStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PrintJobStatus.
func (p PrintJobStatus) IsValid() bool {
	for _, candidate := range validPrintJobStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePrintJobStatus converts raw input into a PrintJobStatus.
func ParsePrintJobStatus(value string) (PrintJobStatus, error) {
	for _, candidate := range validPrintJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid print job status %q", value)
}
