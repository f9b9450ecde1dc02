package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"

	"github.com/google/uuid"

	"github.com/anhpnguyen/edupay-backend/pkg/db/models"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
)

type studentReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

// Service sends best-effort notifications to parents. Every send runs in its
// own goroutine; failures are logged and never propagated to the caller, so a
// committed financial transition can never be rolled back by a mail outage.
type Service struct {
	mailer   Mailer
	students studentReader
	logg     *logger.Logger

	wg sync.WaitGroup
}

// NewService wires the notification dependencies.
func NewService(mailer Mailer, students studentReader, logg *logger.Logger) (*Service, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if students == nil {
		return nil, fmt.Errorf("student reader required")
	}
	return &Service{mailer: mailer, students: students, logg: logg}, nil
}

// PaymentConfirmation notifies the payer that a payment settled.
func (s *Service) PaymentConfirmation(ctx context.Context, payment *models.Payment, order *models.Order) {
	if payment == nil || order == nil {
		return
	}
	subject := fmt.Sprintf("Xac nhan thanh toan %s", order.Code)
	s.dispatch(ctx, order.StudentID, subject, paymentConfirmationTmpl, map[string]any{
		"OrderCode":   order.Code,
		"Description": order.Description,
		"Amount":      payment.Amount.StringFixed(0),
		"PaymentCode": payment.Code,
	})
}

// InvoiceIssued notifies the payer that the e-invoice for an order exists.
func (s *Service) InvoiceIssued(ctx context.Context, invoice *models.Invoice, order *models.Order) {
	if invoice == nil || order == nil {
		return
	}
	subject := fmt.Sprintf("Hoa don dien tu %s", invoice.Number)
	s.dispatch(ctx, order.StudentID, subject, invoiceIssuedTmpl, map[string]any{
		"OrderCode":     order.Code,
		"InvoiceNumber": invoice.Number,
		"LookupCode":    invoice.LookupCode,
		"Total":         invoice.TotalAmount.StringFixed(0),
	})
}

// Wait blocks until in-flight sends finish. Intended for shutdown and tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) dispatch(ctx context.Context, studentID uuid.UUID, subject string, tmpl *template.Template, data map[string]any) {
	sendCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		student, err := s.students.FindByID(sendCtx, studentID)
		if err != nil {
			s.logFailure(sendCtx, subject, err)
			return
		}
		if student.ParentEmail == nil || *student.ParentEmail == "" {
			if s.logg != nil {
				s.logg.Info(s.logg.WithFields(sendCtx, map[string]any{
					"student_code": student.Code,
					"subject":      subject,
				}), "notify.no_recipient")
			}
			return
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			s.logFailure(sendCtx, subject, err)
			return
		}

		if err := s.mailer.Send(sendCtx, *student.ParentEmail, subject, buf.String()); err != nil {
			s.logFailure(sendCtx, subject, err)
			return
		}

		if s.logg != nil {
			s.logg.Info(s.logg.WithFields(sendCtx, map[string]any{
				"subject": subject,
			}), "notify.sent")
		}
	}()
}

func (s *Service) logFailure(ctx context.Context, subject string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"subject": subject})
	s.logg.Error(logCtx, "notify.send_failed", err)
}

var paymentConfirmationTmpl = template.Must(template.New("payment_confirmation").Parse(`
<p>Nha truong da nhan duoc thanh toan cho khoan thu <strong>{{.Description}}</strong>.</p>
<ul>
  <li>Ma khoan thu: {{.OrderCode}}</li>
  <li>Ma giao dich: {{.PaymentCode}}</li>
  <li>So tien: {{.Amount}} VND</li>
</ul>
`))

var invoiceIssuedTmpl = template.Must(template.New("invoice_issued").Parse(`
<p>Hoa don dien tu cho khoan thu <strong>{{.OrderCode}}</strong> da duoc phat hanh.</p>
<ul>
  <li>So hoa don: {{.InvoiceNumber}}</li>
  <li>Ma tra cuu: {{.LookupCode}}</li>
  <li>Tong tien: {{.Total}} VND</li>
</ul>
`))
