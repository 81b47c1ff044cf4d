// Package notification delivers patient-facing billing notices (statement
// reminders, escalation notices, payment plan events) over email or SMS.
// Dispatch on a state transition is fire-and-forget: a delivery failure is
// logged and recorded, never propagated to the caller.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Channel is the delivery channel for a notice.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notice is a single outbound notification.
type Notice struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// EmailSender sends email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogEmailSender writes email notices to the log instead of a mail gateway.
// It is the default sender when no SMTP integration is configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Msg("email notice")
	return nil
}

// LogSMSSender writes SMS notices to the log instead of an SMS gateway.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, _ string) error {
	s.Logger.Info().Str("to", to).Msg("sms notice")
	return nil
}

// Template is a reusable notice template with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine stores templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in billing
// templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

// Template IDs for collections lifecycle notices.
const (
	TemplateStatementReminder    = "statement-reminder"
	TemplateEscalationNotice     = "escalation-notice"
	TemplateFinalNotice          = "final-notice"
	TemplateAccountUnderReview   = "account-under-review"
	TemplatePlanActivated        = "payment-plan-activated"
	TemplateInstallmentReceived  = "installment-received"
	TemplatePlanDefaulted        = "payment-plan-defaulted"
)

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateStatementReminder,
			Name:    "Statement Reminder",
			Subject: "Reminder: balance of {{balance}} on your transport statement",
			Body:    "Dear {{patient_name}}, your statement {{statement_id}} has an outstanding balance of {{balance}}. Please contact our billing office with any questions.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateEscalationNotice,
			Name:    "Escalation Notice",
			Subject: "Your transport statement is {{days_past_due}} days past due",
			Body:    "Dear {{patient_name}}, statement {{statement_id}} with balance {{balance}} is now {{days_past_due}} days past due. Payment plan options are available; call us to arrange one.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateFinalNotice,
			Name:    "Final Notice",
			Subject: "Final notice for statement {{statement_id}}",
			Body:    "Dear {{patient_name}}, statement {{statement_id}} with balance {{balance}} is seriously past due. We handle all balances internally and will never refer your account to an outside collection agency. Please contact us to resolve the balance or set up a payment plan.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateAccountUnderReview,
			Name:    "Account Under Review",
			Subject: "Your account is under review",
			Body:    "Dear {{patient_name}}, your account for statement {{statement_id}} is being reviewed by our office. No action is required from you at this time.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplatePlanActivated,
			Name:    "Payment Plan Activated",
			Subject: "Your payment plan is active",
			Body:    "Dear {{patient_name}}, your {{tier}} payment plan is active: {{installments}} installments of {{installment_amount}}. Thank you.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateInstallmentReceived,
			Name:    "Installment Received",
			Subject: "Payment received",
			Body:    "Dear {{patient_name}}, we received your installment of {{amount}}. Remaining balance: {{remaining}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplatePlanDefaulted,
			Name:    "Payment Plan Defaulted",
			Subject: "Your payment plan has lapsed",
			Body:    "Dear {{patient_name}}, your payment plan for statement {{statement_id}} has lapsed. The remaining balance of {{balance}} has returned to our standard follow-up schedule. Please contact us.",
			Channel: ChannelEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template and performs {{key}} replacement. Keys present
// in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

func (e *TemplateEngine) channelOf(templateID string) Channel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Channel
	}
	return ChannelEmail
}

// Dispatcher sends notices and keeps an in-memory record of outcomes.
type Dispatcher struct {
	emailSender EmailSender
	smsSender   SMSSender
	templates   *TemplateEngine
	logger      zerolog.Logger

	mu      sync.RWMutex
	notices map[string]*Notice
}

func NewDispatcher(email EmailSender, sms SMSSender, tpl *TemplateEngine, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		emailSender: email,
		smsSender:   sms,
		templates:   tpl,
		logger:      logger,
		notices:     make(map[string]*Notice),
	}
}

// Send delivers a notice synchronously and records the result.
func (d *Dispatcher) Send(ctx context.Context, n *Notice) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = "pending"

	var sendErr error
	switch n.Channel {
	case ChannelEmail:
		sendErr = d.emailSender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		sendErr = d.smsSender.SendSMS(ctx, n.Recipient, n.Body)
	default:
		sendErr = fmt.Errorf("unsupported channel: %s", n.Channel)
	}

	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	d.mu.Lock()
	d.notices[n.ID] = n
	d.mu.Unlock()

	return sendErr
}

// SendTemplate renders a template and delivers the result. A delivery error
// is logged and returned with the (failed) notice still recorded.
func (d *Dispatcher) SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*Notice, error) {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notice{
		Channel:    d.templates.channelOf(templateID),
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}

	if err := d.Send(ctx, n); err != nil {
		d.logger.Error().Err(err).
			Str("template", templateID).
			Str("recipient", recipient).
			Msg("notice delivery failed")
		return n, err
	}
	return n, nil
}

// Dispatch is the fire-and-forget entry point used on state transitions:
// failures are swallowed after logging so the transition is never blocked.
func (d *Dispatcher) Dispatch(ctx context.Context, templateID, recipient string, data map[string]string) {
	if recipient == "" {
		return
	}
	_, _ = d.SendTemplate(ctx, templateID, recipient, data)
}

// Get retrieves a notice by ID.
func (d *Dispatcher) Get(id string) (*Notice, error) {
	d.mu.RLock()
	n, ok := d.notices[id]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notice %q not found", id)
	}
	return n, nil
}

// Retry re-sends a failed notice.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	d.mu.RLock()
	n, ok := d.notices[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notice %q not found", id)
	}
	if n.Status != "failed" {
		return fmt.Errorf("notice %q is not in failed status (current: %s)", id, n.Status)
	}

	var sendErr error
	switch n.Channel {
	case ChannelEmail:
		sendErr = d.emailSender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		sendErr = d.smsSender.SendSMS(ctx, n.Recipient, n.Body)
	default:
		sendErr = fmt.Errorf("unsupported channel: %s", n.Channel)
	}

	d.mu.Lock()
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	d.mu.Unlock()

	return sendErr
}

// Stats returns notice counts grouped by status.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range d.notices {
		stats[n.Status]++
	}
	return stats
}

// -- Mock senders (test doubles) --

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
