// Package notify sends budget alerts by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"budget/internal/budget"
	"budget/internal/currency"
	"budget/internal/log"
)

var ErrNotConfigured = errors.New("smtp not configured")

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// Alert describes a category that moved into a worse tier.
type Alert struct {
	Category string
	Year     int
	Month    int
	Previous budget.Tier
	Status   budget.Status
	Format   currency.Format
}

// Notifier is satisfied by *Mailer.
type Notifier interface {
	NotifyBudget(ctx context.Context, a Alert) error
}

type sendFunc func(addr string, auth smtp.Auth, e *email.Email) error

// Mailer delivers alerts over SMTP.
type Mailer struct {
	cfg    SMTPConfig
	logger *log.Logger
	send   sendFunc
}

func NewMailer(cfg SMTPConfig, logger *log.Logger) *Mailer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Mailer{
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentNotify),
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

// BuildAlert renders the alert as an email message.
func (m *Mailer) BuildAlert(a Alert) *email.Email {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = append([]string(nil), m.cfg.To...)

	period := time.Date(a.Year, time.Month(a.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	switch a.Status.Tier {
	case budget.OverBudget:
		e.Subject = fmt.Sprintf("Over budget: %s (%s)", a.Category, period)
	default:
		e.Subject = fmt.Sprintf("Budget warning: %s (%s)", a.Category, period)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Category %q is now %s for %s.\n\n", a.Category, a.Status.Tier, period)
	fmt.Fprintf(&b, "Budget:    %s\n", currency.FormatDecimal(a.Status.Budget, a.Format))
	fmt.Fprintf(&b, "Spent:     %s (%s%%)\n", currency.FormatDecimal(a.Status.Activity, a.Format), a.Status.PercentUsed.StringFixed(0))
	fmt.Fprintf(&b, "Remaining: %s\n", currency.FormatDecimal(a.Status.Remaining, a.Format))
	if a.Previous != "" {
		fmt.Fprintf(&b, "\nPrevious status: %s\n", a.Previous)
	}
	e.Text = []byte(b.String())
	return e
}

// NotifyBudget emails the alert. It returns ErrNotConfigured when SMTP is off.
func (m *Mailer) NotifyBudget(ctx context.Context, a Alert) error {
	if !m.cfg.Enabled() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := m.BuildAlert(a)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, e); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send budget alert", "category", a.Category, log.FieldError, err)
		return fmt.Errorf("send budget alert: %w", err)
	}

	m.logger.InfoContext(ctx, "Budget alert sent", "category", a.Category, "tier", a.Status.Tier, "recipients", len(e.To))
	return nil
}
