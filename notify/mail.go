// Package notify delivers terminal run notifications. Dispatch failure is
// never fatal: the engine logs it and the run keeps its outcome.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/config"
	"github.com/conveyor-ci/conveyor/pipeline"
	"gopkg.in/gomail.v2"
)

// sender abstracts gomail delivery for tests.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailDispatcher sends one summary email per run over SMTP.
type MailDispatcher struct {
	cfg    config.SMTPSettings
	send   sender
	logger *slog.Logger
}

// NewMailDispatcher creates a MailDispatcher from SMTP settings.
func NewMailDispatcher(cfg config.SMTPSettings, logger *slog.Logger) (*MailDispatcher, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("mail dispatcher: smtp host and from address are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MailDispatcher{
		cfg:    cfg,
		send:   gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		logger: logger,
	}, nil
}

// Dispatch composes and sends the run summary. The returned error wraps the
// transport failure; callers treat it as non-fatal.
func (d *MailDispatcher) Dispatch(ctx context.Context, n pipeline.Notification) error {
	if len(n.Recipients) == 0 {
		d.logger.Warn("no notification recipients configured", "run", n.RunID)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.From)
	m.SetHeader("To", n.Recipients...)
	m.SetHeader("Subject", Subject(n))
	m.SetBody("text/plain", Body(n))

	for _, name := range sortedNames(n.Attachments) {
		m.Attach(n.Attachments[name])
	}

	if err := d.send.DialAndSend(m); err != nil {
		return &pipeline.NotificationDeliveryError{Recipients: n.Recipients, Err: err}
	}

	d.logger.Info("notification sent", "run", n.RunID, "recipients", len(n.Recipients))
	return nil
}

// Subject builds the one-line summary header.
func Subject(n pipeline.Notification) string {
	return fmt.Sprintf("[conveyor] %s #%s: %s", n.Pipeline, shortID(n.RunID), strings.ToUpper(string(n.Status)))
}

// Body renders the plain-text run report.
func Body(n pipeline.Notification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Pipeline: %s\n", n.Pipeline)
	fmt.Fprintf(&b, "Run:      %s\n", n.RunID)
	fmt.Fprintf(&b, "Status:   %s\n", strings.ToUpper(string(n.Status)))
	if n.Reason != "" {
		fmt.Fprintf(&b, "Reason:   %s\n", n.Reason)
	}
	fmt.Fprintf(&b, "Duration: %s\n\n", n.Summary.FinishedAt.Sub(n.Summary.StartedAt).Round(shownPrecision))

	b.WriteString("Stages:\n")
	for _, s := range n.Summary.Stages {
		fmt.Fprintf(&b, "  %-10s %-20s %s\n", s.Status, s.Stage, s.Duration.Round(shownPrecision))
		if s.Error != "" {
			fmt.Fprintf(&b, "             %s\n", s.Error)
		}
	}

	if len(n.Attachments) > 0 {
		b.WriteString("\nAttached reports:\n")
		for _, name := range sortedNames(n.Attachments) {
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}
	return b.String()
}

// shownPrecision keeps rendered durations readable.
const shownPrecision = 10 * time.Millisecond

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
