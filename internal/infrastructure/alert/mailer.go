// SPDX-License-Identifier: AGPL-3.0-or-later

// Package alert notifies an operator by email when a verifyRemoteResource run's
// verdict differs from its previously recorded verdict.
package alert

import (
	"context"
	"fmt"

	mail "github.com/go-mail/mail/v2"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/config"
	"github.com/trellisfw/masklink/pkg/logger"
)

// Mailer sends verdict-regression notifications over SMTP.
type Mailer struct {
	cfg config.MailConfig
	to  []string
}

// NewMailer constructs a Mailer; to is the operator recipient list.
func NewMailer(cfg config.MailConfig, to []string) *Mailer {
	return &Mailer{cfg: cfg, to: to}
}

// NotifyVerdictRegression sends an alert describing how a resource's
// verifyRemoteResource verdict changed since it was last checked. It is a no-op, not
// an error, when mail is disabled (no host configured).
func (m *Mailer) NotifyVerdictRegression(ctx context.Context, url string, verdict models.ChainVerdict) error {
	if !m.cfg.Enabled || len(m.to) == 0 {
		logger.Logger.Debug("alert: mail disabled or no recipients, skipping verdict regression notice", "url", url)
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", "masklink: verdict regression detected")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Resource %s now verifies as trusted=%t valid=%t unchanged=%t match=%t.\n\nDetails:\n%s",
		url, verdict.Trusted, verdict.Valid, verdict.Unchanged, verdict.Match, joinDetails(verdict.Details),
	))

	dialer := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send verdict regression alert: %w", err)
	}

	logger.Logger.Info("alert: sent verdict regression notice", "url", url, "to", m.to)
	return nil
}

func joinDetails(details []string) string {
	if len(details) == 0 {
		return "(none)"
	}
	out := ""
	for _, d := range details {
		out += "- " + d + "\n"
	}
	return out
}
