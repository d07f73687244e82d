// SPDX-License-Identifier: AGPL-3.0-or-later
package audit

import (
	"context"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/logger"
)

// alerter is the subset of alert.Mailer a Recorder drives.
type alerter interface {
	NotifyVerdictRegression(ctx context.Context, url string, verdict models.ChainVerdict) error
}

// Recorder persists a completed verifyRemoteResource verdict and, when any of its four
// booleans differs from the last recorded verdict for the same URL, sends an operator
// alert.
// Both steps are best-effort: a recording or alerting failure is logged, never
// propagated to the caller, since the HTTP response already carries the verdict the
// caller asked for.
type Recorder struct {
	repo   *Repository
	mailer alerter
}

// NewRecorder constructs a Recorder. mailer may be nil to disable alerting.
func NewRecorder(repo *Repository, mailer alerter) *Recorder {
	return &Recorder{repo: repo, mailer: mailer}
}

// RecordAndAlert persists verdict and, if it differs from the previously recorded
// verdict for url, notifies the operator.
func (r *Recorder) RecordAndAlert(ctx context.Context, url string, verdict models.ChainVerdict) {
	changed, err := r.repo.LastVerdictChanged(ctx, url, verdict.Trusted, verdict.Valid, verdict.Unchanged, verdict.Match)
	if err != nil {
		logger.Logger.Error("audit: failed to check previous verdict", "url", url, "error", err)
	}

	if err := r.repo.RecordVerification(ctx, VerificationRecord{
		URL:       url,
		Trusted:   verdict.Trusted,
		Valid:     verdict.Valid,
		Unchanged: verdict.Unchanged,
		Match:     verdict.Match,
		Details:   verdict.Details,
	}); err != nil {
		logger.Logger.Error("audit: failed to record verdict", "url", url, "error", err)
		return
	}

	if !changed || r.mailer == nil {
		return
	}

	if err := r.mailer.NotifyVerdictRegression(ctx, url, verdict); err != nil {
		logger.Logger.Error("audit: failed to send verdict regression alert", "url", url, "error", err)
	}
}
