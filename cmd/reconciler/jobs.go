package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sewago/sewago-api/internal/domain/settlement"
	"github.com/sewago/sewago-api/internal/domain/wallet"
	"github.com/sewago/sewago-api/internal/pkg/scheduler"
)

const (
	jobLedgerAudit    = "ledger-audit"
	jobPendingRecheck = "pending-payment-recheck"
)

type ledgerAuditor interface {
	AuditAll(ctx context.Context) (*wallet.AuditSummary, error)
}

type pendingRechecker interface {
	RecheckPending(ctx context.Context) (*settlement.RecheckSummary, error)
}

// newJobs builds the reconciler job bodies keyed by the names operators use to trigger them.
// A drifted wallet fails the audit run with wallet.ErrBalanceMismatch so it shows up as a failed job.
func newJobs(auditor ledgerAuditor, rechecker pendingRechecker) map[string]scheduler.Job {
	return map[string]scheduler.Job{
		jobLedgerAudit: func(ctx context.Context) error {
			summary, err := auditor.AuditAll(ctx)
			if err != nil {
				return err
			}
			if len(summary.Mismatched) > 0 {
				ids := make([]string, len(summary.Mismatched))
				for i, id := range summary.Mismatched {
					ids[i] = id.String()
				}
				log.Error().
					Int("checked", summary.Checked).
					Int("mismatched", len(summary.Mismatched)).
					Strs("user_ids", ids).
					Msg("Ledger audit found drifted wallets")
				return fmt.Errorf("%d of %d wallets drifted: %w", len(ids), summary.Checked, wallet.ErrBalanceMismatch)
			}
			return nil
		},
		jobPendingRecheck: func(ctx context.Context) error {
			_, err := rechecker.RecheckPending(ctx)
			return err
		},
	}
}
