package wallet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/sewago/sewago-api/internal/pkg/logger"
	"github.com/sewago/sewago-api/internal/pkg/storage"
)

type Service struct {
	repo         *Repository
	store        storage.ObjectStore
	statementTTL time.Duration
	now          func() time.Time
}

func NewService(repo *Repository, store storage.ObjectStore, statementTTL time.Duration) *Service {
	if statementTTL <= 0 {
		statementTTL = 15 * time.Minute
	}
	return &Service{repo: repo, store: store, statementTTL: statementTTL, now: time.Now}
}

// DB exposes the pool so callers can open a transaction shared with PostTx.
func (s *Service) DB() *sqlx.DB {
	return s.repo.db
}

// Credit adds amount to the user's wallet. Replaying the same reference is a no-op.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, referenceID, description string, bookingID *uuid.UUID) (*Entry, error) {
	return s.Post(ctx, Posting{
		UserID:         userID,
		BookingID:      bookingID,
		Type:           TransactionTypeCredit,
		Direction:      DirectionCredit,
		Amount:         amount,
		CounterAccount: AccountPlatformClearing,
		ReferenceID:    referenceID,
		Description:    description,
	})
}

// Debit removes amount from the user's wallet and fails when the balance would go negative.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64, referenceID, description string, bookingID *uuid.UUID) (*Entry, error) {
	return s.Post(ctx, Posting{
		UserID:         userID,
		BookingID:      bookingID,
		Type:           TransactionTypeDebit,
		Direction:      DirectionDebit,
		Amount:         amount,
		CounterAccount: AccountPlatformClearing,
		ReferenceID:    referenceID,
		Description:    description,
	})
}

// Post applies p in its own transaction.
func (s *Service) Post(ctx context.Context, p Posting) (*Entry, error) {
	tx, err := s.repo.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.PostTx(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// PostTx applies p inside tx. The wallet row stays locked until tx ends, so balance_before and balance_after
// chain without gaps. A posting whose reference already exists with the same terms returns the stored entry.
func (s *Service) PostTx(ctx context.Context, tx *sqlx.Tx, p Posting) (*Entry, error) {
	if err := validatePosting(p); err != nil {
		return nil, err
	}

	wallet, err := s.repo.lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	existing, err := getEntryByReference(ctx, tx, p.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("lookup reference: %w", err)
	}
	if existing != nil {
		return s.replayed(ctx, p, existing)
	}

	next := wallet.Balance + p.signedAmount()
	if next < 0 {
		return nil, ErrInsufficientFunds
	}

	debit, credit := p.accounts()
	entry := &Entry{
		ID:              uuid.New(),
		UserID:          p.UserID,
		WalletID:        wallet.WalletID,
		BookingID:       p.BookingID,
		TransactionType: p.Type,
		Amount:          p.Amount,
		DebitAccount:    debit,
		CreditAccount:   credit,
		ReferenceID:     p.ReferenceID,
		Description:     p.Description,
		BalanceBefore:   wallet.Balance,
		BalanceAfter:    next,
		Status:          EntryStatusCompleted,
	}
	if p.GatewayTransactionID != "" {
		gtx := p.GatewayTransactionID
		entry.GatewayTransactionID = &gtx
	}

	inserted, err := s.repo.insertEntry(ctx, tx, entry)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	if !inserted {
		// Another wallet took the reference between the lookup and the insert.
		existing, err := getEntryByReference(ctx, tx, p.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("lookup reference: %w", err)
		}
		if existing == nil {
			return nil, ErrReferenceConflict
		}
		return s.replayed(ctx, p, existing)
	}

	if err := s.repo.updateBalance(ctx, tx, p.UserID, next); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	logger.FromContext(ctx).Info().
		Str("user_id", p.UserID.String()).
		Int64("amount", p.Amount).
		Str("direction", string(p.Direction)).
		Str("transaction_type", string(p.Type)).
		Str("reference_id", p.ReferenceID).
		Int64("balance_after", next).
		Msg("ledger entry posted")
	return entry, nil
}

func (s *Service) replayed(ctx context.Context, p Posting, existing *Entry) (*Entry, error) {
	if !p.matches(existing) {
		logger.LogWarn(ctx, "ledger reference reused with different terms",
			"reference_id", p.ReferenceID, "user_id", p.UserID.String(), "amount", p.Amount)
		return nil, ErrReferenceConflict
	}
	logger.FromContext(ctx).Debug().Str("reference_id", p.ReferenceID).Msg("ledger posting already applied")
	return existing, nil
}

func validatePosting(p Posting) error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.ReferenceID == "" {
		return ErrReferenceRequired
	}
	if p.UserID == uuid.Nil || !p.Type.Valid() || p.CounterAccount == "" || p.CounterAccount == AccountWalletCash {
		return ErrInvalidPosting
	}
	if p.Direction != DirectionCredit && p.Direction != DirectionDebit {
		return ErrInvalidPosting
	}
	return nil
}

// Wallet returns the user's wallet, or an empty one when nothing was ever posted.
func (s *Service) Wallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return &Wallet{UserID: userID, Currency: "NPR"}, nil
	}
	return w, nil
}

func (s *Service) BalanceOf(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := s.Wallet(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// ReconstructBalanceAt replays the user's settled entries up to at.
func (s *Service) ReconstructBalanceAt(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	entries, err := s.repo.ListSettledUntil(ctx, userID, at)
	if err != nil {
		return 0, err
	}
	return Replay(entries), nil
}

// VerifyBalance compares the maintained balance with a replay of the whole ledger taken from the same snapshot.
// On divergence it returns the audit together with ErrBalanceMismatch.
func (s *Service) VerifyBalance(ctx context.Context, userID uuid.UUID) (*Audit, error) {
	tx, err := s.repo.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	audit := &Audit{UserID: userID, CheckedAt: s.now().UTC()}

	w, err := getWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		audit.Maintained = w.Balance
	}

	entries, err := listSettledUntil(ctx, tx, userID, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	audit.Entries = len(entries)
	audit.Reconstructed = Replay(entries)
	audit.Consistent = audit.Maintained == audit.Reconstructed

	if !audit.Consistent {
		logger.FromContext(ctx).Error().
			Str("user_id", userID.String()).
			Int64("maintained", audit.Maintained).
			Int64("reconstructed", audit.Reconstructed).
			Msg("wallet balance diverges from ledger")
		return audit, ErrBalanceMismatch
	}
	return audit, nil
}

// AuditAll verifies every wallet and reports the ones that diverge.
func (s *Service) AuditAll(ctx context.Context) (*AuditSummary, error) {
	owners, err := s.repo.ListWalletOwners(ctx)
	if err != nil {
		return nil, err
	}

	summary := &AuditSummary{Mismatched: []uuid.UUID{}}
	for _, userID := range owners {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++
		if _, err := s.VerifyBalance(ctx, userID); err != nil {
			if errors.Is(err, ErrBalanceMismatch) {
				summary.Mismatched = append(summary.Mismatched, userID)
				continue
			}
			return summary, err
		}
	}

	log.Info().Int("checked", summary.Checked).Int("mismatched", len(summary.Mismatched)).Msg("wallet audit finished")
	return summary, nil
}

// Reconcile marks COMPLETED entries as RECONCILED. References that are unknown or not COMPLETED are skipped.
func (s *Service) Reconcile(ctx context.Context, referenceIDs []string, notes string) (*ReconcileResult, error) {
	result := &ReconcileResult{Reconciled: []string{}, Skipped: []string{}}
	if len(referenceIDs) == 0 {
		return result, nil
	}

	changed, err := s.repo.MarkReconciled(ctx, referenceIDs, notes, s.now().UTC())
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool, len(changed))
	for _, ref := range changed {
		done[ref] = true
	}
	for _, ref := range referenceIDs {
		if done[ref] {
			result.Reconciled = append(result.Reconciled, ref)
		} else {
			result.Skipped = append(result.Skipped, ref)
		}
	}

	logger.LogInfo(ctx, "ledger entries reconciled", "reconciled", len(result.Reconciled), "skipped", len(result.Skipped))
	return result, nil
}

// History returns one page of the user's ledger, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, filter HistoryFilter) ([]*Entry, int, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, 0, ErrInvalidRange
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, userID, filter)
}

// Adjust posts an admin correction against the adjustments account.
func (s *Service) Adjust(ctx context.Context, adminID, userID uuid.UUID, req AdjustRequest) (*Entry, error) {
	entry, err := s.Post(ctx, Posting{
		UserID:         userID,
		Type:           TransactionTypeAdminAdjustment,
		Direction:      Direction(req.Direction),
		Amount:         req.Amount,
		CounterAccount: AccountPlatformAdjustments,
		ReferenceID:    req.ReferenceID,
		Description:    req.Description,
	})
	if err != nil {
		return nil, err
	}
	logger.LogInfo(ctx, "admin wallet adjustment", "admin_id", adminID.String(), "user_id", userID.String(),
		"amount", req.Amount, "direction", req.Direction, "reference_id", req.ReferenceID)
	return entry, nil
}

var statementHeader = []string{
	"seq", "created_at", "reference_id", "transaction_type", "debit_account", "credit_account",
	"amount", "balance_before", "balance_after", "status", "description",
}

// ExportStatement renders the user's entries in [from, to) as CSV, stores it and returns a presigned link.
func (s *Service) ExportStatement(ctx context.Context, userID uuid.UUID, from, to time.Time) (*Statement, error) {
	if s.store == nil {
		return nil, ErrStatementsDisabled
	}
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	entries, _, err := s.repo.List(ctx, userID, HistoryFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	body, err := renderStatement(entries)
	if err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}

	now := s.now().UTC()
	key := fmt.Sprintf("statements/%s/%s_%s_%d.csv", userID, from.UTC().Format("20060102"), to.UTC().Format("20060102"), now.Unix())
	if err := s.store.Put(ctx, key, bytes.NewReader(body), "text/csv"); err != nil {
		return nil, fmt.Errorf("store statement: %w", err)
	}

	url, err := s.store.PresignGet(ctx, key, s.statementTTL)
	if err != nil {
		return nil, fmt.Errorf("presign statement: %w", err)
	}

	logger.LogInfo(ctx, "wallet statement exported", "user_id", userID.String(), "entries", len(entries), "key", key)
	return &Statement{
		Key:       key,
		URL:       url,
		Entries:   len(entries),
		From:      from,
		To:        to,
		ExpiresAt: now.Add(s.statementTTL),
	}, nil
}

// renderStatement writes entries in ledger order.
func renderStatement(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statementHeader); err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := w.Write([]string{
			strconv.FormatInt(e.Seq, 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.ReferenceID,
			string(e.TransactionType),
			e.DebitAccount,
			e.CreditAccount,
			strconv.FormatInt(e.Amount, 10),
			strconv.FormatInt(e.BalanceBefore, 10),
			strconv.FormatInt(e.BalanceAfter, 10),
			string(e.Status),
			e.Description,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
