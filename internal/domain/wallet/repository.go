package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const entryColumns = `id, seq, user_id, wallet_id, booking_id, transaction_type, amount, debit_account, credit_account,
	reference_id, gateway_transaction_id, description, balance_before, balance_after, status,
	reconciled_at, reconciliation_notes, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// beginSnapshot opens a read-only transaction that sees one consistent snapshot
func (r *Repository) beginSnapshot(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return getWallet(ctx, r.db, userID)
}

func getWallet(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := sqlx.GetContext(ctx, q, &w, `
		SELECT user_id, wallet_id, balance, currency, updated_at
		FROM user_wallets WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// lockWallet creates the wallet on first use and holds its row lock until tx ends.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_wallets (user_id, wallet_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, uuid.New()); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT user_id, wallet_id, balance, currency, updated_at
		FROM user_wallets WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) updateBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE user_wallets SET balance = $1, updated_at = now() WHERE user_id = $2`, balance, userID)
	return err
}

func getEntryByReference(ctx context.Context, q sqlx.QueryerContext, referenceID string) (*Entry, error) {
	var e Entry
	err := sqlx.GetContext(ctx, q, &e, `SELECT `+entryColumns+` FROM ledger_entries WHERE reference_id = $1`, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// insertEntry writes e unless its reference is already taken. It reports false when nothing was inserted.
func (r *Repository) insertEntry(ctx context.Context, tx *sqlx.Tx, e *Entry) (bool, error) {
	row := tx.QueryRowxContext(ctx, `
		INSERT INTO ledger_entries (
			id, user_id, wallet_id, booking_id, transaction_type, amount, debit_account, credit_account,
			reference_id, gateway_transaction_id, description, balance_before, balance_after, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, clock_timestamp())
		ON CONFLICT (reference_id) DO NOTHING
		RETURNING seq, created_at
	`, e.ID, e.UserID, e.WalletID, e.BookingID, string(e.TransactionType), e.Amount, e.DebitAccount, e.CreditAccount,
		e.ReferenceID, e.GatewayTransactionID, e.Description, e.BalanceBefore, e.BalanceAfter, string(e.Status))

	err := row.Scan(&e.Seq, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListSettledUntil returns the settled entries of a user up to the last entry created at or before until,
// in ledger order. The cut is made on seq so the result is always a prefix of the user's ledger.
func (r *Repository) ListSettledUntil(ctx context.Context, userID uuid.UUID, until time.Time) ([]*Entry, error) {
	return listSettledUntil(ctx, r.db, userID, until)
}

func listSettledUntil(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID, until time.Time) ([]*Entry, error) {
	var entries []*Entry
	err := sqlx.SelectContext(ctx, q, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1
			AND status IN ('COMPLETED', 'RECONCILED')
			AND seq <= (SELECT COALESCE(MAX(seq), 0) FROM ledger_entries WHERE user_id = $1 AND created_at <= $2)
		ORDER BY seq
	`, userID, until)
	return entries, err
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID, filter HistoryFilter) ([]*Entry, int, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM ledger_entries WHERE `+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + where + ` ORDER BY seq DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var entries []*Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// MarkReconciled moves COMPLETED entries to RECONCILED and returns the references it changed.
func (r *Repository) MarkReconciled(ctx context.Context, referenceIDs []string, notes string, at time.Time) ([]string, error) {
	var changed []string
	err := r.db.SelectContext(ctx, &changed, `
		UPDATE ledger_entries
		SET status = 'RECONCILED', reconciled_at = $2, reconciliation_notes = NULLIF($3, '')
		WHERE reference_id = ANY($1) AND status = 'COMPLETED'
		RETURNING reference_id
	`, pq.Array(referenceIDs), at, notes)
	return changed, err
}

// ListWalletOwners returns every user that has a wallet.
func (r *Repository) ListWalletOwners(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM user_wallets ORDER BY user_id`)
	return ids, err
}
