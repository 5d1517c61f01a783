package wallet

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeBookingPayment  TransactionType = "BOOKING_PAYMENT"
	TransactionTypeRefund          TransactionType = "REFUND"
	TransactionTypeAdminAdjustment TransactionType = "ADMIN_ADJUSTMENT"
	TransactionTypeCredit          TransactionType = "WALLET_CREDIT"
	TransactionTypeDebit           TransactionType = "WALLET_DEBIT"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeBookingPayment, TransactionTypeRefund, TransactionTypeAdminAdjustment,
		TransactionTypeCredit, TransactionTypeDebit:
		return true
	}
	return false
}

type EntryStatus string

const (
	EntryStatusPending    EntryStatus = "PENDING"
	EntryStatusCompleted  EntryStatus = "COMPLETED"
	EntryStatusFailed     EntryStatus = "FAILED"
	EntryStatusCancelled  EntryStatus = "CANCELLED"
	EntryStatusReconciled EntryStatus = "RECONCILED"
)

// Settled reports whether the entry counts towards the balance
func (s EntryStatus) Settled() bool {
	return s == EntryStatusCompleted || s == EntryStatusReconciled
}

// Ledger accounts
const (
	AccountWalletCash          = "WALLET_CASH"
	AccountPlatformClearing    = "PLATFORM_CLEARING"
	AccountPlatformAdjustments = "PLATFORM_ADJUSTMENTS"
)

// GatewayAccount returns the clearing account of a payment gateway, e.g. GATEWAY_ESEWA
func GatewayAccount(gateway string) string {
	return "GATEWAY_" + strings.ToUpper(gateway)
}

// Direction of a posting as seen from the wallet
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type Wallet struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	WalletID  uuid.UUID `db:"wallet_id" json:"wallet_id"`
	Balance   int64     `db:"balance" json:"balance"`
	Currency  string    `db:"currency" json:"currency"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Entry is an immutable double-entry ledger record
type Entry struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	Seq                  int64           `db:"seq" json:"seq"`
	UserID               uuid.UUID       `db:"user_id" json:"user_id"`
	WalletID             uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	BookingID            *uuid.UUID      `db:"booking_id" json:"booking_id,omitempty"`
	TransactionType      TransactionType `db:"transaction_type" json:"transaction_type"`
	Amount               int64           `db:"amount" json:"amount"`
	DebitAccount         string          `db:"debit_account" json:"debit_account"`
	CreditAccount        string          `db:"credit_account" json:"credit_account"`
	ReferenceID          string          `db:"reference_id" json:"reference_id"`
	GatewayTransactionID *string         `db:"gateway_transaction_id" json:"gateway_transaction_id,omitempty"`
	Description          string          `db:"description" json:"description"`
	BalanceBefore        int64           `db:"balance_before" json:"balance_before"`
	BalanceAfter         int64           `db:"balance_after" json:"balance_after"`
	Status               EntryStatus     `db:"status" json:"status"`
	ReconciledAt         *time.Time      `db:"reconciled_at" json:"reconciled_at,omitempty"`
	ReconciliationNotes  *string         `db:"reconciliation_notes" json:"reconciliation_notes,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
}

// SignedAmount is the entry's effect on the wallet balance
func (e *Entry) SignedAmount() int64 {
	switch {
	case e.DebitAccount == AccountWalletCash:
		return e.Amount
	case e.CreditAccount == AccountWalletCash:
		return -e.Amount
	}
	return 0
}

// Replay sums the settled entries in order
func Replay(entries []*Entry) int64 {
	var balance int64
	for _, e := range entries {
		if e.Status.Settled() {
			balance += e.SignedAmount()
		}
	}
	return balance
}

// Posting describes one money movement on a user's wallet
type Posting struct {
	UserID               uuid.UUID
	BookingID            *uuid.UUID
	Type                 TransactionType
	Direction            Direction
	Amount               int64
	CounterAccount       string
	ReferenceID          string
	GatewayTransactionID string
	Description          string
}

func (p Posting) accounts() (debit, credit string) {
	if p.Direction == DirectionDebit {
		return p.CounterAccount, AccountWalletCash
	}
	return AccountWalletCash, p.CounterAccount
}

func (p Posting) signedAmount() int64 {
	if p.Direction == DirectionDebit {
		return -p.Amount
	}
	return p.Amount
}

// matches reports whether an existing entry records the same movement
func (p Posting) matches(e *Entry) bool {
	debit, credit := p.accounts()
	return e.UserID == p.UserID &&
		e.Amount == p.Amount &&
		e.TransactionType == p.Type &&
		e.DebitAccount == debit &&
		e.CreditAccount == credit
}

// Audit compares the maintained balance with a full ledger replay
type Audit struct {
	UserID        uuid.UUID `json:"user_id"`
	Maintained    int64     `json:"maintained_balance"`
	Reconstructed int64     `json:"reconstructed_balance"`
	Entries       int       `json:"entries"`
	Consistent    bool      `json:"consistent"`
	CheckedAt     time.Time `json:"checked_at"`
}

// AuditSummary is the outcome of a sweep over all wallets
type AuditSummary struct {
	Checked    int         `json:"checked"`
	Mismatched []uuid.UUID `json:"mismatched"`
}

// ReconcileResult lists which references moved to RECONCILED
type ReconcileResult struct {
	Reconciled []string `json:"reconciled"`
	Skipped    []string `json:"skipped"`
}

// Statement is an exported ledger extract
type Statement struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Entries   int       `json:"entries"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HistoryFilter narrows the transaction history
type HistoryFilter struct {
	Type  TransactionType
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}
