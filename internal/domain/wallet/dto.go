package wallet

import (
	"time"

	"github.com/google/uuid"
)

// AdjustRequest for POST /admin/wallets/{userId}/adjustments
type AdjustRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Direction   string `json:"direction" validate:"required,direction"`
	ReferenceID string `json:"reference_id" validate:"required,max=128"`
	Description string `json:"description" validate:"required,min=3,max=500"`
}

// ReconcileRequest for POST /admin/ledger/reconcile
type ReconcileRequest struct {
	ReferenceIDs []string `json:"reference_ids" validate:"required,min=1,max=500,dive,required,max=128"`
	Notes        string   `json:"notes" validate:"omitempty,max=1000"`
}

// StatementRequest for POST /wallet/statements
type StatementRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required"`
}

// BalanceResponse for GET /wallet/balance
type BalanceResponse struct {
	WalletID *uuid.UUID `json:"wallet_id,omitempty"`
	Balance  int64      `json:"balance"`
	Currency string     `json:"currency"`
}

func BalanceResponseFromWallet(w *Wallet) BalanceResponse {
	resp := BalanceResponse{Balance: w.Balance, Currency: w.Currency}
	if w.WalletID != uuid.Nil {
		id := w.WalletID
		resp.WalletID = &id
	}
	return resp
}

// EntryResponse is the public view of a ledger entry
type EntryResponse struct {
	ID              uuid.UUID  `json:"id"`
	Seq             int64      `json:"seq"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	TransactionType string     `json:"transaction_type"`
	Direction       Direction  `json:"direction"`
	Amount          int64      `json:"amount"`
	DebitAccount    string     `json:"debit_account"`
	CreditAccount   string     `json:"credit_account"`
	ReferenceID     string     `json:"reference_id"`
	Description     string     `json:"description"`
	BalanceBefore   int64      `json:"balance_before"`
	BalanceAfter    int64      `json:"balance_after"`
	Status          string     `json:"status"`
	ReconciledAt    *time.Time `json:"reconciled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func EntryResponseFromEntity(e *Entry) EntryResponse {
	direction := DirectionCredit
	if e.SignedAmount() < 0 {
		direction = DirectionDebit
	}
	return EntryResponse{
		ID:              e.ID,
		Seq:             e.Seq,
		BookingID:       e.BookingID,
		TransactionType: string(e.TransactionType),
		Direction:       direction,
		Amount:          e.Amount,
		DebitAccount:    e.DebitAccount,
		CreditAccount:   e.CreditAccount,
		ReferenceID:     e.ReferenceID,
		Description:     e.Description,
		BalanceBefore:   e.BalanceBefore,
		BalanceAfter:    e.BalanceAfter,
		Status:          string(e.Status),
		ReconciledAt:    e.ReconciledAt,
		CreatedAt:       e.CreatedAt,
	}
}
