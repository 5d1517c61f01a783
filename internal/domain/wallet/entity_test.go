package wallet

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(seq int64, amount int64, debit, credit string, status EntryStatus) *Entry {
	return &Entry{Seq: seq, Amount: amount, DebitAccount: debit, CreditAccount: credit, Status: status, ReferenceID: "ref"}
}

func TestReplaySkipsUnsettledEntries(t *testing.T) {
	entries := []*Entry{
		entry(1, 500, AccountWalletCash, GatewayAccount("esewa"), EntryStatusCompleted),
		entry(2, 200, AccountPlatformClearing, AccountWalletCash, EntryStatusReconciled),
		entry(3, 900, AccountWalletCash, AccountPlatformClearing, EntryStatusPending),
		entry(4, 50, AccountWalletCash, AccountPlatformAdjustments, EntryStatusFailed),
		entry(5, 75, AccountWalletCash, AccountPlatformAdjustments, EntryStatusCompleted),
	}

	assert.Equal(t, int64(375), Replay(entries))
	assert.Equal(t, int64(0), Replay(nil))
}

func TestGatewayAccount(t *testing.T) {
	assert.Equal(t, "GATEWAY_ESEWA", GatewayAccount("esewa"))
	assert.Equal(t, "GATEWAY_KHALTI", GatewayAccount("khalti"))
}

func TestPostingAccountsFollowDirection(t *testing.T) {
	credit := Posting{Direction: DirectionCredit, CounterAccount: "GATEWAY_KHALTI", Amount: 10}
	debit, creditAcc := credit.accounts()
	assert.Equal(t, AccountWalletCash, debit)
	assert.Equal(t, "GATEWAY_KHALTI", creditAcc)
	assert.Equal(t, int64(10), credit.signedAmount())

	out := Posting{Direction: DirectionDebit, CounterAccount: AccountPlatformClearing, Amount: 10}
	debit, creditAcc = out.accounts()
	assert.Equal(t, AccountPlatformClearing, debit)
	assert.Equal(t, AccountWalletCash, creditAcc)
	assert.Equal(t, int64(-10), out.signedAmount())
}

func TestPostingMatches(t *testing.T) {
	userID := uuid.New()
	p := Posting{
		UserID:         userID,
		Type:           TransactionTypeBookingPayment,
		Direction:      DirectionCredit,
		Amount:         1500,
		CounterAccount: GatewayAccount("esewa"),
		ReferenceID:    "ESEWA_1",
	}
	stored := &Entry{
		UserID:          userID,
		TransactionType: TransactionTypeBookingPayment,
		Amount:          1500,
		DebitAccount:    AccountWalletCash,
		CreditAccount:   "GATEWAY_ESEWA",
	}
	assert.True(t, p.matches(stored))

	p.Amount = 1501
	assert.False(t, p.matches(stored))

	p.Amount = 1500
	p.UserID = uuid.New()
	assert.False(t, p.matches(stored))
}

func TestValidatePosting(t *testing.T) {
	valid := Posting{
		UserID:         uuid.New(),
		Type:           TransactionTypeCredit,
		Direction:      DirectionCredit,
		Amount:         1,
		CounterAccount: AccountPlatformClearing,
		ReferenceID:    "ref-1",
	}
	require.NoError(t, validatePosting(valid))

	cases := map[string]struct {
		mutate func(p *Posting)
		want   error
	}{
		"zero amount":         {func(p *Posting) { p.Amount = 0 }, ErrInvalidAmount},
		"negative amount":     {func(p *Posting) { p.Amount = -5 }, ErrInvalidAmount},
		"missing reference":   {func(p *Posting) { p.ReferenceID = "" }, ErrReferenceRequired},
		"unknown type":        {func(p *Posting) { p.Type = "GIFT" }, ErrInvalidPosting},
		"wallet as counter":   {func(p *Posting) { p.CounterAccount = AccountWalletCash }, ErrInvalidPosting},
		"unknown direction":   {func(p *Posting) { p.Direction = "sideways" }, ErrInvalidPosting},
		"missing user":        {func(p *Posting) { p.UserID = uuid.Nil }, ErrInvalidPosting},
		"missing counterpart": {func(p *Posting) { p.CounterAccount = "" }, ErrInvalidPosting},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			assert.ErrorIs(t, validatePosting(p), tc.want)
		})
	}
}

func TestRenderStatementWritesLedgerOrder(t *testing.T) {
	// History comes back newest first.
	entries := []*Entry{
		{Seq: 2, ReferenceID: "b", TransactionType: TransactionTypeDebit, Amount: 20, BalanceBefore: 100, BalanceAfter: 80, Status: EntryStatusCompleted, Description: "fee, late"},
		{Seq: 1, ReferenceID: "a", TransactionType: TransactionTypeCredit, Amount: 100, BalanceBefore: 0, BalanceAfter: 100, Status: EntryStatusCompleted},
	}

	body, err := renderStatement(entries)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, statementHeader, rows[0])
	assert.Equal(t, "a", rows[1][2])
	assert.Equal(t, "b", rows[2][2])
	assert.Equal(t, "fee, late", rows[2][10])
}
