package wallet_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sewago/sewago-api/internal/domain/wallet"
	"github.com/sewago/sewago-api/internal/pkg/apperror"
	"github.com/sewago/sewago-api/internal/pkg/database"
	"github.com/sewago/sewago-api/internal/pkg/storage"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewPostgresForTest(context.Background(), database.TestDSN())
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sqlx.DB) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	t.Cleanup(func() {
		db.Exec(`DELETE FROM ledger_entries WHERE user_id = $1`, userID)
		db.Exec(`DELETE FROM user_wallets WHERE user_id = $1`, userID)
	})
	return userID
}

func newService(db *sqlx.DB, store storage.ObjectStore) *wallet.Service {
	return wallet.NewService(wallet.NewRepository(db), store, time.Minute)
}

func uniqueRef(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

func TestWalletConcurrentDebit(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, userID, 5, uniqueRef("seed"), "seed", nil); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	success := 0
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Debit(ctx, userID, 1, uniqueRef(fmt.Sprintf("debit-%d", i)), "concurrent", nil)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, wallet.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if success != 5 {
		t.Fatalf("expected 5 successful debits, got %d", success)
	}

	balance, err := svc.BalanceOf(ctx, userID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}

	if _, err := svc.VerifyBalance(ctx, userID); err != nil {
		t.Fatalf("expected consistent ledger, got %v", err)
	}
}

func TestWalletConcurrentCreditSameReference(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()
	ref := uniqueRef("ESEWA")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Credit(ctx, userID, 1200, ref, "booking payment", nil); err != nil {
				t.Errorf("credit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, err := svc.BalanceOf(ctx, userID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 1200 {
		t.Fatalf("expected a single credit of 1200, got balance %d", balance)
	}

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM ledger_entries WHERE reference_id = $1`, ref); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", count)
	}
}

func TestWalletCreditIdempotency(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()
	ref := uniqueRef("KHALTI")

	first, err := svc.Credit(ctx, userID, 40, ref, "booking payment", nil)
	if err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	second, err := svc.Credit(ctx, userID, 40, ref, "booking payment", nil)
	if err != nil {
		t.Fatalf("idempotent retry failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the stored entry on retry, got %s and %s", first.ID, second.ID)
	}

	balance, _ := svc.BalanceOf(ctx, userID)
	if balance != 40 {
		t.Fatalf("expected balance 40 after idempotent retry, got %d", balance)
	}
}

func TestWalletReferenceConflict(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()
	ref := uniqueRef("conflict")

	if _, err := svc.Credit(ctx, userID, 100, ref, "seed", nil); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	_, err := svc.Credit(ctx, userID, 101, ref, "seed", nil)
	if !errors.Is(err, wallet.ErrReferenceConflict) {
		t.Fatalf("expected ErrReferenceConflict, got %v", err)
	}

	otherUser := createTestUser(t, db)
	_, err = svc.Credit(ctx, otherUser, 100, ref, "seed", nil)
	if !errors.Is(err, wallet.ErrReferenceConflict) {
		t.Fatalf("expected ErrReferenceConflict for another wallet, got %v", err)
	}
}

func TestWalletDebitInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)

	_, err := svc.Debit(context.Background(), userID, 1, uniqueRef("debit"), "nothing to spend", nil)
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict kind, got %s", apperror.KindOf(err))
	}
}

func TestWalletInvalidAmount(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)

	if _, err := svc.Credit(context.Background(), userID, 0, uniqueRef("zero"), "", nil); !errors.Is(err, wallet.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWalletBalanceChain(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()

	first, err := svc.Credit(ctx, userID, 300, uniqueRef("a"), "", nil)
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	second, err := svc.Debit(ctx, userID, 120, uniqueRef("b"), "", nil)
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	if first.BalanceBefore != 0 || first.BalanceAfter != 300 {
		t.Fatalf("unexpected first entry balances: %d -> %d", first.BalanceBefore, first.BalanceAfter)
	}
	if second.BalanceBefore != first.BalanceAfter || second.BalanceAfter != 180 {
		t.Fatalf("unexpected second entry balances: %d -> %d", second.BalanceBefore, second.BalanceAfter)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("expected increasing seq, got %d then %d", first.Seq, second.Seq)
	}

	atFirst, err := svc.ReconstructBalanceAt(ctx, userID, first.CreatedAt)
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	if atFirst != 300 {
		t.Fatalf("expected 300 at first entry, got %d", atFirst)
	}

	var dbNow time.Time
	if err := db.GetContext(ctx, &dbNow, `SELECT clock_timestamp()`); err != nil {
		t.Fatalf("read database clock: %v", err)
	}
	now, err := svc.ReconstructBalanceAt(ctx, userID, dbNow)
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	if now != 180 {
		t.Fatalf("expected 180, got %d", now)
	}
}

func TestWalletTimestampsFollowLedgerOrder(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()

	// The earlier transaction posts last; its entry must still be stamped after the one it waited behind.
	early, err := db.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	defer early.Rollback()
	if _, err := early.ExecContext(ctx, `SELECT now()`); err != nil {
		t.Fatalf("start transaction: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	adjusted, err := svc.Credit(ctx, userID, 100, uniqueRef("adjust"), "", nil)
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	paid, err := svc.PostTx(ctx, early, wallet.Posting{
		UserID:         userID,
		Type:           wallet.TransactionTypeCredit,
		Direction:      wallet.DirectionCredit,
		Amount:         50,
		CounterAccount: wallet.AccountPlatformClearing,
		ReferenceID:    uniqueRef("late"),
	})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if err := early.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if paid.Seq <= adjusted.Seq || !paid.CreatedAt.After(adjusted.CreatedAt) {
		t.Fatalf("created_at runs against seq: %d@%s then %d@%s", adjusted.Seq, adjusted.CreatedAt, paid.Seq, paid.CreatedAt)
	}

	balance, err := svc.ReconstructBalanceAt(ctx, userID, adjusted.CreatedAt)
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	if balance != adjusted.BalanceAfter {
		t.Fatalf("expected %d after the first entry, got %d", adjusted.BalanceAfter, balance)
	}
}

func TestWalletVerifyBalanceDetectsDrift(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, userID, 500, uniqueRef("seed"), "", nil); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	audit, err := svc.VerifyBalance(ctx, userID)
	if err != nil || !audit.Consistent {
		t.Fatalf("expected consistent wallet, got %+v %v", audit, err)
	}

	if _, err := db.Exec(`UPDATE user_wallets SET balance = 450 WHERE user_id = $1`, userID); err != nil {
		t.Fatalf("corrupt balance failed: %v", err)
	}

	audit, err = svc.VerifyBalance(ctx, userID)
	if !errors.Is(err, wallet.ErrBalanceMismatch) {
		t.Fatalf("expected ErrBalanceMismatch, got %v", err)
	}
	if audit == nil || audit.Maintained != 450 || audit.Reconstructed != 500 {
		t.Fatalf("unexpected audit: %+v", audit)
	}

	summary, err := svc.AuditAll(ctx)
	if err != nil {
		t.Fatalf("audit all failed: %v", err)
	}
	found := false
	for _, id := range summary.Mismatched {
		if id == userID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s among mismatched wallets", userID)
	}
}

func TestWalletReconcile(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()
	ref := uniqueRef("ESEWA")

	if _, err := svc.Credit(ctx, userID, 250, ref, "", nil); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	missing := uniqueRef("missing")
	result, err := svc.Reconcile(ctx, []string{ref, missing}, "matched settlement report")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(result.Reconciled) != 1 || result.Reconciled[0] != ref {
		t.Fatalf("unexpected reconciled list: %v", result.Reconciled)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != missing {
		t.Fatalf("unexpected skipped list: %v", result.Skipped)
	}

	again, err := svc.Reconcile(ctx, []string{ref}, "")
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if len(again.Reconciled) != 0 {
		t.Fatalf("expected reconciled entry to be skipped, got %v", again.Reconciled)
	}

	// Reconciled entries still count towards the balance.
	if _, err := svc.VerifyBalance(ctx, userID); err != nil {
		t.Fatalf("expected consistent wallet after reconcile, got %v", err)
	}

	entries, total, err := svc.History(ctx, userID, wallet.HistoryFilter{})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if total != 1 || entries[0].Status != wallet.EntryStatusReconciled || entries[0].ReconciledAt == nil {
		t.Fatalf("unexpected history: total=%d entries=%+v", total, entries)
	}
}

func TestWalletHistoryFilters(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	svc := newService(db, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Credit(ctx, userID, 10, uniqueRef("c"), "", nil); err != nil {
			t.Fatalf("credit failed: %v", err)
		}
	}
	if _, err := svc.Debit(ctx, userID, 5, uniqueRef("d"), "", nil); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	page, total, err := svc.History(ctx, userID, wallet.HistoryFilter{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if total != 4 || len(page) != 2 {
		t.Fatalf("expected 2 of 4 entries, got %d of %d", len(page), total)
	}
	if page[0].TransactionType != wallet.TransactionTypeDebit {
		t.Fatalf("expected newest entry first, got %s", page[0].TransactionType)
	}

	debits, total, err := svc.History(ctx, userID, wallet.HistoryFilter{Type: wallet.TransactionTypeDebit})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if total != 1 || len(debits) != 1 {
		t.Fatalf("expected a single debit, got %d", total)
	}

	from := time.Now().Add(time.Hour)
	to := time.Now()
	if _, _, err := svc.History(ctx, userID, wallet.HistoryFilter{From: &from, To: &to}); !errors.Is(err, wallet.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestWalletExportStatement(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("local storage failed: %v", err)
	}
	svc := newService(db, store)
	ctx := context.Background()

	ref := uniqueRef("stmt")
	if _, err := svc.Credit(ctx, userID, 700, ref, "statement seed", nil); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	statement, err := svc.ExportStatement(ctx, userID, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if statement.Entries != 1 || statement.URL == "" {
		t.Fatalf("unexpected statement: %+v", statement)
	}

	body, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(statement.Key)))
	if err != nil {
		t.Fatalf("read statement failed: %v", err)
	}
	if !strings.Contains(string(body), ref) {
		t.Fatalf("statement does not mention %s:\n%s", ref, body)
	}

	noStore := newService(db, nil)
	if _, err := noStore.ExportStatement(ctx, userID, time.Now().Add(-time.Hour), time.Now()); !errors.Is(err, wallet.ErrStatementsDisabled) {
		t.Fatalf("expected ErrStatementsDisabled, got %v", err)
	}
}
