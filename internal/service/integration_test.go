package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"skyton/internal/domain"
	"skyton/internal/oxapay"
	"skyton/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := pool.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
	return pool
}

func createTestUser(t *testing.T, pool *pgxpool.Pool, id int64, taskBalance int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, id); err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"mining_cards", "purchases", "withdrawals"} {
		if _, err := pool.Exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, id); err != nil {
			t.Fatal(err)
		}
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, username, task_balance, balance)
		VALUES ($1, 'itest', $2, $2)
		ON CONFLICT (id) DO UPDATE SET
			task_balance = $2, box_balance = 0, referral_balance = 0, mining_balance = 0,
			balance = $2, last_claim_time = NULL, total_mined = 0, mining_active = FALSE
	`, id, taskBalance)
	if err != nil {
		t.Fatal(err)
	}
}

func testServices(pool *pgxpool.Pool, pay *oxapay.Client) (*LedgerService, *MiningService, *ReconcileService, *WithdrawService) {
	ledger := NewLedgerService(pool)
	if pay == nil {
		pay = oxapay.NewClient("http://127.0.0.1:1", "test", "test")
	}
	mining := NewMiningService(pool, ledger, pay, nil, "", "")
	reconcile := NewReconcileService(pool, ledger, mining, pay, nil)
	withdraw := NewWithdrawService(pool, ledger, pay, nil)
	return ledger, mining, reconcile, withdraw
}

// Two concurrent purchases against a balance that covers only one must not
// both pass the sufficiency check.
func TestConcurrentDeductPurchasable(t *testing.T) {
	pool := testPool(t)
	ledger, _, _, _ := testServices(pool, nil)

	const userID = int64(910001)
	createTestUser(t, pool, userID, 100)

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.DeductPurchasable(ctx, userID, 80)
		}(i)
	}
	wg.Wait()

	var okCount int
	for _, err := range errs {
		if err == nil {
			okCount++
		} else if err != ErrInsufficientFunds {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 {
		t.Fatalf("exactly one deduct should succeed, got %d", okCount)
	}

	var balance, task int64
	if err := pool.QueryRow(ctx, `SELECT balance, task_balance FROM users WHERE id = $1`, userID).
		Scan(&balance, &task); err != nil {
		t.Fatal(err)
	}
	if balance != 20 || task != 20 {
		t.Fatalf("after one debit of 80: balance=%d task=%d, want 20/20", balance, task)
	}
}

// Claim must credit floor(rate*hours) into the mining bucket and reset the
// clock so an immediate second claim finds nothing.
func TestClaimResetsClock(t *testing.T) {
	pool := testPool(t)
	_, mining, _, _ := testServices(pool, nil)

	const userID = int64(910002)
	createTestUser(t, pool, userID, 20_000_000)

	ctx := context.Background()
	if _, _, err := mining.PurchaseWithBalance(ctx, userID, domain.TierBasic); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	// backdate the accrual baseline by two hours
	if _, err := pool.Exec(ctx, `UPDATE users SET last_claim_time = NOW() - INTERVAL '2 hours' WHERE id = $1`, userID); err != nil {
		t.Fatal(err)
	}

	claimed, err := mining.Claim(ctx, userID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// basic tier default is 150/h
	if claimed < 300 || claimed > 301 {
		t.Fatalf("claimed %d, want ~300", claimed)
	}

	var miningBal, totalMined int64
	if err := pool.QueryRow(ctx, `SELECT mining_balance, total_mined FROM users WHERE id = $1`, userID).
		Scan(&miningBal, &totalMined); err != nil {
		t.Fatal(err)
	}
	if miningBal != claimed || totalMined != claimed {
		t.Fatalf("mining_balance=%d total_mined=%d, want both %d", miningBal, totalMined, claimed)
	}

	if _, err := mining.Claim(ctx, userID); err != ErrNothingToClaim {
		t.Fatalf("second claim: got %v, want ErrNothingToClaim", err)
	}
}

// A duplicate completed webhook must not grant a second card.
func TestWebhookIdempotentPurchase(t *testing.T) {
	pool := testPool(t)
	_, _, reconcile, _ := testServices(pool, nil)

	const userID = int64(910003)
	createTestUser(t, pool, userID, 0)

	ctx := context.Background()
	purchase := &domain.Purchase{
		UserID:     userID,
		OrderID:    "itest-order-1",
		Tier:       domain.TierBasic,
		AmountSton: 15_000_000,
		Currency:   "TON",
		Status:     domain.PurchasePending,
		TrackID:    "itest-track-1",
	}
	if _, err := pool.Exec(ctx, `DELETE FROM purchases WHERE order_id = $1`, purchase.OrderID); err != nil {
		t.Fatal(err)
	}
	if err := repository.NewPurchaseRepository(pool).Create(ctx, purchase); err != nil {
		t.Fatal(err)
	}

	cb := &oxapay.Callback{Status: "completed", OrderID: purchase.OrderID}

	first, err := reconcile.HandleCallback(ctx, cb)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if !first.Applied {
		t.Fatal("first callback should apply")
	}

	second, err := reconcile.HandleCallback(ctx, cb)
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}
	if second.Applied {
		t.Fatal("duplicate callback must be a no-op")
	}

	var cards int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM mining_cards WHERE user_id = $1`, userID).Scan(&cards); err != nil {
		t.Fatal(err)
	}
	if cards != 1 {
		t.Fatalf("cards: got %d, want 1", cards)
	}
}

// A failed payout webhook refunds the debited mix exactly once, even when
// delivered twice.
func TestWebhookRefundsWithdrawalOnce(t *testing.T) {
	pool := testPool(t)
	ledger, _, reconcile, _ := testServices(pool, nil)

	const userID = int64(910004)
	createTestUser(t, pool, userID, 200_000_000)

	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	breakdown, err := ledger.DebitForWithdrawalTx(ctx, tx, userID, 150_000_000)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	w := &domain.Withdrawal{
		UserID:         userID,
		OrderID:        "itest-wd-1",
		AmountSton:     150_000_000,
		CryptoAmount:   5,
		Currency:       "TON",
		WalletAddress:  "addr",
		Status:         domain.WithdrawalPending,
		TrackID:        "itest-wd-track-1",
		DebitBreakdown: breakdown,
	}
	if _, err := pool.Exec(ctx, `DELETE FROM withdrawals WHERE order_id = $1`, w.OrderID); err != nil {
		t.Fatal(err)
	}
	if err := repository.CreateWithdrawalTx(ctx, tx, w); err != nil {
		t.Fatalf("create withdrawal: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	cb := &oxapay.Callback{Type: "payout", Status: "failed", OrderID: w.OrderID}
	for i := 0; i < 2; i++ {
		if _, err := reconcile.HandleCallback(ctx, cb); err != nil {
			t.Fatalf("callback %d: %v", i, err)
		}
	}

	var balance, task int64
	var refunded bool
	if err := pool.QueryRow(ctx, `
		SELECT u.balance, u.task_balance, w.refunded
		FROM users u JOIN withdrawals w ON w.user_id = u.id AND w.order_id = $2
		WHERE u.id = $1
	`, userID, w.OrderID).Scan(&balance, &task, &refunded); err != nil {
		t.Fatal(err)
	}
	if !refunded {
		t.Fatal("withdrawal should be marked refunded")
	}
	if balance != 200_000_000 || task != 200_000_000 {
		t.Fatalf("after refund: balance=%d task=%d, want 200M/200M", balance, task)
	}
}

// A failed payout webhook arriving after the withdrawal completed must not
// touch the refund guard: the crypto left, the STON stays gone.
func TestWebhookIgnoresFailedAfterCompleted(t *testing.T) {
	pool := testPool(t)
	ledger, _, reconcile, _ := testServices(pool, nil)

	const userID = int64(910006)
	createTestUser(t, pool, userID, 200_000_000)

	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	breakdown, err := ledger.DebitForWithdrawalTx(ctx, tx, userID, 150_000_000)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	w := &domain.Withdrawal{
		UserID:         userID,
		OrderID:        "itest-wd-2",
		AmountSton:     150_000_000,
		CryptoAmount:   5,
		Currency:       "TON",
		WalletAddress:  "addr",
		Status:         domain.WithdrawalPending,
		TrackID:        "itest-wd-track-2",
		DebitBreakdown: breakdown,
	}
	if _, err := pool.Exec(ctx, `DELETE FROM withdrawals WHERE order_id = $1`, w.OrderID); err != nil {
		t.Fatal(err)
	}
	if err := repository.CreateWithdrawalTx(ctx, tx, w); err != nil {
		t.Fatalf("create withdrawal: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	completed := &oxapay.Callback{Type: "payout", Status: "completed", OrderID: w.OrderID}
	res, err := reconcile.HandleCallback(ctx, completed)
	if err != nil {
		t.Fatalf("completed callback: %v", err)
	}
	if !res.Applied {
		t.Fatal("completed callback should apply")
	}

	failed := &oxapay.Callback{Type: "payout", Status: "failed", OrderID: w.OrderID}
	res, err = reconcile.HandleCallback(ctx, failed)
	if err != nil {
		t.Fatalf("late failed callback: %v", err)
	}
	if res.Applied {
		t.Fatal("failed after completed must be a no-op")
	}

	var balance int64
	var status string
	var refunded bool
	if err := pool.QueryRow(ctx, `
		SELECT u.balance, w.status, w.refunded
		FROM users u JOIN withdrawals w ON w.user_id = u.id AND w.order_id = $2
		WHERE u.id = $1
	`, userID, w.OrderID).Scan(&balance, &status, &refunded); err != nil {
		t.Fatal(err)
	}
	if status != string(domain.WithdrawalCompleted) {
		t.Fatalf("status: got %s, want completed", status)
	}
	if refunded {
		t.Fatal("completed withdrawal must not be marked refunded")
	}
	if balance != 50_000_000 {
		t.Fatalf("balance: got %d, want 50M (no refund minted)", balance)
	}
}

// The manual status poll settles a pending purchase through the same guarded
// path the webhook uses, so racing the two cannot grant two cards.
func TestManualStatusPollSettlesPurchase(t *testing.T) {
	pool := testPool(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":100,"track_id":"itest-poll-track","status":"completed"}`))
	}))
	defer srv.Close()

	_, _, reconcile, _ := testServices(pool, oxapay.NewClient(srv.URL, "test", "test"))

	const userID = int64(910007)
	createTestUser(t, pool, userID, 0)

	ctx := context.Background()
	purchase := &domain.Purchase{
		UserID:     userID,
		OrderID:    "itest-order-2",
		Tier:       domain.TierBasic,
		AmountSton: 15_000_000,
		Currency:   "TON",
		Status:     domain.PurchasePending,
		TrackID:    "itest-poll-track",
	}
	if _, err := pool.Exec(ctx, `DELETE FROM purchases WHERE order_id = $1`, purchase.OrderID); err != nil {
		t.Fatal(err)
	}
	if err := repository.NewPurchaseRepository(pool).Create(ctx, purchase); err != nil {
		t.Fatal(err)
	}

	p, res, err := reconcile.CheckPurchase(ctx, userID, purchase.OrderID)
	if err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if !res.Applied || p.Status != domain.PurchaseCompleted {
		t.Fatalf("first poll should settle: applied=%v status=%s", res.Applied, p.Status)
	}

	// terminal records are reported without calling the provider again
	p, res, err = reconcile.CheckPurchase(ctx, userID, purchase.OrderID)
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if res.Applied || p.Status != domain.PurchaseCompleted {
		t.Fatalf("second poll must be a no-op: applied=%v status=%s", res.Applied, p.Status)
	}

	var cards int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM mining_cards WHERE user_id = $1`, userID).Scan(&cards); err != nil {
		t.Fatal(err)
	}
	if cards != 1 {
		t.Fatalf("cards: got %d, want 1", cards)
	}

	// another user cannot poll someone else's order
	if _, _, err := reconcile.CheckPurchase(ctx, userID+1, purchase.OrderID); err != ErrPurchaseNotFound {
		t.Fatalf("foreign order: got %v, want ErrPurchaseNotFound", err)
	}
}

// A second withdrawal request while one is in flight must bounce off the
// in-transaction gate and leave the balance untouched.
func TestWithdrawalRequestsSerialized(t *testing.T) {
	pool := testPool(t)
	_, _, _, withdraw := testServices(pool, nil)

	const userID = int64(910008)
	createTestUser(t, pool, userID, 300_000_000)

	ctx := context.Background()
	wallet := "UQabcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP0123"
	if _, err := pool.Exec(ctx, `UPDATE users SET wallet = $2 WHERE id = $1`, userID, wallet); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO withdrawals (user_id, order_id, amount_ston, crypto_amount, currency, wallet_address)
		VALUES ($1, 'itest-wd-3', 100000000, 3.3, 'TON', $2)
	`, userID, wallet); err != nil {
		t.Fatal(err)
	}

	if _, err := withdraw.Request(ctx, userID, 150_000_000, "TON"); err != ErrWithdrawalInFlight {
		t.Fatalf("got %v, want ErrWithdrawalInFlight", err)
	}

	var balance int64
	if err := pool.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance); err != nil {
		t.Fatal(err)
	}
	if balance != 300_000_000 {
		t.Fatalf("rejected request must not debit: balance=%d", balance)
	}
}

// Registration credits the referrer once and the referred user's stats point
// back at the inviter.
func TestReferralRegisterOnce(t *testing.T) {
	pool := testPool(t)
	ledger, _, _, _ := testServices(pool, nil)
	referral := NewReferralService(pool, ledger, nil)

	const referrerID = int64(910009)
	const referredID = int64(910010)
	createTestUser(t, pool, referrerID, 0)
	createTestUser(t, pool, referredID, 0)

	ctx := context.Background()
	if _, err := pool.Exec(ctx, `DELETE FROM referral_history WHERE referrer_id = $1 OR referred_id = $2`, referrerID, referredID); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, `
		UPDATE users SET referrals = 0, weekly_referrals = 0, weekly_referrals_reset_at = NULL,
			free_spins = 0, invited_by = NULL
		WHERE id IN ($1, $2)
	`, referrerID, referredID); err != nil {
		t.Fatal(err)
	}

	if err := referral.Register(ctx, referrerID, referredID); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := referral.Register(ctx, referrerID, referredID); err != ErrAlreadyReferred {
		t.Fatalf("duplicate register: got %v, want ErrAlreadyReferred", err)
	}

	stats, _, err := referral.Stats(ctx, referrerID)
	if err != nil {
		t.Fatalf("referrer stats: %v", err)
	}
	if stats.Referrals != 1 || stats.WeeklyReferrals != 1 {
		t.Fatalf("referrals: got %d/%d, want 1/1", stats.Referrals, stats.WeeklyReferrals)
	}
	if stats.TotalEarned != 1_000_000 {
		t.Fatalf("total earned: got %d, want 1000000", stats.TotalEarned)
	}

	referredStats, _, err := referral.Stats(ctx, referredID)
	if err != nil {
		t.Fatalf("referred stats: %v", err)
	}
	if referredStats.InvitedBy != referrerID {
		t.Fatalf("invited_by: got %d, want %d", referredStats.InvitedBy, referrerID)
	}
}

// Renewal keeps the instance and resets the expiry to now+validity instead
// of stacking remaining time.
func TestPurchaseRenewalResetsExpiry(t *testing.T) {
	pool := testPool(t)
	_, mining, _, _ := testServices(pool, nil)

	const userID = int64(910005)
	createTestUser(t, pool, userID, 40_000_000)

	ctx := context.Background()
	card1, renewed, err := mining.PurchaseWithBalance(ctx, userID, domain.TierBasic)
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if renewed {
		t.Fatal("first purchase must not be a renewal")
	}

	// age the card so the renewal reset is observable
	if _, err := pool.Exec(ctx, `
		UPDATE mining_cards SET expiration_date = expiration_date - INTERVAL '3 days' WHERE id = $1
	`, card1.ID); err != nil {
		t.Fatal(err)
	}

	card2, renewed, err := mining.PurchaseWithBalance(ctx, userID, domain.TierBasic)
	if err != nil {
		t.Fatalf("renewal purchase: %v", err)
	}
	if !renewed {
		t.Fatal("second purchase of a live instance should renew")
	}
	if card2.ID != card1.ID || card2.InstanceNo != card1.InstanceNo {
		t.Fatalf("renewal changed instance: %d/%d -> %d/%d", card1.ID, card1.InstanceNo, card2.ID, card2.InstanceNo)
	}
	if card2.Quantity != 2 {
		t.Fatalf("quantity: got %d, want 2", card2.Quantity)
	}

	wantExpiry := time.Now().Add(7 * 24 * time.Hour)
	if diff := card2.ExpirationDate.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expiry not reset to now+validity: %v (diff %v)", card2.ExpirationDate, diff)
	}
}
