package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/agilewallet/backend/internal/app/domain/transaction"
	"github.com/agilewallet/backend/internal/app/domain/user"
	"github.com/agilewallet/backend/internal/app/storage"
	"github.com/agilewallet/backend/internal/app/storage/memory"
)

// flakyTxStore wraps a TransactionStore and fails updates on demand.
type flakyTxStore struct {
	storage.TransactionStore
	failUpdate bool
}

func (s *flakyTxStore) UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	if s.failUpdate {
		return transaction.Transaction{}, errors.New("store offline")
	}
	return s.TransactionStore.UpdateTransaction(ctx, tx)
}

func newTestUsers(t *testing.T, store *memory.Store) (user.User, user.User) {
	t.Helper()
	sender, err := store.CreateUser(context.Background(), user.User{
		Name:            "Alice",
		Email:           "alice@example.com",
		WalletAddresses: map[string]string{"btc": "alice-btc"},
		Balances:        map[string]float64{"btc": 10},
	})
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	recipient, err := store.CreateUser(context.Background(), user.User{
		Name:            "Carol",
		Email:           "carol@example.com",
		WalletAddresses: map[string]string{"btc": "carol-btc"},
	})
	if err != nil {
		t.Fatalf("create recipient: %v", err)
	}
	return sender, recipient
}

func TestService_SubmitResolvesRecipient(t *testing.T) {
	store := memory.New()
	sender, recipient := newTestUsers(t, store)
	svc := New(store, store, nil)

	tx, err := svc.Submit(context.Background(), SubmitInput{
		FromUserID:  sender.ID,
		FromAddress: "alice-btc",
		ToAddress:   "carol-btc",
		Amount:      5,
		Currency:    "btc",
		Description: "lunch",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tx.Status != transaction.StatusPending {
		t.Fatalf("unexpected status: %s", tx.Status)
	}
	if tx.ToUserID != recipient.ID {
		t.Fatalf("recipient not resolved: %q", tx.ToUserID)
	}

	// Submission never moves funds.
	got, err := store.GetUser(context.Background(), sender.ID)
	if err != nil {
		t.Fatalf("get sender: %v", err)
	}
	if got.Balances["btc"] != 10 {
		t.Fatalf("balance moved at submission: %v", got.Balances["btc"])
	}
}

func TestService_SubmitExternalAddress(t *testing.T) {
	store := memory.New()
	sender, _ := newTestUsers(t, store)
	svc := New(store, store, nil)

	tx, err := svc.Submit(context.Background(), SubmitInput{
		FromUserID:  sender.ID,
		FromAddress: "alice-btc",
		ToAddress:   "unknown-address",
		Amount:     1,
		Currency:   "btc",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tx.ToUserID != "" {
		t.Fatalf("expected unresolved recipient, got %q", tx.ToUserID)
	}
}

func TestService_SubmitValidation(t *testing.T) {
	store := memory.New()
	sender, _ := newTestUsers(t, store)
	svc := New(store, store, nil)

	cases := []SubmitInput{
		{FromUserID: sender.ID, FromAddress: "alice-btc", ToAddress: "carol-btc", Amount: 0, Currency: "btc"},
		{FromUserID: sender.ID, FromAddress: "alice-btc", ToAddress: "carol-btc", Amount: -3, Currency: "btc"},
		{FromUserID: sender.ID, FromAddress: "alice-btc", ToAddress: "carol-btc", Amount: 1},
		{FromUserID: sender.ID, FromAddress: "alice-btc", Amount: 1, Currency: "btc"},
		{FromUserID: sender.ID, ToAddress: "carol-btc", Amount: 1, Currency: "btc"},
	}
	for i, in := range cases {
		if _, err := svc.Submit(context.Background(), in); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	pending, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("validation failures must not record transactions: %d", len(pending))
	}
}

func TestService_ApproveMovesBalances(t *testing.T) {
	store := memory.New()
	sender, recipient := newTestUsers(t, store)
	svc := New(store, store, nil)

	tx, err := svc.Submit(context.Background(), SubmitInput{
		FromUserID:  sender.ID,
		FromAddress: "alice-btc",
		ToAddress:   "carol-btc",
		Amount:      5,
		Currency:    "btc",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := svc.Approve(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Transaction.Status != transaction.StatusApproved {
		t.Fatalf("unexpected status: %s", res.Transaction.Status)
	}
	if math.Abs(res.AmountDebited-5) > 1e-9 {
		t.Fatalf("unexpected debit: %v", res.AmountDebited)
	}

	gotSender, _ := store.GetUser(context.Background(), sender.ID)
	gotRecipient, _ := store.GetUser(context.Background(), recipient.ID)
	if math.Abs(gotSender.Balances["btc"]-5) > 1e-9 {
		t.Fatalf("sender balance: %v", gotSender.Balances["btc"])
	}
	if math.Abs(gotRecipient.Balances["btc"]-5) > 1e-9 {
		t.Fatalf("recipient balance: %v", gotRecipient.Balances["btc"])
	}
}

func TestService_ApproveClampsOverdraft(t *testing.T) {
	store := memory.New()
	sender, recipient := newTestUsers(t, store)
	svc := New(store, store, nil)

	tx, err := svc.Submit(context.Background(), SubmitInput{
		FromUserID:  sender.ID,
		FromAddress: "alice-btc",
		ToAddress:   "carol-btc",
		Amount:      25,
		Currency:    "btc",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := svc.Approve(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if math.Abs(res.AmountDebited-10) > 1e-9 {
		t.Fatalf("debit should stop at available balance: %v", res.AmountDebited)
	}

	gotSender, _ := store.GetUser(context.Background(), sender.ID)
	if gotSender.Balances["btc"] != 0 {
		t.Fatalf("sender balance should clamp to zero: %v", gotSender.Balances["btc"])
	}
	gotRecipient, _ := store.GetUser(context.Background(), recipient.ID)
	if math.Abs(gotRecipient.Balances["btc"]-25) > 1e-9 {
		t.Fatalf("recipient receives full amount: %v", gotRecipient.Balances["btc"])
	}
}

func TestService_ApproveUnresolvedPartiesOnlyChangesStatus(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	tx, err := svc.Submit(context.Background(), SubmitInput{
		FromAddress: "ext-from",
		ToAddress:   "ext-to",
		Amount:      3,
		Currency:    "eth",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := svc.Approve(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Transaction.Status != transaction.StatusApproved {
		t.Fatalf("unexpected status: %s", res.Transaction.Status)
	}
	if res.AmountDebited != 0 {
		t.Fatalf("nothing should be debited: %v", res.AmountDebited)
	}
}

func TestService_ApproveTwiceFailsWithoutSecondMutation(t *testing.T) {
	store := memory.New()
	sender, recipient := newTestUsers(t, store)
	svc := New(store, store, nil)

	tx, _ := svc.Submit(context.Background(), SubmitInput{
		FromUserID:  sender.ID,
		FromAddress: "alice-btc",
		ToAddress:   "carol-btc",
		Amount:      4,
		Currency:    "btc",
	})
	if _, err := svc.Approve(context.Background(), tx.ID); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	if _, err := svc.Approve(context.Background(), tx.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if _, err := svc.Reject(context.Background(), tx.ID, "late"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending on reject, got %v", err)
	}

	gotSender, _ := store.GetUser(context.Background(), sender.ID)
	gotRecipient, _ := store.GetUser(context.Background(), recipient.ID)
	if math.Abs(gotSender.Balances["btc"]-6) > 1e-9 {
		t.Fatalf("sender debited more than once: %v", gotSender.Balances["btc"])
	}
	if math.Abs(gotRecipient.Balances["btc"]-4) > 1e-9 {
		t.Fatalf("recipient credited more than once: %v", gotRecipient.Balances["btc"])
	}
}

func TestService_ApproveStoreFailureRollsBackBothBalances(t *testing.T) {
	store := memory.New()
	sender, recipient := newTestUsers(t, store)
	txStore := &flakyTxStore{TransactionStore: store}
	svc := New(store, txStore, nil)

	tx, err := svc.Submit(context.Background(), SubmitInput{
		FromUserID:  sender.ID,
		FromAddress: "alice-btc",
		ToAddress:   "carol-btc",
		Amount:      4,
		Currency:    "btc",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	txStore.failUpdate = true
	if _, err := svc.Approve(context.Background(), tx.ID); err == nil {
		t.Fatal("expected approve to fail when the status write fails")
	}

	gotSender, _ := store.GetUser(context.Background(), sender.ID)
	gotRecipient, _ := store.GetUser(context.Background(), recipient.ID)
	if math.Abs(gotSender.Balances["btc"]-10) > 1e-9 {
		t.Fatalf("sender debit not rolled back: %v", gotSender.Balances["btc"])
	}
	if gotRecipient.Balances["btc"] != 0 {
		t.Fatalf("recipient credit not rolled back: %v", gotRecipient.Balances["btc"])
	}
	got, err := svc.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != transaction.StatusPending {
		t.Fatalf("transaction should stay pending: %s", got.Status)
	}

	// A healthy store settles the same transaction cleanly afterwards.
	txStore.failUpdate = false
	if _, err := svc.Approve(context.Background(), tx.ID); err != nil {
		t.Fatalf("approve after recovery: %v", err)
	}
	gotSender, _ = store.GetUser(context.Background(), sender.ID)
	gotRecipient, _ = store.GetUser(context.Background(), recipient.ID)
	if math.Abs(gotSender.Balances["btc"]-6) > 1e-9 || math.Abs(gotRecipient.Balances["btc"]-4) > 1e-9 {
		t.Fatalf("settlement after recovery moved wrong amounts: %v, %v",
			gotSender.Balances["btc"], gotRecipient.Balances["btc"])
	}
}

func TestService_RejectRefundsSender(t *testing.T) {
	store := memory.New()
	sender, _ := newTestUsers(t, store)
	svc := New(store, store, nil)

	tx, _ := svc.Submit(context.Background(), SubmitInput{
		FromUserID:  sender.ID,
		FromAddress: "alice-btc",
		ToAddress:   "carol-btc",
		Amount:      5,
		Currency:    "btc",
	})

	res, err := svc.Reject(context.Background(), tx.ID, "fraud")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Transaction.Status != transaction.StatusRejected {
		t.Fatalf("unexpected status: %s", res.Transaction.Status)
	}
	if res.Transaction.RejectionReason != "fraud" {
		t.Fatalf("reason not stored: %q", res.Transaction.RejectionReason)
	}
	if !res.Refunded {
		t.Fatal("expected refunded flag")
	}

	gotSender, _ := store.GetUser(context.Background(), sender.ID)
	if math.Abs(gotSender.Balances["btc"]-15) > 1e-9 {
		t.Fatalf("refund not credited: %v", gotSender.Balances["btc"])
	}
}

func TestService_RejectWithoutSender(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	tx, _ := svc.Submit(context.Background(), SubmitInput{
		FromAddress: "ext",
		ToAddress:   "also-ext",
		Amount:      2,
		Currency:    "eth",
	})

	res, err := svc.Reject(context.Background(), tx.ID, "")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Refunded {
		t.Fatal("nothing to refund for an unresolved sender")
	}
}

func TestService_SettleUnknownTransaction(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	if _, err := svc.Approve(context.Background(), "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if _, err := svc.Reject(context.Background(), "missing", ""); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestService_AdjustBalance(t *testing.T) {
	store := memory.New()
	sender, _ := newTestUsers(t, store)
	svc := New(store, store, nil)

	updated, err := svc.AdjustBalance(context.Background(), sender.ID, "eth", 3)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if math.Abs(updated.Balances["eth"]-3) > 1e-9 {
		t.Fatalf("credit not applied: %v", updated.Balances["eth"])
	}

	updated, err = svc.AdjustBalance(context.Background(), sender.ID, "eth", -100)
	if err != nil {
		t.Fatalf("adjust down: %v", err)
	}
	if updated.Balances["eth"] != 0 {
		t.Fatalf("balance should clamp to zero: %v", updated.Balances["eth"])
	}

	if _, err := svc.AdjustBalance(context.Background(), "missing", "eth", 1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestService_ListPendingAndByUser(t *testing.T) {
	store := memory.New()
	sender, recipient := newTestUsers(t, store)
	svc := New(store, store, nil)

	first, _ := svc.Submit(context.Background(), SubmitInput{FromUserID: sender.ID, FromAddress: "alice-btc", ToAddress: "carol-btc", Amount: 1, Currency: "btc"})
	second, _ := svc.Submit(context.Background(), SubmitInput{FromUserID: sender.ID, FromAddress: "alice-btc", ToAddress: "ext", Amount: 2, Currency: "btc"})
	if _, err := svc.Approve(context.Background(), first.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	byRecipient, err := svc.ListByUser(context.Background(), recipient.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byRecipient) != 1 || byRecipient[0].ID != first.ID {
		t.Fatalf("recipient should see the resolved transfer: %+v", byRecipient)
	}

	bySender, err := svc.ListByUser(context.Background(), sender.ID)
	if err != nil {
		t.Fatalf("list by sender: %v", err)
	}
	if len(bySender) != 2 {
		t.Fatalf("sender should see both transfers: %d", len(bySender))
	}
}

type recordingNotifier struct {
	settled []transaction.Transaction
}

func (n *recordingNotifier) TransactionSettled(_ context.Context, tx transaction.Transaction) {
	n.settled = append(n.settled, tx)
}

func TestService_NotifierFiresAfterSettlement(t *testing.T) {
	store := memory.New()
	sender, _ := newTestUsers(t, store)
	svc := New(store, store, nil)
	notifier := &recordingNotifier{}
	svc.AttachNotifier(notifier)

	first, _ := svc.Submit(context.Background(), SubmitInput{FromUserID: sender.ID, FromAddress: "alice-btc", ToAddress: "carol-btc", Amount: 1, Currency: "btc"})
	second, _ := svc.Submit(context.Background(), SubmitInput{FromUserID: sender.ID, FromAddress: "alice-btc", ToAddress: "carol-btc", Amount: 1, Currency: "btc"})

	if _, err := svc.Approve(context.Background(), first.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Reject(context.Background(), second.ID, "dup"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if len(notifier.settled) != 2 {
		t.Fatalf("expected two settlement events, got %d", len(notifier.settled))
	}
	if notifier.settled[0].Status != transaction.StatusApproved || notifier.settled[1].Status != transaction.StatusRejected {
		t.Fatalf("unexpected event statuses: %s, %s", notifier.settled[0].Status, notifier.settled[1].Status)
	}
}
