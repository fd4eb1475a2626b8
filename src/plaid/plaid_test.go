package plaid

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spendwise-server/src/db"
	"spendwise-server/src/db/sqlite"
	"spendwise-server/src/models"
	"spendwise-server/src/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

type fakeFeed struct {
	pages   map[string]*SyncPage
	cursors []string
	removed []string
}

func (f *fakeFeed) CreateLinkToken(_ context.Context, userID int64) (string, error) {
	return "link-sandbox-123", nil
}

func (f *fakeFeed) ExchangePublicToken(_ context.Context, publicToken string) (string, string, error) {
	return "item-" + publicToken, "access-" + publicToken, nil
}

func (f *fakeFeed) Sync(_ context.Context, accessToken, cursor string) (*SyncPage, error) {
	f.cursors = append(f.cursors, cursor)
	p, ok := f.pages[cursor]
	if !ok {
		return &SyncPage{NextCursor: cursor}, nil
	}
	return p, nil
}

func (f *fakeFeed) RemoveItem(_ context.Context, accessToken string) error {
	f.removed = append(f.removed, accessToken)
	return nil
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func setup(t *testing.T) (*sqlite.Store, *models.User, *models.Account, *models.Category) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	user, err := store.CreateUser(ctx, &models.User{Email: "an@example.com"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	account, err := store.CreateAccount(ctx, &models.Account{UserID: user.ID, Name: "Checking", Type: models.AccountBank, Currency: "USD"})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	food, err := store.CreateCategory(ctx, &models.Category{UserID: user.ID, Name: "Food and drink", Type: models.TransactionExpense})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	return store, user, account, food
}

func TestLinkAndSync(t *testing.T) {
	store, user, account, food := setup(t)
	ctx := context.Background()
	cache, err := db.NewCache(100)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	feed := &fakeFeed{pages: map[string]*SyncPage{
		"": {
			Added: []BankTransaction{
				{ID: "t1", Amount: decimal.RequireFromString("12.50"), Date: day("2025-03-01"), Name: "Starbucks", Category: "FOOD_AND_DRINK"},
				{ID: "t2", Amount: decimal.RequireFromString("-1500"), Date: day("2025-03-02"), Name: "Payroll", Category: "INCOME"},
			},
			NextCursor: "c1",
			HasMore:    true,
		},
		"c1": {
			Added: []BankTransaction{
				{ID: "t3", Amount: decimal.RequireFromString("40"), Date: day("2025-03-03"), Merchant: "Shell", Pending: true},
				{ID: "t1", Amount: decimal.RequireFromString("12.50"), Date: day("2025-03-01"), Name: "Starbucks"},
			},
			NextCursor: "c2",
		},
	}}
	svc := NewService(feed, store, service.NewRecorder(store, cache))

	if _, err := svc.Link(ctx, user.ID, "pub", 9999); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("link to unknown account: %v", err)
	}
	item, err := svc.Link(ctx, user.ID, "pub", account.ID)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if item.ItemID != "item-pub" || item.AccessToken != "access-pub" {
		t.Errorf("item = %+v", item)
	}

	res, err := svc.Sync(ctx, user.ID, item.ID)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Added != 2 || res.Duplicates != 1 || res.Skipped != 1 || res.HasMore {
		t.Errorf("result = %+v", res)
	}

	txs, err := store.ListTransactions(ctx, user.ID, models.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions", len(txs))
	}
	for _, tx := range txs {
		switch *tx.ExternalID {
		case "t1":
			if tx.Type != models.TransactionExpense || tx.CategoryID == nil || *tx.CategoryID != food.ID {
				t.Errorf("t1 = %+v", tx)
			}
		case "t2":
			if tx.Type != models.TransactionIncome || !tx.Amount.Equal(decimal.NewFromInt(1500)) || tx.CategoryID != nil {
				t.Errorf("t2 = %+v", tx)
			}
		}
	}

	saved, _ := store.GetPlaidItem(ctx, user.ID, item.ID)
	if saved.Cursor != "c2" {
		t.Errorf("cursor = %q, want c2", saved.Cursor)
	}

	// A webhook-triggered run resumes from the saved cursor.
	if _, err := svc.SyncByItemID(ctx, "item-pub"); err != nil {
		t.Fatalf("SyncByItemID failed: %v", err)
	}
	if last := feed.cursors[len(feed.cursors)-1]; last != "c2" {
		t.Errorf("resumed from %q", last)
	}

	if err := svc.Unlink(ctx, user.ID, item.ID); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if len(feed.removed) != 1 {
		t.Errorf("item not removed at plaid")
	}
	if _, err := store.GetPlaidItem(ctx, user.ID, item.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func signWebhook(t *testing.T, key *ecdsa.PrivateKey, kid string, body []byte, iat time.Time) string {
	t.Helper()
	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iat":                 iat.Unix(),
		"request_body_sha256": hex.EncodeToString(sum[:]),
	})
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return signed
}

func TestWebhookVerifier(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	fetches := 0
	v := NewWebhookVerifier(func(_ context.Context, kid string) (*ecdsa.PublicKey, error) {
		fetches++
		if kid != "kid-1" {
			return nil, errors.New("unknown kid")
		}
		return &key.PublicKey, nil
	})
	ctx := context.Background()
	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-pub"}`)

	if err := v.Verify(ctx, body, signWebhook(t, key, "kid-1", body, time.Now())); err != nil {
		t.Errorf("valid webhook rejected: %v", err)
	}
	if err := v.Verify(ctx, body, signWebhook(t, key, "kid-1", body, time.Now())); err != nil {
		t.Errorf("valid webhook rejected: %v", err)
	}
	if fetches != 1 {
		t.Errorf("key fetched %d times, want 1", fetches)
	}

	tampered := append([]byte(nil), body...)
	tampered[2] = 'X'
	if err := v.Verify(ctx, tampered, signWebhook(t, key, "kid-1", body, time.Now())); !errors.Is(err, ErrInvalidWebhook) {
		t.Errorf("tampered body: %v", err)
	}
	if err := v.Verify(ctx, body, signWebhook(t, key, "kid-1", body, time.Now().Add(-10*time.Minute))); !errors.Is(err, ErrInvalidWebhook) {
		t.Errorf("stale token: %v", err)
	}

	other, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err := v.Verify(ctx, body, signWebhook(t, other, "kid-1", body, time.Now())); !errors.Is(err, ErrInvalidWebhook) {
		t.Errorf("wrong signer: %v", err)
	}
	if err := v.Verify(ctx, body, ""); !errors.Is(err, ErrInvalidWebhook) {
		t.Errorf("missing token: %v", err)
	}
}
