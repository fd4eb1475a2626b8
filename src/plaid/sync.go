package plaid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spendwise-server/src/db"
	"spendwise-server/src/logging"
	"spendwise-server/src/models"

	"go.uber.org/zap"
)

// maxSyncPages bounds one sync run; the cursor lets the next run continue.
const maxSyncPages = 20

// Importer records a bank transaction, skipping ones already imported.
type Importer interface {
	Import(ctx context.Context, t *models.Transaction) (*models.Transaction, bool, error)
}

type SyncResult struct {
	Added      int  `json:"added"`
	Duplicates int  `json:"duplicates"`
	Skipped    int  `json:"skipped"`
	HasMore    bool `json:"has_more"`
}

type Service struct {
	feed     Feed
	store    db.Store
	importer Importer
	logger   *logging.Logger
}

func NewService(feed Feed, store db.Store, importer Importer) *Service {
	return &Service{
		feed:     feed,
		store:    store,
		importer: importer,
		logger:   logging.L().Named("plaid"),
	}
}

func (s *Service) LinkToken(ctx context.Context, userID int64) (string, error) {
	return s.feed.CreateLinkToken(ctx, userID)
}

// Link exchanges a Link public token and binds the resulting item to one of
// the user's accounts. Imported transactions land in that account.
func (s *Service) Link(ctx context.Context, userID int64, publicToken string, accountID int64) (*models.PlaidItem, error) {
	if strings.TrimSpace(publicToken) == "" {
		return nil, models.Invalid("public_token is required")
	}
	if _, err := s.store.GetAccount(ctx, userID, accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Invalid("account %d not found", accountID)
		}
		return nil, err
	}

	itemID, accessToken, err := s.feed.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, err
	}
	item, err := s.store.CreatePlaidItem(ctx, &models.PlaidItem{
		UserID:      userID,
		ItemID:      itemID,
		AccessToken: accessToken,
		AccountID:   accountID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("linked plaid item",
		zap.Int64("user_id", userID),
		zap.String("item_id", itemID),
		zap.Int64("account_id", accountID),
	)
	return item, nil
}

func (s *Service) Unlink(ctx context.Context, userID, id int64) error {
	item, err := s.store.GetPlaidItem(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.feed.RemoveItem(ctx, item.AccessToken); err != nil {
		// The local binding goes regardless; Plaid expires orphaned items.
		s.logger.Warn("failed to remove item at plaid", zap.String("item_id", item.ItemID), zap.Error(err))
	}
	return s.store.DeletePlaidItem(ctx, userID, id)
}

func (s *Service) Sync(ctx context.Context, userID, id int64) (*SyncResult, error) {
	item, err := s.store.GetPlaidItem(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.SyncItem(ctx, item)
}

// SyncByItemID syncs the item Plaid identifies in a webhook.
func (s *Service) SyncByItemID(ctx context.Context, itemID string) (*SyncResult, error) {
	item, err := s.store.GetPlaidItemByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.SyncItem(ctx, item)
}

// SyncItem pulls added transactions page by page, importing each into the
// item's account. The cursor is saved after every page so a failure resumes
// where it stopped. Pending and zero-amount transactions are skipped; Plaid
// reports pending ones again under a new id once they post.
func (s *Service) SyncItem(ctx context.Context, item *models.PlaidItem) (*SyncResult, error) {
	categories, err := s.store.ListCategories(ctx, item.UserID)
	if err != nil {
		return nil, err
	}
	lookup := categoryLookup(categories)

	res := &SyncResult{}
	cursor := item.Cursor
	for page := 0; page < maxSyncPages; page++ {
		p, err := s.feed.Sync(ctx, item.AccessToken, cursor)
		if err != nil {
			return res, err
		}
		for _, bt := range p.Added {
			if bt.Pending || bt.Amount.IsZero() {
				res.Skipped++
				continue
			}
			_, dup, err := s.importer.Import(ctx, toTransaction(item, bt, lookup))
			if err != nil {
				return res, fmt.Errorf("import %s: %w", bt.ID, err)
			}
			if dup {
				res.Duplicates++
			} else {
				res.Added++
			}
		}
		if p.NextCursor != "" && p.NextCursor != cursor {
			cursor = p.NextCursor
			if err := s.store.UpdatePlaidCursor(ctx, item.ID, cursor); err != nil {
				return res, err
			}
		}
		res.HasMore = p.HasMore
		if !p.HasMore {
			break
		}
	}

	s.logger.Info("synced plaid item",
		zap.Int64("user_id", item.UserID),
		zap.String("item_id", item.ItemID),
		zap.Int("added", res.Added),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

type categoryKey struct {
	name string
	typ  models.TransactionType
}

func normaliseCategory(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(name, "_", " "))), " ")
}

func categoryLookup(categories []models.Category) map[categoryKey]int64 {
	lookup := make(map[categoryKey]int64, len(categories))
	for _, c := range categories {
		key := categoryKey{normaliseCategory(c.Name), c.Type}
		if _, ok := lookup[key]; !ok {
			lookup[key] = c.ID
		}
	}
	return lookup
}

// toTransaction maps Plaid's sign convention onto a transaction type:
// outflows are positive and become expenses, inflows become income.
func toTransaction(item *models.PlaidItem, bt BankTransaction, lookup map[categoryKey]int64) *models.Transaction {
	t := &models.Transaction{
		UserID:      item.UserID,
		AccountID:   item.AccountID,
		Amount:      bt.Amount.Abs(),
		Type:        models.TransactionExpense,
		Description: bt.Name,
		Date:        bt.Date,
	}
	if bt.Amount.IsNegative() {
		t.Type = models.TransactionIncome
	}
	if t.Description == "" {
		t.Description = bt.Merchant
	}
	id := bt.ID
	t.ExternalID = &id
	if bt.Category != "" {
		if categoryID, ok := lookup[categoryKey{normaliseCategory(bt.Category), t.Type}]; ok {
			t.CategoryID = &categoryID
		}
	}
	return t
}
