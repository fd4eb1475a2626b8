package service

import (
	"context"
	"errors"
	"strings"

	"spendwise-server/src/db"
	"spendwise-server/src/models"
	"spendwise-server/src/rules"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "VND"

// Catalog validates writes to accounts, categories and goals and drops the
// user's cached aggregates after each one.
type Catalog struct {
	store db.Store
	cache *db.Cache
}

func NewCatalog(store db.Store, cache *db.Cache) *Catalog {
	return &Catalog{store: store, cache: cache}
}

func (c *Catalog) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	if err := normaliseAccount(a); err != nil {
		return nil, err
	}
	created, err := c.store.CreateAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateUser(a.UserID)
	return created, nil
}

func (c *Catalog) UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	if err := normaliseAccount(a); err != nil {
		return nil, err
	}
	updated, err := c.store.UpdateAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateUser(a.UserID)
	return updated, nil
}

// DeleteAccount removes the account together with its transactions.
func (c *Catalog) DeleteAccount(ctx context.Context, userID, id int64) error {
	if err := c.store.DeleteAccount(ctx, userID, id); err != nil {
		return err
	}
	c.cache.InvalidateUser(userID)
	return nil
}

func normaliseAccount(a *models.Account) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return models.Invalid("name is required")
	}
	if a.Type == "" {
		a.Type = models.AccountCash
	}
	if !a.Type.Valid() {
		return models.Invalid("type must be one of cash, bank, card, savings")
	}
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	if len(a.Currency) != 3 {
		return models.Invalid("currency must be a three-letter code")
	}
	return nil
}

func (c *Catalog) CreateCategory(ctx context.Context, cat *models.Category) (*models.Category, error) {
	if err := c.validateCategory(ctx, cat); err != nil {
		return nil, err
	}
	created, err := c.store.CreateCategory(ctx, cat)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateUser(cat.UserID)
	return created, nil
}

func (c *Catalog) UpdateCategory(ctx context.Context, cat *models.Category) (*models.Category, error) {
	if _, err := c.store.GetCategory(ctx, cat.UserID, cat.ID); err != nil {
		return nil, err
	}
	if err := c.validateCategory(ctx, cat); err != nil {
		return nil, err
	}
	updated, err := c.store.UpdateCategory(ctx, cat)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateUser(cat.UserID)
	return updated, nil
}

// DeleteCategory leaves the category's transactions uncategorised and
// removes its budgets and rules.
func (c *Catalog) DeleteCategory(ctx context.Context, userID, id int64) error {
	if err := c.store.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	c.cache.InvalidateUser(userID)
	return nil
}

func (c *Catalog) validateCategory(ctx context.Context, cat *models.Category) error {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return models.Invalid("name is required")
	}
	if !cat.Type.Valid() {
		return models.Invalid("type must be income or expense")
	}
	if cat.ParentID == nil {
		return nil
	}
	if cat.ID != 0 && *cat.ParentID == cat.ID {
		return models.Invalid("a category cannot be its own parent")
	}
	parent, err := c.store.GetCategory(ctx, cat.UserID, *cat.ParentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Invalid("parent category %d not found", *cat.ParentID)
		}
		return err
	}
	if parent.Type != cat.Type {
		return models.Invalid("parent category %q is for %s", parent.Name, parent.Type)
	}
	return nil
}

func (c *Catalog) CreateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error) {
	if err := normaliseGoal(g); err != nil {
		return nil, err
	}
	created, err := c.store.CreateGoal(ctx, g)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateUser(g.UserID)
	return created, nil
}

func (c *Catalog) UpdateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error) {
	if err := normaliseGoal(g); err != nil {
		return nil, err
	}
	updated, err := c.store.UpdateGoal(ctx, g)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateUser(g.UserID)
	return updated, nil
}

func (c *Catalog) Contribute(ctx context.Context, userID, id int64, amount decimal.Decimal) (*models.Goal, error) {
	if !amount.IsPositive() {
		return nil, models.Invalid("amount must be greater than zero")
	}
	g, err := c.store.AddGoalContribution(ctx, userID, id, amount)
	if err != nil {
		return nil, err
	}
	c.cache.InvalidateUser(userID)
	return g, nil
}

func (c *Catalog) DeleteGoal(ctx context.Context, userID, id int64) error {
	if err := c.store.DeleteGoal(ctx, userID, id); err != nil {
		return err
	}
	c.cache.InvalidateUser(userID)
	return nil
}

func normaliseGoal(g *models.Goal) error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return models.Invalid("name is required")
	}
	if !g.TargetAmount.IsPositive() {
		return models.Invalid("target_amount must be greater than zero")
	}
	if g.CurrentAmount.IsNegative() {
		return models.Invalid("current_amount must not be negative")
	}
	return nil
}

func (c *Catalog) CreateRule(ctx context.Context, r *models.TransactionRule) (*models.TransactionRule, error) {
	if err := c.validateRule(ctx, r); err != nil {
		return nil, err
	}
	return c.store.CreateTransactionRule(ctx, r)
}

func (c *Catalog) UpdateRule(ctx context.Context, r *models.TransactionRule) (*models.TransactionRule, error) {
	if err := c.validateRule(ctx, r); err != nil {
		return nil, err
	}
	return c.store.UpdateTransactionRule(ctx, r)
}

func (c *Catalog) validateRule(ctx context.Context, r *models.TransactionRule) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return models.Invalid("name is required")
	}
	if _, err := rules.Parse(r.Conditions); err != nil {
		return err
	}
	if _, err := c.store.GetCategory(ctx, r.UserID, r.CategoryID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Invalid("category %d not found", r.CategoryID)
		}
		return err
	}
	return nil
}
