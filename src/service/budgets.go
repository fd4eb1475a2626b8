package service

import (
	"context"
	"errors"
	"time"

	"spendwise-server/src/budget"
	"spendwise-server/src/db"
	"spendwise-server/src/models"
)

// Budgets validates budget writes and reports progress.
type Budgets struct {
	store db.Store
	cache *db.Cache
	now   func() time.Time
}

func NewBudgets(store db.Store, cache *db.Cache) *Budgets {
	return &Budgets{store: store, cache: cache, now: time.Now}
}

func (s *Budgets) Create(ctx context.Context, b *models.Budget) (*models.Budget, error) {
	if err := s.validate(ctx, b); err != nil {
		return nil, err
	}
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(b.UserID)
	return created, nil
}

func (s *Budgets) Update(ctx context.Context, b *models.Budget) (*models.Budget, error) {
	if _, err := s.store.GetBudget(ctx, b.UserID, b.ID); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, b); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateBudget(ctx, b)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(b.UserID)
	return updated, nil
}

func (s *Budgets) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.cache.InvalidateUser(userID)
	return nil
}

func (s *Budgets) validate(ctx context.Context, b *models.Budget) error {
	if b.Amount.IsNegative() {
		return models.Invalid("amount must not be negative")
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return models.Invalid("start_date and end_date are required")
	}
	b.StartDate, b.EndDate = budget.Truncate(b.StartDate), budget.Truncate(b.EndDate)
	if b.EndDate.Before(b.StartDate) {
		return models.Invalid("end_date must not be before start_date")
	}
	if b.NotificationThreshold < 0 || b.NotificationThreshold > 100 {
		return models.Invalid("notification_threshold must be between 0 and 100")
	}
	c, err := s.store.GetCategory(ctx, b.UserID, b.CategoryID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Invalid("category %d not found", b.CategoryID)
		}
		return err
	}
	if c.Type != models.TransactionExpense {
		return models.Invalid("budgets track expense categories only")
	}
	return nil
}

// Progress reports every budget of the user as of the given day. Budgets
// whose window does not cover the day report their own window with
// Active false.
func (s *Budgets) Progress(ctx context.Context, userID int64, at time.Time) ([]models.BudgetProgress, error) {
	at = budget.Truncate(at)
	key := db.BudgetsKey(userID, at.Format("2006-01-02"))
	if v, ok := s.cache.Get(key); ok {
		if progress, ok := v.([]models.BudgetProgress); ok {
			return progress, nil
		}
	}

	gen := s.cache.Generation(userID)
	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress := make([]models.BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		p, err := s.progressOf(ctx, b, at)
		if err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}

	s.cache.SetIfCurrent(userID, gen, key, progress, db.CacheBudgets, db.UserTag(userID))
	return progress, nil
}

// Today is Progress for the current day.
func (s *Budgets) Today(ctx context.Context, userID int64) ([]models.BudgetProgress, error) {
	return s.Progress(ctx, userID, s.now())
}

func (s *Budgets) progressOf(ctx context.Context, b models.Budget, at time.Time) (models.BudgetProgress, error) {
	start, end, active := budget.PeriodFor(b, at)
	p := models.BudgetProgress{Budget: b, PeriodStart: start, PeriodEnd: end, Active: active}

	spent, err := s.store.SumExpenses(ctx, b.UserID, b.CategoryID, start, end, 0)
	if err != nil {
		return p, err
	}
	p.Spent = spent
	p.Remaining, p.Percentage, p.Tier = budget.Progress(b, spent)
	return p, nil
}
