package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"spendwise-server/src/db"
	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	monthLayout   = "2006-01"
	trendMonths   = 6
	recentEntries = 5
)

// Dashboards builds the monthly overview. Results are cached per user and
// month until the user's next write or db.DefaultTTL, whichever comes first.
type Dashboards struct {
	store   db.Store
	cache   *db.Cache
	budgets *Budgets
	group   singleflight.Group
	now     func() time.Time
}

func NewDashboards(store db.Store, cache *db.Cache, budgets *Budgets) *Dashboards {
	return &Dashboards{store: store, cache: cache, budgets: budgets, now: time.Now}
}

// ParseMonth reads a YYYY-MM value. An empty string means the current month.
func (d *Dashboards) ParseMonth(s string) (time.Time, error) {
	if s == "" {
		n := d.now().UTC()
		return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	m, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, models.Invalid("month must look like YYYY-MM")
	}
	return m, nil
}

// Get returns the dashboard for month. The current month is cached per day,
// since its budget periods are taken as of today.
func (d *Dashboards) Get(ctx context.Context, userID int64, month time.Time) (*models.Dashboard, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	at := d.asOf(first)
	key := db.DashboardKey(userID, first.Format(monthLayout)+"@"+at.Format("2006-01-02"))
	if v, ok := d.cache.Get(key); ok {
		if dash, ok := v.(*models.Dashboard); ok {
			return dash, nil
		}
	}

	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		gen := d.cache.Generation(userID)
		dash, err := d.build(ctx, userID, first, at)
		if err != nil {
			return nil, err
		}
		d.cache.SetIfCurrent(userID, gen, key, dash, db.CacheDashboard, db.UserTag(userID))
		return dash, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Dashboard), nil
}

// asOf is the day budgets are reported at: today for the current month and
// the month's last day otherwise.
func (d *Dashboards) asOf(first time.Time) time.Time {
	today := d.now().UTC()
	if today.Format(monthLayout) == first.Format(monthLayout) {
		return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	}
	return first.AddDate(0, 1, -1)
}

func (d *Dashboards) build(ctx context.Context, userID int64, first, at time.Time) (*models.Dashboard, error) {
	last := first.AddDate(0, 1, -1)
	trendStart := first.AddDate(0, -(trendMonths - 1), 0)

	var (
		accounts   []models.Account
		categories []models.Category
		trendTxs   []models.Transaction
		recent     []models.Transaction
		budgets    []models.BudgetProgress
		goals      []models.Goal
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = d.store.ListAccounts(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		categories, err = d.store.ListCategories(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		trendTxs, err = d.store.ListTransactions(ctx, userID, models.TransactionFilter{From: &trendStart, To: &last})
		return err
	})
	g.Go(func() (err error) {
		recent, err = d.store.ListTransactions(ctx, userID, models.TransactionFilter{Limit: recentEntries})
		return err
	})
	g.Go(func() (err error) {
		budgets, err = d.budgets.Progress(ctx, userID, at)
		return err
	})
	g.Go(func() (err error) {
		goals, err = d.store.ListGoals(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}

	dash := &models.Dashboard{
		Month:              first.Format(monthLayout),
		TotalBalance:       decimal.Zero,
		Budgets:            budgets,
		RecentTransactions: recent,
		Goals:              make([]models.GoalProgress, 0, len(goals)),
	}
	for _, a := range accounts {
		dash.TotalBalance = dash.TotalBalance.Add(a.Balance)
	}
	for _, goal := range goals {
		dash.Goals = append(dash.Goals, models.GoalProgress{Goal: goal, Percentage: goal.Percentage(), Achieved: goal.Achieved()})
	}

	dash.Trend = monthlyTrend(trendTxs, trendStart, trendMonths)
	dash.Totals = dash.Trend[len(dash.Trend)-1]

	var inMonth []models.Transaction
	for _, t := range trendTxs {
		if !t.Date.Before(first) {
			inMonth = append(inMonth, t)
		}
	}
	dash.ExpenseByCategory = expenseByCategory(inMonth, categories)
	return dash, nil
}

// monthlyTrend buckets transactions into n calendar months starting at
// start. Months without activity are present with zero totals.
func monthlyTrend(txs []models.Transaction, start time.Time, n int) []models.MonthlyTotals {
	trend := make([]models.MonthlyTotals, n)
	index := make(map[string]int, n)
	for i := range trend {
		m := start.AddDate(0, i, 0).Format(monthLayout)
		trend[i] = models.MonthlyTotals{Month: m, Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero}
		index[m] = i
	}
	for _, t := range txs {
		i, ok := index[t.Date.Format(monthLayout)]
		if !ok {
			continue
		}
		if t.Type == models.TransactionIncome {
			trend[i].Income = trend[i].Income.Add(t.Amount)
		} else {
			trend[i].Expense = trend[i].Expense.Add(t.Amount)
		}
	}
	for i := range trend {
		trend[i].Net = trend[i].Income.Sub(trend[i].Expense)
	}
	return trend
}

// expenseByCategory totals expenses per category, largest first, with each
// category's share of all expenses as a percentage.
func expenseByCategory(txs []models.Transaction, categories []models.Category) []models.CategorySpend {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	total := decimal.Zero
	byID := make(map[int64]*models.CategorySpend)
	var uncategorized *models.CategorySpend
	for _, t := range txs {
		if t.Type != models.TransactionExpense {
			continue
		}
		total = total.Add(t.Amount)

		var spend *models.CategorySpend
		if t.CategoryID == nil {
			if uncategorized == nil {
				uncategorized = &models.CategorySpend{CategoryName: "Uncategorized", Amount: decimal.Zero}
			}
			spend = uncategorized
		} else {
			spend = byID[*t.CategoryID]
			if spend == nil {
				id := *t.CategoryID
				spend = &models.CategorySpend{CategoryID: &id, CategoryName: names[id], Amount: decimal.Zero}
				byID[id] = spend
			}
		}
		spend.Amount = spend.Amount.Add(t.Amount)
	}

	out := make([]models.CategorySpend, 0, len(byID)+1)
	for _, s := range byID {
		out = append(out, *s)
	}
	if uncategorized != nil {
		out = append(out, *uncategorized)
	}
	for i := range out {
		if total.IsPositive() {
			out[i].Share = out[i].Amount.Mul(decimal.NewFromInt(100)).Div(total).Round(2)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].CategoryName < out[j].CategoryName
	})
	return out
}
