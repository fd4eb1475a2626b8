// Package service holds the write paths and aggregations that span more than
// one store call.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendwise-server/src/budget"
	"spendwise-server/src/db"
	"spendwise-server/src/logging"
	"spendwise-server/src/metrics"
	"spendwise-server/src/models"
	"spendwise-server/src/notify"
	"spendwise-server/src/quickadd"
	"spendwise-server/src/rules"
	"spendwise-server/src/worker"

	"go.uber.org/zap"
)

// EvaluationObserver receives evaluation outcomes, typically the Prometheus
// collectors.
type EvaluationObserver interface {
	Evaluation(outcome string)
	BudgetWarning(tier string)
}

type nopObserver struct{}

func (nopObserver) Evaluation(string)    {}
func (nopObserver) BudgetWarning(string) {}

// Recorder is the only write path for transactions. It checks ownership of
// the referenced account and category, persists the row together with its
// balance effect, and then runs budget evaluation for the affected category.
type Recorder struct {
	store    db.Store
	cache    *db.Cache
	queue    *worker.Queue
	notifier notify.Notifier
	observer EvaluationObserver
	logger   *logging.Logger
	now      func() time.Time
}

type RecorderOption func(*Recorder)

// WithQueue runs evaluations on q. Without a queue they run inline after the
// write.
func WithQueue(q *worker.Queue) RecorderOption {
	return func(r *Recorder) { r.queue = q }
}

func WithNotifier(n notify.Notifier) RecorderOption {
	return func(r *Recorder) { r.notifier = n }
}

func WithObserver(o EvaluationObserver) RecorderOption {
	return func(r *Recorder) { r.observer = o }
}

func NewRecorder(store db.Store, cache *db.Cache, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:    store,
		cache:    cache,
		notifier: notify.Nop{},
		observer: nopObserver{},
		logger:   logging.L().Named("recorder"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates and stores t, then schedules budget evaluation.
func (r *Recorder) Create(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	created, err := r.create(ctx, t)
	if err != nil {
		return nil, err
	}
	r.evaluateAsync(ctx, *created)
	return created, nil
}

// CreateAndEvaluate stores t and evaluates budgets before returning. An
// evaluation failure is logged and reported as no warning.
func (r *Recorder) CreateAndEvaluate(ctx context.Context, t *models.Transaction) (*models.Transaction, *budget.Warning, error) {
	created, err := r.create(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	w, err := r.Evaluate(ctx, *created)
	if err != nil {
		r.logger.Error("budget evaluation failed",
			zap.Int64("user_id", created.UserID),
			zap.Int64("transaction_id", created.ID),
			zap.Error(err),
		)
		return created, nil, nil
	}
	return created, w, nil
}

func (r *Recorder) create(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	if err := r.prepare(ctx, t); err != nil {
		return nil, err
	}
	if t.CategoryID == nil {
		r.applyRules(ctx, t)
	}
	created, err := r.store.CreateTransaction(ctx, t)
	if err != nil {
		return nil, err
	}
	r.cache.InvalidateUser(created.UserID)
	return created, nil
}

// Update replaces the editable fields of an existing transaction and
// re-evaluates the budget of its (possibly new) category. A zero Date keeps
// the stored one.
func (r *Recorder) Update(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	existing, err := r.store.GetTransaction(ctx, t.UserID, t.ID)
	if err != nil {
		return nil, err
	}
	if t.Date.IsZero() {
		t.Date = existing.Date
	}
	if err := r.prepare(ctx, t); err != nil {
		return nil, err
	}
	updated, err := r.store.UpdateTransaction(ctx, t)
	if err != nil {
		return nil, err
	}
	r.cache.InvalidateUser(updated.UserID)
	r.evaluateAsync(ctx, *updated)
	return updated, nil
}

func (r *Recorder) Delete(ctx context.Context, userID, id int64) error {
	if err := r.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	r.cache.InvalidateUser(userID)
	return nil
}

// Import records a transaction coming from a bank feed. A transaction whose
// external id was already imported is skipped and reported as a duplicate.
func (r *Recorder) Import(ctx context.Context, t *models.Transaction) (*models.Transaction, bool, error) {
	if t.ExternalID == nil || *t.ExternalID == "" {
		return nil, false, models.Invalid("imported transactions need an external id")
	}
	existing, err := r.store.GetTransactionByExternalID(ctx, t.UserID, *t.ExternalID)
	switch {
	case err == nil:
		return existing, true, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, false, err
	}

	created, err := r.Create(ctx, t)
	if errors.Is(err, models.ErrConflict) {
		// imported concurrently
		existing, getErr := r.store.GetTransactionByExternalID(ctx, t.UserID, *t.ExternalID)
		if getErr != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return created, false, nil
}

// prepare normalises t and enforces the referential rules: amount and type
// are valid, the account and category belong to the user, and the category
// type matches the transaction type.
func (r *Recorder) prepare(ctx context.Context, t *models.Transaction) error {
	if t.UserID == 0 {
		return models.Invalid("user is required")
	}
	if !t.Amount.IsPositive() {
		return models.Invalid("amount must be greater than zero")
	}
	if !t.Type.Valid() {
		return models.Invalid("type must be income or expense")
	}
	if t.AccountID == 0 {
		return models.Invalid("account_id is required")
	}
	t.Description = strings.TrimSpace(t.Description)
	if t.Date.IsZero() {
		t.Date = r.now()
	}
	t.Date = budget.Truncate(t.Date)

	if _, err := r.store.GetAccount(ctx, t.UserID, t.AccountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Invalid("account %d not found", t.AccountID)
		}
		return err
	}
	if t.CategoryID != nil {
		c, err := r.store.GetCategory(ctx, t.UserID, *t.CategoryID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.Invalid("category %d not found", *t.CategoryID)
			}
			return err
		}
		if c.Type != t.Type {
			return models.Invalid("category %q is for %s, transaction is %s", c.Name, c.Type, t.Type)
		}
	}
	return nil
}

// applyRules assigns the category of the first matching rule. Rule problems
// never block the write.
func (r *Recorder) applyRules(ctx context.Context, t *models.Transaction) {
	list, err := r.store.ListTransactionRules(ctx, t.UserID)
	if err != nil || len(list) == 0 {
		if err != nil {
			r.logger.Warn("failed to load transaction rules", zap.Int64("user_id", t.UserID), zap.Error(err))
		}
		return
	}
	compiled, err := rules.Compile(list)
	if err != nil {
		r.logger.Warn("skipping invalid transaction rules", zap.Int64("user_id", t.UserID), zap.Error(err))
		return
	}
	subject, err := r.subject(ctx, *t, nil)
	if err != nil {
		r.logger.Warn("failed to build rule subject", zap.Int64("user_id", t.UserID), zap.Error(err))
		return
	}
	rule, ok := rules.First(compiled, subject)
	if !ok {
		return
	}
	c, err := r.store.GetCategory(ctx, t.UserID, rule.CategoryID)
	if err != nil || c.Type != t.Type {
		return
	}
	t.CategoryID = &c.ID
}

func (r *Recorder) subject(ctx context.Context, t models.Transaction, accounts map[int64]string) (rules.Subject, error) {
	s := rules.Subject{Description: t.Description, Amount: t.Amount, Type: t.Type}
	if name, ok := accounts[t.AccountID]; ok {
		s.AccountName = name
		return s, nil
	}
	a, err := r.store.GetAccount(ctx, t.UserID, t.AccountID)
	if err != nil {
		return s, err
	}
	s.AccountName = a.Name
	return s, nil
}

// ApplyRules categorises every uncategorised transaction of the user that
// matches a rule. It returns how many transactions were changed.
func (r *Recorder) ApplyRules(ctx context.Context, userID int64) (int, error) {
	list, err := r.store.ListTransactionRules(ctx, userID)
	if err != nil {
		return 0, err
	}
	compiled, err := rules.Compile(list)
	if err != nil {
		return 0, err
	}
	if len(compiled) == 0 {
		return 0, nil
	}

	categories, err := r.store.ListCategories(ctx, userID)
	if err != nil {
		return 0, err
	}
	categoryType := make(map[int64]models.TransactionType, len(categories))
	for _, c := range categories {
		categoryType[c.ID] = c.Type
	}
	accounts, err := r.store.ListAccounts(ctx, userID)
	if err != nil {
		return 0, err
	}
	accountNames := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		accountNames[a.ID] = a.Name
	}

	txs, err := r.store.ListTransactions(ctx, userID, models.TransactionFilter{Uncategorized: true})
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, t := range txs {
		subject, err := r.subject(ctx, t, accountNames)
		if err != nil {
			return changed, err
		}
		rule, ok := rules.First(compiled, subject)
		if !ok || categoryType[rule.CategoryID] != t.Type {
			continue
		}
		if err := r.store.SetTransactionCategory(ctx, userID, t.ID, rule.CategoryID); err != nil {
			return changed, fmt.Errorf("categorise transaction %d: %w", t.ID, err)
		}
		changed++
	}
	if changed > 0 {
		r.cache.InvalidateUser(userID)
	}
	r.logger.Info("applied transaction rules",
		zap.Int64("user_id", userID),
		zap.Int("rules", len(compiled)),
		zap.Int("changed", changed),
	)
	return changed, nil
}

type QuickAddResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Parsed      quickadd.Draft      `json:"parsed"`
	Warning     *budget.Warning     `json:"budget_warning"`
}

// QuickAdd parses a free-text note, resolves its category among the user's
// categories and records it, evaluating budgets before returning.
func (r *Recorder) QuickAdd(ctx context.Context, userID, accountID int64, text string) (*QuickAddResult, error) {
	draft, err := quickadd.Parse(text)
	if err != nil {
		return nil, err
	}
	categories, err := r.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		UserID:      userID,
		AccountID:   accountID,
		Amount:      draft.Amount,
		Type:        draft.Type,
		Description: draft.Description,
	}
	if c := quickadd.MatchCategory(text, categories, draft.Type); c != nil {
		draft.CategoryHint = c.Name
		t.CategoryID = &c.ID
	}
	if t.Description == "" {
		t.Description = draft.CategoryHint
	}

	created, warning, err := r.CreateAndEvaluate(ctx, t)
	if err != nil {
		return nil, err
	}
	return &QuickAddResult{Transaction: created, Parsed: draft, Warning: warning}, nil
}

func (r *Recorder) evaluateAsync(ctx context.Context, t models.Transaction) {
	if r.queue == nil {
		if _, err := r.Evaluate(ctx, t); err != nil {
			r.logger.Error("budget evaluation failed",
				zap.Int64("user_id", t.UserID),
				zap.Int64("transaction_id", t.ID),
				zap.Error(err),
			)
		}
		return
	}
	err := r.queue.Submit(ctx, func(ctx context.Context) error {
		_, err := r.Evaluate(ctx, t)
		return err
	})
	if err != nil {
		r.logger.Warn("budget evaluation not scheduled",
			zap.Int64("user_id", t.UserID),
			zap.Int64("transaction_id", t.ID),
			zap.Error(err),
		)
	}
}

// Evaluate checks t against every budget of its category whose period covers
// t's date. Each warning is stored as a notification and pushed to the
// user's Telegram chat when one is linked. The most severe warning is
// returned; nil means no budget was pushed past 80% or its threshold.
func (r *Recorder) Evaluate(ctx context.Context, t models.Transaction) (*budget.Warning, error) {
	if t.Type != models.TransactionExpense || t.CategoryID == nil {
		r.observer.Evaluation(metrics.OutcomeNoBudget)
		return nil, nil
	}

	budgets, err := r.store.ListBudgetsForCategory(ctx, t.UserID, *t.CategoryID)
	if err != nil {
		r.observer.Evaluation(metrics.OutcomeError)
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	var worst *budget.Warning
	active := 0
	for _, b := range budgets {
		start, end, ok := budget.PeriodFor(b, t.Date)
		if !ok {
			continue
		}
		active++
		spent, err := r.store.SumExpenses(ctx, t.UserID, *t.CategoryID, start, end, t.ID)
		if err != nil {
			r.observer.Evaluation(metrics.OutcomeError)
			return nil, fmt.Errorf("sum expenses for budget %d: %w", b.ID, err)
		}
		w := budget.Evaluate(b, spent, t.Amount)
		if w == nil {
			continue
		}
		r.observer.BudgetWarning(string(w.Tier))
		r.deliver(ctx, t, w)
		if worst == nil || w.Tier.Severity() > worst.Tier.Severity() {
			worst = w
		}
	}

	switch {
	case active == 0:
		r.observer.Evaluation(metrics.OutcomeNoBudget)
	case worst == nil:
		r.observer.Evaluation(metrics.OutcomeNoWarning)
	default:
		r.observer.Evaluation(metrics.OutcomeWarning)
	}
	return worst, nil
}

// deliver stores the warning and sends it to Telegram. Failures are logged.
func (r *Recorder) deliver(ctx context.Context, t models.Transaction, w *budget.Warning) {
	n := &models.Notification{
		UserID:        t.UserID,
		BudgetID:      w.BudgetID,
		TransactionID: t.ID,
		Tier:          w.Tier,
		Percentage:    w.Percentage,
		Message:       w.Message,
	}
	if err := r.store.CreateNotification(ctx, n); err != nil {
		r.logger.Error("failed to store budget notification",
			zap.Int64("user_id", t.UserID),
			zap.Int64("budget_id", w.BudgetID),
			zap.Error(err),
		)
	}

	user, err := r.store.GetUserByID(ctx, t.UserID)
	if err != nil {
		r.logger.Error("failed to load user for notification", zap.Int64("user_id", t.UserID), zap.Error(err))
		return
	}
	if user.TelegramChatID == nil {
		return
	}
	if err := r.notifier.Notify(ctx, *user.TelegramChatID, w.Message); err != nil {
		r.logger.Warn("failed to send budget notification",
			zap.Int64("user_id", t.UserID),
			zap.Int64("budget_id", w.BudgetID),
			zap.Error(err),
		)
	}
}
