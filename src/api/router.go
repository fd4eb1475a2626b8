package api

import (
	"net/http"

	"spendwise-server/src/db"
	"spendwise-server/src/handlers"
	"spendwise-server/src/logging"
	"spendwise-server/src/metrics"
	"spendwise-server/src/middleware"
	"spendwise-server/src/plaid"
	"spendwise-server/src/service"
	"spendwise-server/src/worker"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router hands to handlers. Plaid and Webhooks are
// nil when bank sync is not configured; Queue and Gatherer are optional.
type Deps struct {
	Store      db.Store
	Cache      *db.Cache
	Recorder   *service.Recorder
	Budgets    *service.Budgets
	Catalog    *service.Catalog
	Dashboards *service.Dashboards
	Queue      *worker.Queue
	Plaid      *plaid.Service
	Webhooks   *plaid.WebhookVerifier
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Logger     *logging.Logger

	JWTSecret   []byte
	CORSOrigins []string
	DemoMode    bool
}

func NewRouter(d Deps) *chi.Mux {
	if d.Logger == nil {
		d.Logger = logging.L()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.Metrics != nil {
		r.Use(middleware.Instrument(d.Logger.Named("http"), d.Metrics))
	} else {
		r.Use(middleware.Instrument(d.Logger.Named("http"), nil))
	}
	r.Use(middleware.CORSMiddleware(d.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	auth := middleware.JWTAuthMiddleware(d.JWTSecret, middleware.CachedUserLookup(d.Store, d.Cache))
	demo := middleware.DemoModeMiddleware(d.DemoMode)

	r.Route("/api", func(r chi.Router) {
		if d.Plaid != nil {
			r.Post("/plaid/webhook", handlers.PlaidWebhook(d.Plaid, d.Webhooks))
		}

		// Protected routes
		r.With(auth, demo).Group(func(r chi.Router) {
			// User
			r.Get("/user", handlers.GetUser(d.Store))
			r.Put("/user", handlers.UpdateUser(d.Store, d.Cache))
			r.Post("/user/change-password", handlers.ChangePassword(d.Store))
			r.Put("/user/telegram", handlers.LinkTelegram(d.Store, d.Cache))
			r.Delete("/user/telegram", handlers.UnlinkTelegram(d.Store, d.Cache))

			// Accounts
			r.Post("/accounts", handlers.CreateAccount(d.Catalog))
			r.Get("/accounts", handlers.GetAccounts(d.Store))
			r.Get("/accounts/{account_id}", handlers.GetAccountByID(d.Store))
			r.Put("/accounts/{account_id}", handlers.UpdateAccount(d.Catalog))
			r.Delete("/accounts/{account_id}", handlers.DeleteAccount(d.Catalog))

			// Categories
			r.Post("/categories", handlers.CreateCategory(d.Catalog))
			r.Get("/categories", handlers.GetCategories(d.Store))
			r.Put("/categories/{category_id}", handlers.UpdateCategory(d.Catalog))
			r.Delete("/categories/{category_id}", handlers.DeleteCategory(d.Catalog))

			// Transactions
			r.Post("/transactions", handlers.CreateTransaction(d.Recorder))
			r.Post("/transactions/quick-add", handlers.QuickAddTransaction(d.Recorder))
			r.Get("/transactions", handlers.GetTransactions(d.Store))
			r.Get("/transactions/{transaction_id}", handlers.GetTransactionByID(d.Store))
			r.Put("/transactions/{transaction_id}", handlers.UpdateTransaction(d.Recorder))
			r.Delete("/transactions/{transaction_id}", handlers.DeleteTransaction(d.Recorder))

			// Budget
			r.Post("/budgets", handlers.CreateBudget(d.Budgets))
			r.Get("/budgets", handlers.GetAllBudgetsForUser(d.Budgets))
			r.Get("/budgets/{budget_id}", handlers.GetBudgetByID(d.Budgets))
			r.Put("/budgets/{budget_id}", handlers.UpdateBudget(d.Budgets))
			r.Delete("/budgets/{budget_id}", handlers.DeleteBudget(d.Budgets))

			// Goals
			r.Post("/goals", handlers.CreateGoal(d.Catalog))
			r.Get("/goals", handlers.GetGoals(d.Store))
			r.Put("/goals/{goal_id}", handlers.UpdateGoal(d.Catalog))
			r.Post("/goals/{goal_id}/contribute", handlers.ContributeToGoal(d.Catalog))
			r.Delete("/goals/{goal_id}", handlers.DeleteGoal(d.Catalog))

			// Notifications
			r.Get("/notifications", handlers.GetNotifications(d.Store))
			r.Put("/notifications/{notification_id}/read", handlers.MarkNotificationRead(d.Store))

			// Transaction Rules
			r.Post("/transaction-rules", handlers.CreateTransactionRule(d.Catalog))
			r.Post("/transaction-rules/trigger", handlers.TriggerTransactionRules(d.Recorder))
			r.Get("/transaction-rules", handlers.GetAllTransactionRules(d.Store))
			r.Get("/transaction-rules/{rule_id}", handlers.GetTransactionRuleByID(d.Store))
			r.Put("/transaction-rules/{rule_id}", handlers.UpdateTransactionRule(d.Catalog))
			r.Delete("/transaction-rules/{rule_id}", handlers.DeleteTransactionRule(d.Store))

			// Dashboard
			r.Get("/dashboard", handlers.GetDashboard(d.Dashboards))

			// Plaid
			if d.Plaid != nil {
				r.Post("/plaid/link-token", handlers.CreateLinkToken(d.Plaid))
				r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(d.Plaid))
				r.Get("/plaid/items", handlers.GetPlaidItems(d.Store))
				r.Post("/plaid/items/{item_id}/sync", handlers.SyncTransactions(d.Plaid))
				r.Delete("/plaid/items/{item_id}", handlers.DeletePlaidItem(d.Plaid))
			}
		})

		// Admin routes
		r.With(auth, middleware.AdminMiddleware).Group(func(r chi.Router) {
			r.Get("/admin/users", handlers.GetAllUsers(d.Store))
			r.Post("/admin/users", handlers.AdminCreateUser(d.Store))
			r.Put("/admin/users/{user_id}/role", handlers.AdminSetRole(d.Store, d.Cache))
			r.Post("/admin/users/{user_id}/lock", handlers.LockUser(d.Store, d.Cache))
			r.Post("/admin/users/{user_id}/unlock", handlers.UnlockUser(d.Store, d.Cache))
			r.Delete("/admin/users/{user_id}", handlers.AdminDeleteUser(d.Store, d.Cache))

			r.Post("/admin/cache/clear/{cache_name}", handlers.ClearCache(d.Cache))
			if d.Queue != nil {
				r.Get("/admin/queue", handlers.GetQueueStats(d.Queue))
			}
		})
	})

	return r
}
