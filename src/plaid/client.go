// Package plaid imports bank transactions through Plaid's transactions/sync
// API and records them like any other transaction.
package plaid

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"
)

const clientName = "Spendwise"

func NewPlaidClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid plaid environment: %s", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// BankTransaction is the part of a Plaid transaction the importer uses.
// Amount follows Plaid's sign: positive is money leaving the account.
type BankTransaction struct {
	ID       string
	Amount   decimal.Decimal
	Date     time.Time
	Name     string
	Merchant string
	Category string
	Pending  bool
}

type SyncPage struct {
	Added      []BankTransaction
	NextCursor string
	HasMore    bool
}

// Feed is the slice of the Plaid API the importer needs.
type Feed interface {
	CreateLinkToken(ctx context.Context, userID int64) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (itemID, accessToken string, err error)
	Sync(ctx context.Context, accessToken, cursor string) (*SyncPage, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// APIFeed implements Feed with the Plaid client.
type APIFeed struct {
	client *plaid.APIClient
}

func NewAPIFeed(client *plaid.APIClient) *APIFeed {
	return &APIFeed{client: client}
}

func (f *APIFeed) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: strconv.FormatInt(userID, 10),
	}
	request := plaid.NewLinkTokenCreateRequest(
		clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
	)
	request.SetUser(user)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})

	resp, _, err := f.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", fmt.Errorf("plaid link token: %w", err)
	}
	return resp.GetLinkToken(), nil
}

func (f *APIFeed) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	req := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := f.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return "", "", fmt.Errorf("plaid public token exchange: %w", err)
	}
	return resp.GetItemId(), resp.GetAccessToken(), nil
}

func (f *APIFeed) Sync(ctx context.Context, accessToken, cursor string) (*SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}
	resp, _, err := f.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, fmt.Errorf("plaid transactions sync: %w", err)
	}

	page := &SyncPage{NextCursor: resp.GetNextCursor(), HasMore: resp.GetHasMore()}
	for _, txn := range resp.GetAdded() {
		bt, err := fromPlaid(txn)
		if err != nil {
			return nil, err
		}
		page.Added = append(page.Added, bt)
	}
	return page, nil
}

func (f *APIFeed) RemoveItem(ctx context.Context, accessToken string) error {
	req := plaid.NewItemRemoveRequest(accessToken)
	if _, _, err := f.client.PlaidApi.ItemRemove(ctx).ItemRemoveRequest(*req).Execute(); err != nil {
		return fmt.Errorf("plaid item remove: %w", err)
	}
	return nil
}

func fromPlaid(txn plaid.Transaction) (BankTransaction, error) {
	date, err := time.Parse("2006-01-02", txn.GetDate())
	if err != nil {
		return BankTransaction{}, fmt.Errorf("plaid transaction %s: bad date %q", txn.GetTransactionId(), txn.GetDate())
	}
	category := txn.GetPersonalFinanceCategory()
	return BankTransaction{
		ID:       txn.GetTransactionId(),
		Amount:   decimal.NewFromFloat(txn.GetAmount()),
		Date:     date,
		Name:     txn.GetName(),
		Merchant: txn.GetMerchantName(),
		Category: category.GetPrimary(),
		Pending:  txn.GetPending(),
	}, nil
}
