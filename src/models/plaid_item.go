package models

import "time"

type PlaidItem struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ItemID      string    `json:"item_id"`
	AccessToken string    `json:"-"`
	AccountID   int64     `json:"account_id"`
	Cursor      string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
