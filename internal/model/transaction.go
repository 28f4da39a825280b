package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType indicates whether a transaction is income or expense.
type TransactionType string

const (
	// TransactionTypeIncome represents money coming in.
	TransactionTypeIncome TransactionType = "income"
	// TransactionTypeExpense represents money going out.
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction represents a single income or expense entry.
type Transaction struct {
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	ID          string          `json:"id"`
	Description string          `json:"description"`
	CategoryID  string          `json:"categoryId"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
}

// EntityID returns the transaction's identifier.
func (t Transaction) EntityID() string { return t.ID }

// EntityUpdatedAt returns the last-modified timestamp.
func (t Transaction) EntityUpdatedAt() time.Time { return t.UpdatedAt }

// SortKey orders transactions by date, newest first when sorted descending.
func (t Transaction) SortKey() string { return sortKey(t.Date, t.ID) }
