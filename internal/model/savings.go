package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsGoal represents a savings target the user contributes toward.
type SavingsGoal struct {
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
}

// EntityID returns the goal's identifier.
func (g SavingsGoal) EntityID() string { return g.ID }

// EntityUpdatedAt returns the last-modified timestamp.
func (g SavingsGoal) EntityUpdatedAt() time.Time { return g.UpdatedAt }

// SortKey orders goals by creation time.
func (g SavingsGoal) SortKey() string { return sortKey(g.CreatedAt, g.ID) }

// SavingsTransactionType indicates the direction of a savings movement.
type SavingsTransactionType string

const (
	// SavingsDeposit adds money to a goal.
	SavingsDeposit SavingsTransactionType = "deposit"
	// SavingsWithdrawal removes money from a goal.
	SavingsWithdrawal SavingsTransactionType = "withdrawal"
)

// SavingsTransaction represents a deposit or withdrawal against a goal.
type SavingsTransaction struct {
	Date          time.Time              `json:"date"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	ID            string                 `json:"id"`
	SavingsGoalID string                 `json:"savingsGoalId"`
	Type          SavingsTransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
}

// EntityID returns the savings transaction's identifier.
func (s SavingsTransaction) EntityID() string { return s.ID }

// EntityUpdatedAt returns the last-modified timestamp.
func (s SavingsTransaction) EntityUpdatedAt() time.Time { return s.UpdatedAt }

// SortKey orders savings transactions by date.
func (s SavingsTransaction) SortKey() string { return sortKey(s.Date, s.ID) }
