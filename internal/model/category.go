package model

import "time"

// CategoryType indicates whether a category applies to income or expenses.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
)

// Category represents a transaction category.
type Category struct {
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Color     string       `json:"color,omitempty"`
	Icon      string       `json:"icon,omitempty"`
	Type      CategoryType `json:"type"`
}

// EntityID returns the category's identifier.
func (c Category) EntityID() string { return c.ID }

// EntityUpdatedAt returns the last-modified timestamp.
func (c Category) EntityUpdatedAt() time.Time { return c.UpdatedAt }

// SortKey orders categories by creation time.
func (c Category) SortKey() string { return sortKey(c.CreatedAt, c.ID) }
