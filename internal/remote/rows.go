// Package remote implements the client for the hosted backend: typed row
// mapping at the wire boundary, batched mutation application, an
// availability probe, and the change-notification feed.
package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkalas/centavo/internal/model"
)

// wireAmount accepts decimal amounts encoded as either JSON numbers or
// strings and always marshals back to a string.
type wireAmount struct {
	decimal.Decimal
}

func (a *wireAmount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		a.Decimal = d
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	a.Decimal = d
	return nil
}

func (a wireAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Remote rows use the backend's snake_case column names. One adapter per
// entity kind keeps the untyped wire shape out of the internal model.

type transactionRow struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type"`
	CategoryID  string     `json:"category_id"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Amount      wireAmount `json:"amount"`
}

type categoryRow struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Color     string     `json:"color,omitempty"`
	Icon      string     `json:"icon,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type savingsGoalRow struct {
	ID            string     `json:"id,omitempty"`
	Name          string     `json:"name"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	TargetAmount  wireAmount `json:"target_amount"`
	CurrentAmount wireAmount `json:"current_amount"`
}

type savingsTransactionRow struct {
	ID            string     `json:"id,omitempty"`
	SavingsGoalID string     `json:"savings_goal_id"`
	Type          string     `json:"type"`
	Date          string     `json:"date"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Amount        wireAmount `json:"amount"`
}

const wireDateFormat = time.RFC3339

func parseWireDate(s string) (time.Time, error) {
	if t, err := time.Parse(wireDateFormat, s); err == nil {
		return t, nil
	}
	// Date-only columns come back without a time component.
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (r transactionRow) toEntity() (model.Transaction, error) {
	date, err := parseWireDate(r.Date)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		ID:          r.ID,
		Amount:      r.Amount.Decimal,
		Type:        model.TransactionType(r.Type),
		CategoryID:  r.CategoryID,
		Description: r.Description,
		Date:        date,
		CreatedAt:   timeOrZero(r.CreatedAt),
		UpdatedAt:   timeOrZero(r.UpdatedAt),
	}, nil
}

func transactionToRow(t model.Transaction) transactionRow {
	return transactionRow{
		Amount:      wireAmount{t.Amount},
		Type:        string(t.Type),
		CategoryID:  t.CategoryID,
		Description: t.Description,
		Date:        t.Date.UTC().Format(wireDateFormat),
	}
}

func (r categoryRow) toEntity() model.Category {
	return model.Category{
		ID:        r.ID,
		Name:      r.Name,
		Type:      model.CategoryType(r.Type),
		Color:     r.Color,
		Icon:      r.Icon,
		CreatedAt: timeOrZero(r.CreatedAt),
		UpdatedAt: timeOrZero(r.UpdatedAt),
	}
}

func categoryToRow(c model.Category) categoryRow {
	return categoryRow{
		Name:  c.Name,
		Type:  string(c.Type),
		Color: c.Color,
		Icon:  c.Icon,
	}
}

func (r savingsGoalRow) toEntity() model.SavingsGoal {
	return model.SavingsGoal{
		ID:            r.ID,
		Name:          r.Name,
		TargetAmount:  r.TargetAmount.Decimal,
		CurrentAmount: r.CurrentAmount.Decimal,
		Deadline:      r.Deadline,
		CreatedAt:     timeOrZero(r.CreatedAt),
		UpdatedAt:     timeOrZero(r.UpdatedAt),
	}
}

func savingsGoalToRow(g model.SavingsGoal) savingsGoalRow {
	return savingsGoalRow{
		Name:          g.Name,
		TargetAmount:  wireAmount{g.TargetAmount},
		CurrentAmount: wireAmount{g.CurrentAmount},
		Deadline:      g.Deadline,
	}
}

func (r savingsTransactionRow) toEntity() (model.SavingsTransaction, error) {
	date, err := parseWireDate(r.Date)
	if err != nil {
		return model.SavingsTransaction{}, err
	}
	return model.SavingsTransaction{
		ID:            r.ID,
		SavingsGoalID: r.SavingsGoalID,
		Amount:        r.Amount.Decimal,
		Type:          model.SavingsTransactionType(r.Type),
		Date:          date,
		CreatedAt:     timeOrZero(r.CreatedAt),
		UpdatedAt:     timeOrZero(r.UpdatedAt),
	}, nil
}

func savingsTransactionToRow(s model.SavingsTransaction) savingsTransactionRow {
	return savingsTransactionRow{
		SavingsGoalID: s.SavingsGoalID,
		Amount:        wireAmount{s.Amount},
		Type:          string(s.Type),
		Date:          s.Date.UTC().Format(wireDateFormat),
	}
}

// decodeRows converts a wire response body into documents for a collection.
func decodeRows(c model.Collection, body []byte) ([]model.Document, error) {
	switch c {
	case model.CollectionTransactions:
		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode %s rows: %w", c, err)
		}
		docs := make([]model.Document, 0, len(rows))
		for _, r := range rows {
			e, err := r.toEntity()
			if err != nil {
				return nil, err
			}
			doc, err := model.NewDocument(e)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	case model.CollectionCategories:
		var rows []categoryRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode %s rows: %w", c, err)
		}
		docs := make([]model.Document, 0, len(rows))
		for _, r := range rows {
			doc, err := model.NewDocument(r.toEntity())
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	case model.CollectionSavingsGoals:
		var rows []savingsGoalRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode %s rows: %w", c, err)
		}
		docs := make([]model.Document, 0, len(rows))
		for _, r := range rows {
			doc, err := model.NewDocument(r.toEntity())
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	case model.CollectionSavingsTransactions:
		var rows []savingsTransactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode %s rows: %w", c, err)
		}
		docs := make([]model.Document, 0, len(rows))
		for _, r := range rows {
			e, err := r.toEntity()
			if err != nil {
				return nil, err
			}
			doc, err := model.NewDocument(e)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}

// encodeMutationRow converts a mutation payload (internal entity JSON) into
// the wire row for its collection. The temporary id is never included: the
// server assigns permanent ids on insert.
func encodeMutationRow(c model.Collection, data []byte) ([]byte, error) {
	switch c {
	case model.CollectionTransactions:
		var e model.Transaction
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode transaction payload: %w", err)
		}
		return json.Marshal(transactionToRow(e))
	case model.CollectionCategories:
		var e model.Category
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode category payload: %w", err)
		}
		return json.Marshal(categoryToRow(e))
	case model.CollectionSavingsGoals:
		var e model.SavingsGoal
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode savings goal payload: %w", err)
		}
		return json.Marshal(savingsGoalToRow(e))
	case model.CollectionSavingsTransactions:
		var e model.SavingsTransaction
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode savings transaction payload: %w", err)
		}
		return json.Marshal(savingsTransactionToRow(e))
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}
