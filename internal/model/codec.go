package model

import (
	"encoding/json"
	"fmt"
)

// DecodeTransactions decodes documents back into transactions.
func DecodeTransactions(docs []Document) ([]Transaction, error) {
	out := make([]Transaction, 0, len(docs))
	for _, d := range docs {
		var t Transaction
		if err := json.Unmarshal(d.Data, &t); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", d.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// DecodeCategories decodes documents back into categories.
func DecodeCategories(docs []Document) ([]Category, error) {
	out := make([]Category, 0, len(docs))
	for _, d := range docs {
		var c Category
		if err := json.Unmarshal(d.Data, &c); err != nil {
			return nil, fmt.Errorf("failed to decode category %s: %w", d.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// DecodeSavingsGoals decodes documents back into savings goals.
func DecodeSavingsGoals(docs []Document) ([]SavingsGoal, error) {
	out := make([]SavingsGoal, 0, len(docs))
	for _, d := range docs {
		var g SavingsGoal
		if err := json.Unmarshal(d.Data, &g); err != nil {
			return nil, fmt.Errorf("failed to decode savings goal %s: %w", d.ID, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// DecodeSavingsTransactions decodes documents back into savings transactions.
func DecodeSavingsTransactions(docs []Document) ([]SavingsTransaction, error) {
	out := make([]SavingsTransaction, 0, len(docs))
	for _, d := range docs {
		var s SavingsTransaction
		if err := json.Unmarshal(d.Data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode savings transaction %s: %w", d.ID, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// RewriteID returns a copy of the document re-keyed under newID, with the
// embedded "id" field in the JSON body rewritten to match.
func RewriteID(doc Document, newID string) (Document, error) {
	var body map[string]any
	if err := json.Unmarshal(doc.Data, &body); err != nil {
		return Document{}, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	body["id"] = newID
	data, err := json.Marshal(body)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document %s: %w", newID, err)
	}
	out := doc
	out.ID = newID
	out.Data = data
	// Sort keys embed the id for stable ordering; rebuild the suffix.
	if i := lastSlash(out.SortKey); i >= 0 {
		out.SortKey = out.SortKey[:i+1] + newID
	}
	return out, nil
}

// RewriteReference replaces every string field equal to oldID in the JSON
// body with newID. Used when a parent entity (e.g. a category) is reconciled
// while children referencing it are still queued.
func RewriteReference(data []byte, oldID, newID string) ([]byte, bool, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, false, fmt.Errorf("failed to decode payload: %w", err)
	}
	changed := false
	for k, v := range body {
		if s, ok := v.(string); ok && s == oldID {
			body[k] = newID
			changed = true
		}
	}
	if !changed {
		return data, false, nil
	}
	out, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, true, nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
