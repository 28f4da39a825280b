// Package model defines the domain entities, the document envelope they are
// cached under, and the offline mutation queue entry.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collection names a synchronized entity kind. Collection names match the
// remote table names.
type Collection string

const (
	// CollectionTransactions holds income and expense entries.
	CollectionTransactions Collection = "transactions"
	// CollectionCategories holds transaction categories.
	CollectionCategories Collection = "categories"
	// CollectionSavingsGoals holds savings targets.
	CollectionSavingsGoals Collection = "savings_goals"
	// CollectionSavingsTransactions holds deposits and withdrawals against goals.
	CollectionSavingsTransactions Collection = "savings_transactions"
)

// Collections lists every synchronized collection.
var Collections = []Collection{
	CollectionTransactions,
	CollectionCategories,
	CollectionSavingsGoals,
	CollectionSavingsTransactions,
}

// ValidCollection reports whether c names a known collection.
func ValidCollection(c Collection) bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// TempIDPrefix marks locally assigned identifiers that have not yet been
// replaced by a server-assigned one.
const TempIDPrefix = "temp_"

// NewTempID returns a fresh temporary identifier for an entity created while
// offline.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a locally assigned temporary identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Entity is implemented by every synchronized domain type.
type Entity interface {
	EntityID() string
	EntityUpdatedAt() time.Time
	SortKey() string
}

// Document is the storage and merge envelope for one entity. The identity,
// recency, and ordering fields are lifted out of the JSON body so storage and
// merging never need to know the entity's concrete shape.
type Document struct {
	UpdatedAt time.Time
	ID        string
	SortKey   string
	Data      json.RawMessage
}

// NewDocument wraps an entity in its storage envelope.
func NewDocument(e Entity) (Document, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode entity %s: %w", e.EntityID(), err)
	}
	return Document{
		ID:        e.EntityID(),
		UpdatedAt: e.EntityUpdatedAt(),
		SortKey:   e.SortKey(),
		Data:      data,
	}, nil
}

// sortKey builds a descending-sortable key from a timestamp and an id. The id
// suffix keeps ordering stable when timestamps collide.
func sortKey(t time.Time, id string) string {
	return t.UTC().Format(time.RFC3339Nano) + "/" + id
}
