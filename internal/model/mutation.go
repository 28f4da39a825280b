package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MutationType is the kind of write a queued mutation represents.
type MutationType string

const (
	// MutationCreate inserts a new entity remotely.
	MutationCreate MutationType = "create"
	// MutationUpdate modifies an existing entity remotely.
	MutationUpdate MutationType = "update"
	// MutationDelete removes an entity remotely.
	MutationDelete MutationType = "delete"
)

// Mutation is one entry in the offline mutation queue. The queue entry's own
// ID is distinct from the entity id it targets; for creates, EntityID carries
// the temporary id so the result can be reconciled once the server assigns a
// permanent one.
type Mutation struct {
	Timestamp  time.Time       `json:"timestamp"`
	ID         string          `json:"id"`
	EntityID   string          `json:"entityId"`
	Collection Collection      `json:"collection"`
	Type       MutationType    `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Synced     bool            `json:"synced"`
}

// NewMutation builds a queue entry targeting the given entity.
func NewMutation(typ MutationType, c Collection, entityID string, data json.RawMessage) Mutation {
	return Mutation{
		ID:         uuid.NewString(),
		Type:       typ,
		Collection: c,
		EntityID:   entityID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
}

// TargetsTempID reports whether the mutation still references a temporary
// entity id. Updates and deletes against unreconciled ids are held back from
// upload until reconciliation rewrites them.
func (m Mutation) TargetsTempID() bool {
	return IsTempID(m.EntityID)
}
