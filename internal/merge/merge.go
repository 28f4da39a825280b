// Package merge combines a freshly fetched remote snapshot with the current
// local cache into a single consistent view.
//
// The merge is a pure function of its two inputs. It never drops an entity
// carrying a temporary id, never produces duplicate ids, and resolves
// conflicting permanent ids by updatedAt recency. A permanent-id entity
// present only locally is retained as-is; the mutation queue reconciles it
// eventually (optimistic retention, no tombstones).
package merge

import (
	"sort"

	"github.com/mkalas/centavo/internal/model"
)

// Merge produces the authoritative entity list for one collection given the
// local cache and the remote snapshot. The result is ordered by sort key
// descending (the collection's natural order, e.g. date for transactions).
func Merge(local, remote []model.Document) []model.Document {
	remoteByID := make(map[string]model.Document, len(remote))
	for _, doc := range remote {
		remoteByID[doc.ID] = doc
	}

	result := make([]model.Document, 0, len(remote)+len(local))
	seen := make(map[string]bool, len(remote)+len(local))

	for _, doc := range local {
		if model.IsTempID(doc.ID) {
			// Pending creation; survives the merge untouched.
			result = append(result, doc)
			seen[doc.ID] = true
			continue
		}

		remoteDoc, onRemote := remoteByID[doc.ID]
		switch {
		case !onRemote:
			// Only local: retained until the queue reconciles it.
			result = append(result, doc)
		case doc.UpdatedAt.After(remoteDoc.UpdatedAt):
			// Local edit is strictly newer than the remote copy.
			result = append(result, doc)
		default:
			result = append(result, remoteDoc)
		}
		seen[doc.ID] = true
	}

	for _, doc := range remote {
		if !seen[doc.ID] {
			result = append(result, doc)
			seen[doc.ID] = true
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SortKey != result[j].SortKey {
			return result[i].SortKey > result[j].SortKey
		}
		return result[i].ID > result[j].ID
	})

	return result
}
