package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalas/centavo/internal/model"
)

func doc(id string, updated time.Time) model.Document {
	return model.Document{
		ID:        id,
		UpdatedAt: updated,
		SortKey:   updated.UTC().Format(time.RFC3339Nano) + "/" + id,
		Data:      []byte(`{"id":"` + id + `"}`),
	}
}

func ids(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestMergeNoDuplicates(t *testing.T) {
	now := time.Now().UTC()
	local := []model.Document{doc("a", now), doc("b", now)}
	remote := []model.Document{doc("a", now), doc("c", now.Add(time.Second))}

	merged := Merge(local, remote)

	seen := make(map[string]int)
	for _, d := range merged {
		seen[d.ID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "id %s appears %d times", id, count)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(merged))
}

func TestMergeTempIDsSurvive(t *testing.T) {
	now := time.Now().UTC()
	tempID := model.NewTempID()
	local := []model.Document{doc(tempID, now), doc("a", now)}
	remote := []model.Document{doc("a", now), doc("b", now)}

	merged := Merge(local, remote)

	assert.Contains(t, ids(merged), tempID)
}

func TestMergeRecencyWins(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("local edit newer than remote copy", func(t *testing.T) {
		localDoc := doc("a", base.Add(time.Hour))
		localDoc.Data = []byte(`{"id":"a","description":"edited offline"}`)
		merged := Merge([]model.Document{localDoc}, []model.Document{doc("a", base)})

		require.Len(t, merged, 1)
		assert.Equal(t, localDoc.Data, merged[0].Data)
	})

	t.Run("remote copy newer than local", func(t *testing.T) {
		remoteDoc := doc("a", base.Add(time.Hour))
		remoteDoc.Data = []byte(`{"id":"a","description":"edited elsewhere"}`)
		merged := Merge([]model.Document{doc("a", base)}, []model.Document{remoteDoc})

		require.Len(t, merged, 1)
		assert.Equal(t, remoteDoc.Data, merged[0].Data)
	})

	t.Run("equal timestamps prefer remote", func(t *testing.T) {
		localDoc := doc("a", base)
		localDoc.Data = []byte(`{"id":"a","side":"local"}`)
		remoteDoc := doc("a", base)
		remoteDoc.Data = []byte(`{"id":"a","side":"remote"}`)

		merged := Merge([]model.Document{localDoc}, []model.Document{remoteDoc})
		require.Len(t, merged, 1)
		assert.Equal(t, remoteDoc.Data, merged[0].Data)
	})
}

func TestMergeLocalOnlyRetained(t *testing.T) {
	now := time.Now().UTC()
	// A permanent-id entity missing from the snapshot stays until the queue
	// settles; there are no tombstones to say otherwise.
	merged := Merge([]model.Document{doc("only-local", now)}, nil)

	require.Len(t, merged, 1)
	assert.Equal(t, "only-local", merged[0].ID)
}

func TestMergeRemoteOnlyAdded(t *testing.T) {
	now := time.Now().UTC()
	merged := Merge(nil, []model.Document{doc("only-remote", now)})

	require.Len(t, merged, 1)
	assert.Equal(t, "only-remote", merged[0].ID)
}

func TestMergeOrderedBySortKeyDescending(t *testing.T) {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	local := []model.Document{doc("old", base)}
	remote := []model.Document{doc("new", base.Add(48 * time.Hour)), doc("mid", base.Add(24 * time.Hour))}

	merged := Merge(local, remote)

	assert.Equal(t, []string{"new", "mid", "old"}, ids(merged))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	now := time.Now().UTC()
	local := []model.Document{doc("b", now), doc("a", now)}
	remote := []model.Document{doc("c", now)}
	localCopy := append([]model.Document(nil), local...)
	remoteCopy := append([]model.Document(nil), remote...)

	_ = Merge(local, remote)
	_ = Merge(local, remote)

	assert.Equal(t, localCopy, local)
	assert.Equal(t, remoteCopy, remote)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.Empty(t, Merge([]model.Document{}, []model.Document{}))
}
