package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalas/centavo/internal/model"
)

func TestWireAmountAcceptsNumberAndString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "json number", input: `12.34`, want: "12.34"},
		{name: "json string", input: `"12.34"`, want: "12.34"},
		{name: "integer", input: `100`, want: "100"},
		{name: "negative string", input: `"-0.5"`, want: "-0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a wireAmount
			require.NoError(t, json.Unmarshal([]byte(tt.input), &a))
			assert.Equal(t, tt.want, a.String())
		})
	}
}

func TestWireAmountRejectsGarbage(t *testing.T) {
	var a wireAmount
	assert.Error(t, json.Unmarshal([]byte(`"not a number"`), &a))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &a))
}

func TestWireAmountMarshalsAsString(t *testing.T) {
	var a wireAmount
	require.NoError(t, json.Unmarshal([]byte(`42.50`), &a))

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"42.5"`, string(out))
}

func TestDecodeRowsTransactions(t *testing.T) {
	body := []byte(`[
		{"id":"tx-1","type":"expense","description":"Lunch","amount":"9.75",
		 "date":"2026-04-01","updated_at":"2026-04-01T12:00:00Z"},
		{"id":"tx-2","type":"income","description":"Salary","amount":2500,
		 "date":"2026-04-02T00:00:00Z"}
	]`)

	docs, err := decodeRows(model.CollectionTransactions, body)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	txns, err := model.DecodeTransactions(docs)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", txns[0].ID)
	assert.Equal(t, "9.75", txns[0].Amount.String())
	assert.Equal(t, model.TransactionTypeExpense, txns[0].Type)
	assert.Equal(t, "2500", txns[1].Amount.String())
}

func TestDecodeRowsBadDate(t *testing.T) {
	body := []byte(`[{"id":"tx-1","type":"expense","amount":"1","date":"April 1st"}]`)

	_, err := decodeRows(model.CollectionTransactions, body)
	assert.Error(t, err)
}

func TestDecodeRowsUnknownCollection(t *testing.T) {
	_, err := decodeRows("accounts", []byte(`[]`))
	assert.Error(t, err)
}

func TestEncodeMutationRowOmitsTempID(t *testing.T) {
	payload := []byte(`{"id":"temp_abc","description":"Coffee","amount":"3.20",` +
		`"type":"expense","date":"2026-04-01T00:00:00Z"}`)

	row, err := encodeMutationRow(model.CollectionTransactions, payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(row, &decoded))
	assert.NotContains(t, decoded, "id")
	assert.Equal(t, "3.2", decoded["amount"])
	assert.Equal(t, "expense", decoded["type"])
}

func TestEncodeMutationRowSavingsGoal(t *testing.T) {
	payload := []byte(`{"id":"temp_g","name":"Vacation","targetAmount":"1000","currentAmount":"250"}`)

	row, err := encodeMutationRow(model.CollectionSavingsGoals, payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(row, &decoded))
	assert.Equal(t, "Vacation", decoded["name"])
	assert.Equal(t, "1000", decoded["target_amount"])
	assert.NotContains(t, decoded, "id")
}
