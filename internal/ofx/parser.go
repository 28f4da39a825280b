// Package ofx parses OFX/QFX bank statements into transactions so exported
// statements can be imported through the offline-create path.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/mkalas/centavo/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses an OFX/QFX statement and returns transactions. Each
// transaction is assigned a temporary id; the sync queue assigns permanent
// ids when the import is flushed remotely.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, convert(ofxTx))
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, convert(ofxTx))
			}
		}
	}

	slog.Info("parsed OFX statement", "transactions", len(transactions))

	return transactions, nil
}

// preprocess fixes common formatting issues in OFX files before parsing.
func preprocess(content string) string {
	return strings.TrimLeft(content, " \t\r\n")
}

// convert maps an OFX transaction into the local model. OFX uses negative
// amounts for debits; the sign picks the transaction type and the amount is
// stored positive.
func convert(ofxTx ofxgo.Transaction) model.Transaction {
	amount := decimal.NewFromBigRat(&ofxTx.TrnAmt.Rat, 2)

	typ := model.TransactionTypeIncome
	if amount.IsNegative() {
		typ = model.TransactionTypeExpense
		amount = amount.Neg()
	}

	now := time.Now().UTC()
	return model.Transaction{
		ID:          model.NewTempID(),
		Amount:      amount,
		Type:        typ,
		Description: strings.TrimSpace(string(ofxTx.Name)),
		Date:        ofxTx.DtPosted.Time,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
