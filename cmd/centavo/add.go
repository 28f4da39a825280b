package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
)

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add AMOUNT DESCRIPTION",
		Short: "Record a transaction",
		Long: `Records an income or expense transaction. The write goes straight to the
remote store when online; otherwise it is cached locally under a temporary id
and queued for the next sync.`,
		Args: cobra.ExactArgs(2),
		RunE: runAdd,
	}
	cmd.Flags().String("type", "expense", "transaction type (income, expense)")
	cmd.Flags().String("category", "", "category id")
	cmd.Flags().String("date", "", "transaction date (YYYY-MM-DD, default today)")
	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[0], err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}

	typFlag, _ := cmd.Flags().GetString("type")
	typ := model.TransactionType(typFlag)
	if typ != model.TransactionTypeIncome && typ != model.TransactionTypeExpense {
		return fmt.Errorf("invalid type %q: must be income or expense", typFlag)
	}

	date := time.Now().UTC()
	if dateFlag, _ := cmd.Flags().GetString("date"); dateFlag != "" {
		date, err = time.Parse("2006-01-02", dateFlag)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", dateFlag, err)
		}
	}
	categoryID, _ := cmd.Flags().GetString("category")

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	now := time.Now().UTC()
	tx := model.Transaction{
		ID:          model.NewTempID(),
		Amount:      amount,
		Type:        typ,
		Description: args[1],
		CategoryID:  categoryID,
		Date:        date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc, err := model.NewDocument(tx)
	if err != nil {
		return err
	}

	created, err := application.engine.Create(ctx, model.CollectionTransactions, doc)
	if err != nil {
		return common.NewUserError("could not record the transaction", err)
	}

	if model.IsTempID(created.ID) {
		fmt.Println(cli.FormatWarning("saved locally; will sync when online"))
	} else {
		fmt.Println(cli.FormatSuccess("transaction recorded"))
	}
	return nil
}
