package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
	"github.com/mkalas/centavo/internal/model"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Long: `Lists transactions from the remote store merged with the local cache,
or from the cache alone when offline. Entries still awaiting sync are
marked pending.`,
		RunE: runList,
	}
	cmd.Flags().Int("limit", 20, "maximum number of transactions to show")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	docs, err := application.engine.FetchAll(ctx, model.CollectionTransactions)
	if err != nil {
		return err
	}
	transactions, err := model.DecodeTransactions(docs)
	if err != nil {
		return err
	}

	if len(transactions) == 0 {
		fmt.Println(cli.SubtleStyle.Render("no transactions"))
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}

	for _, t := range transactions {
		amount := t.Amount.StringFixed(2)
		if t.Type == model.TransactionTypeExpense {
			amount = cli.FormatError("-" + amount)
		} else {
			amount = cli.FormatSuccess("+" + amount)
		}
		line := fmt.Sprintf("%s  %10s  %s", t.Date.Format("2006-01-02"), amount, t.Description)
		if model.IsTempID(t.ID) {
			line += "  " + cli.WarningStyle.Render("(pending)")
		}
		fmt.Println(line)
	}
	return nil
}
