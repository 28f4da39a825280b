package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
	"github.com/mkalas/centavo/internal/model"
	"github.com/mkalas/centavo/internal/ofx"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import transactions from an OFX/QFX statement",
		Long: `Parses a bank statement export and records each transaction through the
offline-create path, so imports work without connectivity and flush on the
next sync.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = f.Close() }()

	transactions, err := ofx.NewParser().ParseFile(ctx, f)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		fmt.Println(cli.SubtleStyle.Render("statement contained no transactions"))
		return nil
	}

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	bar := progressbar.NewOptions(len(transactions),
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionClearOnFinish(),
	)

	imported := 0
	for _, t := range transactions {
		doc, err := model.NewDocument(t)
		if err != nil {
			return err
		}
		if _, err := application.engine.CreateOffline(ctx, model.CollectionTransactions, doc); err != nil {
			return fmt.Errorf("failed to import %q: %w", t.Description, err)
		}
		imported++
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("imported %d transactions; run sync to upload", imported)))
	return nil
}
