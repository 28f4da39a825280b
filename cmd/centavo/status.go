package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and sync state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.close()

			fmt.Println(cli.TitleStyle.Render("Sync status"))

			if application.connectivity.Online() {
				fmt.Println("connection:", cli.FormatSuccess("online"))
			} else {
				fmt.Println("connection:", cli.FormatWarning("offline"))
			}

			status := application.engine.Status()
			if status.LastSyncTime.IsZero() {
				fmt.Println("last sync: ", cli.SubtleStyle.Render("never"))
			} else {
				fmt.Println("last sync: ", status.LastSyncTime.Local().Format("2006-01-02 15:04:05"))
			}
			fmt.Println("pending:   ", status.PendingOperations)
			if status.Error != "" {
				fmt.Println("last error:", cli.FormatError(status.Error))
			}

			available, err := application.store.IsDataAvailable(ctx)
			if err != nil {
				return err
			}
			if available {
				fmt.Println("local data:", cli.FormatSuccess("cached"))
			} else {
				fmt.Println("local data:", cli.SubtleStyle.Render("empty"))
			}
			return nil
		},
	}
}
